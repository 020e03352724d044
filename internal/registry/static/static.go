// Package static provides an in-process model and route registry for host
// applications that declare their API surface directly in Go. It is the
// programmatic equivalent of the database-backed bindings: the declarations
// it collects feed the same introspection pipeline.
package static

import (
	"context"
	"sync"

	"github.com/ferrostack/ferro/internal/descriptor"
	"github.com/ferrostack/ferro/internal/registry"
)

// Registry collects declared models and routes. It implements both
// registry.ModelRegistry and registry.RouteRegistry and preserves
// registration order.
type Registry struct {
	mu     sync.RWMutex
	models []registry.ModelSource
	routes []registry.RouteSource
}

// New creates an empty static registry.
func New() *Registry {
	return &Registry{}
}

// AddModel registers a model source.
func (r *Registry) AddModel(m registry.ModelSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models = append(r.models, m)
}

// AddRoute registers a route source.
func (r *Registry) AddRoute(rt registry.RouteSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, rt)
}

// Models returns the registered models in registration order.
func (r *Registry) Models(ctx context.Context) ([]registry.ModelSource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]registry.ModelSource, len(r.models))
	copy(out, r.models)
	return out, nil
}

// Routes returns the registered routes in registration order.
func (r *Registry) Routes(ctx context.Context) ([]registry.RouteSource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]registry.RouteSource, len(r.routes))
	copy(out, r.routes)
	return out, nil
}

// ModelBuilder assembles a ModelSource field by field, preserving the order
// of Field/Nullable/... calls as the declaration order.
type ModelBuilder struct {
	src registry.ModelSource
}

// NewModel starts a model declaration.
func NewModel(name string) *ModelBuilder {
	return &ModelBuilder{src: registry.ModelSource{Name: name}}
}

// Field declares a required field with the given backend type.
func (b *ModelBuilder) Field(name, declaredType string) *ModelBuilder {
	b.src.Fields = append(b.src.Fields, registry.FieldSource{
		Name:         name,
		DeclaredType: declaredType,
	})
	return b
}

// Nullable declares an optional field.
func (b *ModelBuilder) Nullable(name, declaredType string) *ModelBuilder {
	b.src.Fields = append(b.src.Fields, registry.FieldSource{
		Name:         name,
		DeclaredType: declaredType,
		Nullable:     true,
	})
	return b
}

// Default declares a field that carries a backend default value.
func (b *ModelBuilder) Default(name, declaredType string) *ModelBuilder {
	b.src.Fields = append(b.src.Fields, registry.FieldSource{
		Name:         name,
		DeclaredType: declaredType,
		HasDefault:   true,
	})
	return b
}

// Enum declares an enumerated field with its literal values.
func (b *ModelBuilder) Enum(name string, values ...string) *ModelBuilder {
	b.src.Fields = append(b.src.Fields, registry.FieldSource{
		Name:         name,
		DeclaredType: "enum",
		EnumValues:   values,
	})
	return b
}

// ForeignKey declares a reference to another model.
func (b *ModelBuilder) ForeignKey(name, target string) *ModelBuilder {
	b.src.Fields = append(b.src.Fields, registry.FieldSource{
		Name:         name,
		DeclaredType: "foreign_key",
		References:   target,
	})
	return b
}

// Validate attaches validator references to the most recently declared field.
func (b *ModelBuilder) Validate(validators ...string) *ModelBuilder {
	if n := len(b.src.Fields); n > 0 {
		f := &b.src.Fields[n-1]
		f.Validators = append(f.Validators, validators...)
	}
	return b
}

// HasMany declares a one-to-many relation to target with the given
// back-reference name on the target model.
func (b *ModelBuilder) HasMany(name, target, backRef string) *ModelBuilder {
	b.src.Relations = append(b.src.Relations, registry.RelationSource{
		Name:        name,
		Target:      target,
		Cardinality: descriptor.OneToMany,
		BackRef:     backRef,
	})
	return b
}

// BelongsTo declares a many-to-one relation to target.
func (b *ModelBuilder) BelongsTo(name, target, backRef string) *ModelBuilder {
	b.src.Relations = append(b.src.Relations, registry.RelationSource{
		Name:        name,
		Target:      target,
		Cardinality: descriptor.ManyToOne,
		BackRef:     backRef,
	})
	return b
}

// ManyToMany declares a many-to-many relation to target.
func (b *ModelBuilder) ManyToMany(name, target, backRef string) *ModelBuilder {
	b.src.Relations = append(b.src.Relations, registry.RelationSource{
		Name:        name,
		Target:      target,
		Cardinality: descriptor.ManyToMany,
		BackRef:     backRef,
	})
	return b
}

// OneWay declares an explicitly one-directional relation; counterpart
// resolution is skipped for it.
func (b *ModelBuilder) OneWay(name, target string, cardinality descriptor.Cardinality) *ModelBuilder {
	b.src.Relations = append(b.src.Relations, registry.RelationSource{
		Name:        name,
		Target:      target,
		Cardinality: cardinality,
		OneWay:      true,
	})
	return b
}

// Build returns the assembled model source.
func (b *ModelBuilder) Build() registry.ModelSource {
	return b.src
}

// Register builds the source and adds it to the registry.
func (b *ModelBuilder) Register(r *Registry) {
	r.AddModel(b.Build())
}

// RouteBuilder assembles a RouteSource, preserving parameter declaration
// order.
type RouteBuilder struct {
	src registry.RouteSource
}

// NewRoute starts a route declaration for one or more HTTP methods.
func NewRoute(name, route string, methods ...string) *RouteBuilder {
	if len(methods) == 0 {
		methods = []string{"GET"}
	}
	return &RouteBuilder{src: registry.RouteSource{
		Name:    name,
		Route:   route,
		Methods: methods,
	}}
}

// Path declares a required path parameter.
func (b *RouteBuilder) Path(name, declaredType string) *RouteBuilder {
	b.src.Params = append(b.src.Params, registry.ParamSource{
		Name:         name,
		Location:     descriptor.InPath,
		DeclaredType: declaredType,
		Required:     true,
	})
	return b
}

// Query declares an optional query parameter.
func (b *RouteBuilder) Query(name, declaredType string) *RouteBuilder {
	b.src.Params = append(b.src.Params, registry.ParamSource{
		Name:         name,
		Location:     descriptor.InQuery,
		DeclaredType: declaredType,
	})
	return b
}

// RequiredQuery declares a required query parameter.
func (b *RouteBuilder) RequiredQuery(name, declaredType string) *RouteBuilder {
	b.src.Params = append(b.src.Params, registry.ParamSource{
		Name:         name,
		Location:     descriptor.InQuery,
		DeclaredType: declaredType,
		Required:     true,
	})
	return b
}

// Body declares the request payload parameter.
func (b *RouteBuilder) Body(name, declaredType string) *RouteBuilder {
	b.src.Params = append(b.src.Params, registry.ParamSource{
		Name:         name,
		Location:     descriptor.InBody,
		DeclaredType: declaredType,
		Required:     true,
	})
	return b
}

// Untyped declares a parameter with no type annotation. The introspector
// reports it and emits the endpoint with an unknown placeholder.
func (b *RouteBuilder) Untyped(name string, location descriptor.ParamLocation) *RouteBuilder {
	b.src.Params = append(b.src.Params, registry.ParamSource{
		Name:     name,
		Location: location,
	})
	return b
}

// Returns sets the response type (a type name or registered model name).
func (b *RouteBuilder) Returns(responseType string) *RouteBuilder {
	b.src.ResponseType = responseType
	return b
}

// Doc sets the endpoint's documentation string.
func (b *RouteBuilder) Doc(doc string) *RouteBuilder {
	b.src.Doc = doc
	return b
}

// Auth marks the endpoint as requiring authentication.
func (b *RouteBuilder) Auth() *RouteBuilder {
	b.src.AuthRequired = true
	return b
}

// Build returns the assembled route source.
func (b *RouteBuilder) Build() registry.RouteSource {
	return b.src
}

// Register builds the source and adds it to the registry.
func (b *RouteBuilder) Register(r *Registry) {
	r.AddRoute(b.Build())
}
