package descriptor

import "fmt"

// TypeTag is the normalized source type of a model field or endpoint
// parameter. Every backend-declared storage or annotation type resolves to
// exactly one tag before projection.
type TypeTag string

const (
	TagString     TypeTag = "string"
	TagText       TypeTag = "text"
	TagInteger    TypeTag = "integer"
	TagFloat      TypeTag = "float"
	TagBoolean    TypeTag = "boolean"
	TagDatetime   TypeTag = "datetime"
	TagForeignKey TypeTag = "foreign-key"
	TagEnum       TypeTag = "enum"
	// TagUnknown marks a parameter whose annotation was missing. It never
	// appears on model fields; unsupported field types are skipped instead.
	TagUnknown TypeTag = "unknown"
)

// ValidTag returns true if t is a recognized type tag.
func ValidTag(t TypeTag) bool {
	switch t {
	case TagString, TagText, TagInteger, TagFloat, TagBoolean,
		TagDatetime, TagForeignKey, TagEnum, TagUnknown:
		return true
	}
	return false
}

// Cardinality describes the shape of a relation between two models.
type Cardinality string

const (
	OneToMany  Cardinality = "one-to-many"
	ManyToOne  Cardinality = "many-to-one"
	ManyToMany Cardinality = "many-to-many"
)

// ParamLocation describes where an endpoint parameter travels in a request.
type ParamLocation string

const (
	InPath  ParamLocation = "path"
	InQuery ParamLocation = "query"
	InBody  ParamLocation = "body"
)

// FieldDescriptor describes a single typed field on a model. Descriptors are
// value types and are never mutated after extraction.
type FieldDescriptor struct {
	Name       string   `json:"name"`
	Type       TypeTag  `json:"type"`
	Nullable   bool     `json:"nullable"`
	HasDefault bool     `json:"has_default"`
	Validators []string `json:"validators,omitempty"`
	// Refers holds the referenced model name for foreign-key fields.
	Refers string `json:"refers,omitempty"`
	// EnumValues holds the literal values for enum fields, in declared order.
	EnumValues []string `json:"enum_values,omitempty"`
}

// RelationDescriptor describes a navigable relation between two models.
type RelationDescriptor struct {
	Name        string      `json:"name"`
	Owner       string      `json:"owner"`
	Related     string      `json:"related"`
	Cardinality Cardinality `json:"cardinality"`
	// BackRef names the counterpart relation on the related model, or is
	// empty for an explicitly one-directional relation.
	BackRef string `json:"back_ref,omitempty"`
}

// ModelDescriptor describes one backend data entity. Fields keep their
// declaration order; field names are unique within a model.
type ModelDescriptor struct {
	Name      string               `json:"name"`
	Fields    []FieldDescriptor    `json:"fields"`
	Relations []RelationDescriptor `json:"relations,omitempty"`
}

// Field returns the field with the given name, or false if absent.
func (m *ModelDescriptor) Field(name string) (FieldDescriptor, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDescriptor{}, false
}

// ParamDescriptor describes one endpoint parameter in declaration order.
type ParamDescriptor struct {
	Name     string        `json:"name"`
	Location ParamLocation `json:"location"`
	Type     TypeTag       `json:"type"`
	Required bool          `json:"required"`
	// Refers holds the referenced model name when Type is foreign-key, or
	// when the parameter is typed by a model (body payloads).
	Refers string `json:"refers,omitempty"`
}

// EndpointDescriptor describes one backend route handler.
type EndpointDescriptor struct {
	Name    string   `json:"name"`
	Route   string   `json:"route"`
	Methods []string `json:"methods"`
	// Params keeps handler declaration order: path, then query, then body
	// params as declared, never sorted.
	Params []ParamDescriptor `json:"params"`
	// ResponseType is either a type tag or a registered model name.
	ResponseType string `json:"response_type"`
	Doc          string `json:"doc,omitempty"`
	AuthRequired bool   `json:"auth_required,omitempty"`
}

// MethodKey returns the unique route identity for a single accepted method.
func (e *EndpointDescriptor) MethodKey(method string) string {
	return method + " " + e.Route
}

// Catalog is the normalized snapshot of all models and endpoints at a point
// in time. It is the single artifact passed between introspection and
// generation, carries no hidden state, and serializes losslessly to JSON.
type Catalog struct {
	// ModelNames preserves model registration order; Models is keyed lookup.
	ModelNames []string                      `json:"model_names"`
	Models     map[string]ModelDescriptor    `json:"models"`
	// EndpointNames preserves endpoint registration order.
	EndpointNames []string                      `json:"endpoint_names"`
	Endpoints     map[string]EndpointDescriptor `json:"endpoints"`
}

// NewCatalog returns an empty catalog ready for population.
func NewCatalog() *Catalog {
	return &Catalog{
		Models:    make(map[string]ModelDescriptor),
		Endpoints: make(map[string]EndpointDescriptor),
	}
}

// AddModel appends a model, preserving registration order. Re-adding a name
// is an error; model names are unique within a catalog.
func (c *Catalog) AddModel(m ModelDescriptor) error {
	if _, ok := c.Models[m.Name]; ok {
		return fmt.Errorf("model %q already registered", m.Name)
	}
	seen := make(map[string]bool, len(m.Fields))
	for _, f := range m.Fields {
		if seen[f.Name] {
			return fmt.Errorf("model %q: duplicate field %q", m.Name, f.Name)
		}
		seen[f.Name] = true
	}
	c.Models[m.Name] = m
	c.ModelNames = append(c.ModelNames, m.Name)
	return nil
}

// AddEndpoint appends an endpoint, preserving registration order.
func (c *Catalog) AddEndpoint(e EndpointDescriptor) error {
	if _, ok := c.Endpoints[e.Name]; ok {
		return fmt.Errorf("endpoint %q already registered", e.Name)
	}
	c.Endpoints[e.Name] = e
	c.EndpointNames = append(c.EndpointNames, e.Name)
	return nil
}

// OrderedModels returns models in registration order.
func (c *Catalog) OrderedModels() []ModelDescriptor {
	out := make([]ModelDescriptor, 0, len(c.ModelNames))
	for _, name := range c.ModelNames {
		out = append(out, c.Models[name])
	}
	return out
}

// OrderedEndpoints returns endpoints in registration order.
func (c *Catalog) OrderedEndpoints() []EndpointDescriptor {
	out := make([]EndpointDescriptor, 0, len(c.EndpointNames))
	for _, name := range c.EndpointNames {
		out = append(out, c.Endpoints[name])
	}
	return out
}

// HasModel reports whether name is a registered model.
func (c *Catalog) HasModel(name string) bool {
	_, ok := c.Models[name]
	return ok
}
