package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ferrostack/ferro/internal/descriptor"
)

// FieldSource is the raw, un-normalized view of one declared model field as
// the host framework exposes it. The declared type string is whatever the
// backend wrote (a SQL column type, an ORM type name); the introspector
// resolves it to a type tag.
type FieldSource struct {
	Name         string
	DeclaredType string
	Nullable     bool
	HasDefault   bool
	Validators   []string
	// EnumValues carries literal values when the declared type is an
	// enumeration the source can enumerate.
	EnumValues []string
	// References names the target model when the field is a foreign key.
	References string
}

// RelationSource is the raw view of one declared relation.
type RelationSource struct {
	Name        string
	Target      string
	Cardinality descriptor.Cardinality
	BackRef     string
	// OneWay marks an explicitly one-directional relation; the introspector
	// skips counterpart resolution for it.
	OneWay bool
}

// ModelSource is the raw view of one registered model.
type ModelSource struct {
	Name      string
	Fields    []FieldSource
	Relations []RelationSource
}

// ParamSource is the raw view of one declared handler parameter. An empty
// DeclaredType means the handler carried no annotation.
type ParamSource struct {
	Name         string
	Location     descriptor.ParamLocation
	DeclaredType string
	Required     bool
}

// RouteSource is the raw view of one registered route handler.
type RouteSource struct {
	Name         string
	Route        string
	Methods      []string
	Params       []ParamSource
	ResponseType string
	Doc          string
	AuthRequired bool
}

// ModelRegistry is the capability the model introspector depends on. A
// concrete binding adapts a host framework's live model registry; the
// introspector only reads through it and never mutates host state.
type ModelRegistry interface {
	Models(ctx context.Context) ([]ModelSource, error)
}

// RouteRegistry is the capability the endpoint introspector depends on.
type RouteRegistry interface {
	Routes(ctx context.Context) ([]RouteSource, error)
}

// ConnectionConfig holds connection parameters for database-backed bindings.
type ConnectionConfig struct {
	Driver          string
	DSN             string
	SchemaName      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Binding is a database-backed model registry: it connects to a live
// database and derives ModelSources from its schema metadata.
type Binding interface {
	ModelRegistry

	Connect(cfg ConnectionConfig) error
	Disconnect() error
	Ping(ctx context.Context) error
	DriverName() string
}

// Factory creates a new, unconnected Binding instance.
type Factory func() Binding

// Drivers manages binding factories and active connections, keyed by driver
// name and source name respectively.
type Drivers struct {
	mu        sync.RWMutex
	factories map[string]Factory
	active    map[string]Binding
}

// NewDrivers creates an empty driver registry.
func NewDrivers() *Drivers {
	return &Drivers{
		factories: make(map[string]Factory),
		active:    make(map[string]Binding),
	}
}

// Register registers a binding factory for a driver name.
func (d *Drivers) Register(driver string, factory Factory) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.factories[driver] = factory
}

// Connect creates a binding for the named source and connects it. An
// existing binding under the same name is disconnected first.
func (d *Drivers) Connect(sourceName string, cfg ConnectionConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	factory, ok := d.factories[cfg.Driver]
	if !ok {
		return fmt.Errorf("unsupported driver: %s (available: %v)", cfg.Driver, d.availableDrivers())
	}

	b := factory()
	if err := b.Connect(cfg); err != nil {
		return fmt.Errorf("failed to connect source %q: %w", sourceName, err)
	}

	if existing, ok := d.active[sourceName]; ok {
		existing.Disconnect()
	}

	d.active[sourceName] = b
	return nil
}

// Get returns the binding for a source.
func (d *Drivers) Get(sourceName string) (Binding, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	b, ok := d.active[sourceName]
	if !ok {
		return nil, fmt.Errorf("source %q not found (available: %v)", sourceName, d.activeSources())
	}
	return b, nil
}

// Disconnect removes and disconnects a source.
func (d *Drivers) Disconnect(sourceName string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, ok := d.active[sourceName]
	if !ok {
		return fmt.Errorf("source %q not found", sourceName)
	}

	err := b.Disconnect()
	delete(d.active, sourceName)
	return err
}

// CloseAll disconnects every active source.
func (d *Drivers) CloseAll() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for name, b := range d.active {
		b.Disconnect()
		delete(d.active, name)
	}
}

func (d *Drivers) availableDrivers() []string {
	drivers := make([]string, 0, len(d.factories))
	for name := range d.factories {
		drivers = append(drivers, name)
	}
	return drivers
}

func (d *Drivers) activeSources() []string {
	names := make([]string, 0, len(d.active))
	for name := range d.active {
		names = append(names, name)
	}
	return names
}
