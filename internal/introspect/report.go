// Package introspect turns raw registry sources into normalized catalog
// descriptors. Degraded inputs (unsupported field types, dangling relations,
// untyped parameters) are collected into a Report and the run proceeds;
// ambiguous inputs (duplicate route+method pairs) abort it.
package introspect

import (
	"fmt"
	"log/slog"
)

// UnsupportedFieldType reports a field whose declared storage type could not
// be resolved to a type tag. The field is skipped; the model keeps its
// remaining fields.
type UnsupportedFieldType struct {
	Model        string `json:"model"`
	Field        string `json:"field"`
	DeclaredType string `json:"declared_type"`
}

func (e UnsupportedFieldType) Error() string {
	return fmt.Sprintf("unsupported field type %q on %s.%s", e.DeclaredType, e.Model, e.Field)
}

// DanglingRelation reports a relation whose counterpart could not be
// resolved on the related model. The relation is dropped.
type DanglingRelation struct {
	Model    string `json:"model"`
	Relation string `json:"relation"`
	Target   string `json:"target"`
	Reason   string `json:"reason"`
}

func (e DanglingRelation) Error() string {
	return fmt.Sprintf("dangling relation %s.%s -> %s: %s", e.Model, e.Relation, e.Target, e.Reason)
}

// UntypedParameter reports a handler parameter with no type annotation. The
// endpoint is still emitted with an unknown placeholder for the parameter;
// generation never silently drops a route.
type UntypedParameter struct {
	Endpoint string `json:"endpoint"`
	Param    string `json:"param"`
}

func (e UntypedParameter) Error() string {
	return fmt.Sprintf("untyped parameter %q on endpoint %q", e.Param, e.Endpoint)
}

// DuplicateEndpoint is fatal: two handlers registered for the same
// route+method pair make the API surface ambiguous, which is not a
// partial-failure case.
type DuplicateEndpoint struct {
	Method string
	Route  string
	First  string
	Second string
}

func (e *DuplicateEndpoint) Error() string {
	return fmt.Sprintf("duplicate endpoint %s %s: registered by both %q and %q", e.Method, e.Route, e.First, e.Second)
}

// Report aggregates the non-fatal findings of one sync run.
type Report struct {
	Unsupported []UnsupportedFieldType `json:"unsupported_field_types,omitempty"`
	Dangling    []DanglingRelation     `json:"dangling_relations,omitempty"`
	Untyped     []UntypedParameter     `json:"untyped_parameters,omitempty"`
}

// HasFindings reports whether any non-fatal issue was collected.
func (r *Report) HasFindings() bool {
	return len(r.Unsupported) > 0 || len(r.Dangling) > 0 || len(r.Untyped) > 0
}

// Count returns the total number of collected findings.
func (r *Report) Count() int {
	return len(r.Unsupported) + len(r.Dangling) + len(r.Untyped)
}

// Log writes every finding as a structured warning.
func (r *Report) Log(logger *slog.Logger) {
	for _, f := range r.Unsupported {
		logger.Warn("unsupported field type", "model", f.Model, "field", f.Field, "declared_type", f.DeclaredType)
	}
	for _, f := range r.Dangling {
		logger.Warn("dangling relation", "model", f.Model, "relation", f.Relation, "target", f.Target, "reason", f.Reason)
	}
	for _, f := range r.Untyped {
		logger.Warn("untyped parameter", "endpoint", f.Endpoint, "param", f.Param)
	}
}
