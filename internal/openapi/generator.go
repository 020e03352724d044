// Package openapi exports a normalized catalog as an OpenAPI 3.1 document.
// Unlike the generated TypeScript client, the document describes every
// accepted method of a multi-method endpoint.
package openapi

import (
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/ferrostack/ferro/internal/descriptor"
)

// Generate builds an OpenAPI 3.1 document for the catalog. The projection
// is deterministic: models and endpoints appear in registration order.
func Generate(catalog *descriptor.Catalog, baseURL string) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "Ferro API",
			Description: "API surface synchronized from the backend model and route registries by Ferro.",
			Version:     "1.0.0",
		},
	}
	if baseURL != "" {
		doc.Servers = openapi3.Servers{{URL: baseURL}}
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components

	doc.Components.SecuritySchemes["bearerAuth"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
	}

	doc.Paths = openapi3.NewPaths()

	doc.Components.Schemas["ErrorResponse"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"error": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type: &openapi3.Types{"object"},
						Properties: openapi3.Schemas{
							"code":    &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}},
							"message": &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}},
						},
					},
				},
			},
		},
	}

	for _, m := range catalog.OrderedModels() {
		doc.Components.Schemas[m.Name] = modelSchema(m)
	}

	for _, ep := range catalog.OrderedEndpoints() {
		addEndpointPaths(doc, catalog, ep)
	}

	return doc
}

// modelSchema converts one model into an object schema. Required lists the
// non-nullable fields in declaration order.
func modelSchema(m descriptor.ModelDescriptor) *openapi3.SchemaRef {
	properties := openapi3.Schemas{}
	var required []string

	for _, f := range m.Fields {
		properties[f.Name] = fieldSchema(f)
		if !f.Nullable {
			required = append(required, f.Name)
		}
	}

	for _, rel := range m.Relations {
		related := openapi3.NewSchemaRef("#/components/schemas/"+rel.Related, nil)
		switch rel.Cardinality {
		case descriptor.OneToMany, descriptor.ManyToMany:
			properties[rel.Name] = &openapi3.SchemaRef{
				Value: &openapi3.Schema{
					Type:  &openapi3.Types{"array"},
					Items: related,
				},
			}
		default:
			properties[rel.Name] = related
		}
	}

	return &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:       &openapi3.Types{"object"},
			Properties: properties,
			Required:   required,
		},
	}
}

func fieldSchema(f descriptor.FieldDescriptor) *openapi3.SchemaRef {
	switch f.Type {
	case descriptor.TagString, descriptor.TagText:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}}
	case descriptor.TagInteger:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int64"}}
	case descriptor.TagFloat:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"number"}, Format: "double"}}
	case descriptor.TagBoolean:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"boolean"}}}
	case descriptor.TagDatetime:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "date-time"}}
	case descriptor.TagForeignKey:
		return openapi3.NewSchemaRef("#/components/schemas/"+f.Refers, nil)
	case descriptor.TagEnum:
		values := make([]interface{}, 0, len(f.EnumValues))
		for _, v := range f.EnumValues {
			values = append(values, v)
		}
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Enum: values}}
	default:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{}}
	}
}

// addEndpointPaths registers one operation per accepted method on the
// endpoint's route.
func addEndpointPaths(doc *openapi3.T, catalog *descriptor.Catalog, ep descriptor.EndpointDescriptor) {
	path := normalizePath(ep)
	pathItem := doc.Paths.Value(path)
	if pathItem == nil {
		pathItem = &openapi3.PathItem{}
		doc.Paths.Set(path, pathItem)
	}

	for i, method := range ep.Methods {
		op := &openapi3.Operation{
			Summary:     ep.Doc,
			OperationID: operationID(ep, method, i),
			Responses:   newResponses(catalog, ep),
		}

		for _, p := range ep.Params {
			switch p.Location {
			case descriptor.InPath, descriptor.InQuery:
				op.Parameters = append(op.Parameters, paramRef(catalog, p))
			case descriptor.InBody:
				op.RequestBody = &openapi3.RequestBodyRef{
					Value: &openapi3.RequestBody{
						Required: p.Required,
						Content:  openapi3.NewContentWithJSONSchemaRef(refSchema(catalog, paramRefName(p))),
					},
				}
			}
		}

		if ep.AuthRequired {
			op.Security = &openapi3.SecurityRequirements{{"bearerAuth": {}}}
		}

		setOperation(pathItem, method, op)
	}
}

// operationID keeps the endpoint name for its first method and suffixes the
// rest, so every operation stays uniquely addressable.
func operationID(ep descriptor.EndpointDescriptor, method string, idx int) string {
	if idx == 0 {
		return ep.Name
	}
	return fmt.Sprintf("%s_%s", ep.Name, strings.ToLower(method))
}

// normalizePath rewrites :name placeholders to {name} so the document uses
// OpenAPI's template style regardless of the host framework's.
func normalizePath(ep descriptor.EndpointDescriptor) string {
	path := ep.Route
	for _, p := range ep.Params {
		if p.Location != descriptor.InPath {
			continue
		}
		path = strings.Replace(path, ":"+p.Name, "{"+p.Name+"}", 1)
	}
	return path
}

func paramRef(catalog *descriptor.Catalog, p descriptor.ParamDescriptor) *openapi3.ParameterRef {
	in := "query"
	required := p.Required
	if p.Location == descriptor.InPath {
		in = "path"
		required = true
	}
	return &openapi3.ParameterRef{
		Value: &openapi3.Parameter{
			Name:     p.Name,
			In:       in,
			Required: required,
			Schema:   refSchema(catalog, paramRefName(p)),
		},
	}
}

func paramRefName(p descriptor.ParamDescriptor) string {
	if p.Type == descriptor.TagForeignKey {
		return p.Refers
	}
	return string(p.Type)
}

// refSchema resolves a type reference (tag, model name, or either with an
// array suffix) to a schema.
func refSchema(catalog *descriptor.Catalog, ref string) *openapi3.SchemaRef {
	ref = strings.TrimSpace(ref)
	if inner, ok := strings.CutSuffix(ref, "[]"); ok {
		return &openapi3.SchemaRef{
			Value: &openapi3.Schema{
				Type:  &openapi3.Types{"array"},
				Items: refSchema(catalog, inner),
			},
		}
	}
	if catalog.HasModel(ref) {
		return openapi3.NewSchemaRef("#/components/schemas/"+ref, nil)
	}
	switch strings.ToLower(ref) {
	case "string", "str", "text":
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}}
	case "int", "integer":
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int64"}}
	case "float", "number":
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"number"}, Format: "double"}}
	case "bool", "boolean":
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"boolean"}}}
	case "datetime", "date":
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "date-time"}}
	default:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{}}
	}
}

func newResponses(catalog *descriptor.Catalog, ep descriptor.EndpointDescriptor) *openapi3.Responses {
	responses := openapi3.NewResponses()

	successDesc := "Success"
	responses.Set("200", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &successDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(refSchema(catalog, ep.ResponseType)),
		},
	})

	errorRef := openapi3.NewSchemaRef("#/components/schemas/ErrorResponse", nil)
	errorDesc := "Error"
	responses.Set("default", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &errorDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(errorRef),
		},
	})

	return responses
}

func setOperation(item *openapi3.PathItem, method string, op *openapi3.Operation) {
	switch method {
	case "GET":
		item.Get = op
	case "POST":
		item.Post = op
	case "PUT":
		item.Put = op
	case "PATCH":
		item.Patch = op
	case "DELETE":
		item.Delete = op
	case "HEAD":
		item.Head = op
	case "OPTIONS":
		item.Options = op
	}
}
