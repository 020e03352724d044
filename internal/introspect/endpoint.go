package introspect

import (
	"context"
	"fmt"
	"strings"

	"github.com/ferrostack/ferro/internal/descriptor"
	"github.com/ferrostack/ferro/internal/registry"
)

// Endpoints reads every registered route and normalizes it into an
// EndpointDescriptor, appending each to the catalog in registration order.
// Untyped parameters degrade to an unknown placeholder; a duplicate
// route+method pair is fatal to the whole run.
func Endpoints(ctx context.Context, reg registry.RouteRegistry, catalog *descriptor.Catalog, report *Report) error {
	sources, err := reg.Routes(ctx)
	if err != nil {
		return fmt.Errorf("read route registry: %w", err)
	}

	// route+method pairs must be unique across the whole catalog.
	claimed := make(map[string]string)

	for _, src := range sources {
		ep := descriptor.EndpointDescriptor{
			Name:         src.Name,
			Route:        src.Route,
			Methods:      normalizeMethods(src.Methods),
			ResponseType: src.ResponseType,
			Doc:          src.Doc,
			AuthRequired: src.AuthRequired,
		}

		for _, method := range ep.Methods {
			key := ep.MethodKey(method)
			if first, ok := claimed[key]; ok {
				return &DuplicateEndpoint{
					Method: method,
					Route:  ep.Route,
					First:  first,
					Second: ep.Name,
				}
			}
			claimed[key] = ep.Name
		}

		for _, p := range src.Params {
			ep.Params = append(ep.Params, normalizeParam(src.Name, p, report))
		}

		if err := catalog.AddEndpoint(ep); err != nil {
			return fmt.Errorf("register endpoint: %w", err)
		}
	}
	return nil
}

func normalizeMethods(methods []string) []string {
	out := make([]string, 0, len(methods))
	for _, m := range methods {
		out = append(out, strings.ToUpper(strings.TrimSpace(m)))
	}
	if len(out) == 0 {
		out = append(out, "GET")
	}
	return out
}

func normalizeParam(endpoint string, p registry.ParamSource, report *Report) descriptor.ParamDescriptor {
	param := descriptor.ParamDescriptor{
		Name:     p.Name,
		Location: p.Location,
		Required: p.Required,
	}

	if p.DeclaredType == "" {
		report.Untyped = append(report.Untyped, UntypedParameter{
			Endpoint: endpoint,
			Param:    p.Name,
		})
		param.Type = descriptor.TagUnknown
		return param
	}

	if tag, ok := ResolveType(p.DeclaredType); ok {
		param.Type = tag
		return param
	}

	// Annotations that are not primitive tags name a registered model (body
	// payloads, typically). The generators resolve the reference against the
	// catalog and fall back to unknown if the model never materialized.
	param.Type = descriptor.TagForeignKey
	param.Refers = p.DeclaredType
	return param
}
