// Package clientgen projects a normalized catalog into a typed TypeScript
// request client: one callable per endpoint, path parameters interpolated
// into the route template, query parameters appended with absent values
// omitted, and body parameters serialized as JSON. Like typegen it is a pure
// function of the catalog.
package clientgen

import (
	"fmt"
	"strings"

	"github.com/ferrostack/ferro/internal/descriptor"
	"github.com/ferrostack/ferro/internal/typegen"
)

// Options controls file-level details of the generated client.
type Options struct {
	// TypesImport is the module specifier the client imports generated model
	// types from.
	TypesImport string
}

// DefaultOptions matches the default artifact layout where the types file
// sits next to the client file.
func DefaultOptions() Options {
	return Options{TypesImport: "./api-types"}
}

const header = `// Code generated by ferro sync-types. DO NOT EDIT.
`

const runtime = `export interface FerroClientConfig {
  baseUrl: string;
  fetchImpl?: typeof fetch;
  getToken?: () => string | undefined;
}

export interface RequestOptions {
  signal?: AbortSignal;
}

async function request<T>(
  config: FerroClientConfig,
  method: string,
  path: string,
  query: Record<string, unknown>,
  body: unknown,
  auth: boolean,
  options?: RequestOptions,
): Promise<T> {
  const url = new URL(path, config.baseUrl);
  for (const [key, value] of Object.entries(query)) {
    if (value !== undefined && value !== null) {
      url.searchParams.set(key, String(value));
    }
  }
  const headers: Record<string, string> = { Accept: 'application/json' };
  if (body !== undefined) {
    headers['Content-Type'] = 'application/json';
  }
  if (auth && config.getToken) {
    const token = config.getToken();
    if (token) {
      headers.Authorization = ` + "`Bearer ${token}`" + `;
    }
  }
  const fetchImpl = config.fetchImpl ?? fetch;
  const res = await fetchImpl(url.toString(), {
    method,
    headers,
    body: body === undefined ? undefined : JSON.stringify(body),
    signal: options?.signal,
  });
  if (!res.ok) {
    throw new Error(` + "`${method} ${path} failed: ${res.status}`" + `);
  }
  if (res.status === 204) {
    return undefined as T;
  }
  return (await res.json()) as T;
}

export async function fetchApiMetadata(
  config: FerroClientConfig,
  options?: RequestOptions,
): Promise<unknown> {
  return request(config, 'GET', '/_ferro/api-metadata', {}, undefined, false, options);
}
`

// Generate renders the client file for the catalog.
func Generate(catalog *descriptor.Catalog, opts Options) []byte {
	if opts.TypesImport == "" {
		opts.TypesImport = "./api-types"
	}

	var sb strings.Builder
	sb.WriteString(header)
	sb.WriteString("\n")

	if imports := usedModels(catalog); len(imports) > 0 {
		fmt.Fprintf(&sb, "import type { %s } from '%s';\n\n", strings.Join(imports, ", "), opts.TypesImport)
	}

	sb.WriteString(runtime)
	sb.WriteString("\n")

	endpoints := catalog.OrderedEndpoints()

	writeEndpointsInterface(&sb, catalog, endpoints)
	writeFactory(&sb, catalog, endpoints)

	return []byte(sb.String())
}

// usedModels returns, in catalog order, the model names the client actually
// references in parameter or response positions.
func usedModels(catalog *descriptor.Catalog) []string {
	used := make(map[string]bool)
	for _, ep := range catalog.OrderedEndpoints() {
		for _, p := range ep.Params {
			if p.Type == descriptor.TagForeignKey && catalog.HasModel(p.Refers) {
				used[p.Refers] = true
			}
		}
		ref := strings.TrimSuffix(strings.TrimSpace(ep.ResponseType), "[]")
		if catalog.HasModel(ref) {
			used[ref] = true
		}
	}

	var names []string
	for _, name := range catalog.ModelNames {
		if used[name] {
			names = append(names, name)
		}
	}
	return names
}

func writeEndpointsInterface(sb *strings.Builder, catalog *descriptor.Catalog, endpoints []descriptor.EndpointDescriptor) {
	sb.WriteString("export interface ApiEndpoints {\n")
	for _, ep := range endpoints {
		if ep.Doc != "" {
			fmt.Fprintf(sb, "  /** %s */\n", sanitizeDoc(ep.Doc))
		}
		fmt.Fprintf(sb, "  %s: (%s) => Promise<%s>;\n",
			ep.Name, signature(catalog, ep), typegen.ReferenceType(catalog, ep.ResponseType))
	}
	sb.WriteString("}\n\n")
}

func writeFactory(sb *strings.Builder, catalog *descriptor.Catalog, endpoints []descriptor.EndpointDescriptor) {
	sb.WriteString("export function createFerroClient(config: FerroClientConfig): ApiEndpoints {\n")
	sb.WriteString("  return {\n")
	for _, ep := range endpoints {
		writeCallable(sb, catalog, ep)
	}
	sb.WriteString("  };\n")
	sb.WriteString("}\n")
}

func writeCallable(sb *strings.Builder, catalog *descriptor.Catalog, ep descriptor.EndpointDescriptor) {
	args := make([]string, 0, len(ep.Params)+1)
	for _, p := range ep.Params {
		args = append(args, p.Name)
	}
	args = append(args, "options")

	// Endpoints accepting several methods generate one callable bound to
	// the first declared method. Full multi-method fidelity would need one
	// callable per method; see DESIGN.md.
	method := ep.Methods[0]

	var queryPairs []string
	body := "undefined"
	for _, p := range ep.Params {
		switch p.Location {
		case descriptor.InQuery:
			queryPairs = append(queryPairs, fmt.Sprintf("%s: %s", p.Name, p.Name))
		case descriptor.InBody:
			body = p.Name
		}
	}

	fmt.Fprintf(sb, "    %s: (%s) =>\n", ep.Name, strings.Join(args, ", "))
	fmt.Fprintf(sb, "      request(config, '%s', %s, { %s }, %s, %t, options),\n",
		method, pathExpr(ep), strings.Join(queryPairs, ", "), body, ep.AuthRequired)
}

// signature renders the typed parameter list of one callable, keeping the
// handler's declared parameter order; the trailing options parameter carries
// the caller's cancellation signal.
func signature(catalog *descriptor.Catalog, ep descriptor.EndpointDescriptor) string {
	parts := make([]string, 0, len(ep.Params)+1)
	for _, p := range ep.Params {
		optional := ""
		if !p.Required {
			optional = "?"
		}
		parts = append(parts, fmt.Sprintf("%s%s: %s", p.Name, optional, typegen.ParamType(catalog, p)))
	}
	parts = append(parts, "options?: RequestOptions")
	return strings.Join(parts, ", ")
}

// pathExpr renders the route template as a TypeScript expression with path
// parameters interpolated. Both {name} and :name placeholder styles are
// recognized.
func pathExpr(ep descriptor.EndpointDescriptor) string {
	path := ep.Route
	interpolated := false
	for _, p := range ep.Params {
		if p.Location != descriptor.InPath {
			continue
		}
		expr := fmt.Sprintf("${encodeURIComponent(String(%s))}", p.Name)
		for _, placeholder := range []string{"{" + p.Name + "}", ":" + p.Name} {
			if strings.Contains(path, placeholder) {
				path = strings.Replace(path, placeholder, expr, 1)
				interpolated = true
				break
			}
		}
	}
	if interpolated {
		return "`" + path + "`"
	}
	return "'" + path + "'"
}

func sanitizeDoc(doc string) string {
	doc = strings.ReplaceAll(doc, "*/", "*\\/")
	return strings.Join(strings.Fields(doc), " ")
}
