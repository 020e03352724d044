package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ferrostack/ferro/internal/descriptor"
)

// registerTools registers all Ferro MCP tools on the given server.
func (s *MCPServer) registerTools(srv *server.MCPServer) {

	// ----- Discovery tools -----

	srv.AddTool(
		mcp.NewTool("ferro_list_models",
			mcp.WithDescription(
				"List all backend models in the synchronized catalog. Returns each "+
					"model's name, field count, and relation count. Use this first to "+
					"discover available models before asking for details.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
		),
		s.handleListModels,
	)

	srv.AddTool(
		mcp.NewTool("ferro_get_model",
			mcp.WithDescription(
				"Get the full descriptor for a specific model, including all fields "+
					"with their normalized types, nullability, defaults, enum values, "+
					"and relations to other models.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
			mcp.WithString("model",
				mcp.Required(),
				mcp.Description("Name of the model to describe"),
			),
		),
		s.handleGetModel,
	)

	srv.AddTool(
		mcp.NewTool("ferro_list_endpoints",
			mcp.WithDescription(
				"List all API endpoints in the synchronized catalog, including "+
					"routes, accepted methods, parameters, and response types. This is "+
					"the same data the generated TypeScript client is built from.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
		),
		s.handleListEndpoints,
	)

	srv.AddTool(
		mcp.NewTool("ferro_changes",
			mcp.WithDescription(
				"Report the contract changes between the previous and current "+
					"synchronization runs, classified as additive or breaking. Use this "+
					"to understand what the last sync changed in the API surface.",
			),
			mcp.WithToolAnnotation(readOnlyAnnotation()),
		),
		s.handleChanges,
	)

	// ----- Mutation tool -----

	srv.AddTool(
		mcp.NewTool("ferro_sync",
			mcp.WithDescription(
				"Run a synchronization pass: re-introspect the backend registries "+
					"and regenerate the TypeScript artifacts if the contract changed. "+
					"Returns the run outcome, including whether generation was skipped.",
			),
			mcp.WithToolAnnotation(mutatingAnnotation()),
		),
		s.handleSync,
	)
}

// =========================================================================
// Tool handlers
// =========================================================================

// handleListModels returns a summary of every model in the current snapshot.
func (s *MCPServer) handleListModels(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	catalog := s.snapshot()

	type modelInfo struct {
		Name      string `json:"name"`
		Fields    int    `json:"fields"`
		Relations int    `json:"relations"`
	}

	models := catalog.OrderedModels()
	items := make([]modelInfo, len(models))
	for i, m := range models {
		items[i] = modelInfo{
			Name:      m.Name,
			Fields:    len(m.Fields),
			Relations: len(m.Relations),
		}
	}

	return successJSON(items)
}

// handleGetModel returns the full descriptor for one model.
func (s *MCPServer) handleGetModel(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	name, err := requireString(request, "model")
	if err != nil {
		return toolError("%v", err)
	}

	catalog := s.snapshot()
	for _, m := range catalog.OrderedModels() {
		if m.Name == name {
			return successJSON(m)
		}
	}

	// Provide available model names to help the LLM self-correct.
	names := make([]string, 0, len(catalog.OrderedModels()))
	for _, m := range catalog.OrderedModels() {
		names = append(names, m.Name)
	}
	return toolError("Model %q not found. Available models: %v", name, names)
}

// handleListEndpoints returns every endpoint descriptor in the snapshot.
func (s *MCPServer) handleListEndpoints(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	catalog := s.snapshot()
	return successJSON(catalog.OrderedEndpoints())
}

// handleChanges returns the diff from the last successful run.
func (s *MCPServer) handleChanges(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	return successJSON(s.orch.Changes())
}

// handleSync triggers a synchronous run and reports its outcome.
func (s *MCPServer) handleSync(
	ctx context.Context,
	request mcp.CallToolRequest,
) (*mcp.CallToolResult, error) {

	run, err := s.orch.Sync(ctx)
	if err != nil {
		return toolError("Synchronization failed: %v", err)
	}
	return successJSON(run)
}

// snapshot returns the current catalog, or an empty one before the first
// successful run.
func (s *MCPServer) snapshot() *descriptor.Catalog {
	if c := s.orch.Snapshot(); c != nil {
		return c
	}
	return descriptor.NewCatalog()
}
