package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ferrostack/ferro/internal/descriptor"
)

// registerResources adds MCP resource definitions to the server. Resources
// provide read-only data that LLM clients can load into their context.
func (s *MCPServer) registerResources(srv *server.MCPServer) {

	// -------------------------------------------------------------------
	// ferro://catalog — the full synchronized catalog
	// -------------------------------------------------------------------
	srv.AddResource(
		mcp.NewResource(
			"ferro://catalog",
			"Synchronized API Catalog",
			mcp.WithResourceDescription(
				"The complete normalized catalog from the last synchronization "+
					"run: every model descriptor and endpoint descriptor in "+
					"registration order.",
			),
			mcp.WithMIMEType("application/json"),
		),
		s.handleCatalogResource,
	)

	// -------------------------------------------------------------------
	// ferro://models/{name} — one model descriptor (template)
	// -------------------------------------------------------------------
	srv.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"ferro://models/{name}",
			"Model Descriptor",
			mcp.WithTemplateDescription(
				"The normalized descriptor for a single model, including "+
					"fields, nullability, enum values, and relations.",
			),
			mcp.WithTemplateMIMEType("application/json"),
		),
		s.handleModelResource,
	)
}

// handleCatalogResource returns the metadata projection of the snapshot.
func (s *MCPServer) handleCatalogResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {

	meta := descriptor.Metadata(s.orch.Snapshot())

	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal catalog: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "ferro://catalog",
			MIMEType: "application/json",
			Text:     string(b),
		},
	}, nil
}

// handleModelResource returns the descriptor for a single model.
func (s *MCPServer) handleModelResource(
	ctx context.Context,
	request mcp.ReadResourceRequest,
) ([]mcp.ResourceContents, error) {

	// Extract model name from URI: "ferro://models/{name}"
	uri := request.Params.URI
	name := strings.TrimPrefix(uri, "ferro://models/")
	if name == "" || name == uri {
		return nil, fmt.Errorf("invalid model URI %q: expected ferro://models/{name}", uri)
	}

	catalog := s.snapshot()
	for _, m := range catalog.OrderedModels() {
		if m.Name != name {
			continue
		}
		b, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal model: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      uri,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}

	names := make([]string, 0)
	for _, m := range catalog.OrderedModels() {
		names = append(names, m.Name)
	}
	return nil, fmt.Errorf("model %q not found (available: %v)", name, names)
}
