package mcp

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// --------------------------------------------------------------------------
// Parameter extraction helpers
// --------------------------------------------------------------------------

// requireString extracts a required string argument from the tool request.
func requireString(request mcp.CallToolRequest, key string) (string, error) {
	val, err := request.RequireString(key)
	if err != nil {
		return "", fmt.Errorf("missing required parameter %q", key)
	}
	return val, nil
}

// --------------------------------------------------------------------------
// Response builders
// --------------------------------------------------------------------------

// successJSON marshals data to JSON and returns it as a tool result.
func successJSON(data interface{}) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}

// toolError returns a tool-level error result. Errors returned this way are
// visible to the LLM so it can self-correct; they do NOT terminate the MCP
// session.
func toolError(format string, args ...interface{}) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(fmt.Sprintf(format, args...)), nil
}
