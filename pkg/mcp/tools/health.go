package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// TenantLister reports the tenants with a live connection.
type TenantLister interface {
	Tenants() []string
}

type healthResult struct {
	Status  string   `json:"status"`
	Version string   `json:"version"`
	Tenants []string `json:"tenants"`
}

// RegisterHealthTool adds a health check tool to the MCP server.
// The tool returns the server status, version and connected tenants.
// tenants may be nil.
func RegisterHealthTool(s *server.MCPServer, version string, tenants TenantLister) {
	tool := mcp.NewTool(
		"health",
		mcp.WithDescription("Returns server health status and version"),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res := healthResult{Status: "ok", Version: version, Tenants: []string{}}
		if tenants != nil {
			res.Tenants = tenants.Tenants()
		}
		result, err := json.Marshal(res)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal health result: %w", err)
		}
		return mcp.NewToolResultText(string(result)), nil
	})
}
