package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/chatq-inc/chatq-engine/pkg/mcp/tools"
	"github.com/chatq-inc/chatq-engine/pkg/services"
)

// ServerName is advertised to MCP clients during initialize.
const ServerName = "chatq-engine"

// Server wraps the mcp-go MCPServer with the engine's tools.
type Server struct {
	mcp    *server.MCPServer
	logger *zap.Logger
}

// NewServer creates a new MCP server instance with no tools registered.
func NewServer(name, version string, logger *zap.Logger) *Server {
	mcpServer := server.NewMCPServer(
		name,
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	return &Server{
		mcp:    mcpServer,
		logger: logger,
	}
}

// NewQueryServer creates the engine's MCP server exposing ask_database and
// health. tenants may be nil.
func NewQueryServer(version string, queryService services.QueryService, tenants tools.TenantLister, logger *zap.Logger) *Server {
	s := NewServer(ServerName, version, logger)
	tools.RegisterAskTool(s.mcp, queryService, logger)
	tools.RegisterHealthTool(s.mcp, version, tenants)
	return s
}

// MCP returns the underlying MCPServer for tool registration.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// NewStreamableHTTPServer creates an HTTP transport server wrapping this MCP server.
// The HTTP mux handles routing to /mcp, so no endpoint path is configured here.
// Requests are stateless; tenant and profile travel on each request context.
func (s *Server) NewStreamableHTTPServer() *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(
		s.mcp,
		server.WithStateLess(true),
	)
}

// RegisterTool is a convenience wrapper for registering a tool.
func (s *Server) RegisterTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcp.AddTool(tool, handler)
}
