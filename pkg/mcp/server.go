// Package mcp exposes the class-to-function conversion as MCP tools.
package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/gnana997/declassify/pkg/mcplog"
	"github.com/gnana997/declassify/pkg/runner"
)

const serverName = "declassify"

// Server is the MCP server. Conversions go through a shared Runner so
// repeated requests for the same source hit its result cache.
type Server struct {
	mcpServer *server.MCPServer
	runner    *runner.Runner
	calls     *mcplog.Logger // nil disables the call log
	logger    *slog.Logger
}

// NewServer creates a Server. calls may be nil.
func NewServer(r *runner.Runner, version string, calls *mcplog.Logger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{runner: r, calls: calls, logger: logger}

	opts := []server.ServerOption{
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	}
	if calls != nil {
		opts = append(opts, server.WithToolHandlerMiddleware(s.loggingMiddleware()))
	}
	s.mcpServer = server.NewMCPServer(serverName, version, opts...)

	s.mcpServer.AddTools(
		server.ServerTool{Tool: declassifySourceTool(), Handler: s.handleDeclassifySource},
		server.ServerTool{Tool: declassifyFileTool(), Handler: s.handleDeclassifyFile},
	)
	return s
}

// MCPServer returns the underlying server, for in-process clients.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves on stdin/stdout until the input is closed.
func (s *Server) ServeStdio() error {
	s.logger.Info("MCP server listening on stdio", "name", serverName)
	return server.ServeStdio(s.mcpServer)
}
