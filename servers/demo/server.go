// Package demo provides a reference capability server exposing a small set
// of tools, resources, and prompts. It implements the mcp.ToolServer,
// mcp.ResourceServer, and mcp.PromptServer interfaces and is primarily
// useful for exercising clients and for end-to-end testing.
package demo

import (
	"log/slog"
)

// Server bundles the demo tools, resources, and prompts behind the
// capability interfaces. It is stateless and safe for concurrent use.
//
// Instances should be created using NewServer.
type Server struct {
	userName string
	logger   *slog.Logger
}

// Option represents the options for the Server.
type Option func(*Server)

// NewServer creates a demo capability server.
func NewServer(options ...Option) *Server {
	s := &Server{
		userName: "Jonathan",
		logger:   slog.Default(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// WithUserName sets the name reported by the get_name tool.
func WithUserName(name string) Option {
	return func(s *Server) {
		s.userName = name
	}
}

// WithLogger sets the logger for the server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger.With(
			slog.String("package", "gomcp/servers/demo"),
		)
	}
}
