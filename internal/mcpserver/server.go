// Package mcpserver exposes the validation service to MCP clients over
// stdio, so agents can validate staged files and read the reports.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/csvgate/internal/report"
	"github.com/JonMunkholm/csvgate/internal/runstore"
	"github.com/JonMunkholm/csvgate/internal/validate"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RunHistory reads recorded runs. *runstore.Store satisfies it.
type RunHistory interface {
	Recent(ctx context.Context, limit int) ([]runstore.Run, error)
	Get(ctx context.Context, id uuid.UUID) (*runstore.Run, *report.Report, error)
}

// Server is the MCP server for the validator.
type Server struct {
	mcp     *server.MCPServer
	service *validate.Service
	runs    RunHistory

	// stagedPath is validated when a tool call names no file.
	stagedPath string

	tools []string
}

// Deps holds what the tools need.
type Deps struct {
	Service    *validate.Service
	StagedPath string

	// Runs is optional; without it list_runs is not registered.
	Runs RunHistory
}

// New creates the server and registers its tools.
func New(version string, deps Deps) *Server {
	s := &Server{
		service:    deps.Service,
		runs:       deps.Runs,
		stagedPath: deps.StagedPath,
	}
	s.mcp = server.NewMCPServer(
		"csvgate",
		version,
		server.WithToolCapabilities(true),
	)

	s.registerValidationTools()
	if s.runs != nil {
		s.registerRunTools()
	}
	return s
}

// ServeStdio serves MCP on stdin/stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	slog.Info("mcp: serving on stdio", "schema", s.service.SchemaPath(), "staged", s.stagedPath)
	return server.ServeStdio(s.mcp)
}

func (s *Server) addTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcp.AddTool(tool, handler)
	s.tools = append(s.tools, tool.Name)
}

// Tools lists the registered tool names in registration order.
func (s *Server) Tools() []string {
	return append([]string(nil), s.tools...)
}

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

// errorResult reports a failure the caller can act on as tool output
// rather than a protocol error.
func errorResult(err error) *mcp.CallToolResult {
	msg := validate.MapError(err)
	text := fmt.Sprintf("[%s] %s", msg.Code, msg.Message)
	if msg.Action != "" {
		text += ". " + msg.Action
	}
	res := textResult(text)
	res.IsError = true
	return res
}
