package server

import (
	"context"
	"fmt"
	"io"
	"os"

	"insightmcp/internal/acquirer"
	"insightmcp/internal/config"
	"insightmcp/internal/deviceauth"
	"insightmcp/internal/dispatcher"
	"insightmcp/internal/identity"
	"insightmcp/internal/template"
	"insightmcp/pkg/logging"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Indirections for tests.
var (
	stdinReader  = func() io.Reader { return os.Stdin }
	stdoutWriter = func() io.Writer { return os.Stdout }
)

// LoginService runs the device authorization flow.
type LoginService interface {
	Start(ctx context.Context) (*deviceauth.StartResult, error)
	CheckStatus(ctx context.Context) *deviceauth.StatusResult
}

// SessionService exposes the active session and its tokens.
type SessionService interface {
	Session() *identity.Session
	Status() []acquirer.KindStatus
	Logout() error
}

// QueryExecutor runs a query for a domain.
type QueryExecutor interface {
	Execute(ctx context.Context, req dispatcher.Request) (*dispatcher.Result, error)
}

// Config wires a Server.
type Config struct {
	Name    string
	Version string

	Login    LoginService
	Sessions SessionService
	Queries  QueryExecutor

	// Domains declares the analytics tools, grouped by the domain they are
	// bound to.
	Domains []config.DomainConfig
}

// Server exposes the authentication tools and the configured analytics tools
// over MCP.
type Server struct {
	mcpServer *server.MCPServer
	login     LoginService
	sessions  SessionService
	queries   QueryExecutor
	engine    *template.Engine
	toolNames []string
}

// New creates the MCP server and registers every tool. A tool whose query
// template does not compile is a startup error.
func New(cfg Config) (*Server, error) {
	if cfg.Login == nil || cfg.Sessions == nil || cfg.Queries == nil {
		return nil, fmt.Errorf("login, session and query services are required")
	}
	name := cfg.Name
	if name == "" {
		name = "insightmcp"
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{
		mcpServer: server.NewMCPServer(
			name,
			version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
		login:    cfg.Login,
		sessions: cfg.Sessions,
		queries:  cfg.Queries,
		engine:   template.New(),
	}

	s.registerAuthTools()
	for _, d := range cfg.Domains {
		for _, tool := range d.Tools {
			if err := s.registerDomainTool(d, tool); err != nil {
				return nil, err
			}
		}
	}
	logging.Info("Server", "Registered %d tools", len(s.toolNames))
	return s, nil
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ToolNames lists the registered tools in registration order.
func (s *Server) ToolNames() []string {
	return append([]string(nil), s.toolNames...)
}

// ServeStdio serves MCP over stdin/stdout until the client disconnects or
// ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, stdinReader(), stdoutWriter())
}

func (s *Server) addTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcpServer.AddTool(tool, handler)
	s.toolNames = append(s.toolNames, tool.Name)
	logging.Debug("Server", "Registered tool %s", tool.Name)
}
