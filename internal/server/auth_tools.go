package server

import (
	"context"
	"encoding/json"
	"fmt"

	"insightmcp/internal/acquirer"
	"insightmcp/pkg/logging"
	"insightmcp/pkg/redact"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerAuthTools() {
	s.addTool(mcp.NewTool("start_login",
		mcp.WithDescription("Start a device sign-in. Returns a code and a URL the user opens in a browser; then poll check_login_status."),
	), s.handleStartLogin)

	s.addTool(mcp.NewTool("check_login_status",
		mcp.WithDescription("Report the progress of the device sign-in started with start_login."),
	), s.handleCheckLoginStatus)

	s.addTool(mcp.NewTool("auth_status",
		mcp.WithDescription("Show the signed-in account and which access tokens are cached."),
	), s.handleAuthStatus)

	s.addTool(mcp.NewTool("logout",
		mcp.WithDescription("Sign out and delete every cached access token."),
	), s.handleLogout)
}

func (s *Server) handleStartLogin(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.login.Start(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(res)
}

func (s *Server) handleCheckLoginStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.login.CheckStatus(ctx))
}

// authStatus is the auth_status payload.
type authStatus struct {
	SignedIn bool                  `json:"signed_in"`
	Account  string                `json:"account,omitempty"`
	Username string                `json:"username,omitempty"`
	Tokens   []acquirer.KindStatus `json:"tokens"`
}

func (s *Server) handleAuthStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st := authStatus{Tokens: s.sessions.Status()}
	if session := s.sessions.Session(); session != nil {
		st.SignedIn = true
		st.Account = redact.ID(session.AccountID)
		st.Username = session.Username
	}
	return jsonResult(st)
}

func (s *Server) handleLogout(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.sessions.Logout(); err != nil {
		logging.Error("Server", err, "Logout failed")
		return mcp.NewToolResultError(fmt.Sprintf("Logout failed: %v", err)), nil
	}
	return mcp.NewToolResultText("Signed out. Cached tokens were deleted."), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
