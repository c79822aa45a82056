package server

import (
	"context"
	"fmt"
	"strings"

	"insightmcp/internal/api"
	"insightmcp/internal/config"
	"insightmcp/internal/dispatcher"
	"insightmcp/internal/template"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// domainTool is one configured analytics tool. Its domain is fixed here and
// cannot be chosen by the caller.
type domainTool struct {
	domain string
	name   string
	args   []config.ArgumentConfig
	query  *template.Query
}

func (s *Server) registerDomainTool(d config.DomainConfig, tc config.ToolConfig) error {
	names := make([]string, 0, len(tc.Arguments))
	opts := []mcp.ToolOption{mcp.WithDescription(toolDescription(d, tc))}
	for _, arg := range tc.Arguments {
		names = append(names, arg.Name)
		opts = append(opts, argumentOption(arg))
	}
	opts = append(opts, mcp.WithString(dispatcher.DatasetOverrideArg,
		mcp.Description("Optional dataset id. Must belong to the "+d.Name+" domain."),
	))

	query, err := s.engine.Compile(tc.Name, tc.Query, names)
	if err != nil {
		return err
	}

	t := &domainTool{domain: d.Name, name: tc.Name, args: tc.Arguments, query: query}
	s.addTool(mcp.NewTool(tc.Name, opts...), t.handler(s))
	return nil
}

func (t *domainTool) handler(s *Server) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		if err := t.checkArguments(args); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		templateArgs := make(map[string]any, len(args))
		for k, v := range args {
			if k != dispatcher.DatasetOverrideArg {
				templateArgs[k] = v
			}
		}
		query, err := t.query.Render(templateArgs)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		res, err := s.queries.Execute(ctx, dispatcher.Request{
			Tenant: t.domain,
			Tool:   t.name,
			Query:  query,
			Args:   args,
		})
		if err != nil {
			return toolError(err), nil
		}
		return jsonResult(res)
	}
}

// checkArguments enforces required arguments and declared types.
func (t *domainTool) checkArguments(args map[string]any) error {
	declared := make(map[string]bool, len(t.args))
	for _, a := range t.args {
		declared[a.Name] = true
		v, ok := args[a.Name]
		if !ok || v == nil {
			if a.Required {
				return fmt.Errorf("argument %s is required", a.Name)
			}
			continue
		}
		switch a.Type {
		case config.ArgTypeNumber:
			if _, ok := v.(float64); !ok {
				return fmt.Errorf("argument %s must be a number", a.Name)
			}
		case config.ArgTypeBoolean:
			if _, ok := v.(bool); !ok {
				return fmt.Errorf("argument %s must be a boolean", a.Name)
			}
		default:
			if _, ok := v.(string); !ok {
				return fmt.Errorf("argument %s must be a string", a.Name)
			}
		}
	}
	for k := range args {
		if k != dispatcher.DatasetOverrideArg && !declared[k] {
			return fmt.Errorf("unknown argument %s", k)
		}
	}
	return nil
}

func argumentOption(a config.ArgumentConfig) mcp.ToolOption {
	var props []mcp.PropertyOption
	if a.Description != "" {
		props = append(props, mcp.Description(a.Description))
	}
	if a.Required {
		props = append(props, mcp.Required())
	}
	switch a.Type {
	case config.ArgTypeNumber:
		return mcp.WithNumber(a.Name, props...)
	case config.ArgTypeBoolean:
		return mcp.WithBoolean(a.Name, props...)
	default:
		return mcp.WithString(a.Name, props...)
	}
}

func toolDescription(d config.DomainConfig, tc config.ToolConfig) string {
	desc := strings.TrimSpace(tc.Description)
	if desc == "" {
		desc = "Run the " + tc.Name + " query"
	}
	return fmt.Sprintf("[%s] %s", d.Name, desc)
}

// toolError converts an error into a tool result. Auth errors carry a hint
// on how to recover.
func toolError(err error) *mcp.CallToolResult {
	msg := err.Error()
	switch {
	case api.IsAuthenticationRequired(err):
		msg += ". Call start_login to sign in."
	case api.IsAuthenticationExpired(err):
		msg += ". The token was dropped; retry the call, or call start_login if it fails again."
	case api.IsTokenAcquisition(err):
		msg += ". Call start_login to sign in again."
	}
	return mcp.NewToolResultError(msg)
}
