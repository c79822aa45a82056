package biquery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"insightmcp/internal/api"
	"insightmcp/pkg/logging"
	"insightmcp/pkg/oauth"
	"insightmcp/pkg/redact"

	"golang.org/x/oauth2"
)

const (
	// DefaultBaseURL is the Power BI REST API root.
	DefaultBaseURL = "https://api.powerbi.com/v1.0/myorg"
	// DefaultTimeout bounds one executeQueries call.
	DefaultTimeout = 60 * time.Second

	maxErrorBody = 64 << 10
)

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// Transport is the base round tripper. Defaults to http.DefaultTransport.
	Transport http.RoundTripper
}

// Client calls the executeQueries endpoint of the BI query API.
type Client struct {
	baseURL   string
	timeout   time.Duration
	transport http.RoundTripper
}

// New creates a query API client.
func New(cfg Config) (*Client, error) {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid query API base URL: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &Client{
		baseURL:   strings.TrimRight(base, "/"),
		timeout:   timeout,
		transport: transport,
	}, nil
}

type executeRequest struct {
	Queries            []queryItem        `json:"queries"`
	SerializerSettings serializerSettings `json:"serializerSettings"`
}

type queryItem struct {
	Query string `json:"query"`
}

type serializerSettings struct {
	IncludeNulls bool `json:"includeNulls"`
}

type executeResponse struct {
	Results []struct {
		Tables []struct {
			Rows []map[string]any `json:"rows"`
		} `json:"tables"`
		Error *serviceError `json:"error,omitempty"`
	} `json:"results"`
}

type serviceError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details []struct {
		Message string `json:"message"`
	} `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error serviceError `json:"error"`
}

// ExecuteQuery runs one DAX query against a dataset and returns the rows of
// the first result table verbatim. A 401 becomes AuthenticationExpiredError
// for the primary scope; it is not retried.
func (c *Client) ExecuteQuery(ctx context.Context, workspaceID, datasetID, query string, bearer redact.Token) (*api.QueryResult, error) {
	if bearer.IsEmpty() {
		return nil, &api.AuthenticationRequiredError{Kind: api.ScopePrimary}
	}

	payload, err := json.Marshal(executeRequest{
		Queries:            []queryItem{{Query: query}},
		SerializerSettings: serializerSettings{IncludeNulls: true},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	endpoint := fmt.Sprintf("%s/groups/%s/datasets/%s/executeQueries",
		c.baseURL, url.PathEscape(workspaceID), url.PathEscape(datasetID))

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient(bearer).Do(req)
	if err != nil {
		return nil, fmt.Errorf("query API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, &api.AuthenticationExpiredError{
			Kind:   api.ScopePrimary,
			Status: resp.StatusCode,
			Reason: oauth.ChallengeFromResponse(resp).Reason(),
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseServiceError(resp)
	}

	var body executeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode query response: %w", err)
	}
	if len(body.Results) == 0 {
		return &api.QueryResult{Rows: []map[string]any{}}, nil
	}
	first := body.Results[0]
	if first.Error != nil {
		return nil, &api.QueryFailedError{Status: resp.StatusCode, Code: first.Error.Code, Message: first.Error.message()}
	}
	if len(first.Tables) == 0 || first.Tables[0].Rows == nil {
		return &api.QueryResult{Rows: []map[string]any{}}, nil
	}

	logging.Debug("BIQuery", "Query returned %d rows from dataset %s", len(first.Tables[0].Rows), redact.ID(datasetID))
	return &api.QueryResult{Rows: first.Tables[0].Rows}, nil
}

// httpClient returns a client that attaches bearer to every request.
func (c *Client) httpClient(bearer redact.Token) *http.Client {
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{
				AccessToken: bearer.Value(),
				TokenType:   "Bearer",
			}),
			Base: c.transport,
		},
	}
}

func parseServiceError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	qerr := &api.QueryFailedError{Status: resp.StatusCode}

	var env errorEnvelope
	if err := json.Unmarshal(raw, &env); err == nil && (env.Error.Code != "" || env.Error.Message != "") {
		qerr.Code = env.Error.Code
		qerr.Message = env.Error.message()
	} else {
		qerr.Message = redact.Truncate(strings.TrimSpace(string(raw)), 200)
	}
	if qerr.Message == "" {
		qerr.Message = http.StatusText(resp.StatusCode)
	}
	return qerr
}

func (e *serviceError) message() string {
	if e.Message != "" {
		return e.Message
	}
	for _, d := range e.Details {
		if d.Message != "" {
			return d.Message
		}
	}
	return e.Code
}
