package mock

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// QueryCall records one executeQueries request received by the mock.
type QueryCall struct {
	WorkspaceID string
	DatasetID   string
	Query       string
	Bearer      string
}

// QueryServer is an httptest-backed mock of the Power BI executeQueries endpoint.
//
// Requests are routed as POST /groups/{workspace}/datasets/{dataset}/executeQueries.
// Rows are returned for known datasets; queries mentioning a table listed in
// MissingTables fail the way the service reports unknown tables.
type QueryServer struct {
	*httptest.Server

	mu            sync.Mutex
	rows          map[string][]map[string]any
	missingTables map[string]bool
	validBearers  map[string]bool
	calls         []QueryCall
}

// NewQueryServer starts a mock query API.
func NewQueryServer() *QueryServer {
	s := &QueryServer{
		rows:          make(map[string][]map[string]any),
		missingTables: make(map[string]bool),
		validBearers:  make(map[string]bool),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// SetRows configures the rows returned for a dataset.
func (s *QueryServer) SetRows(datasetID string, rows []map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[datasetID] = rows
}

// SetMissingTable makes any query that references table fail.
func (s *QueryServer) SetMissingTable(table string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.missingTables[table] = true
}

// AcceptBearer marks a bearer value as valid. When no bearer has been
// accepted, every non-empty bearer is valid.
func (s *QueryServer) AcceptBearer(bearer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.validBearers[bearer] = true
}

// Calls returns the requests received so far.
func (s *QueryServer) Calls() []QueryCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]QueryCall(nil), s.calls...)
}

func (s *QueryServer) handle(w http.ResponseWriter, r *http.Request) {
	// groups/{ws}/datasets/{ds}/executeQueries
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if r.Method != http.MethodPost || len(parts) != 5 || parts[0] != "groups" || parts[2] != "datasets" || parts[4] != "executeQueries" {
		writeJSON(w, http.StatusNotFound, powerBIError("NotFound", "route not found"))
		return
	}
	workspaceID, datasetID := parts[1], parts[3]

	var body struct {
		Queries []struct {
			Query string `json:"query"`
		} `json:"queries"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Queries) != 1 {
		writeJSON(w, http.StatusBadRequest, powerBIError("InvalidRequest", "exactly one query is required"))
		return
	}
	query := body.Queries[0].Query
	bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	s.mu.Lock()
	s.calls = append(s.calls, QueryCall{WorkspaceID: workspaceID, DatasetID: datasetID, Query: query, Bearer: bearer})
	bearerOK := bearer != "" && (len(s.validBearers) == 0 || s.validBearers[bearer])
	rows, known := s.rows[datasetID]
	var missing string
	for table := range s.missingTables {
		if strings.Contains(query, "'"+table+"'") {
			missing = table
		}
	}
	s.mu.Unlock()

	switch {
	case !bearerOK:
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
		writeJSON(w, http.StatusUnauthorized, powerBIError("TokenExpired", "Access token has expired, resubmit with a new access token"))
	case !known:
		writeJSON(w, http.StatusNotFound, powerBIError("ItemNotFound", "Dataset not found"))
	case missing != "":
		writeJSON(w, http.StatusBadRequest, powerBIError("DatasetExecuteQueriesError",
			"Query (1, 12) Cannot find table '"+missing+"'."))
	default:
		if rows == nil {
			rows = []map[string]any{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"results": []any{
				map[string]any{"tables": []any{map[string]any{"rows": rows}}},
			},
		})
	}
}

func powerBIError(code, message string) map[string]any {
	return map[string]any{"error": map[string]any{"code": code, "message": message}}
}
