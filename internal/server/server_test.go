package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/docsql/internal/client"
	"github.com/rzpsarthak13/docsql/internal/core"
	"github.com/rzpsarthak13/docsql/internal/registry"
	"github.com/rzpsarthak13/docsql/internal/schema"
)

type yamlProvider string

func (p yamlProvider) GetYAML() ([]byte, error) { return []byte(p), nil }

func testServer(t *testing.T) *Server {
	t.Helper()
	c, err := client.NewClientImpl(yamlProvider("store:\n  type: memory\n"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return New(c, c.Metrics(), registry.InternalServerConfig{Addr: "127.0.0.1:0"})
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func query(t *testing.T, s *Server, sql string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(queryRequest{SQL: sql})
	require.NoError(t, err)
	return do(t, s, http.MethodPost, "/v1/tenants/acme/projects/shop/query", string(body))
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	s := testServer(t)
	rec := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestQueryEndpoint(t *testing.T) {
	s := testServer(t)

	rec := query(t, s, "CREATE TABLE users (id INT PRIMARY KEY, name VARCHAR(20)); INSERT INTO users (id, name) VALUES (1, 'ann'), (2, 'bob')")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 2, decode(t, rec)["rowsAffected"])

	rec = query(t, s, "SELECT name, id FROM users WHERE id >= 2")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"rows":[{"name":"bob","id":2}]`)
}

func TestQueryErrors(t *testing.T) {
	s := testServer(t)
	require.Equal(t, http.StatusOK, query(t, s, "CREATE TABLE t (a INT)").Code)

	cases := []struct {
		sql    string
		status int
		code   string
	}{
		{"SELEKT 1", http.StatusBadRequest, "syntax_error"},
		{"SELECT * FROM ghosts", http.StatusNotFound, "schema_error"},
		{"CREATE TABLE t (a INT)", http.StatusConflict, "schema_error"},
		{"INSERT INTO t (a) VALUES (1, 2)", http.StatusBadRequest, "error"},
		{"ALTER TABLE t DROP COLUMN nope", http.StatusNotFound, "schema_error"},
		{"ALTER TABLE t ADD COLUMN a INT", http.StatusConflict, "schema_error"},
		{"CREATE TABLE d (a INT DEFAULT 'abc')", http.StatusBadRequest, "schema_error"},
		{"SELECT 'x' REGEXP '('", http.StatusBadRequest, "invalid_argument"},
	}
	for _, tc := range cases {
		t.Run(tc.sql, func(t *testing.T) {
			rec := query(t, s, tc.sql)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			body := decode(t, rec)
			assert.Equal(t, tc.code, body["code"])
			assert.EqualValues(t, 1, body["statement"])
		})
	}

	rec := do(t, s, http.MethodPost, "/v1/tenants/acme/projects/shop/query", "not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueryNonFiniteResultsRenderAsNull(t *testing.T) {
	s := testServer(t)

	for _, sql := range []string{"SELECT ROUND(1.5, 400) AS v", "SELECT 'inf' + 1 AS v", "SELECT 1e308 * 10 AS v"} {
		t.Run(sql, func(t *testing.T) {
			rec := query(t, s, sql)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			require.NotEmpty(t, rec.Body.String())
			rows := decode(t, rec)["rows"].([]interface{})
			require.Len(t, rows, 1)
			_, present := rows[0].(map[string]interface{})["v"]
			assert.True(t, present)
		})
	}

	rec := query(t, s, "SELECT 'Infinity' = 'INF' AS v")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"rows":[{"v":false}]`)
}

func TestBlankScopeIsUnauthorized(t *testing.T) {
	s := testServer(t)
	rec := do(t, s, http.MethodGet, "/v1/tenants/%20/projects/shop/tables", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code, rec.Body.String())
}

func TestTableEndpoints(t *testing.T) {
	s := testServer(t)
	require.Equal(t, http.StatusOK, query(t, s, `
		CREATE TABLE users (id INT PRIMARY KEY, email VARCHAR(100));
		CREATE TABLE orders (id INT, user_id INT, FOREIGN KEY (user_id) REFERENCES users (id));
	`).Code)

	rec := do(t, s, http.MethodGet, "/v1/tenants/acme/projects/shop/tables", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Tables []tableResponse `json:"tables"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Tables, 2)
	assert.Equal(t, "orders", list.Tables[0].Name)

	rec = do(t, s, http.MethodGet, "/v1/tenants/acme/projects/shop/tables/orders", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var desc describeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &desc))
	assert.Equal(t, "orders", desc.Name)
	require.Len(t, desc.Columns, 2)
	assert.Equal(t, "user_id", desc.Columns[1].Name)
	require.Len(t, desc.Constraints, 1)
	assert.Equal(t, "users", desc.Constraints[0].RefTable)

	rec = do(t, s, http.MethodGet, "/v1/tenants/acme/projects/other/tables/orders", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := testServer(t)
	query(t, s, "SELECT 1")

	rec := do(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `docsql_statements_total{kind="SELECT",status="ok"} 1`)
	assert.Contains(t, rec.Body.String(), `docsql_http_requests_total{method="POST",route="/v1/tenants/:tenant/projects/:project/query",status="200"} 1`)
}

func TestStatusCode(t *testing.T) {
	cases := map[error]int{
		core.ErrUnauthorized:         http.StatusUnauthorized,
		core.ErrTableNotFound:        http.StatusNotFound,
		core.ErrTableExists:          http.StatusConflict,
		core.ErrUnsupportedJoinKind:  http.StatusBadRequest,
		core.ErrTooManyStatements:    http.StatusBadRequest,
		core.ErrInvalidDefinition:    http.StatusBadRequest,
		core.ErrInvalidArgument:      http.StatusBadRequest,
		schema.ErrColumnNotFound:     http.StatusNotFound,
		schema.ErrConstraintNotFound: http.StatusNotFound,
		schema.ErrColumnExists:       http.StatusConflict,
		client.ErrClientClosed:       http.StatusServiceUnavailable,
		context.DeadlineExceeded:     http.StatusGatewayTimeout,
		errors.New("disk on fire"):   http.StatusInternalServerError,
	}
	for err, want := range cases {
		wrapped := &core.StatementError{Index: 0, SQL: "x", Err: fmt.Errorf("wrapped: %w", err)}
		assert.Equal(t, want, StatusCode(wrapped), err.Error())
	}
}
