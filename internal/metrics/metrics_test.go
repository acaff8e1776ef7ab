package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/docsql/internal/core"
)

func TestObserveStatement(t *testing.T) {
	m := New()
	m.ObserveStatement("SELECT", nil, 5*time.Millisecond, 3)
	m.ObserveStatement("SELECT", nil, time.Millisecond, 0)
	m.ObserveStatement("SELECT", fmt.Errorf("statement 1: %w", core.ErrTableNotFound), time.Millisecond, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.StatementsTotal.WithLabelValues("SELECT", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StatementsTotal.WithLabelValues("SELECT", "schema_error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RowsReturned))
}

func TestStatus(t *testing.T) {
	cases := map[string]error{
		"ok":               nil,
		"syntax_error":     fmt.Errorf("x: %w", core.ErrSyntax),
		"schema_error":     core.ErrTableExists,
		"unauthorized":     core.ErrScopeUnresolved,
		"unsupported":      core.ErrUnsupportedJoinKind,
		"invalid_argument": fmt.Errorf("%w: invalid pattern", core.ErrInvalidArgument),
		"error":            errors.New("boom"),
	}
	for want, err := range cases {
		t.Run(want, func(t *testing.T) {
			assert.Equal(t, want, Status(err))
		})
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveRelay(nil)
	m.ObserveRelay(errors.New("handler failed"))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `docsql_changefeed_events_relayed_total{status="error"} 1`)
	assert.Contains(t, rec.Body.String(), `docsql_changefeed_events_relayed_total{status="ok"} 1`)
}
