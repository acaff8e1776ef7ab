package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rzpsarthak13/docsql/internal/client"
	"github.com/rzpsarthak13/docsql/internal/core"
	"github.com/rzpsarthak13/docsql/internal/metrics"
	"github.com/rzpsarthak13/docsql/internal/registry"
	"github.com/rzpsarthak13/docsql/internal/schema"
)

// Backend is what the HTTP API needs from a client.
type Backend interface {
	Execute(ctx context.Context, scope core.Scope, sqlText string) (*core.Result, error)
	ListTables(ctx context.Context, scope core.Scope) ([]*core.TableMeta, error)
	DescribeTable(ctx context.Context, scope core.Scope, name string) (*client.TableDescription, error)
}

// Server exposes a Backend over HTTP.
type Server struct {
	backend Backend
	metrics *metrics.Metrics
	config  registry.InternalServerConfig
	router  *gin.Engine
}

// New creates the server and registers its routes. metrics may be nil, in which
// case /metrics is not served and requests are not counted.
func New(backend Backend, m *metrics.Metrics, config registry.InternalServerConfig) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		backend: backend,
		metrics: m,
		config:  config,
		router:  router,
	}
	router.Use(s.observe)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if m != nil {
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}

	scoped := router.Group("/v1/tenants/:tenant/projects/:project")
	scoped.POST("/query", s.query)
	scoped.GET("/tables", s.listTables)
	scoped.GET("/tables/:table", s.describeTable)

	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[SERVER] Listening on %s", s.config.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Printf("[SERVER] Shutting down...")
	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	log.Printf("[SERVER] Stopped")
	return nil
}

func (s *Server) observe(c *gin.Context) {
	start := time.Now()
	c.Next()

	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	status := c.Writer.Status()
	if s.metrics != nil {
		s.metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
	}
	if route != "/health" && route != "/metrics" {
		log.Printf("[SERVER] %s %s %d (%v)", c.Request.Method, c.Request.URL.Path, status, time.Since(start))
	}
}

func scopeOf(c *gin.Context) core.Scope {
	return core.Scope{Tenant: c.Param("tenant"), Project: c.Param("project")}
}

type queryRequest struct {
	SQL string `json:"sql"`
}

func (s *Server) query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	result, err := s.backend.Execute(c.Request.Context(), scopeOf(c), req.SQL)
	if err != nil {
		writeError(c, err)
		return
	}

	body, err := json.Marshal(result)
	if err != nil {
		writeError(c, fmt.Errorf("failed to encode result: %w", err))
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

func (s *Server) listTables(c *gin.Context) {
	tables, err := s.backend.ListTables(c.Request.Context(), scopeOf(c))
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]tableResponse, 0, len(tables))
	for _, t := range tables {
		out = append(out, newTableResponse(t))
	}
	c.JSON(http.StatusOK, gin.H{"tables": out})
}

func (s *Server) describeTable(c *gin.Context) {
	desc, err := s.backend.DescribeTable(c.Request.Context(), scopeOf(c), c.Param("table"))
	if err != nil {
		writeError(c, err)
		return
	}

	resp := describeResponse{
		tableResponse: newTableResponse(desc.Table),
		Columns:       make([]columnResponse, 0, len(desc.Columns)),
		Constraints:   make([]constraintResponse, 0, len(desc.Constraints)),
	}
	for _, col := range desc.Columns {
		resp.Columns = append(resp.Columns, columnResponse{
			Name:       col.Name,
			Type:       string(col.Type),
			PrimaryKey: col.PrimaryKey,
			Nullable:   col.Nullable,
			Default:    col.Default,
		})
	}
	for _, con := range desc.Constraints {
		resp.Constraints = append(resp.Constraints, constraintResponse{
			Name:       con.Name,
			Type:       string(con.Type),
			Columns:    con.Columns,
			RefTable:   con.RefTable,
			RefColumns: con.RefColumns,
			OnDelete:   con.OnDelete,
			OnUpdate:   con.OnUpdate,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// StatusCode maps an execution error to an HTTP status.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, core.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrTableNotFound), errors.Is(err, schema.ErrColumnNotFound),
		errors.Is(err, schema.ErrConstraintNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrTableExists), errors.Is(err, schema.ErrColumnExists):
		return http.StatusConflict
	case errors.Is(err, core.ErrSyntax), errors.Is(err, core.ErrColumnCount),
		errors.Is(err, core.ErrUnsupportedStatement), errors.Is(err, core.ErrUnsupportedJoinKind),
		errors.Is(err, core.ErrUnsupportedOperator), errors.Is(err, core.ErrTooManyStatements),
		errors.Is(err, core.ErrInvalidDefinition), errors.Is(err, core.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, client.ErrClientClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	body := gin.H{"error": err.Error(), "code": metrics.Status(err)}
	var stmtErr *core.StatementError
	if errors.As(err, &stmtErr) {
		body["statement"] = stmtErr.Index + 1
		body["sql"] = stmtErr.SQL
	}
	c.JSON(StatusCode(err), body)
}
