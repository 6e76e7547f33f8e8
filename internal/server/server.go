// Package server exposes the tracker over HTTP: the bearer-gated sync
// endpoints /export and /import, an open /health probe, and the /api
// routes used by the web UI.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/mesh-intelligence/duet/internal/logging"
	"github.com/mesh-intelligence/duet/internal/tracker"
	"github.com/mesh-intelligence/duet/pkg/types"
)

// DefaultAddr is the listen address when Config.Addr is empty.
const DefaultAddr = "127.0.0.1:8080"

const shutdownTimeout = 5 * time.Second

// Tracker is the set of tracker operations served over HTTP.
// *tracker.Engine implements it.
type Tracker interface {
	CreateTask(ctx context.Context, in tracker.NewTask) (string, error)
	UpdateStatus(ctx context.Context, id string, status types.Status, author types.Author, message string) error
	UpdateFields(ctx context.Context, id string, patch types.TaskPatch) error
	DeleteTask(ctx context.Context, id string) error
	AddLog(ctx context.Context, taskID string, author types.Author, message string) (string, error)

	GetTask(ctx context.Context, id string) (*types.Task, error)
	ListTasks(ctx context.Context) ([]*types.Task, error)
	ListTasksByStatus(ctx context.Context, status types.Status) ([]*types.Task, error)
	ListTasksByAssignee(ctx context.Context, a types.Assignee) ([]*types.Task, error)
	ListLogs(ctx context.Context, taskID string) ([]*types.LogEntry, error)
	ListRecentLogs(ctx context.Context, limit int) ([]types.RecentLog, error)

	ExportToMarkdown(ctx context.Context) (tracker.Export, error)
	ImportTasks(ctx context.Context, entries []tracker.ImportEntry) (tracker.ImportResult, error)
	GetSummary(ctx context.Context) (tracker.Summary, error)
}

var _ Tracker = (*tracker.Engine)(nil)

// Config configures a Server.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string
	// Token is the shared bearer token. Empty disables authentication.
	Token string
	// Logger receives one line per request. Nil discards.
	Logger *log.Logger
	// Clock stamps /health responses. Nil means time.Now.
	Clock func() time.Time
}

// Server is the duet HTTP server.
type Server struct {
	tracker Tracker
	cfg     Config
	logger  *log.Logger
	router  *gin.Engine
}

// New builds a server and registers its routes.
func New(t Tracker, cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{
		tracker: t,
		cfg:     cfg,
		logger:  logger,
		router:  router,
	}

	router.GET("/health", s.handleHealth)

	auth := bearerAuth(cfg.Token)
	router.GET("/export", auth, s.handleExport)
	router.POST("/import", auth, s.handleImport)

	api := router.Group("/api", auth)
	{
		api.GET("/tasks", s.handleListTasks)
		api.POST("/tasks", s.handleCreateTask)
		api.GET("/tasks/:id", s.handleGetTask)
		api.PATCH("/tasks/:id", s.handleUpdateTask)
		api.PUT("/tasks/:id/status", s.handleUpdateStatus)
		api.DELETE("/tasks/:id", s.handleDeleteTask)
		api.GET("/tasks/:id/logs", s.handleListLogs)
		api.POST("/tasks/:id/logs", s.handleAddLog)
		api.GET("/logs/recent", s.handleRecentLogs)
		api.GET("/summary", s.handleSummary)
	}

	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.cfg.Addr
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", ln.Addr().String(), "auth", s.cfg.Token != "")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
