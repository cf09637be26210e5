// Package server exposes the sync engine over a local HTTP API while the
// watcher runs, so editor plugins can trigger syncs without a new process.
package server

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"mdtask/internal/engine"
	"mdtask/internal/remote"
	"mdtask/internal/scheduler"
	"mdtask/internal/syncqueue"
	"mdtask/internal/taskfile"
	"mdtask/internal/vault"
)

// RequestIDHeader carries the id logged with each request.
const RequestIDHeader = "X-Request-ID"

// Engine is the part of the sync engine the API calls.
type Engine interface {
	SyncIfChanged(ctx context.Context, path string) (bool, error)
	ImportProjectTasks(ctx context.Context, project remote.Project) (engine.ImportResult, error)
}

// Scheduler is the part of the scheduler the API calls.
type Scheduler interface {
	PollNow(ctx context.Context) (scheduler.PollResult, error)
	Pending() int
	Settings() scheduler.Settings
}

// Server serves the API.
type Server struct {
	engine  Engine
	sched   Scheduler
	queue   *syncqueue.Queue
	client  remote.Client
	logger  *slog.Logger
	router  *gin.Engine
	started time.Time
}

// New builds the router. Requests that change files go through queue so
// they never run alongside the watcher's own syncs.
func New(eng Engine, sched Scheduler, queue *syncqueue.Queue, client remote.Client, logger *slog.Logger) *Server {
	router := gin.New()
	s := &Server{
		engine:  eng,
		sched:   sched,
		queue:   queue,
		client:  client,
		logger:  logger,
		router:  router,
		started: time.Now(),
	}

	router.Use(s.requestID(), s.logRequests(), gin.Recovery())

	router.GET("/status", s.handleStatus)
	router.POST("/sync", s.handleSync)
	router.POST("/poll", s.handlePoll)
	router.POST("/import/:projectID", s.handleImport)

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is done, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("api listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("requestID", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("api request",
			"id", c.GetString("requestID"),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

type statusResponse struct {
	Pending                 int    `json:"pending"`
	TaskFolder              string `json:"taskFolder"`
	PollIntervalSeconds     int    `json:"pollIntervalSeconds"`
	AutoSaveIntervalSeconds int    `json:"autoSaveIntervalSeconds"`
	Uptime                  string `json:"uptime"`
}

func (s *Server) handleStatus(c *gin.Context) {
	st := s.sched.Settings()
	c.JSON(http.StatusOK, statusResponse{
		Pending:                 s.queue.Len(),
		TaskFolder:              st.TaskFolder,
		PollIntervalSeconds:     int(st.PollInterval / time.Second),
		AutoSaveIntervalSeconds: int(st.AutoSaveInterval / time.Second),
		Uptime:                  time.Since(s.started).Round(time.Second).String(),
	})
}

type syncRequest struct {
	Path string `json:"path" binding:"required"`
}

type syncResponse struct {
	Path    string `json:"path"`
	Changed bool   `json:"changed"`
}

func (s *Server) handleSync(c *gin.Context) {
	var req syncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var changed bool
	err := s.queue.Do(c.Request.Context(), func(ctx context.Context) error {
		var err error
		changed, err = s.engine.SyncIfChanged(ctx, req.Path)
		return err
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, syncResponse{Path: req.Path, Changed: changed})
}

func (s *Server) handlePoll(c *gin.Context) {
	r, err := s.sched.PollNow(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"synced": r.Synced, "skipped": r.Skipped, "failed": r.Failed})
}

func (s *Server) handleImport(c *gin.Context) {
	id := c.Param("projectID")
	projects, err := s.client.Projects(c.Request.Context(), "")
	if err != nil {
		s.fail(c, err)
		return
	}
	var project *remote.Project
	for i := range projects {
		if projects[i].ID == id {
			project = &projects[i]
			break
		}
	}
	if project == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "project not found: " + id})
		return
	}

	var r engine.ImportResult
	err = s.queue.Do(c.Request.Context(), func(ctx context.Context) error {
		var err error
		r, err = s.engine.ImportProjectTasks(ctx, *project)
		return err
	})
	// the import may still be running when the request is gone
	if c.Request.Context().Err() != nil || err != nil && len(r.Created) == 0 {
		s.fail(c, err)
		return
	}
	resp := gin.H{"created": nonNil(r.Created), "existing": nonNil(r.Existing)}
	if err != nil {
		resp["error"] = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}


func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var rerr *remote.Error
	switch {
	case remote.IsAuth(err):
		status = http.StatusUnauthorized
	case errors.Is(err, syncqueue.ErrClosed):
		status = http.StatusServiceUnavailable
	case errors.Is(err, taskfile.ErrNotATaskFile):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, vault.ErrOutsideVault):
		status = http.StatusBadRequest
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, remote.ErrNotFound):
		status = http.StatusNotFound
	case errors.As(err, &rerr):
		status = http.StatusBadGateway
	}
	s.logger.Warn("api error", "id", c.GetString("requestID"), "path", c.Request.URL.Path, "err", err)
	c.JSON(status, gin.H{"error": err.Error()})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
