package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mesh-intelligence/duet/internal/tracker"
	"github.com/mesh-intelligence/duet/pkg/types"
)

// importEnvelopeMessage is the /import reply when the body has no tasks
// array.
const importEnvelopeMessage = "Invalid request: tasks array required"

type statusRequest struct {
	Status  types.Status `json:"status"`
	Author  types.Author `json:"author"`
	Message string       `json:"message"`
}

type logRequest struct {
	Author  types.Author `json:"author"`
	Message string       `json:"message"`
}

// Sync handlers

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": s.cfg.Clock().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleExport(c *gin.Context) {
	exp, err := s.tracker.ExportToMarkdown(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, exp)
}

func (s *Server) handleImport(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		writeError(c, err)
		return
	}
	entries, err := tracker.DecodeImportJSON(body)
	if errors.Is(err, tracker.ErrImportEnvelope) {
		c.JSON(http.StatusBadRequest, gin.H{"error": importEnvelopeMessage})
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}

	res, err := s.tracker.ImportTasks(c.Request.Context(), entries)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// API handlers

func (s *Server) handleListTasks(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		tasks []*types.Task
		err   error
	)
	switch {
	case c.Query("status") != "":
		tasks, err = s.tracker.ListTasksByStatus(ctx, types.Status(c.Query("status")))
	case c.Query("assignee") != "":
		tasks, err = s.tracker.ListTasksByAssignee(ctx, types.Assignee(c.Query("assignee")))
	default:
		tasks, err = s.tracker.ListTasks(ctx)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var in tracker.NewTask
	if !bindJSON(c, &in) {
		return
	}
	id, err := s.tracker.CreateTask(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *Server) handleGetTask(c *gin.Context) {
	task, err := s.tracker.GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) handleUpdateTask(c *gin.Context) {
	var patch types.TaskPatch
	if !bindJSON(c, &patch) {
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")
	if err := s.tracker.UpdateFields(ctx, id, patch); err != nil {
		writeError(c, err)
		return
	}
	task, err := s.tracker.GetTask(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) handleUpdateStatus(c *gin.Context) {
	var req statusRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")
	if err := s.tracker.UpdateStatus(ctx, id, req.Status, req.Author, req.Message); err != nil {
		writeError(c, err)
		return
	}
	task, err := s.tracker.GetTask(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	if err := s.tracker.DeleteTask(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleListLogs(c *gin.Context) {
	logs, err := s.tracker.ListLogs(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

func (s *Server) handleAddLog(c *gin.Context) {
	var req logRequest
	if !bindJSON(c, &req) {
		return
	}
	id, err := s.tracker.AddLog(c.Request.Context(), c.Param("id"), req.Author, req.Message)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *Server) handleRecentLogs(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	logs, err := s.tracker.ListRecentLogs(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

func (s *Server) handleSummary(c *gin.Context) {
	sum, err := s.tracker.GetSummary(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

// bindJSON decodes the request body into v, replying 400 on failure.
func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// writeError maps tracker errors to status codes.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case types.IsValidation(err):
		status = http.StatusBadRequest
	case errors.Is(err, types.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, types.ErrUnauthorized):
		status = http.StatusUnauthorized
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": err.Error()})
}
