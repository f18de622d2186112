// Package api exposes the worker's HTTP surface: the dispatch endpoint,
// health checks, metrics, and dispatcher stats.
package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/mmiprep/assessment-worker/internal/logging"
	"github.com/mmiprep/assessment-worker/internal/pipeline"
)

// Handler handles HTTP requests for the assessment worker API.
type Handler struct {
	dispatcher *pipeline.Dispatcher
	db         *sqlx.DB
	logger     logging.Logger
}

// NewHandler creates a new API handler.
func NewHandler(dispatcher *pipeline.Dispatcher, db *sqlx.DB, logger logging.Logger) *Handler {
	return &Handler{dispatcher: dispatcher, db: db, logger: logger}
}

// ProcessJob handles POST /api/v1/jobs/:id/process. It acknowledges receipt
// immediately; the pipeline outcome lands on the job record, not in this
// response.
func (h *Handler) ProcessJob(c *gin.Context) {
	jobID := strings.TrimSpace(c.Param("id"))
	if jobID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job id is required"})
		return
	}

	err := h.dispatcher.Dispatch(c.Request.Context(), jobID)
	switch {
	case err == nil:
		h.logger.Info("Job dispatched", "job_id", jobID)
		c.JSON(http.StatusAccepted, gin.H{"job_id": jobID, "status": "queued"})
	case errors.Is(err, pipeline.ErrAlreadyClaimed):
		c.JSON(http.StatusConflict, gin.H{"error": "job is already being processed", "job_id": jobID})
	case errors.Is(err, pipeline.ErrQueueFull):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "worker queue is full, try again later"})
	case errors.Is(err, pipeline.ErrStopped):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "worker is shutting down"})
	default:
		h.logger.Error("Dispatch failed", "job_id", jobID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// HealthCheck handles GET /healthz.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ReadyCheck handles GET /readyz. The worker is ready when the record store
// answers a ping.
func (h *Handler) ReadyCheck(c *gin.Context) {
	if h.db != nil {
		if err := h.db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Stats handles GET /api/v1/stats.
func (h *Handler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.dispatcher.Stats())
}
