package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shelfmatch/backend/internal/domain"
	"github.com/shelfmatch/backend/internal/usecase"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	matcher      *usecase.MatchService
	orchestrator *usecase.Orchestrator
	detections   domain.DetectionStore
	stages       domain.StageStore
}

// NewHandler creates a new HTTP handler
func NewHandler(
	matcher *usecase.MatchService,
	orchestrator *usecase.Orchestrator,
	detections domain.DetectionStore,
	stages domain.StageStore,
) *Handler {
	return &Handler{
		matcher:      matcher,
		orchestrator: orchestrator,
		detections:   detections,
		stages:       stages,
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "shelfmatch-backend",
		"version": "1.0.0",
	})
}

// MatchDetection runs the matching pipeline for one detection synchronously
// and returns its outcome.
func (h *Handler) MatchDetection(c *gin.Context) {
	id := c.Param("id")

	det, err := h.detections.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	if !det.FullyAnalyzed {
		c.JSON(http.StatusConflict, gin.H{"error": "detection has no extracted attributes yet"})
		return
	}

	result, err := h.matcher.MatchDetection(c.Request.Context(), det, nil)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// MatchScope runs the matching pipeline for all eligible detections in an
// image or project, streaming progress as server-sent events. The stream
// carries one event per stage transition and terminates with a completion
// event holding the full per-item result list.
func (h *Handler) MatchScope(c *gin.Context) {
	scope := c.Param("scope")
	id := c.Param("id")

	var detections []domain.Detection
	var err error
	switch scope {
	case "images":
		detections, err = h.detections.ListEligibleByImage(c.Request.Context(), id)
	case "projects":
		detections, err = h.detections.ListEligibleByProject(c.Request.Context(), id)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "scope must be 'images' or 'projects'"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	opts := usecase.RunOptions{}
	if raw := c.Query("concurrency"); raw != "" {
		concurrency, convErr := strconv.Atoi(raw)
		if convErr != nil || concurrency < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "concurrency must be a positive integer"})
			return
		}
		opts.Concurrency = concurrency
	}

	events, err := h.orchestrator.Run(c.Request.Context(), detections, opts)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		event, ok := <-events
		if !ok {
			return false
		}
		c.SSEvent("progress", event)
		return true
	})
}

// DetectionFunnel returns the per-stage candidate audit trail for one
// detection, reconstructed from its stage records.
func (h *Handler) DetectionFunnel(c *gin.Context) {
	id := c.Param("id")

	if _, err := h.detections.GetByID(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	funnel, err := h.stages.FunnelForDetection(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, funnel)
}

// respondError maps domain errors to HTTP status codes
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrDetectionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNoEligibleDetections):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrInvalidRegion):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrSearchMisconfigured):
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrSearchUnavailable), errors.Is(err, domain.ErrVisualMatchUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
