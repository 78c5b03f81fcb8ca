package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/customs-screening-pipeline/internal/models"
	"github.com/customs-screening-pipeline/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// FailureHandler handles the failure operator endpoints
type FailureHandler struct {
	services *service.Services
	log      zerolog.Logger
}

// NewFailureHandler creates a new FailureHandler
func NewFailureHandler(services *service.Services, log zerolog.Logger) *FailureHandler {
	return &FailureHandler{
		services: services,
		log:      log.With().Str("handler", "failure").Logger(),
	}
}

// ListFailures handles GET /v1/failures
func (h *FailureHandler) ListFailures(c *gin.Context) {
	filter := models.FailureFilter{
		UploadID:    c.Query("upload_id"),
		Environment: c.Query("environment"),
	}

	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			status := models.RetryStatus(strings.TrimSpace(s))
			if !models.ValidRetryStatuses[status] {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid status %q", s)})
				return
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		filter.Limit = limit
	}

	failures, err := h.services.Failure.ListFailures(c.Request.Context(), filter)
	if err != nil {
		writeError(c, h.log, err, "failed to list failures")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":    len(failures),
		"failures": failures,
	})
}

// GetFailure handles GET /v1/failures/:failure_id
func (h *FailureHandler) GetFailure(c *gin.Context) {
	f, err := h.services.Failure.GetFailure(c.Request.Context(), c.Param("failure_id"))
	if err != nil {
		writeError(c, h.log, err, "failed to get failure")
		return
	}
	c.JSON(http.StatusOK, f)
}

// RetryFailure handles POST /v1/failures/:failure_id/retry. A retry whose
// call fails again still answers 200 with the updated record.
func (h *FailureHandler) RetryFailure(c *gin.Context) {
	f, err := h.services.Failure.Retry(c.Request.Context(), c.Param("failure_id"))
	if err != nil {
		writeError(c, h.log, err, "failed to retry failure")
		return
	}
	c.JSON(http.StatusOK, f)
}

// BatchRetry handles POST /v1/failures/retry
func (h *FailureHandler) BatchRetry(c *gin.Context) {
	var req models.BatchRetryRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.UploadID == "" {
		req.UploadID = c.Query("upload_id")
	}

	summary, err := h.services.Failure.BatchRetry(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.log, err, "failed to retry failures")
		return
	}
	c.JSON(http.StatusOK, summary)
}

// ResolveFailure handles POST /v1/failures/:failure_id/resolve
func (h *FailureHandler) ResolveFailure(c *gin.Context) {
	var req models.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	f, err := h.services.Failure.Resolve(c.Request.Context(), c.Param("failure_id"), req.Notes)
	if err != nil {
		writeError(c, h.log, err, "failed to resolve failure")
		return
	}
	c.JSON(http.StatusOK, f)
}
