package api

import (
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/customs-screening-pipeline/internal/config"
	"github.com/customs-screening-pipeline/internal/models"
	"github.com/customs-screening-pipeline/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// UploadHandler handles upload endpoints
type UploadHandler struct {
	services *service.Services
	cfg      *config.Config
	log      zerolog.Logger
}

// NewUploadHandler creates a new UploadHandler
func NewUploadHandler(services *service.Services, cfg *config.Config, log zerolog.Logger) *UploadHandler {
	return &UploadHandler{
		services: services,
		cfg:      cfg,
		log:      log.With().Str("handler", "upload").Logger(),
	}
}

// rowError is one line of the row error report
type rowError struct {
	RowNumber int         `json:"row_number"`
	Field     string      `json:"field"`
	Message   string      `json:"message"`
	Value     interface{} `json:"value,omitempty"`
}

// CreateUpload handles POST /v1/uploads
func (h *UploadHandler) CreateUpload(c *gin.Context) {
	ctx := c.Request.Context()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.Import.MaxUploadSize)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error": fmt.Sprintf("file too large, max size is %d MB", h.cfg.Import.MaxUploadSize/(1024*1024)),
			})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart file field \"file\" is required"})
		return
	}
	defer file.Close()

	if ext := strings.ToLower(filepath.Ext(header.Filename)); ext != ".csv" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "uploads require a CSV file"})
		return
	}

	upload, err := h.services.Upload.CreateUpload(ctx, header.Filename, file)
	if err != nil {
		writeError(c, h.log, err, "failed to create upload")
		return
	}

	h.log.Info().
		Str("upload_id", upload.ID).
		Str("file", header.Filename).
		Int64("size_bytes", header.Size).
		Str("status", string(upload.Status)).
		Msg("Upload created")

	c.JSON(http.StatusCreated, upload)
}

// GetUpload handles GET /v1/uploads/:upload_id
func (h *UploadHandler) GetUpload(c *gin.Context) {
	upload, err := h.services.Upload.GetUpload(c.Request.Context(), c.Param("upload_id"))
	if err != nil {
		writeError(c, h.log, err, "failed to get upload")
		return
	}
	c.JSON(http.StatusOK, upload)
}

// UpdateRows handles PUT /v1/uploads/:upload_id/rows
func (h *UploadHandler) UpdateRows(c *gin.Context) {
	var req struct {
		Rows map[string]map[string]string `json:"rows"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if len(req.Rows) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rows is required"})
		return
	}

	edits := make(map[int]models.RawRow, len(req.Rows))
	for key, cells := range req.Rows {
		rowNumber, err := strconv.Atoi(key)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid row number %q", key)})
			return
		}
		edits[rowNumber] = models.RawRow(cells)
	}

	upload, err := h.services.Upload.UpdateRows(c.Request.Context(), c.Param("upload_id"), edits)
	if err != nil {
		writeError(c, h.log, err, "failed to update rows")
		return
	}
	c.JSON(http.StatusOK, upload)
}

// GetUploadErrors handles GET /v1/uploads/:upload_id/errors
func (h *UploadHandler) GetUploadErrors(c *gin.Context) {
	uploadID := c.Param("upload_id")
	upload, err := h.services.Upload.GetUpload(c.Request.Context(), uploadID)
	if err != nil {
		writeError(c, h.log, err, "failed to get upload")
		return
	}

	errs := []rowError{}
	missing := []string{}
	if v := upload.Validation; v != nil {
		missing = append(missing, v.MissingColumns...)
		for _, res := range v.Results {
			for _, fe := range res.Errors {
				errs = append(errs, rowError{RowNumber: res.RowNumber, Field: fe.Field, Message: fe.Message, Value: fe.Value})
			}
		}
	}

	// Determine format from query param
	format := c.Query("format")
	if format == "" {
		format = "json"
	}

	if format == "csv" {
		c.Header("Content-Type", "text/csv")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=errors_%s.csv", uploadID))
		writer := csv.NewWriter(c.Writer)
		writer.Write([]string{"row_number", "field", "message", "value"})
		for _, col := range missing {
			writer.Write([]string{"0", col, "required column is missing", ""})
		}
		for _, e := range errs {
			value := ""
			if e.Value != nil {
				value = fmt.Sprintf("%v", e.Value)
			}
			writer.Write([]string{strconv.Itoa(e.RowNumber), e.Field, e.Message, value})
		}
		writer.Flush()
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"upload_id":       uploadID,
		"error_count":     len(errs),
		"missing_columns": missing,
		"errors":          errs,
	})
}

// SubmitUpload handles POST /v1/uploads/:upload_id/submit. The batch runs
// within the request; a client that disconnects cancels the remaining rows.
func (h *UploadHandler) SubmitUpload(c *gin.Context) {
	uploadID := c.Param("upload_id")
	summary, err := h.services.Submission.SubmitUpload(c.Request.Context(), uploadID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, summary)
	case summary != nil && service.IsCancelled(err):
		h.log.Warn().Str("upload_id", uploadID).Int("processed", summary.Processed).Msg("Submission cancelled")
		c.JSON(http.StatusRequestTimeout, gin.H{"error": "submission cancelled", "summary": summary})
	case summary != nil:
		h.log.Error().Err(err).Str("upload_id", uploadID).Msg("Submission stopped")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "submission stopped", "summary": summary})
	default:
		writeError(c, h.log, err, "failed to submit upload")
	}
}

// GetResults handles GET /v1/uploads/:upload_id/results
func (h *UploadHandler) GetResults(c *gin.Context) {
	uploadID := c.Param("upload_id")
	results, err := h.services.Upload.GetResults(c.Request.Context(), uploadID)
	if err != nil {
		writeError(c, h.log, err, "failed to get results")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"upload_id": uploadID,
		"count":     len(results),
		"results":   results,
	})
}
