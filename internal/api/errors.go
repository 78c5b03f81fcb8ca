package api

import (
	"errors"
	"net/http"

	"github.com/customs-screening-pipeline/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrUploadNotFound), errors.Is(err, service.ErrFailureNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrUploadLocked), errors.Is(err, service.ErrRetryInFlight),
		errors.Is(err, service.ErrNotRetriable):
		return http.StatusConflict
	case errors.Is(err, service.ErrNothingToSubmit), errors.Is(err, service.ErrNoFailuresSelected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrInvalidFile), errors.Is(err, service.ErrInvalidRowNumber):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeError responds with the mapped status. Unexpected errors are logged
// and their text is not exposed.
func writeError(c *gin.Context, log zerolog.Logger, err error, msg string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg(msg)
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
