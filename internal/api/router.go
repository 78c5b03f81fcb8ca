package api

import (
	"context"
	"net/http"
	"time"

	"github.com/customs-screening-pipeline/internal/config"
	"github.com/customs-screening-pipeline/internal/service"
	"github.com/customs-screening-pipeline/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// HealthChecker reports whether a backing store is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// NewRouter creates and configures the Gin router. db may be nil.
func NewRouter(services *service.Services, cfg *config.Config, db HealthChecker, log zerolog.Logger) *gin.Engine {
	// Set Gin mode
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Middleware
	router.Use(recoveryMiddleware(log))
	router.Use(loggingMiddleware(log))
	router.Use(corsMiddleware())

	// Handlers
	uploadHandler := NewUploadHandler(services, cfg, log)
	failureHandler := NewFailureHandler(services, log)

	// Health check
	router.GET("/health", healthCheck(cfg, db, log))

	// API v1
	v1 := router.Group("/v1")
	{
		uploads := v1.Group("/uploads")
		{
			uploads.POST("", uploadHandler.CreateUpload)
			uploads.GET("/:upload_id", uploadHandler.GetUpload)
			uploads.PUT("/:upload_id/rows", uploadHandler.UpdateRows)
			uploads.GET("/:upload_id/errors", uploadHandler.GetUploadErrors)
			uploads.POST("/:upload_id/submit", uploadHandler.SubmitUpload)
			uploads.GET("/:upload_id/results", uploadHandler.GetResults)
		}

		failures := v1.Group("/failures")
		{
			failures.GET("", failureHandler.ListFailures)
			failures.POST("/retry", failureHandler.BatchRetry)
			failures.GET("/:failure_id", failureHandler.GetFailure)
			failures.POST("/:failure_id/retry", failureHandler.RetryFailure)
			failures.POST("/:failure_id/resolve", failureHandler.ResolveFailure)
		}

		v1.GET("/platforms", platformsHandler(services, log))
	}

	return router
}

// healthCheck returns the health status
func healthCheck(cfg *config.Config, db HealthChecker, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := db.HealthCheck(ctx); err != nil {
				log.Error().Err(err).Msg("Database health check failed")
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":    "unhealthy",
					"timestamp": time.Now().Format(time.RFC3339),
					"service":   logger.ServiceName,
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":      "healthy",
			"timestamp":   time.Now().Format(time.RFC3339),
			"service":     logger.ServiceName,
			"environment": cfg.Screening.Environment,
		})
	}
}

// platformsHandler passes the screening API platform list through
func platformsHandler(services *service.Services, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		data, err := services.Screening.GetPlatforms(c.Request.Context())
		if err != nil {
			log.Error().Err(err).Msg("Failed to get platforms")
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to get platforms from screening API"})
			return
		}
		c.Data(http.StatusOK, "application/json", data)
	}
}

// recoveryMiddleware handles panics
func recoveryMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().Interface("error", err).Str("path", c.Request.URL.Path).Msg("Panic recovered")
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "Internal server error",
				})
				c.Abort()
			}
		}()
		c.Next()
	}
}

// loggingMiddleware logs requests
func loggingMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		event := log.Info()
		if statusCode >= 400 {
			event = log.Warn()
		}
		if statusCode >= 500 {
			event = log.Error()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", statusCode).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Msg("Request completed")
	}
}

// corsMiddleware handles CORS
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
