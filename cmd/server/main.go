package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/customs-screening-pipeline/internal/api"
	"github.com/customs-screening-pipeline/internal/config"
	"github.com/customs-screening-pipeline/internal/database"
	"github.com/customs-screening-pipeline/internal/media"
	"github.com/customs-screening-pipeline/internal/repository"
	"github.com/customs-screening-pipeline/internal/screening"
	"github.com/customs-screening-pipeline/internal/service"
	"github.com/customs-screening-pipeline/internal/validation"
	"github.com/customs-screening-pipeline/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log := logger.New("info", "json")
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	log.Info().
		Str("environment", cfg.Screening.Environment).
		Msg("Starting customs screening pipeline...")

	// Initialize database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	// Run migrations
	if err := db.RunMigrations(cfg.Server.MigrationsPath); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize repositories
	repos := repository.New(db)

	// Platform and carrier allow-lists
	platforms := validation.DefaultPlatforms
	if len(cfg.Catalog.Platforms) > 0 {
		platforms = validation.ParsePlatforms(cfg.Catalog.Platforms)
	}
	carriers := validation.DefaultCarriers
	if len(cfg.Catalog.Carriers) > 0 {
		carriers = cfg.Catalog.Carriers
	}
	catalog := validation.NewCatalog(platforms, carriers, cfg.Catalog.StrictDomains)

	// Initialize services
	client := screening.NewClient(&cfg.Screening, log)
	fetcher := media.NewHTTPFetcher(&cfg.Images)
	services := service.NewServices(repos, client, fetcher, catalog, cfg, log)

	// Start background retry scheduler
	if cfg.Retry.SchedulerEnabled {
		go services.Failure.StartScheduler(context.Background())
	}

	// Initialize router
	router := api.NewRouter(services, cfg, db, log)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.ReadTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Stop retry scheduler
	services.Failure.StopScheduler()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited gracefully")
}
