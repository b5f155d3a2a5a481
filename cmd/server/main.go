package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/deliverables-tracker/internal/api"
	"github.com/deliverables-tracker/internal/config"
	"github.com/deliverables-tracker/internal/database"
	"github.com/deliverables-tracker/internal/repository"
	"github.com/deliverables-tracker/internal/service"
	"github.com/deliverables-tracker/pkg/logger"
	"github.com/rs/zerolog"
)

func main() {
	migrateFlag := flag.String("migrate", "up", `schema action before serving: "up", "down", "none" or a version number`)
	migrateOnly := flag.Bool("migrate-only", false, "apply the schema action and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// No configured logger yet
		bootLog := logger.New("info", "json")
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	log.Info().Msg("Starting deliverables tracker server...")

	// Initialize database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	// Run migrations
	if err := migrateSchema(db, cfg.Database.MigrationsPath, *migrateFlag, log); err != nil {
		log.Fatal().Err(err).Str("action", *migrateFlag).Msg("Failed to run database migrations")
	}
	if *migrateOnly {
		log.Info().Msg("Migrations applied, exiting")
		return
	}

	// Initialize repositories
	repos := repository.New(db)

	// Initialize services
	services, err := service.NewServices(repos, cfg, time.Now, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}

	// Initialize router
	router := api.NewRouter(services, db, cfg, log)

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
		log.Info().Str("port", cfg.Server.Port).Str("api_prefix", cfg.Server.APIPrefix).Msg("Server listening")
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

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited gracefully")
}

// migrateSchema applies the -migrate action
func migrateSchema(db *database.DB, path, action string, log zerolog.Logger) error {
	switch action {
	case "none":
		log.Warn().Msg("Skipping database migrations")
		return nil
	case "up":
		return db.RunMigrations(path)
	case "down":
		return db.MigrateDown(path)
	}

	version, err := strconv.ParseUint(action, 10, 32)
	if err != nil {
		return err
	}
	return db.MigrateToVersion(path, uint(version))
}
