// Command server runs the MediSync backend: medical report uploads with
// inline AI analysis, organ-metric history, raw file downloads, and a
// health-data-aware chat assistant.
//
// Startup order: env → config → logging → tracing → database → blob store →
// model client → router → HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/adithyaanandbtech24-sys/Medisync-1/docs"
	"github.com/adithyaanandbtech24-sys/Medisync-1/internal/ai"
	"github.com/adithyaanandbtech24-sys/Medisync-1/internal/config"
	httpapi "github.com/adithyaanandbtech24-sys/Medisync-1/internal/http"
	"github.com/adithyaanandbtech24-sys/Medisync-1/internal/observability"
	"github.com/adithyaanandbtech24-sys/Medisync-1/internal/repo"
	"github.com/adithyaanandbtech24-sys/Medisync-1/internal/storage"
	"github.com/adithyaanandbtech24-sys/Medisync-1/internal/sysutil"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

// @title        MediSync Backend API
// @version      1.0
// @description  Medical report upload, AI analysis, organ metrics, and health chat.
// @BasePath     /api
func main() {
	// .env is optional; real deployments set env vars directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	// Logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	sysutil.SetLogLevel(cfg.LogLevel)

	// GEMINI_API_KEY is canonical; GOOGLE_GEMINI_API_KEY is accepted for
	// parity with older deployments.
	cfg.Gemini.APIKey = sysutil.FirstNonEmpty(cfg.Gemini.APIKey, os.Getenv("GOOGLE_GEMINI_API_KEY"))
	if cfg.Gemini.APIKey == "" {
		log.Warn().Msg("no Gemini API key configured; analysis and chat will degrade to fallback responses")
	}

	ctx := context.Background()

	// Tracing
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(ctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown failed")
		}
	}()

	// Database
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database failed")
	}

	// Blob store
	blobs, err := storage.NewS3Store(ctx, cfg.Blob)
	if err != nil {
		log.Fatal().Err(err).Msg("blob store setup failed")
	}

	// Model client
	model := ai.NewClient(cfg.Gemini.BaseURL, cfg.Gemini.APIKey, cfg.Gemini.Model, nil)

	// Router
	gin.SetMode(cfg.GinMode)
	r := gin.New()
	docs.SwaggerInfo.BasePath = cfg.APIBasePath
	httpapi.RegisterRoutes(r, db, blobs, model, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
