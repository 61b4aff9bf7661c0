package main

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"pro-headshot-ai/internal/config"
	"pro-headshot-ai/internal/gemini"
	"pro-headshot-ai/internal/headshot"
	"pro-headshot-ai/internal/httpclient"
	"pro-headshot-ai/internal/session"
	"pro-headshot-ai/internal/web"
)

//go:embed static/*
var staticFS embed.FS

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		// Most commonly a missing GEMINI_API_KEY. Refuse to serve at all.
		slog.Error("configuration error, not starting", "err", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)

	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4: cfg.PreferIPv4,
		Timeout:    cfg.HTTPTimeout,
	})

	gem := gemini.New(gemini.Options{
		APIKey:        cfg.GeminiAPIKey,
		BaseURL:       cfg.GeminiBaseURL,
		APIVersion:    cfg.GeminiAPIVersion,
		AnalysisModel: cfg.AnalysisModel,
		ImageModel:    cfg.ImageModel,
		HTTPClient:    httpClient,
		Logger:        logger,
	})

	workflow, err := headshot.New(headshot.Options{
		Analyzer:          gem,
		Synthesizer:       gem,
		OnAnalysisFailure: cfg.OnAnalysisFailure,
		GenerateInterval:  cfg.GenerateInterval,
		Logger:            logger,
	})
	if err != nil {
		logger.Error("workflow init failed", "err", err)
		os.Exit(1)
	}

	sessions := session.NewStore(session.Options{
		TTL: cfg.SessionTTL,
	})

	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		logger.Error("static assets missing", "err", err)
		os.Exit(1)
	}

	server := web.New(web.Options{
		Sessions:       sessions,
		Workflow:       workflow,
		Logger:         logger,
		Static:         staticSub,
		MaxConcurrent:  cfg.MaxConcurrent,
		MaxUploadBytes: cfg.MaxUploadBytes,
		RequestTimeout: cfg.RequestTimeout,
		Debug:          cfg.Debug,
	})

	srv := &http.Server{
		Addr:              cfg.WebAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       90 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("web started", "addr", cfg.WebAddr, "analysis_model", cfg.AnalysisModel, "image_model", cfg.ImageModel)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "err", err)
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
}
