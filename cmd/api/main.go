package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/castiq-transcriber/internal/api"
	"github.com/nikhilbhutani/castiq-transcriber/internal/api/handlers"
	"github.com/nikhilbhutani/castiq-transcriber/internal/audio"
	"github.com/nikhilbhutani/castiq-transcriber/internal/cache"
	"github.com/nikhilbhutani/castiq-transcriber/internal/config"
	"github.com/nikhilbhutani/castiq-transcriber/internal/storage"
	"github.com/nikhilbhutani/castiq-transcriber/internal/stt"
	"github.com/nikhilbhutani/castiq-transcriber/internal/transcribe"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx := context.Background()

	slog.Info("loading transcription model", "backend", cfg.STT.Backend)
	provider, err := stt.New(cfg.STT)
	if err != nil {
		slog.Error("failed to load transcription model", "error", err)
		os.Exit(1)
	}
	slog.Info("transcription model loaded", "provider", provider.Name())

	spool, err := storage.NewSpool(cfg.Upload.SpoolDir, cfg.Upload.MaxBytes)
	if err != nil {
		slog.Error("failed to prepare spool dir", "error", err)
		os.Exit(1)
	}

	var normalizer transcribe.Normalizer
	if cfg.Audio.Normalize {
		normalizer = audio.NewConverter(cfg.Audio.SampleRate)
	}

	// Redis is only needed for the transcript cache (optional)
	var transcriptCache transcribe.Cache
	checks := map[string]handlers.Pinger{}
	if cfg.Cache.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("redis unavailable, cache lookups will fail open", "error", err)
		}
		tc := cache.NewTranscripts(rdb, cfg.CacheTTL())
		transcriptCache = tc
		checks["redis"] = tc
	}

	svc := transcribe.NewService(provider, spool, normalizer, transcriptCache, transcribe.Options{
		Language: cfg.STT.Language,
		Prompt:   cfg.STT.Prompt,
	})

	router := api.NewRouter(cfg, svc, provider.Name(), checks)
	handler := router.Setup()
	defer router.Close()

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting transcriber", "addr", cfg.Addr(), "spool_dir", spool.Dir())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}
