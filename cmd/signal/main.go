package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nikhilbhutani/castiq-transcriber/internal/config"
	sig "github.com/nikhilbhutani/castiq-transcriber/internal/signal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	hub := sig.NewHub(originPatterns(cfg.HTTP.CORSOrigins))

	srv := &http.Server{
		Addr:        cfg.SignalAddr(),
		Handler:     hub,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		slog.Info("starting signaling server", "addr", cfg.SignalAddr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down signaling server...")
	peers := hub.Len()
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("signaling server stopped", "peers", peers)
}

// originPatterns turns CORS origins into the host patterns the websocket
// handshake checks against.
func originPatterns(origins []string) []string {
	var out []string
	for _, o := range origins {
		o = strings.TrimPrefix(o, "https://")
		o = strings.TrimPrefix(o, "http://")
		out = append(out, o)
	}
	return out
}
