// Strip scanner server - runs the camera scan loop, classification API and WebSocket feed
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GriffinCanCode/stripscan/internal/alert"
	"github.com/GriffinCanCode/stripscan/internal/config"
	"github.com/GriffinCanCode/stripscan/internal/frame"
	"github.com/GriffinCanCode/stripscan/internal/orchestrator"
	"github.com/GriffinCanCode/stripscan/internal/resilience"
	"github.com/GriffinCanCode/stripscan/internal/server"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Frame source is optional; without one only uploads are classified
	var source frame.Source
	if cfg.FrameSource != "" {
		src, err := frame.Open(cfg.FrameSource, cfg.FrameExtensions)
		if err != nil {
			slog.Error("failed to open frame source", "source", cfg.FrameSource, "error", err)
			os.Exit(1)
		}
		source = src
	}

	player := openPlayer(cfg)
	defer func() { _ = player.Close() }()

	// Create orchestrator
	orch := orchestrator.New(cfg, source, player)

	// Create HTTP/WebSocket server
	srv := server.New(orch)

	// Start orchestrator in background
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := orch.Start(ctx); err != nil {
		slog.Error("orchestrator error", "error", err)
	}

	// Start HTTP server
	httpServer := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     srv.Handler(),
		ReadTimeout: 10 * time.Second,
		// WriteTimeout stays unset: it would also cut long-lived WebSocket connections
	}

	go func() {
		slog.Info("stripscan server starting", "http", cfg.HTTPAddr, "frame_source", cfg.FrameSource)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	orch.Stop()
	slog.Info("shutdown complete")
}

// openPlayer returns a breaker-guarded PortAudio player, or a silent one when
// no output device is available. Alerts may be enabled later at runtime, so
// the device is opened even when they start disabled.
func openPlayer(cfg *config.Config) alert.Player {
	pa, err := alert.NewPortAudioPlayer(cfg.AudioSampleRate, cfg.AudioDevice)
	if err != nil {
		slog.Warn("audio alerts unavailable", "error", err)
		return alert.NopPlayer{}
	}
	return alert.Guard(pa, resilience.New(resilience.AudioConfig()))
}
