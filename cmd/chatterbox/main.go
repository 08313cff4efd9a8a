package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chatterbox-server/chatterbox/internal/api"
	"github.com/chatterbox-server/chatterbox/internal/call"
	"github.com/chatterbox-server/chatterbox/internal/config"
	"github.com/chatterbox-server/chatterbox/internal/database"
	"github.com/chatterbox-server/chatterbox/internal/files"
	"github.com/chatterbox-server/chatterbox/internal/gateway"
	"github.com/chatterbox-server/chatterbox/internal/metrics"
	"github.com/chatterbox-server/chatterbox/internal/registry"
	"github.com/chatterbox-server/chatterbox/internal/relay"
)

// fileCleanupInterval is how often expired received files are swept.
const fileCleanupInterval = time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(cfg.SlogHandler(os.Stdout))
	slog.SetDefault(logger)

	slog.Info("starting chatterbox",
		"http_port", cfg.HTTPPort,
		"voice_port", cfg.VoicePort,
		"data_dir", cfg.DataDir,
	)

	// Open database and run migrations.
	db, err := database.Open(cfg.DataDir)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	jwtSecret, err := cfg.JWTSecretBytes()
	if err != nil {
		slog.Error("failed to load jwt secret", "error", err)
		os.Exit(1)
	}

	// Application context for background goroutines.
	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	users := database.NewUserRepository(db)
	messages := database.NewMessageRepository(db)
	reg := registry.New()
	ledger := call.NewLedger(logger)

	// Voice datagram relay on its own UDP port.
	voiceRelay, err := relay.New(cfg.VoicePort, reg, logger)
	if err != nil {
		slog.Error("failed to bind voice relay", "error", err)
		os.Exit(1)
	}
	voiceRelay.Start()

	// Received file store with retention sweep.
	fileStore, err := files.NewStore(cfg.DataDir, logger)
	if err != nil {
		slog.Error("failed to create file store", "error", err)
		os.Exit(1)
	}
	fileStore.StartCleanupTicker(appCtx, fileCleanupInterval, cfg.FileRetentionDays)

	// Signaling gateway over WebSocket.
	gw := gateway.New(reg, ledger, messages, fileStore, cfg.VoicePort, cfg.HistoryLimit, logger)

	// Prometheus metrics.
	startTime := time.Now()
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(metrics.NewCollector(reg, ledger, voiceRelay, users, startTime))
	metricsHandler := promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})

	handler := api.NewServer(cfg, users, messages, reg, jwtSecret, gw.HandleWS, metricsHandler)
	defer handler.Close()

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:     handler,
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: the WebSocket route holds connections open
		// indefinitely.
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt or server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		slog.Error("http server error", "error", err)
	}

	// Graceful shutdown with timeout.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutting down")
	voiceRelay.Stop()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown error", "error", err)
		os.Exit(1)
	}

	slog.Info("chatterbox stopped")
}
