package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/khabaroff/mockhook/src/broadcast"
	"github.com/khabaroff/mockhook/src/config"
	"github.com/khabaroff/mockhook/src/database"
	"github.com/khabaroff/mockhook/src/handlers"
	"github.com/khabaroff/mockhook/src/logging"
	"github.com/khabaroff/mockhook/src/services"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "mockhook",
	Short:         "Ephemeral mock REST instances and webhook capture with live tailing",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Evict expired instances and webhook logs once, then exit",
	Args:  cobra.NoArgs,
	RunE:  runSweep,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), handlers.Version)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, sweepCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// bootstrap loads configuration, sets up logging and opens storage
func bootstrap() (*config.Config, *database.Database, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logging.Setup(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	log.Info().Str("backend", db.Backend()).Msg("storage ready")
	return cfg, db, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer db.Close()

	log.Info().
		Int("port", cfg.Port).
		Str("log_level", cfg.LogLevel).
		Dur("instance_ttl", cfg.InstanceTTL).
		Msg("starting server")

	// Initialize services
	hub := broadcast.NewHub()
	instanceService := services.NewInstanceService(db, cfg.InstanceTTL)
	defer instanceService.Close()
	webhookService := services.NewWebhookService(db, hub, cfg.MaxLogsPerWebhook, cfg.LogMaxAge)
	cleanupService := services.NewCleanupService(cfg.EnableAutoCleanup, cfg.CleanupInterval, instanceService, webhookService)

	// Cancelling the base context ends long-lived SSE and WebSocket streams
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	cleanupService.Start(baseCtx)

	router, stopLimiters := handlers.NewRouter(handlers.Dependencies{
		Config:    cfg,
		Health:    db,
		Instances: instanceService,
		Webhooks:  webhookService,
	})
	defer stopLimiters()

	// No WriteTimeout: SSE and WebSocket responses stay open
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return baseCtx
		},
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case err := <-serverErr:
		cancelBase()
		cleanupService.Stop()
		return fmt.Errorf("server error: %w", err)
	}

	cancelBase()
	cleanupService.Stop()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("server shut down successfully")
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, db, err := bootstrap()
	if err != nil {
		return err
	}
	defer db.Close()

	instanceService := services.NewInstanceService(db, cfg.InstanceTTL)
	defer instanceService.Close()
	webhookService := services.NewWebhookService(db, broadcast.NewHub(), cfg.MaxLogsPerWebhook, cfg.LogMaxAge)

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	instances, err := instanceService.Cleanup(ctx)
	if err != nil {
		return err
	}
	buckets, err := webhookService.Cleanup(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "evicted %d instances, trimmed %d webhook buckets\n", instances, buckets)
	return nil
}
