package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	chiTransport "github.com/kailas-cloud/jobrag/internal/transport/chi"
	"github.com/kailas-cloud/jobrag/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runWithApp(cmd, serve)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, a *app) error {
	cfg, logger := a.cfg, a.logger
	logger.Info("Starting jobrag API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("notify_driver", cfg.Notify.Driver),
	)

	notifier, err := a.notifier()
	if err != nil {
		return err
	}

	server := chiTransport.NewServer(chiTransport.Services{
		Corpus:    a.corpus,
		Retrieval: a.retrieval,
		Match:     a.match,
		Notify:    notifier,
		Ask:       a.rag,
		Usage:     a.usage,
		Health:    a.health,
	}, chiTransport.Options{
		APIKeys:          cfg.Auth.APIKeys,
		DefaultKJobs:     cfg.Retrieval.DefaultKJobs,
		DefaultKResumes:  cfg.Retrieval.DefaultKResumes,
		DefaultThreshold: cfg.Matching.Threshold,
		MaxBodyBytes:     cfg.HTTP.MaxBodyBytes,
	}, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Handler(),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
		return err
	}

	logger.Info("Server stopped gracefully")
	return nil
}
