package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/webarportal/portal/internal/config"
	"github.com/webarportal/portal/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the portal HTTP service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context) error {
	session, err := logging.Setup(config.GetLoggingConfig(), os.Stdout)
	if err != nil {
		return err
	}
	defer session.Close()
	log := session.Logger

	if configErr != nil {
		log.Warn().Err(configErr).Msg("Failed to load config, using defaults!")
	} else {
		config.Watch(func(path string) {
			level := logging.SetLevel(config.GetString("logLevel"))
			log.Info().Str("path", path).Str("loglevel", level.String()).Msg("Config file changed")
		})
	}

	svc, err := newServices(ctx, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close services")
		}
	}()

	serverCfg := config.GetServerConfig()
	srv := &http.Server{
		Addr:              serverCfg.Addr(),
		Handler:           svc.server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Dur("timeout", serverCfg.ShutdownTimeout).Msg("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	log.Info().Msg("Shutdown complete")
	return nil
}
