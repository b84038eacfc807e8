package cmd

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gopm2/gopm2/internal/api"
	"github.com/gopm2/gopm2/internal/config"
	"github.com/gopm2/gopm2/internal/history"
	"github.com/gopm2/gopm2/internal/metrics"
	"github.com/gopm2/gopm2/pkg/pm2"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Run an HTTP server exposing process management over REST.

The server records every mutating operation in a local SQLite history
database and publishes per-process Prometheus metrics on /metrics.
Configuration comes from GOPM2_* environment variables.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if binaryPath != "" {
			cfg.Binary = binaryPath
		}

		executor, err := pm2.NewExecutor(cfg.Binary, !noValidate)
		if err != nil {
			return err
		}
		mgr := pm2.NewManagerWithExecutor(executor,
			time.Duration(cfg.CommandTimeoutSec)*time.Second,
			time.Duration(cfg.LogTimeoutSec)*time.Second)

		store, err := history.Open(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("failed to open history store: %w", err)
		}
		defer store.Close()

		var poller *metrics.Poller
		if cfg.MetricsIntervalSec > 0 {
			poller = metrics.NewPoller(mgr, time.Duration(cfg.MetricsIntervalSec)*time.Second)
			poller.Start()
			defer poller.Stop()
		}

		server := api.NewServer(mgr, store, cfg.APIKey)

		errCh := make(chan error, 1)
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Port)
			log.Printf("api: listening on %s (binary=%s)", addr, cfg.Binary)
			if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case sig := <-sigCh:
			log.Printf("api: received %s, shutting down", sig)
			return server.Close()
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
