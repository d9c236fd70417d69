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

	"github.com/ignite/dispatch-engine/internal/api"
	"github.com/ignite/dispatch-engine/internal/config"
	"github.com/ignite/dispatch-engine/internal/pkg/logger"
	"github.com/ignite/dispatch-engine/internal/repository/postgres"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(configPath *string) *cobra.Command {
	var noProcessor bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API together with the queue processor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if !noProcessor {
				if err := a.processor.Start(); err != nil {
					return fmt.Errorf("start processor: %w", err)
				}
				defer a.processor.Stop()
			}

			server := api.NewServer(cfg.Server, a.handlers())
			errCh := make(chan error, 1)
			go func() {
				logger.Info("http server listening", "addr", cfg.Server.Addr(), "store", cfg.Store.Driver)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			select {
			case err := <-errCh:
				return fmt.Errorf("http server: %w", err)
			case sig := <-waitForSignal():
				logger.Info("shutting down", "signal", sig.String())
			}

			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				logger.Error("http shutdown failed", "error", err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&noProcessor, "no-processor", false, "serve the API without polling the queue")
	return cmd
}

func newWorkerCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run only the queue processor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if cfg.Store.Driver == config.StoreMemory {
				return errors.New("worker needs a shared store; use the serve command with the memory driver")
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.processor.Start(); err != nil {
				return fmt.Errorf("start processor: %w", err)
			}
			logger.Info("queue worker running", "owner", a.processor.Owner())

			sig := <-waitForSignal()
			logger.Info("shutting down", "signal", sig.String())
			a.processor.Stop()
			return nil
		},
	}
}

func newProcessOnceCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "process-once",
		Short: "Process every due queue item once, ignoring the auto-process setting",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.processor.Tick(cmd.Context())
			if err != nil {
				return fmt.Errorf("process queue: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "processed %d queue item(s)\n", n)
			return nil
		},
	}
}

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if cfg.Store.Driver != config.StorePostgres {
				return fmt.Errorf("migrate requires the %s store driver", config.StorePostgres)
			}
			db, err := postgres.Open(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := postgres.Migrate(cmd.Context(), db)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, name := range applied {
				fmt.Fprintf(out, "applied %s\n", name)
			}
			fmt.Fprintf(out, "%d migration(s) applied\n", len(applied))
			return nil
		},
	}
}

func waitForSignal() <-chan os.Signal {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	return quit
}
