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

	"github.com/AchilleasB/inrem/pulse-service/internal/config"
	"github.com/AchilleasB/inrem/pulse-service/internal/logging"
)

var (
	// Version information (set via ldflags during build)
	Version = "dev"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pulse-api",
	Short: "InRem pulse service - inactivity detection and guardian escalation",
	Long: `pulse-api serves the pulse HTTP API and runs the scheduler that
detects silent users, sends soft check-ins and escalates unanswered ones
to guardians.`,
	Version: Version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and run the pulse scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		inMemory, _ := cmd.Flags().GetBool("in-memory")
		migrate, _ := cmd.Flags().GetBool("migrate")

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg := config.Load(inMemory)
		logging.Init(logging.Config{Level: cfg.LogLevel, JSONOutput: cfg.LogJSON})
		log := logging.WithComponent("api")

		a, err := newApp(ctx, cfg, appOptions{InMemory: inMemory, Migrate: migrate})
		if err != nil {
			return err
		}
		defer a.Close()

		srv := &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           a.routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		a.scheduler.Start()

		errCh := make(chan error, 1)
		go func() {
			log.Info().Str("addr", srv.Addr).Msg("starting server")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		select {
		case <-ctx.Done():
			log.Info().Msg("received shutdown signal")
		case err = <-errCh:
			log.Error().Err(err).Msg("server failed")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("error shutting down server")
		}
		a.scheduler.Stop()

		log.Info().Msg("shutdown complete")
		return err
	},
}

var runCycleCmd = &cobra.Command{
	Use:   "run-cycle",
	Short: "Run one detection and escalation cycle, then exit",
	Long: `run-cycle runs the same inactivity detection and escalation passes as
the scheduler, once, against the configured stores. Use it to trigger a
check by hand or from an external cron.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if inMemory, _ := cmd.Flags().GetBool("in-memory"); inMemory {
			return errors.New("run-cycle needs a persistent store; --in-memory starts empty on every run")
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg := config.Load(false)
		logging.Init(logging.Config{Level: cfg.LogLevel, JSONOutput: cfg.LogJSON})

		a, err := newApp(ctx, cfg, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		return a.scheduler.RunCycle(ctx)
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("in-memory", false, "Use in-memory stores instead of PostgreSQL")
	serveCmd.Flags().Bool("migrate", false, "Apply the database schema before serving")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCycleCmd)
}
