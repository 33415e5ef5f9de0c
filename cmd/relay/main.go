package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/AchilleasB/inrem/pulse-service/internal/adapters/messaging"
	"github.com/AchilleasB/inrem/pulse-service/internal/adapters/outbox"
	"github.com/AchilleasB/inrem/pulse-service/internal/config"
	"github.com/AchilleasB/inrem/pulse-service/internal/logging"
	"github.com/AchilleasB/inrem/pulse-service/internal/metrics"
)

func main() {
	cfg := config.LoadRelayConfig()
	logging.Init(logging.Config{Level: cfg.LogLevel, JSONOutput: cfg.LogJSON})
	log := logging.WithComponent("relay")

	log.Info().Msg("starting outbox relay service")

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()
	log.Info().Msg("database connection initialized - circuit breaker will validate on first operation")

	broker, err := messaging.NewRabbitMQBroker(cfg.RabbitMQURL, cfg.PulseQueueName)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer broker.Close()
	log.Info().Str("queue", cfg.PulseQueueName).Msg("connected to RabbitMQ")

	worker := outbox.NewRelay(db, cfg.DatabaseURL, broker, outbox.Options{
		BatchSize:    cfg.BatchSize,
		PollInterval: cfg.PollInterval,
	})

	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeProbe(w, worker.IsHealthy())
	})
	healthMux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		writeProbe(w, worker.IsReady() && !broker.IsClosed())
	})
	healthMux.Handle("/metrics", metrics.Handler())

	healthServer := &http.Server{
		Addr:              ":8090",
		Handler:           healthMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", healthServer.Addr).Msg("starting health check server")
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		log.Info().Msg("starting event processing worker")
		if err := worker.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("initiating shutdown")
	case err := <-errChan:
		log.Error().Err(err).Msg("fatal worker error, shutting down")
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error shutting down health server")
	}

	log.Info().Msg("shutdown complete")
}

func writeProbe(w http.ResponseWriter, ok bool) {
	status, code := "UP", http.StatusOK
	if !ok {
		status, code = "DOWN", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":    status,
		"component": "outbox-relay",
	})
}
