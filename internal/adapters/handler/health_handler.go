package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const readinessTimeout = 5 * time.Second

// ReadinessCheck probes one dependency. A nil error means UP.
type ReadinessCheck struct {
	Name  string
	Probe func(ctx context.Context) error
}

func DatabaseCheck(db *sql.DB) ReadinessCheck {
	return ReadinessCheck{Name: "database", Probe: func(ctx context.Context) error {
		if db == nil {
			return errors.New("database connection is not initialized")
		}
		if err := db.PingContext(ctx); err != nil {
			return errors.New("cannot connect to database")
		}
		return nil
	}}
}

func RedisCheck(client redis.UniversalClient) ReadinessCheck {
	return ReadinessCheck{Name: "redis", Probe: func(ctx context.Context) error {
		if client == nil {
			return errors.New("redis client is not initialized")
		}
		if err := client.Ping(ctx).Err(); err != nil {
			return errors.New("cannot connect to redis")
		}
		return nil
	}}
}

// SchedulerCheck reports DOWN while the pulse loop is not running.
func SchedulerCheck(running func() bool) ReadinessCheck {
	return ReadinessCheck{Name: "scheduler", Probe: func(context.Context) error {
		if !running() {
			return errors.New("pulse scheduler is not running")
		}
		return nil
	}}
}

type HealthHandler struct {
	checks    []ReadinessCheck
	startTime time.Time
	version   string
	log       zerolog.Logger
}

func NewHealthHandler(log zerolog.Logger, checks ...ReadinessCheck) *HealthHandler {
	version := os.Getenv("APP_VERSION")
	if version == "" {
		version = "unknown"
	}
	return &HealthHandler{
		checks:    checks,
		startTime: time.Now(),
		version:   version,
		log:       log,
	}
}

// HealthResponse follows Kubernetes/OpenShift health check conventions
type HealthResponse struct {
	Status    string           `json:"status"`
	Timestamp string           `json:"timestamp,omitempty"`
	Uptime    string           `json:"uptime,omitempty"`
	Version   string           `json:"version,omitempty"`
	Checks    map[string]Check `json:"checks"`
}

type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Health is a simple liveness check - just confirms the process is running
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "UP",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Version:   h.version,
		Checks:    map[string]Check{"process": {Status: "UP"}},
	}, h.log)
}

// Live is an alias for Health
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	h.Health(w, r)
}

// Ready checks if the service is ready to accept traffic (readiness probe)
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	checks := make(map[string]Check, len(h.checks))
	status, httpStatus := "UP", http.StatusOK
	for _, c := range h.checks {
		if err := c.Probe(ctx); err != nil {
			checks[c.Name] = Check{Status: "DOWN", Message: err.Error()}
			status, httpStatus = "DOWN", http.StatusServiceUnavailable
			continue
		}
		checks[c.Name] = Check{Status: "UP"}
	}

	writeJSON(w, httpStatus, HealthResponse{Status: status, Checks: checks}, h.log)
}
