package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/AchilleasB/inrem/pulse-service/internal/adapters/handler"
	"github.com/AchilleasB/inrem/pulse-service/internal/adapters/invitation"
	"github.com/AchilleasB/inrem/pulse-service/internal/adapters/memory"
	"github.com/AchilleasB/inrem/pulse-service/internal/adapters/middleware"
	"github.com/AchilleasB/inrem/pulse-service/internal/adapters/notification"
	"github.com/AchilleasB/inrem/pulse-service/internal/adapters/repository"
	"github.com/AchilleasB/inrem/pulse-service/internal/clock"
	"github.com/AchilleasB/inrem/pulse-service/internal/config"
	"github.com/AchilleasB/inrem/pulse-service/internal/core/ports"
	"github.com/AchilleasB/inrem/pulse-service/internal/core/services"
	"github.com/AchilleasB/inrem/pulse-service/internal/logging"
	"github.com/AchilleasB/inrem/pulse-service/internal/metrics"
)

// pulseStore is what both the Postgres and the in-memory backends provide.
type pulseStore interface {
	ports.Directory
	ports.PolicyRepository
	ports.GuardianRepository
	ports.EventStore
	ports.ActivityRepository
}

type appOptions struct {
	InMemory bool
	Migrate  bool
}

type app struct {
	cfg       *config.Config
	log       zerolog.Logger
	db        *sql.DB
	redis     *redis.Client
	clock     clock.Clock
	scheduler *services.Scheduler

	// local is set in in-memory mode, where users are provisioned from
	// their token subject.
	local *memory.Store

	signals   *handler.SignalHandler
	pulse     *handler.PulseHandler
	settings  *handler.SettingsHandler
	guardians *handler.GuardianHandler
	health    *handler.HealthHandler
	auth      *middleware.AuthMiddleware
}

func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	clk := clock.Real{}
	a := &app{cfg: cfg, log: logging.WithComponent("api"), clock: clk}

	var store pulseStore
	if opts.InMemory {
		a.log.Warn().Msg("using in-memory stores; data is lost on exit")
		a.local = memory.NewStore()
		store = a.local
	} else {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		a.db = db
		if opts.Migrate {
			if err := repository.Migrate(ctx, db); err != nil {
				a.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
			a.log.Info().Msg("database schema applied")
		}
		store = repository.NewSQLRepository(db)
	}

	var codes ports.InvitationStore
	if cfg.RedisAddress != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.log.Info().Str("addr", cfg.RedisAddress).Msg("connected to Redis")
		codes = invitation.NewRedisStore(a.redis, clk, invitation.DefaultRetention)
	} else {
		a.log.Warn().Msg("REDIS_ADDRESS not set; invitation codes are kept in memory")
		codes = invitation.NewMemoryStore()
	}

	var push ports.PushGateway
	if cfg.FCMEnabled() {
		fcm, err := notification.NewFCMGateway(ctx, cfg.FCMProjectID, cfg.FCMCredentialsPath, cfg.NotifyConcurrency)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("fcm: %w", err)
		}
		push = fcm
	} else {
		a.log.Warn().Msg("FCM not configured; push notifications are logged only")
		push = notification.NewLogPushGateway(logging.WithComponent("push"))
	}

	var email ports.EmailGateway
	if cfg.SMTP.Enabled() {
		email = notification.NewSMTPGateway(cfg.SMTP)
	} else {
		a.log.Warn().Msg("SMTP not configured; guardian emails are logged only")
		email = notification.NewLogEmailGateway(logging.WithComponent("email"))
	}

	dispatcher := services.NewNotificationDispatcher(push, email, store, services.DispatcherConfig{
		Timeout:     cfg.NotifyTimeout,
		Concurrency: cfg.NotifyConcurrency,
	}, logging.WithComponent("notification-dispatcher"))

	detector := services.NewInactivityDetector(store, store, dispatcher, clk, cfg.Location, logging.WithComponent("inactivity-detector"))
	engine := services.NewEscalationEngine(store, store, dispatcher, clk, logging.WithComponent("escalation-engine"))
	a.scheduler = services.NewScheduler(
		services.SchedulerConfig{Interval: cfg.PulseInterval},
		logging.WithComponent("pulse-scheduler"),
		services.DetectionStep{Detector: detector},
		services.EscalationStep{Engine: engine},
	)

	handlerLog := logging.WithComponent("http")
	a.signals = handler.NewSignalHandler(services.NewSignalService(store, clk), handlerLog)
	a.pulse = handler.NewPulseHandler(services.NewCheckInService(store, store, clk, logging.WithComponent("check-in")), handlerLog)
	a.settings = handler.NewSettingsHandler(services.NewPolicySettingsService(store, store), handlerLog)
	a.guardians = handler.NewGuardianHandler(
		services.NewInvitationCodeService(codes, store, clk, cfg.InvitationTTL, logging.WithComponent("invitation")),
		services.NewGuardianDirectoryService(store, store, logging.WithComponent("guardian")),
		handlerLog,
	)

	checks := []handler.ReadinessCheck{handler.SchedulerCheck(a.scheduler.Running)}
	if a.db != nil {
		checks = append(checks, handler.DatabaseCheck(a.db))
	}
	if a.redis != nil {
		checks = append(checks, handler.RedisCheck(a.redis))
	}
	a.health = handler.NewHealthHandler(handlerLog, checks...)
	a.auth = middleware.NewAuthMiddleware(cfg.JWTPublicKey, logging.WithComponent("auth"))

	return a, nil
}

func (a *app) routes() http.Handler {
	mux := http.NewServeMux()

	open := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, middleware.Instrument(pattern, h))
	}
	authed := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, middleware.Instrument(pattern, a.auth.RequireAuth(a.provision(h))))
	}

	// Health endpoints (OpenShift compatible)
	open("GET /health", a.health.Health)
	open("GET /health/ready", a.health.Ready)
	open("GET /health/live", a.health.Live)
	mux.Handle("GET /metrics", metrics.Handler())

	authed("POST /signal/heartbeat", a.signals.Heartbeat)
	authed("GET /signal/recent", a.signals.Recent)

	authed("POST /pulse/respond", a.pulse.Respond)
	authed("POST /pulse/dismiss", a.pulse.Dismiss)
	authed("GET /pulse/events", a.pulse.Events)

	authed("GET /settings/policy", a.settings.GetPolicy)
	authed("PATCH /settings/policy", a.settings.UpdatePolicy)
	authed("POST /device/register", a.settings.RegisterDevice)
	authed("DELETE /device/unregister", a.settings.UnregisterDevice)

	authed("POST /guardian/invite", a.guardians.Invite)
	authed("POST /guardian/accept", a.guardians.Accept)
	authed("GET /guardian/list", a.guardians.List)
	authed("GET /guardian/wards", a.guardians.Wards)
	authed("DELETE /guardian/{guardianID}", a.guardians.Remove)

	return middleware.CORSMiddleware(a.cfg.CORSAllowedOrigins)(mux)
}

// provision creates the authenticated user in in-memory mode, where no
// identity service feeds the store.
func (a *app) provision(next http.HandlerFunc) http.HandlerFunc {
	if a.local == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserIDFromContext(r.Context())
		if userID != "" && a.local.EnsureUser(userID, a.clock.Now()) {
			a.log.Info().Str("user_id", userID).Msg("provisioned local user")
		}
		next(w, r)
	}
}

func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Error().Err(err).Msg("error closing redis client")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Error().Err(err).Msg("error closing database")
		}
	}
}
