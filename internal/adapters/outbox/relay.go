// Package outbox relays committed pulse events from the outbox_events table
// to the message broker.
package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/AchilleasB/inrem/pulse-service/internal/config"
	"github.com/AchilleasB/inrem/pulse-service/internal/core/ports"
	"github.com/AchilleasB/inrem/pulse-service/internal/logging"
	"github.com/AchilleasB/inrem/pulse-service/internal/metrics"
)

const (
	// PostgreSQL NOTIFY/LISTEN configuration
	listenerMinReconnectInterval = 10 * time.Second
	listenerMaxReconnectInterval = time.Minute
	outboxChannelName            = "outbox_channel"

	eventProcessTimeout = 30 * time.Second
	batchProcessTimeout = 60 * time.Second

	healthCheckStaleThreshold = 5 * time.Minute

	defaultBatchSize    = 50
	defaultPollInterval = 30 * time.Second
)

// relayedTypes are the outbox event types forwarded to the broker. Anything
// else is marked processed without publishing.
var relayedTypes = map[string]bool{
	ports.EventPulseOpened:    true,
	ports.EventPulseEscalated: true,
	ports.EventPulseResolved:  true,
}

type Options struct {
	BatchSize    int
	PollInterval time.Duration
}

// Relay listens for PostgreSQL NOTIFY signals on the outbox_channel and
// publishes pulse events. A periodic sweep picks up anything a dropped
// notification missed.
type Relay struct {
	db            *sql.DB
	publisher     ports.PulseEventPublisher
	listener      *pq.Listener
	dbURL         string
	dbCB          *gobreaker.CircuitBreaker
	batchSize     int
	pollInterval  time.Duration
	lastProcessed atomic.Int64
	healthy       atomic.Bool
	log           zerolog.Logger
}

func NewRelay(db *sql.DB, dbURL string, publisher ports.PulseEventPublisher, opts Options) *Relay {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}

	r := &Relay{
		db:           db,
		dbURL:        dbURL,
		publisher:    publisher,
		dbCB:         config.NewCircuitBreaker(config.BreakerRelayPostgres),
		batchSize:    opts.BatchSize,
		pollInterval: opts.PollInterval,
		log:          logging.WithComponent("outbox-relay"),
	}
	r.lastProcessed.Store(time.Now().UnixNano())
	r.healthy.Store(true)
	return r
}

// IsHealthy reports liveness only. An open breaker is degraded but
// recoverable and does not count.
func (r *Relay) IsHealthy() bool {
	return r.healthy.Load()
}

// IsReady reports whether the relay can process events right now.
func (r *Relay) IsReady() bool {
	if r.dbCB.State() == gobreaker.StateOpen {
		return false
	}
	if time.Since(time.Unix(0, r.lastProcessed.Load())) > healthCheckStaleThreshold {
		return false
	}
	return r.healthy.Load()
}

func (r *Relay) markProgress() {
	r.lastProcessed.Store(time.Now().UnixNano())
	r.healthy.Store(true)
}

// Start blocks until ctx is cancelled.
func (r *Relay) Start(ctx context.Context) error {
	reportProblem := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			r.log.Error().Err(err).Msg("listener error")
		}
	}

	r.listener = pq.NewListener(r.dbURL, listenerMinReconnectInterval, listenerMaxReconnectInterval, reportProblem)
	defer r.listener.Close()

	if err := r.listener.Listen(outboxChannelName); err != nil {
		return err
	}

	r.log.Info().Str("channel", outboxChannelName).Msg("listening for notifications")

	// Catch up on anything committed while the relay was down.
	if err := r.processUnprocessedEvents(ctx); err != nil {
		r.log.Error().Err(err).Msg("error processing startup backlog")
	}

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("shutting down")
			return ctx.Err()

		case notification := <-r.listener.Notify:
			if notification == nil {
				r.log.Warn().Msg("received nil notification (reconnecting)")
				r.healthy.Store(false)
				continue
			}

			if err := r.processEventByID(ctx, notification.Extra); err != nil {
				r.log.Error().Err(err).Str("outbox_id", notification.Extra).Msg("error processing event")
			} else {
				r.markProgress()
			}

		case <-ticker.C:
			go r.listener.Ping()

			if err := r.processUnprocessedEvents(ctx); err != nil {
				r.log.Error().Err(err).Msg("error in periodic processing")
			} else {
				r.markProgress()
			}
		}
	}
}

type record struct {
	ID        string
	EventType string
	Payload   []byte
}

// handle publishes rec when its type is relayed. It reports whether the row
// should be marked processed; a publish failure leaves it for the next sweep.
func (r *Relay) handle(ctx context.Context, rec record) (bool, error) {
	if !relayedTypes[rec.EventType] {
		metrics.OutboxPublished.WithLabelValues(rec.EventType, metrics.OutcomeSkipped).Inc()
		return true, nil
	}

	var evt ports.PulseEventMessage
	if err := json.Unmarshal(rec.Payload, &evt); err != nil || evt.EventID == "" {
		if err == nil {
			err = errors.New("missing event_id")
		}
		// Bad data never becomes publishable; retrying it would loop forever.
		r.log.Warn().Err(err).Str("outbox_id", rec.ID).Msg("invalid payload, dropping")
		metrics.OutboxPublished.WithLabelValues(rec.EventType, metrics.OutcomeInvalid).Inc()
		return true, nil
	}
	if evt.Type == "" {
		evt.Type = rec.EventType
	}

	if err := r.publisher.PublishPulseEvent(ctx, evt); err != nil {
		metrics.OutboxPublished.WithLabelValues(rec.EventType, metrics.OutcomeFailure).Inc()
		return false, err
	}
	metrics.OutboxPublished.WithLabelValues(rec.EventType, metrics.OutcomeSuccess).Inc()
	return true, nil
}

func markProcessed(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := tx.ExecContext(ctx, `UPDATE outbox_events SET processed_at = NOW() WHERE id = $1`, id)
	return err
}

func (r *Relay) processEventByID(ctx context.Context, outboxID string) error {
	ctx, cancel := context.WithTimeout(ctx, eventProcessTimeout)
	defer cancel()

	_, err := r.dbCB.Execute(func() (interface{}, error) {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, err
		}
		defer tx.Rollback()

		var rec record
		err = tx.QueryRowContext(ctx, `
			SELECT id, event_type, payload
			FROM outbox_events
			WHERE id = $1 AND processed_at IS NULL
			FOR UPDATE SKIP LOCKED`, outboxID).Scan(&rec.ID, &rec.EventType, &rec.Payload)
		if errors.Is(err, sql.ErrNoRows) {
			// Already handled, or locked by a sweep in flight.
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		done, err := r.handle(ctx, rec)
		if err != nil {
			return nil, err
		}
		if done {
			if err := markProcessed(ctx, tx, rec.ID); err != nil {
				return nil, err
			}
		}
		return nil, tx.Commit()
	})
	return err
}

func (r *Relay) processUnprocessedEvents(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, batchProcessTimeout)
	defer cancel()

	_, err := r.dbCB.Execute(func() (interface{}, error) {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, err
		}
		defer tx.Rollback()

		rows, err := tx.QueryContext(ctx, `
			SELECT id, event_type, payload
			FROM outbox_events
			WHERE processed_at IS NULL
			ORDER BY created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED`, r.batchSize)
		if err != nil {
			return nil, err
		}

		var records []record
		for rows.Next() {
			var rec record
			if err := rows.Scan(&rec.ID, &rec.EventType, &rec.Payload); err != nil {
				rows.Close()
				return nil, err
			}
			records = append(records, rec)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}

		for _, rec := range records {
			done, err := r.handle(ctx, rec)
			if err != nil {
				r.log.Error().Err(err).Str("outbox_id", rec.ID).Msg("failed to publish event")
				continue
			}
			if !done {
				continue
			}
			if err := markProcessed(ctx, tx, rec.ID); err != nil {
				return nil, err
			}
			r.log.Debug().Str("outbox_id", rec.ID).Str("event_type", rec.EventType).Msg("processed event")
		}

		return nil, tx.Commit()
	})
	return err
}
