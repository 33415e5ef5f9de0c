package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AchilleasB/inrem/pulse-service/internal/core/domain"
	"github.com/AchilleasB/inrem/pulse-service/internal/core/ports"
)

const eventColumns = `e.id, e.user_id, e.status, e.stage, e.created_at, e.soft_check_sent_at,
	e.guardian_notified_at, e.resolved_at, COALESCE(e.resolved_by, ''), COALESCE(e.resolution_method, '')`

func scanEvent(row rowScanner, extra ...any) (domain.PulseEvent, error) {
	var (
		e                              domain.PulseEvent
		softSent, notified, resolvedAt sql.NullTime
	)
	dest := append([]any{
		&e.ID, &e.UserID, &e.Status, &e.Stage, &e.CreatedAt, &softSent,
		&notified, &resolvedAt, &e.ResolvedBy, &e.ResolutionMethod,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return e, err
	}
	e.CreatedAt = e.CreatedAt.UTC()
	e.SoftCheckSentAt = nullTimePtr(softSent)
	e.GuardianNotifiedAt = nullTimePtr(notified)
	e.ResolvedAt = nullTimePtr(resolvedAt)
	return e, nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

// CreateEvent inserts the event and its pulse.opened outbox row. The partial
// unique index on OPEN events turns a concurrent duplicate into
// domain.ErrOpenEventExists.
func (r *SQLRepository) CreateEvent(ctx context.Context, e domain.PulseEvent) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO pulse_events
				(id, user_id, status, stage, created_at, soft_check_sent_at, guardian_notified_at,
				 resolved_at, resolved_by, resolution_method)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), NULLIF($10, ''))`,
			e.ID, e.UserID, e.Status, e.Stage, e.CreatedAt, e.SoftCheckSentAt, e.GuardianNotifiedAt,
			e.ResolvedAt, e.ResolvedBy, e.ResolutionMethod,
		)
		if err != nil {
			return translateError(err)
		}
		return insertOutbox(ctx, tx, eventMessage(e, ports.EventPulseOpened, e.CreatedAt))
	})
}

func (r *SQLRepository) FindOpenEvent(ctx context.Context, userID string) (*domain.PulseEvent, error) {
	e, err := scanEvent(r.db.QueryRowContext(ctx, `
		SELECT `+eventColumns+`
		FROM pulse_events e
		WHERE e.user_id = $1 AND e.status = 'open'`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *SQLRepository) FindEscalationCandidates(ctx context.Context) ([]domain.EscalationCandidate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+eventColumns+`, `+userColumns+`,
			p.threshold_hours, p.quiet_start, p.quiet_end, p.escalation_enabled, p.escalation_delay_minutes, p.is_active
		FROM pulse_events e
		JOIN users u ON u.id = e.user_id
		JOIN monitoring_policies p ON p.user_id = e.user_id
		WHERE e.status = 'open' AND e.stage = 'soft_check' AND p.escalation_enabled
		ORDER BY e.created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.EscalationCandidate
	for rows.Next() {
		var (
			c          domain.EscalationCandidate
			lastActive sql.NullTime
		)
		e, err := scanEvent(rows,
			&c.User.ID, &c.User.Email, &c.User.IsActive, &c.User.IsDeceased, &lastActive, &c.User.DeliveryToken, &c.User.CreatedAt,
			&c.Policy.ThresholdHours, &c.Policy.QuietStart, &c.Policy.QuietEnd,
			&c.Policy.EscalationEnabled, &c.Policy.EscalationDelayMinutes, &c.Policy.IsActive,
		)
		if err != nil {
			return nil, err
		}
		c.Event = e
		c.User.LastActiveAt = nullTimePtr(lastActive)
		c.Policy.UserID = c.User.ID
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateEvent persists a stage change. Only OPEN rows are touched, so an
// event resolved after it was read fails with domain.ErrEventNotOpen.
func (r *SQLRepository) UpdateEvent(ctx context.Context, e domain.PulseEvent) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE pulse_events
			SET stage = $2, guardian_notified_at = $3
			WHERE id = $1 AND status = 'open'`,
			e.ID, e.Stage, e.GuardianNotifiedAt,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			var status string
			err := tx.QueryRowContext(ctx, `SELECT status FROM pulse_events WHERE id = $1`, e.ID).Scan(&status)
			if errors.Is(err, sql.ErrNoRows) {
				return domain.ErrNotFound
			}
			if err != nil {
				return err
			}
			return domain.ErrEventNotOpen
		}

		at := e.CreatedAt
		if e.GuardianNotifiedAt != nil {
			at = *e.GuardianNotifiedAt
		}
		return insertOutbox(ctx, tx, eventMessage(e, ports.EventPulseEscalated, at))
	})
}

// ResolveEvents closes matching OPEN events, optionally refreshes the
// owner's activity and records one pulse.resolved outbox row per event, all
// in a single transaction.
func (r *SQLRepository) ResolveEvents(ctx context.Context, res domain.Resolution) (int, error) {
	if !res.Status.Terminal() {
		return 0, fmt.Errorf("%w: resolve to %s", domain.ErrInvalidTransition, res.Status)
	}

	var closed []domain.PulseEvent
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			UPDATE pulse_events e
			SET status = $2, resolved_at = $3, resolved_by = NULLIF($4, ''), resolution_method = NULLIF($5, '')
			WHERE e.user_id = $1 AND e.status = 'open' AND ($6::text = '' OR e.id = $6)
			RETURNING `+eventColumns,
			res.UserID, res.Status, res.At, res.ResolvedBy, res.Method, res.EventID,
		)
		if err != nil {
			return err
		}
		for rows.Next() {
			e, err := scanEvent(rows)
			if err != nil {
				rows.Close()
				return err
			}
			closed = append(closed, e)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		if res.TouchActivity {
			if _, err := tx.ExecContext(ctx, `UPDATE users SET last_active_at = $2 WHERE id = $1`, res.UserID, res.At); err != nil {
				return err
			}
		}

		for _, e := range closed {
			if err := insertOutbox(ctx, tx, eventMessage(e, ports.EventPulseResolved, res.At)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(closed), nil
}

func (r *SQLRepository) ListEvents(ctx context.Context, userID string, limit int) ([]domain.PulseEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+eventColumns+`
		FROM pulse_events e
		WHERE e.user_id = $1
		ORDER BY e.created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PulseEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
