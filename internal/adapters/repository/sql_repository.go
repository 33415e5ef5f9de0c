// Package repository is the PostgreSQL implementation of the pulse stores.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/AchilleasB/inrem/pulse-service/internal/core/domain"
	"github.com/AchilleasB/inrem/pulse-service/internal/core/ports"
)

type SQLRepository struct {
	db *sql.DB
}

var (
	_ ports.Directory          = (*SQLRepository)(nil)
	_ ports.PolicyRepository   = (*SQLRepository)(nil)
	_ ports.GuardianRepository = (*SQLRepository)(nil)
	_ ports.EventStore         = (*SQLRepository)(nil)
	_ ports.ActivityRepository = (*SQLRepository)(nil)
)

func NewSQLRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

// inTx runs fn in a transaction, committing only when fn succeeds.
func (r *SQLRepository) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *SQLRepository) GetPolicy(ctx context.Context, userID string) (*domain.MonitoringPolicy, error) {
	p := domain.MonitoringPolicy{UserID: userID}
	err := r.db.QueryRowContext(ctx, `
		SELECT threshold_hours, quiet_start, quiet_end, escalation_enabled, escalation_delay_minutes, is_active
		FROM monitoring_policies
		WHERE user_id = $1`, userID,
	).Scan(&p.ThresholdHours, &p.QuietStart, &p.QuietEnd, &p.EscalationEnabled, &p.EscalationDelayMinutes, &p.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *SQLRepository) SavePolicy(ctx context.Context, p domain.MonitoringPolicy) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO monitoring_policies
			(user_id, threshold_hours, quiet_start, quiet_end, escalation_enabled, escalation_delay_minutes, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			threshold_hours = EXCLUDED.threshold_hours,
			quiet_start = EXCLUDED.quiet_start,
			quiet_end = EXCLUDED.quiet_end,
			escalation_enabled = EXCLUDED.escalation_enabled,
			escalation_delay_minutes = EXCLUDED.escalation_delay_minutes,
			is_active = EXCLUDED.is_active`,
		p.UserID, p.ThresholdHours, p.QuietStart, p.QuietEnd, p.EscalationEnabled, p.EscalationDelayMinutes, p.IsActive,
	)
	return err
}
