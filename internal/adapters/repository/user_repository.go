package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/AchilleasB/inrem/pulse-service/internal/core/domain"
)

const userColumns = `u.id, u.email, u.is_active, u.is_deceased, u.last_active_at, COALESCE(u.fcm_token, ''), u.created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner, extra ...any) (domain.User, error) {
	var (
		u          domain.User
		lastActive sql.NullTime
	)
	dest := append([]any{&u.ID, &u.Email, &u.IsActive, &u.IsDeceased, &lastActive, &u.DeliveryToken, &u.CreatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return u, err
	}
	if lastActive.Valid {
		t := lastActive.Time.UTC()
		u.LastActiveAt = &t
	}
	return u, nil
}

func (r *SQLRepository) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = $1`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a user row. Accounts are owned by the identity
// service; this exists for seeding and tests.
func (r *SQLRepository) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, is_active, is_deceased, last_active_at, fcm_token, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)`,
		u.ID, u.Email, u.IsActive, u.IsDeceased, u.LastActiveAt, u.DeliveryToken, u.CreatedAt,
	)
	return err
}

func (r *SQLRepository) ListMonitoredUsers(ctx context.Context) ([]domain.MonitoredUser, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+userColumns+`,
			p.threshold_hours, p.quiet_start, p.quiet_end, p.escalation_enabled, p.escalation_delay_minutes, p.is_active
		FROM users u
		JOIN monitoring_policies p ON p.user_id = u.id
		WHERE u.is_active AND NOT u.is_deceased AND p.is_active
		ORDER BY u.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.MonitoredUser
	for rows.Next() {
		var p domain.MonitoringPolicy
		u, err := scanUser(rows,
			&p.ThresholdHours, &p.QuietStart, &p.QuietEnd, &p.EscalationEnabled, &p.EscalationDelayMinutes, &p.IsActive)
		if err != nil {
			return nil, err
		}
		p.UserID = u.ID
		out = append(out, domain.MonitoredUser{User: u, Policy: p})
	}
	return out, rows.Err()
}

func (r *SQLRepository) ListGuardians(ctx context.Context, wardID string) ([]domain.User, error) {
	return r.queryUsers(ctx, `
		SELECT `+userColumns+`
		FROM guardians g
		JOIN users u ON u.id = g.guardian_id
		WHERE g.ward_id = $1
		ORDER BY g.created_at`, wardID)
}

func (r *SQLRepository) ListWards(ctx context.Context, guardianID string) ([]domain.User, error) {
	return r.queryUsers(ctx, `
		SELECT `+userColumns+`
		FROM guardians g
		JOIN users u ON u.id = g.ward_id
		WHERE g.guardian_id = $1
		ORDER BY g.created_at`, guardianID)
}

func (r *SQLRepository) queryUsers(ctx context.Context, query string, args ...any) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *SQLRepository) SetDeliveryToken(ctx context.Context, userID, token string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET fcm_token = NULLIF($2, '') WHERE id = $1`, userID, token)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *SQLRepository) ClearDeliveryToken(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `UPDATE users SET fcm_token = NULL WHERE fcm_token = $1`, token)
	return err
}
