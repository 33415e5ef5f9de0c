package repository

import (
	"context"
	"database/sql"

	"github.com/AchilleasB/inrem/pulse-service/internal/core/domain"
)

// RecordSignal stores the signal and moves last_active_at in one transaction.
func (r *SQLRepository) RecordSignal(ctx context.Context, s domain.ActivitySignal) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE users SET last_active_at = $2 WHERE id = $1`, s.UserID, s.Timestamp)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return domain.ErrNotFound
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO activity_signals (id, user_id, signal_type, timestamp, device_info)
			VALUES ($1, $2, $3, $4, NULLIF($5, ''))`,
			s.ID, s.UserID, s.SignalType, s.Timestamp, s.DeviceInfo,
		)
		return err
	})
}

func (r *SQLRepository) RecentSignals(ctx context.Context, userID string, limit int) ([]domain.ActivitySignal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, signal_type, timestamp, COALESCE(device_info, '')
		FROM activity_signals
		WHERE user_id = $1
		ORDER BY timestamp DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ActivitySignal
	for rows.Next() {
		var s domain.ActivitySignal
		if err := rows.Scan(&s.ID, &s.UserID, &s.SignalType, &s.Timestamp, &s.DeviceInfo); err != nil {
			return nil, err
		}
		s.Timestamp = s.Timestamp.UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}
