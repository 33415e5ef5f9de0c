package repository

import (
	"context"

	"github.com/AchilleasB/inrem/pulse-service/internal/core/domain"
)

func (r *SQLRepository) CreateLink(ctx context.Context, link domain.GuardianLink) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO guardians (id, ward_id, guardian_id, alias, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)`,
		link.ID, link.WardID, link.GuardianID, link.Alias, link.CreatedAt,
	)
	return translateError(err)
}

func (r *SQLRepository) LinkExists(ctx context.Context, wardID, guardianID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM guardians WHERE ward_id = $1 AND guardian_id = $2)`,
		wardID, guardianID,
	).Scan(&exists)
	return exists, err
}

func (r *SQLRepository) DeleteLink(ctx context.Context, wardID, guardianID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM guardians WHERE ward_id = $1 AND guardian_id = $2`, wardID, guardianID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
