package repository

import (
	"errors"

	"github.com/lib/pq"

	"github.com/AchilleasB/inrem/pulse-service/internal/core/domain"
)

const (
	pqUniqueViolation = "23505"
	pqCheckViolation  = "23514"
)

// translateError maps constraint violations to domain errors and passes
// everything else through.
func translateError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch {
	case pqErr.Code == pqUniqueViolation && pqErr.Constraint == "pulse_events_one_open":
		return domain.ErrOpenEventExists
	case pqErr.Code == pqUniqueViolation && pqErr.Constraint == "guardians_pair_unique":
		return domain.ErrDuplicateLink
	case pqErr.Code == pqCheckViolation && pqErr.Constraint == "guardians_not_self":
		return domain.ErrSelfInvite
	}
	return err
}
