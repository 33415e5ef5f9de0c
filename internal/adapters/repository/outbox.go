package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/AchilleasB/inrem/pulse-service/internal/core/domain"
	"github.com/AchilleasB/inrem/pulse-service/internal/core/ports"
)

const outboxAggregateType = "pulse_event"

func eventMessage(e domain.PulseEvent, eventType string, at time.Time) ports.PulseEventMessage {
	return ports.PulseEventMessage{
		EventID:    e.ID,
		UserID:     e.UserID,
		Type:       eventType,
		Status:     string(e.Status),
		Stage:      string(e.Stage),
		OccurredAt: at,
	}
}

// insertOutbox stores msg for the relay; the insert trigger sends the
// NOTIFY once the transaction commits.
func insertOutbox(ctx context.Context, tx *sql.Tx, msg ports.PulseEventMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO outbox_events (id, aggregate_type, aggregate_id, event_type, payload)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.NewString(), outboxAggregateType, msg.EventID, msg.Type, payload,
	)
	return err
}
