package ports

import (
	"context"
	"time"
)

const (
	EventPulseOpened    = "pulse.opened"
	EventPulseEscalated = "pulse.escalated"
	EventPulseResolved  = "pulse.resolved"
)

// PulseEventMessage is the outbox payload published for downstream consumers.
type PulseEventMessage struct {
	EventID    string    `json:"event_id"`
	UserID     string    `json:"user_id"`
	Type       string    `json:"type"`
	Status     string    `json:"status"`
	Stage      string    `json:"stage"`
	OccurredAt time.Time `json:"occurred_at"`
}

type PulseEventPublisher interface {
	PublishPulseEvent(ctx context.Context, evt PulseEventMessage) error
}
