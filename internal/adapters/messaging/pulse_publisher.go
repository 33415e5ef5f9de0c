package messaging

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/AchilleasB/inrem/pulse-service/internal/core/ports"
)

// PublishPulseEvent publishes evt as a persistent JSON message whose type
// header carries the event type, e.g. pulse.escalated.
func (rmq *RabbitMQBroker) PublishPulseEvent(ctx context.Context, evt ports.PulseEventMessage) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	// Respect context deadline
	if deadline, ok := ctx.Deadline(); ok {
		if time.Until(deadline) <= 0 {
			return ctx.Err()
		}
	}

	_, err = rmq.cb.Execute(func() (interface{}, error) {
		err := rmq.ch.PublishWithContext(
			ctx,
			"",            // exchange (default)
			rmq.queueName, // routing key == queue name
			false,         // mandatory
			false,         // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    evt.EventID + ":" + evt.Type,
				Type:         evt.Type,
				Timestamp:    evt.OccurredAt,
				Body:         body,
			},
		)
		return nil, err
	})
	return err
}
