package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/parksys/parking-service/internal/core/ports"
)

var _ ports.SessionEventPublisher = (*RabbitMQBroker)(nil)

// PublishSessionEvent sends evt to the session queue as persistent JSON.
// The AMQP type property carries the event type so consumers can route
// without decoding the body.
func (rmq *RabbitMQBroker) PublishSessionEvent(ctx context.Context, evt ports.SessionEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode session event: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	_, err = rmq.cb.Execute(func() (interface{}, error) {
		return nil, rmq.ch.PublishWithContext(
			ctx,
			"",            // exchange (default)
			rmq.queueName, // routing key == queue name
			false,         // mandatory
			false,         // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    evt.ID,
				Type:         string(evt.Type),
				Timestamp:    evt.OccurredAt,
				Body:         body,
			},
		)
	})
	return err
}
