// Package notify carries messages to customers (WhatsApp) and store staff
// (push). Delivery is fire-and-forget from the engine's point of view: a
// lost notification never fails the business operation that produced it.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/tribotech-apps/smart-order-webhook/internal/connections/rabbitmq"
	"github.com/tribotech-apps/smart-order-webhook/internal/domain"
)

const (
	Exchange = "notifications_topic"
	Queue    = "notifications_queue"
)

type Sender interface {
	Send(ctx context.Context, n domain.Notification) error
}

// AMQPSender publishes notifications for the subscriber process to deliver.
type AMQPSender struct {
	client *rabbitmq.Client
	source string
}

func NewAMQPSender(client *rabbitmq.Client, source string) *AMQPSender {
	return &AMQPSender{client: client, source: source}
}

// DeclareTopology sets up the exchange and queue. Idempotent; both
// publisher and subscriber call it so either may start first.
func DeclareTopology(client *rabbitmq.Client) error {
	ch := client.Channel()
	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", Exchange, err)
	}
	if _, err := ch.QueueDeclare(Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", Queue, err)
	}
	if err := ch.QueueBind(Queue, "notify.*", Exchange, false, nil); err != nil {
		return fmt.Errorf("bind %s: %w", Queue, err)
	}
	return nil
}

func (s *AMQPSender) Send(ctx context.Context, n domain.Notification) error {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	key := "notify." + n.Channel
	if err := s.client.Publish(sctx, Exchange, key, body, amqp.Table{
		"x-source": s.source,
	}); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}
