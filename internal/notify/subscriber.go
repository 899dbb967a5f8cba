package notify

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/tribotech-apps/smart-order-webhook/internal/connections/rabbitmq"
	"github.com/tribotech-apps/smart-order-webhook/internal/domain"
	"github.com/tribotech-apps/smart-order-webhook/internal/logger"
)

// Deliverer hands one notification to the outside world (WhatsApp gateway,
// push provider). LogDeliverer is the default until a gateway is wired.
type Deliverer interface {
	Deliver(ctx context.Context, n domain.Notification) error
}

type LogDeliverer struct {
	lg *logger.Logger
}

func NewLogDeliverer(lg *logger.Logger) *LogDeliverer { return &LogDeliverer{lg: lg} }

func (d *LogDeliverer) Deliver(_ context.Context, n domain.Notification) error {
	d.lg.Info("notification_delivered", map[string]any{
		"channel": n.Channel, "target": n.Target, "order_id": n.OrderID, "body": n.Body,
	})
	return nil
}

// Subscriber drains the notifications queue and performs delivery.
type Subscriber struct {
	client    *rabbitmq.Client
	deliverer Deliverer
	lg        *logger.Logger
}

func NewSubscriber(client *rabbitmq.Client, deliverer Deliverer, lg *logger.Logger) *Subscriber {
	return &Subscriber{client: client, deliverer: deliverer, lg: lg}
}

func (s *Subscriber) Run(ctx context.Context) error {
	if err := DeclareTopology(s.client); err != nil {
		return err
	}

	ch := s.client.Channel()
	msgs, err := ch.Consume(Queue, "notification-subscriber", false, false, false, false, nil)
	if err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for d := range msgs {
			s.handle(ctx, d)
		}
	}()

	<-ctx.Done()
	s.lg.Info("graceful_shutdown", nil)
	_ = ch.Cancel("notification-subscriber", false)
	<-done
	return nil
}

func (s *Subscriber) handle(ctx context.Context, d amqp.Delivery) {
	var n domain.Notification
	if err := json.Unmarshal(d.Body, &n); err != nil {
		// Unparseable payloads cannot be retried.
		s.lg.Error("notification_malformed", err, nil)
		_ = d.Nack(false, false)
		return
	}

	if err := s.deliverer.Deliver(ctx, n); err != nil {
		// Delivery is best-effort: log and drop rather than loop forever.
		s.lg.Error("notification_delivery_failed", err, map[string]any{
			"channel": n.Channel, "target": n.Target, "order_id": n.OrderID,
		})
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}
