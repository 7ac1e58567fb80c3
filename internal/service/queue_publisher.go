package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	q "github.com/iliyamo/sneak-radar/internal/queue"
)

// AMQPPublisher publishes hint events to RabbitMQ.  It dials per publish,
// which is plenty for the event rate of hint submissions and keeps the
// server independent of broker restarts.
type AMQPPublisher struct {
	URL   string
	Queue string
}

// NewAMQPPublisher returns a publisher for url, or NopPublisher when url
// is empty.
func NewAMQPPublisher(url string) EventPublisher {
	if url == "" {
		return NopPublisher{}
	}
	return &AMQPPublisher{URL: url, Queue: q.HintQueueName}
}

// Publish sends event to the hint queue as a persistent JSON message.
// Errors are returned so the caller can log them; the caller never fails
// a request because of them.
func (p *AMQPPublisher) Publish(ctx context.Context, event q.HintEvent) error {
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// Idempotent.  Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(p.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq queue declare: %w", err)
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    time.Now().UTC(),
		Type:         event.Type,
		Body:         body,
	}
	// Default exchange, routing key = queue name.
	if err := ch.PublishWithContext(ctx, "", p.Queue, false, false, pub); err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}
