package queue

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher publishes intake events to RabbitMQ. Errors are logged and
// returned so callers can ignore them without interrupting the main flow;
// the retry entry point on the workflow covers a lost handoff.
type Publisher struct {
	url     string
	timeout time.Duration
}

func NewPublisher(url string) *Publisher {
	return &Publisher{url: url, timeout: 10 * time.Second}
}

// RequestSubmitted satisfies service.Notifier.
func (p *Publisher) RequestSubmitted(requestID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	return p.publish(ctx, RequestSubmittedEvent{
		RequestID:   requestID,
		SubmittedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

func (p *Publisher) publish(ctx context.Context, event RequestSubmittedEvent) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		log.Printf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// Idempotent declare; durable so events survive broker restarts.
	if _, err := ch.QueueDeclare(requestQueueName, true, false, false, false, nil); err != nil {
		log.Printf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", requestQueueName, false, false, pub); err != nil {
		log.Printf("rabbitmq: publish failed: %v", err)
		return err
	}
	return nil
}
