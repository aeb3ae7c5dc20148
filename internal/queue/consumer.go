package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// FanOut is the work a consumed event triggers; in production it is the
// workflow's NotifyAdmins.
type FanOut func(ctx context.Context, requestID string) error

// StartRequestConsumer connects to RabbitMQ, declares the durable intake
// queue, and runs the fan-out for each event. It holds a reconnect loop with
// backoff and never returns under normal operation; failed events are
// rejected without requeue (the workflow's retry entry point covers them) so
// a poisoned message cannot loop forever.
func StartRequestConsumer(url string, fanOut FanOut) {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("request-consumer: dial failed: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if err := consumeLoop(conn, fanOut); err != nil {
			log.Printf("request-consumer: consume loop ended: %v; reconnecting", err)
			time.Sleep(2 * time.Second)
		}
	}
}

func consumeLoop(conn *amqp.Connection, fanOut FanOut) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(10, 0, false); err != nil {
		log.Printf("request-consumer: set QoS failed: %v", err)
	}
	if _, err := ch.QueueDeclare(requestQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(requestQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := handleMessage(d.Body, fanOut); err != nil {
			log.Printf("request-consumer: handle message failed: %v", err)
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func handleMessage(body []byte, fanOut FanOut) error {
	var ev RequestSubmittedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return fanOut(ctx, ev.RequestID)
}
