package worker

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AnalysisJob is the queue payload: just the session to analyze. The worker
// re-reads everything else from storage.
type AnalysisJob struct {
	SessionID string `json:"session_id"`
}

// Connect dials the broker and proves a channel can be opened before the
// server starts taking uploads that depend on it.
func Connect(url string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq failed: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	_ = ch.Close()

	return conn, nil
}

// Publisher enqueues analysis jobs. A fresh channel per publish keeps it
// safe to share across handlers.
type Publisher struct {
	conn  *amqp.Connection
	queue string
}

func NewPublisher(conn *amqp.Connection, queue string) *Publisher {
	return &Publisher{conn: conn, queue: queue}
}

func (p *Publisher) EnqueueAnalysis(ctx context.Context, sessionID string) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue failed: %w", err)
	}

	payload, err := json.Marshal(AnalysisJob{SessionID: sessionID})
	if err != nil {
		return fmt.Errorf("marshal job failed: %w", err)
	}

	err = ch.PublishWithContext(
		ctx,
		"",
		p.queue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("publish job failed: %w", err)
	}

	return nil
}
