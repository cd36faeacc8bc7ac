package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

const attemptsHeader = "x-attempts"

// Publisher sends job bodies to the topic exchange.
type Publisher struct {
	conn     *amqp091.Connection
	exchange string
	log      *slog.Logger
}

// NewPublisher declares the exchange and returns a publisher over the
// connection.
func NewPublisher(log *slog.Logger, conn *amqp091.Connection, exchange string) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, err
	}
	return &Publisher{conn: conn, exchange: exchange, log: log}, nil
}

// Publish marshals body and sends it under the routing key.
func (p *Publisher) Publish(ctx context.Context, key string, body any) error {
	return p.publish(ctx, key, body, 1)
}

func (p *Publisher) publish(ctx context.Context, key string, body any, attempt int) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx, p.exchange, key, false, false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    uuid.NewString(),
			Timestamp:    time.Now(),
			Headers:      amqp091.Table{attemptsHeader: int32(attempt)},
			Body:         encoded,
		})
	if err == nil {
		p.log.Debug("published", slog.String("key", key), slog.Int("attempt", attempt))
	}
	return err
}
