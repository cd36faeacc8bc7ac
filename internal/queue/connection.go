// Package queue moves webhook processing and attachment downloads off the
// request path through a RabbitMQ topic exchange. When no broker is
// configured the inline schedulers run the same jobs in-process.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

const (
	// Routing keys per job kind.
	KeyInboundProcess     = "inbound.process"
	KeyAttachmentDownload = "attachment.download"

	// MaxAttempts bounds redelivery of a failing job.
	MaxAttempts = 3

	maxDialDelay = 60 * time.Second
)

// DialOptions configures the broker connection.
type DialOptions struct {
	URL           string
	RetryAttempts int
	Delay         time.Duration
}

// Dial connects to RabbitMQ with exponential backoff, respecting context
// cancellation for graceful shutdown.
func Dial(ctx context.Context, log *slog.Logger, opts DialOptions) (*amqp091.Connection, error) {
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 5
	}
	if opts.Delay <= 0 {
		opts.Delay = time.Second
	}

	var lastErr error
	for i := 1; i <= opts.RetryAttempts; i++ {
		conn, err := amqp091.Dial(opts.URL)
		if err == nil {
			if i > 1 {
				log.Info("rabbit connected", slog.Int("attempt", i))
			}
			return conn, nil
		}
		lastErr = err

		sleep := opts.Delay * time.Duration(math.Pow(2, float64(i-1)))
		if sleep > maxDialDelay {
			sleep = maxDialDelay
		}
		log.Warn("rabbit dial failed",
			slog.Int("attempt", i),
			slog.Duration("sleep", sleep),
			slog.Any("error", err))

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("dial cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w",
		opts.RetryAttempts, lastErr)
}
