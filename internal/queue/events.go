package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/relaydesk/relaydesk/internal/event"
)

const publishTimeout = 10 * time.Second

// EventRelay forwards domain events from the in-process hub to the broker
// so external consumers (notification workers, analytics) can subscribe.
// Event delivery is best-effort: a publish failure is logged and the event
// is dropped, never retried, because the hub has already moved on.
type EventRelay struct {
	hub       *event.Hub
	publisher *Publisher
	log       *slog.Logger

	cancel func()
	done   chan struct{}
	once   sync.Once
}

// NewEventRelay creates a hub-to-broker event relay.
func NewEventRelay(log *slog.Logger, hub *event.Hub, publisher *Publisher) *EventRelay {
	return &EventRelay{
		hub:       hub,
		publisher: publisher,
		log:       log.With(slog.String("service", "event_relay")),
		done:      make(chan struct{}),
	}
}

// Start subscribes to the hub and relays events until Stop is called.
func (r *EventRelay) Start() {
	events, cancel := r.hub.Subscribe()
	r.cancel = cancel
	go func() {
		defer close(r.done)
		for evt := range events {
			ctx, cancelPublish := context.WithTimeout(context.Background(), publishTimeout)
			err := r.publisher.Publish(ctx, string(evt.Type), evt)
			cancelPublish()
			if err != nil {
				r.log.Warn("event relay publish failed",
					slog.String("type", string(evt.Type)),
					slog.Any("error", err))
			}
		}
	}()
}

// Stop unsubscribes from the hub and waits for the relay loop to drain.
func (r *EventRelay) Stop() {
	r.once.Do(func() {
		if r.cancel != nil {
			r.cancel()
		}
		<-r.done
	})
}
