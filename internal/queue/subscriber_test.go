package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

func TestDeliveryAttempt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		headers amqp091.Table
		want    int
	}{
		{"missing header is first attempt", nil, 1},
		{"int32 header", amqp091.Table{attemptsHeader: int32(2)}, 2},
		{"int64 header", amqp091.Table{attemptsHeader: int64(3)}, 3},
		{"unexpected type falls back", amqp091.Table{attemptsHeader: "two"}, 1},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := deliveryAttempt(amqp091.Delivery{Headers: tt.headers})
			if got != tt.want {
				t.Fatalf("deliveryAttempt = %d, want %d", got, tt.want)
			}
		})
	}
}

type fakeAcker struct {
	mu    sync.Mutex
	acks  int
	nacks int
}

func (f *fakeAcker) Ack(_ uint64, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acks++
	return nil
}

func (f *fakeAcker) Nack(_ uint64, _, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nacks++
	return nil
}

func (f *fakeAcker) Reject(_ uint64, _ bool) error { return nil }

type fakeRepublisher struct {
	mu       sync.Mutex
	attempts []int
	err      error
}

func (f *fakeRepublisher) publish(_ context.Context, _ string, _ any, attempt int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, attempt)
	return f.err
}

func testSubscriber(pub republisher) *Subscriber {
	return &Subscriber{
		publisher:  pub,
		log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		handlers:   make(map[string]Handler),
		msgChan:    make(chan amqp091.Delivery, 64),
		done:       make(chan struct{}),
		workerCnt:  2,
		jobTimeout: time.Second,
	}
}

func delivery(acker *fakeAcker, attempt int) amqp091.Delivery {
	return amqp091.Delivery{
		Acknowledger: acker,
		RoutingKey:   KeyInboundProcess,
		Body:         []byte(`{}`),
		Headers:      amqp091.Table{attemptsHeader: int32(attempt)},
	}
}

func TestRetryRepublishesWithNextAttempt(t *testing.T) {
	t.Parallel()

	pub := &fakeRepublisher{}
	s := testSubscriber(pub)
	acker := &fakeAcker{}

	s.retry(delivery(acker, 1), errors.New("transient"))
	s.retry(delivery(acker, 2), errors.New("transient"))

	if len(pub.attempts) != 2 || pub.attempts[0] != 2 || pub.attempts[1] != 3 {
		t.Fatalf("expected republishes with attempts [2 3], got %v", pub.attempts)
	}
	// The original deliveries are acked so the broker never redelivers.
	if acker.acks != 2 || acker.nacks != 0 {
		t.Fatalf("expected 2 acks and 0 nacks, got %d/%d", acker.acks, acker.nacks)
	}
}

func TestRetryDropsWhenBudgetSpent(t *testing.T) {
	t.Parallel()

	pub := &fakeRepublisher{}
	s := testSubscriber(pub)
	acker := &fakeAcker{}

	s.retry(delivery(acker, MaxAttempts), errors.New("still broken"))

	if len(pub.attempts) != 0 {
		t.Fatalf("attempt %d must not republish, got %v", MaxAttempts, pub.attempts)
	}
	if acker.acks != 1 {
		t.Fatalf("the spent delivery must be acked away, got %d acks", acker.acks)
	}
}

func TestRetryNacksWhenRepublishFails(t *testing.T) {
	t.Parallel()

	pub := &fakeRepublisher{err: errors.New("broker gone")}
	s := testSubscriber(pub)
	acker := &fakeAcker{}

	s.retry(delivery(acker, 1), errors.New("transient"))

	// The broker keeps the message when we cannot requeue it ourselves.
	if acker.nacks != 1 || acker.acks != 0 {
		t.Fatalf("expected 1 nack and 0 acks, got %d/%d", acker.nacks, acker.acks)
	}
}

func TestWorkersUnwindWhenBrokerChannelCloses(t *testing.T) {
	t.Parallel()

	s := testSubscriber(&fakeRepublisher{})
	for i := 0; i < s.workerCnt; i++ {
		s.wg.Add(1)
		go s.workerLoop()
	}
	msgs := make(chan amqp091.Delivery)
	go s.pump(msgs)

	// A dropped connection closes the consumer stream.
	close(msgs)

	stopped := make(chan struct{})
	go func() {
		close(s.done)
		s.wg.Wait()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("workers did not unwind after the broker channel closed")
	}
}

func TestWorkerAcksHandledDelivery(t *testing.T) {
	t.Parallel()

	s := testSubscriber(&fakeRepublisher{})
	handled := make(chan []byte, 1)
	s.RegisterHandler(KeyInboundProcess, func(_ context.Context, body []byte) error {
		handled <- body
		return nil
	})
	s.wg.Add(1)
	go s.workerLoop()
	msgs := make(chan amqp091.Delivery, 1)
	go s.pump(msgs)

	acker := &fakeAcker{}
	msgs <- delivery(acker, 1)

	select {
	case body := <-handled:
		if string(body) != `{}` {
			t.Fatalf("unexpected body %q", body)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("delivery never reached the handler")
	}

	close(s.done)
	s.wg.Wait()
	acker.mu.Lock()
	defer acker.mu.Unlock()
	if acker.acks != 1 {
		t.Fatalf("expected the handled delivery to be acked, got %d", acker.acks)
	}
}
