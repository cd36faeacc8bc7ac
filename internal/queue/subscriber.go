package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Handler processes one job body. A returned error redelivers the job
// until the attempt budget runs out.
type Handler func(ctx context.Context, body []byte) error

// republisher is the part of Publisher the retry path needs.
type republisher interface {
	publish(ctx context.Context, key string, body any, attempt int) error
}

// Subscriber consumes jobs from a durable queue bound to the exchange and
// runs them on a worker pool.
type Subscriber struct {
	conn       *amqp091.Connection
	ch         *amqp091.Channel
	exchange   string
	publisher  republisher
	log        *slog.Logger
	handlers   map[string]Handler
	msgChan    chan amqp091.Delivery
	done       chan struct{}
	wg         sync.WaitGroup
	once       sync.Once
	workerCnt  int
	jobTimeout time.Duration
}

// NewSubscriber declares the exchange and prepares a consumer with the
// given worker pool size.
func NewSubscriber(log *slog.Logger, conn *amqp091.Connection, exchange string, workerCnt int) (*Subscriber, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, err
	}
	publisher, err := NewPublisher(log, conn, exchange)
	if err != nil {
		ch.Close()
		return nil, err
	}
	if workerCnt <= 0 {
		workerCnt = 4
	}
	return &Subscriber{
		conn:       conn,
		ch:         ch,
		exchange:   exchange,
		publisher:  publisher,
		log:        log,
		handlers:   make(map[string]Handler),
		msgChan:    make(chan amqp091.Delivery, 64),
		done:       make(chan struct{}),
		workerCnt:  workerCnt,
		jobTimeout: 2 * time.Minute,
	}, nil
}

// RegisterHandler binds a routing key to a handler. Must be called before
// Start.
func (s *Subscriber) RegisterHandler(routingKey string, handler Handler) {
	s.handlers[routingKey] = handler
}

// Start declares the durable queue, binds registered keys, and launches
// the worker pool.
func (s *Subscriber) Start(queueName string) error {
	var startErr error
	s.once.Do(func() {
		if err := s.setupQueue(queueName); err != nil {
			startErr = err
			return
		}
		for i := 0; i < s.workerCnt; i++ {
			s.wg.Add(1)
			go s.workerLoop()
		}
		s.log.Info("subscriber started",
			slog.String("queue", queueName),
			slog.Int("workers", s.workerCnt))
	})
	return startErr
}

func (s *Subscriber) setupQueue(queueName string) error {
	if err := s.ch.Qos(10, 0, false); err != nil {
		return err
	}
	q, err := s.ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		return err
	}
	for key := range s.handlers {
		if err := s.ch.QueueBind(q.Name, key, s.exchange, false, nil); err != nil {
			return err
		}
	}
	msgs, err := s.ch.Consume(q.Name, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	go s.pump(msgs)
	return nil
}

// pump moves broker deliveries onto the worker channel. It closes msgChan
// on every exit path so the workers always unwind and Close never hangs
// on the wait group.
func (s *Subscriber) pump(msgs <-chan amqp091.Delivery) {
	defer close(s.msgChan)
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-msgs:
			if !ok {
				s.log.Error("broker delivery channel closed, consumption stopped")
				return
			}
			s.msgChan <- msg
		}
	}
}

func (s *Subscriber) workerLoop() {
	defer s.wg.Done()
	for msg := range s.msgChan {
		handler, ok := s.handlers[msg.RoutingKey]
		if !ok {
			s.log.Warn("no handler", slog.String("key", msg.RoutingKey))
			_ = msg.Nack(false, false)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
		err := handler(ctx, msg.Body)
		cancel()
		if err != nil {
			s.retry(msg, err)
			continue
		}
		_ = msg.Ack(false)
	}
}

// retry republishes a failed job with an incremented attempt counter, or
// drops it once the budget is spent. The original delivery is always acked
// so the broker never redelivers it itself.
func (s *Subscriber) retry(msg amqp091.Delivery, handlerErr error) {
	attempt := deliveryAttempt(msg)
	if attempt >= MaxAttempts {
		s.log.Error("job failed, attempts exhausted",
			slog.String("key", msg.RoutingKey),
			slog.Int("attempt", attempt),
			slog.Any("error", handlerErr))
		_ = msg.Ack(false)
		return
	}
	s.log.Warn("job failed, requeueing",
		slog.String("key", msg.RoutingKey),
		slog.Int("attempt", attempt),
		slog.Any("error", handlerErr))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var body any = json.RawMessage(msg.Body)
	if err := s.publisher.publish(ctx, msg.RoutingKey, body, attempt+1); err != nil {
		s.log.Error("requeue failed", slog.Any("error", err))
		_ = msg.Nack(false, true)
		return
	}
	_ = msg.Ack(false)
}

func deliveryAttempt(msg amqp091.Delivery) int {
	raw, ok := msg.Headers[attemptsHeader]
	if !ok {
		return 1
	}
	switch v := raw.(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 1
	}
}

// Close stops the workers and tears down the channel and connection.
func (s *Subscriber) Close() error {
	close(s.done)
	s.wg.Wait()
	_ = s.ch.Close()
	return s.conn.Close()
}
