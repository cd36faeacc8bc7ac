package telegram

import (
	"context"
	"sync"
	"time"
)

// limiter spaces messages per recipient. Telegram throttles bots that send
// more than one message per second to the same chat, so each recipient gets
// an independent send slot.
type limiter struct {
	mu       sync.Mutex
	interval time.Duration
	lastSend map[string]time.Time
}

func newLimiter(interval time.Duration) *limiter {
	return &limiter{
		interval: interval,
		lastSend: make(map[string]time.Time),
	}
}

// wait blocks until the recipient's next send slot or the context ends.
func (l *limiter) wait(ctx context.Context, recipient string) error {
	l.mu.Lock()
	now := time.Now()
	next := l.lastSend[recipient].Add(l.interval)
	if next.Before(now) {
		next = now
	}
	l.lastSend[recipient] = next
	l.mu.Unlock()

	delay := time.Until(next)
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
