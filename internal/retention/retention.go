// Package retention runs the scheduled sweep that closes chats idle beyond
// the configured window.
package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/relaydesk/relaydesk/internal/chat"
)

// Sweeper closes idle chats on a cron schedule.
type Sweeper struct {
	chats          *chat.Service
	schedule       string
	idleCloseAfter time.Duration
	cron           *cron.Cron
	logger         *slog.Logger
}

// New creates a sweeper. idleCloseAfter <= 0 disables the sweep.
func New(log *slog.Logger, chats *chat.Service, schedule string, idleCloseAfter time.Duration) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{
		chats:          chats,
		schedule:       schedule,
		idleCloseAfter: idleCloseAfter,
		logger:         log.With(slog.String("service", "retention")),
	}
}

// Start registers the cron entry and launches the scheduler.
func (s *Sweeper) Start() error {
	if s.idleCloseAfter <= 0 {
		s.logger.Info("idle chat sweep disabled")
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(s.schedule, s.sweep); err != nil {
		return err
	}
	c.Start()
	s.cron = c
	s.logger.Info("idle chat sweep scheduled",
		slog.String("schedule", s.schedule),
		slog.Duration("idle_close_after", s.idleCloseAfter))
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *Sweeper) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-s.idleCloseAfter)
	closed, err := s.chats.CloseIdleBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("idle chat sweep failed", slog.Any("error", err))
		return
	}
	if closed > 0 {
		s.logger.Info("idle chats closed", slog.Int64("count", closed))
	}
}
