package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/relaydesk/relaydesk/internal/downloader"
)

type countingProcessor struct {
	calls chan int
	fail  int
	seen  int
}

func (p *countingProcessor) Process(_ context.Context, _ downloader.Job) error {
	p.seen++
	p.calls <- p.seen
	if p.seen <= p.fail {
		return errors.New("fetch failed")
	}
	return nil
}

func scheduleInline(t *testing.T, failures int) *countingProcessor {
	t.Helper()
	proc := &countingProcessor{calls: make(chan int, MaxAttempts+1), fail: failures}
	inline := NewInlineDownloads(slog.New(slog.NewTextHandler(io.Discard, nil)), proc)
	job := downloader.Job{MessageID: 7, URL: "https://files.example/photo.jpg"}
	if err := inline.Schedule(context.Background(), job); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	return proc
}

func drainCalls(t *testing.T, proc *countingProcessor, want int) {
	t.Helper()
	for i := 0; i < want; i++ {
		select {
		case <-proc.calls:
		case <-time.After(2 * time.Second):
			t.Fatalf("attempt %d never ran", i+1)
		}
	}
	select {
	case n := <-proc.calls:
		t.Fatalf("unexpected extra attempt %d", n)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestInlineDownloadsStopAfterBudget(t *testing.T) {
	t.Parallel()

	proc := scheduleInline(t, MaxAttempts+5)
	drainCalls(t, proc, MaxAttempts)
}

func TestInlineDownloadsStopOnSuccess(t *testing.T) {
	t.Parallel()

	proc := scheduleInline(t, 1)
	drainCalls(t, proc, 2)
}
