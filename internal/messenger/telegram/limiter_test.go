package telegram

import (
	"context"
	"testing"
	"time"
)

func TestLimiterSpacesSameRecipient(t *testing.T) {
	t.Parallel()

	l := newLimiter(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.wait(ctx, "42"); err != nil {
			t.Fatalf("wait #%d: %v", i+1, err)
		}
	}
	elapsed := time.Since(start)
	if elapsed < 100*time.Millisecond {
		t.Fatalf("three sends to one recipient finished in %v, want at least 100ms", elapsed)
	}
}

func TestLimiterIndependentRecipients(t *testing.T) {
	t.Parallel()

	l := newLimiter(time.Second)
	ctx := context.Background()

	start := time.Now()
	if err := l.wait(ctx, "1"); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if err := l.wait(ctx, "2"); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("different recipients must not queue behind each other, took %v", elapsed)
	}
}

func TestProvidersShareLimiterPerToken(t *testing.T) {
	t.Parallel()

	first := New(nil, "limiter-share-token")
	second := New(nil, "limiter-share-token")
	if first.limiter != second.limiter {
		t.Fatal("providers for the same token must share one limiter")
	}

	other := New(nil, "limiter-other-token")
	if first.limiter == other.limiter {
		t.Fatal("providers for different tokens must not share a limiter")
	}
}

func TestRecipientSpacingSurvivesProviderRebuild(t *testing.T) {
	t.Parallel()

	// Providers are rebuilt per send; a recipient's last-send time must
	// carry over to the next instance.
	first := New(nil, "limiter-rebuild-token")
	if err := first.limiter.wait(context.Background(), "777888"); err != nil {
		t.Fatalf("wait: %v", err)
	}

	second := New(nil, "limiter-rebuild-token")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := second.limiter.wait(ctx, "777888"); err == nil {
		t.Fatal("an immediate second send to the same recipient must wait out the interval")
	}
}

func TestLimiterRespectsContext(t *testing.T) {
	t.Parallel()

	l := newLimiter(time.Minute)
	ctx := context.Background()
	if err := l.wait(ctx, "7"); err != nil {
		t.Fatalf("wait: %v", err)
	}

	cancelled, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := l.wait(cancelled, "7"); err == nil {
		t.Fatal("expected a context error while waiting for the next slot")
	}
}
