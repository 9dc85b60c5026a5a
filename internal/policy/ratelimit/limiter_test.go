package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/refhq/sourcescout/internal/metrics"
)

func init() {
	metrics.Init()
}

func TestWaitPacesSameHost(t *testing.T) {
	// 10 RPS with burst 1: the second token arrives ~100ms after the first.
	l := New(Config{RPS: 10, Burst: 1})
	ctx := context.Background()

	if err := l.Wait(ctx, "https://example.com/a"); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	start := time.Now()
	if err := l.Wait(ctx, "https://example.com/b"); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	if waited := time.Since(start); waited < 80*time.Millisecond {
		t.Errorf("expected the second fetch to wait ~100ms, waited %v", waited)
	}
}

func TestWaitDoesNotCoupleHosts(t *testing.T) {
	l := New(Config{RPS: 1, Burst: 1})
	ctx := context.Background()

	if err := l.Wait(ctx, "https://a.example.com/"); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	if err := l.Wait(ctx, "https://b.example.com/"); err != nil {
		t.Fatal(err)
	}
	if waited := time.Since(start); waited > 50*time.Millisecond {
		t.Errorf("second host blocked behind the first: waited %v", waited)
	}
}

func TestWaitHonorsContext(t *testing.T) {
	l := New(Config{RPS: 1, Burst: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := l.Wait(ctx, "https://slow.example.com/"); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	if err := l.Wait(ctx, "https://slow.example.com/"); err == nil {
		t.Fatal("expected a context error once the deadline passed")
	}
}

func TestZeroRPSDisablesPacing(t *testing.T) {
	l := New(Config{})
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 50; i++ {
		if err := l.Wait(ctx, "https://example.com/"); err != nil {
			t.Fatal(err)
		}
	}
	if waited := time.Since(start); waited > 50*time.Millisecond {
		t.Errorf("unlimited limiter still paced: %v", waited)
	}
}
