package system

import (
	"testing"
	"time"
)

func TestNowReturnsUTC(t *testing.T) {
	t.Parallel()

	clk := New()
	got := clk.Now()
	if got.Location() != time.UTC {
		t.Fatalf("expected UTC, got %v", got.Location())
	}
	if d := time.Since(got); d < 0 || d > time.Second {
		t.Fatalf("timestamp %v is not close to now", got)
	}
}

func TestNowDoesNotGoBackwards(t *testing.T) {
	t.Parallel()

	clk := New()
	first := clk.Now()
	second := clk.Now()
	if second.Before(first) {
		t.Fatalf("second reading %v precedes first %v", second, first)
	}
}
