package system

import (
	"testing"
	"time"
)

func TestClockNowIsCurrent(t *testing.T) {
	t.Parallel()

	clk := New()
	before := time.Now().Add(-time.Second)
	got := clk.Now()
	after := time.Now().Add(time.Second)

	if got.Before(before) || got.After(after) {
		t.Fatalf("expected %v to be between %v and %v", got, before, after)
	}
}

func TestClockDurationsAreNonNegative(t *testing.T) {
	t.Parallel()

	clk := New()
	first := clk.Now()
	second := clk.Now()
	if d := second.Sub(first); d < 0 {
		t.Fatalf("expected non-negative duration, got %v", d)
	}
}
