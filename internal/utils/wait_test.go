package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWaitForReturnsAfterSleep(t *testing.T) {
	var slept time.Duration
	orig := sleep
	sleep = func(d time.Duration) { slept = d }
	t.Cleanup(func() { sleep = orig })

	if err := WaitFor(context.Background(), 3*time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slept != 3*time.Second {
		t.Fatalf("expected sleep of 3s, got %s", slept)
	}
}

func TestWaitForHonoursCancelledContext(t *testing.T) {
	release := make(chan struct{})
	orig := sleep
	sleep = func(time.Duration) { <-release }
	t.Cleanup(func() {
		close(release)
		sleep = orig
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := WaitFor(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if err := WaitFor(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected zero wait to report cancellation, got %v", err)
	}
}

func TestBackoff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		base    time.Duration
		attempt int
		expect  time.Duration
	}{
		{base: time.Second, attempt: 0, expect: time.Second},
		{base: time.Second, attempt: 1, expect: 2 * time.Second},
		{base: time.Second, attempt: 3, expect: 8 * time.Second},
		{base: 0, attempt: 3, expect: 0},
		{base: time.Second, attempt: -1, expect: 0},
	}

	for _, tt := range tests {
		if got := Backoff(tt.base, tt.attempt); got != tt.expect {
			t.Fatalf("Backoff(%s, %d): expected %s, got %s", tt.base, tt.attempt, tt.expect, got)
		}
	}
}
