package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestPacer_FirstCallImmediate(t *testing.T) {
	pacer := NewPacer(time.Second)
	ctx := context.Background()

	start := time.Now()
	if err := pacer.Wait(ctx); err != nil {
		t.Fatalf("Wait() returned unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("first Wait() took %v, want immediate", elapsed)
	}
}

func TestPacer_SpacesSuccessiveCalls(t *testing.T) {
	const interval = 50 * time.Millisecond
	pacer := NewPacer(interval)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := pacer.Wait(ctx); err != nil {
			t.Fatalf("Wait() returned unexpected error: %v", err)
		}
	}

	// first call free, two spaced intervals afterwards
	if elapsed := time.Since(start); elapsed < 2*interval {
		t.Errorf("three Waits took %v, want at least %v", elapsed, 2*interval)
	}
}

func TestPacer_DisabledInterval(t *testing.T) {
	pacer := NewPacer(0)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 10; i++ {
		if err := pacer.Wait(ctx); err != nil {
			t.Fatalf("Wait() returned unexpected error: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("disabled pacer blocked for %v", elapsed)
	}
}

func TestPacer_ContextCancellation(t *testing.T) {
	pacer := NewPacer(time.Minute)
	ctx, cancel := context.WithCancel(context.Background())

	if err := pacer.Wait(ctx); err != nil {
		t.Fatalf("Wait() returned unexpected error: %v", err)
	}

	cancel()
	if err := pacer.Wait(ctx); err == nil {
		t.Error("Wait() expected error for cancelled context, got nil")
	}
}
