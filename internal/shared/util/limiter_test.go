package util

import (
	"context"
	"testing"
	"time"
)

func TestLimiter(t *testing.T) {
	l := NewLimiter(10, 2)

	if !l.Allow(1) {
		t.Error("expected first token to be allowed")
	}
	if !l.Allow(1) {
		t.Error("expected second token to be allowed (burst)")
	}
	if l.Allow(1) {
		t.Error("expected third token to be rejected (burst exhausted)")
	}

	time.Sleep(150 * time.Millisecond)
	if !l.Allow(1) {
		t.Error("expected token to be refilled after wait")
	}
}

func TestLimiterUnlimited(t *testing.T) {
	l := NewLimiter(0, 0)
	for i := 0; i < 1000; i++ {
		if !l.Allow(1) {
			t.Fatalf("event %d rejected by an unlimited limiter", i)
		}
	}
}

func TestLimiterRegistry(t *testing.T) {
	reg := NewLimiterRegistry(100, 10, 100*time.Millisecond)
	defer reg.Close()

	a := reg.Get("/src/a")
	b := reg.Get("/src/b")
	if a == b {
		t.Error("expected different limiters for different roots")
	}
	if reg.Get("/src/a") != a {
		t.Error("expected same limiter for same root")
	}

	time.Sleep(250 * time.Millisecond)
	if reg.Len() != 0 {
		t.Errorf("expected idle limiters to be dropped, %d left", reg.Len())
	}
	if reg.Get("/src/a") == a {
		t.Error("expected old limiter to be cleaned up and replaced")
	}
}

func TestLimiterRegistryClose(t *testing.T) {
	reg := NewLimiterRegistry(1, 1, time.Hour)
	reg.Close()
	reg.Close()
	if reg.Get("k") == nil {
		t.Fatal("Get must keep working after Close")
	}
}

func TestLimiter_Wait(t *testing.T) {
	l := NewLimiter(100, 1)
	l.Allow(1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	if err := l.Wait(ctx, 1); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if time.Since(start) < 5*time.Millisecond {
		t.Error("Wait returned too early")
	}
}
