package ratelimit

import (
	"testing"
	"time"
)

func TestLocalLimiterBurstThenRefill(t *testing.T) {
	l, err := NewLocalLimiter(3, time.Minute)
	if err != nil {
		t.Fatalf("new local limiter: %v", err)
	}
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if ok, _ := l.Allow("10.0.0.1"); !ok {
			t.Fatalf("request %d should pass", i+1)
		}
	}
	ok, retryAfter := l.Allow("10.0.0.1")
	if ok {
		t.Fatalf("fourth request should be blocked")
	}
	if retryAfter <= 0 || retryAfter > 20*time.Second {
		t.Fatalf("unexpected retry after %v", retryAfter)
	}

	now = now.Add(20 * time.Second)
	if ok, _ := l.Allow("10.0.0.1"); !ok {
		t.Fatalf("a token should refill after limit/window")
	}
}

func TestLocalLimiterEvictsIdleKeys(t *testing.T) {
	l, err := NewLocalLimiter(1, time.Second)
	if err != nil {
		t.Fatalf("new local limiter: %v", err)
	}
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	l.Allow("a")
	l.Allow("b")
	if l.Len() != 2 {
		t.Fatalf("expected two keys, got %d", l.Len())
	}
	now = now.Add(time.Minute)
	l.Allow("c")
	if l.Len() != 1 {
		t.Fatalf("expected idle keys to be evicted, got %d", l.Len())
	}
}

func TestNewLocalLimiterRejectsBadConfig(t *testing.T) {
	if _, err := NewLocalLimiter(0, time.Second); err == nil {
		t.Fatalf("expected error for zero limit")
	}
}
