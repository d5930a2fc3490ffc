package ratelimit

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

var (
	_ Limiter = (*FixedWindowLimiter)(nil)
	_ Limiter = (*LocalLimiter)(nil)
)

func TestFixedWindowLimiterRedis(t *testing.T) {
	redis := miniredis.RunT(t)
	limiter, err := NewRedisFixedWindowLimiter(redis.Addr(), "", "test:ratelimit", 2, time.Minute)
	if err != nil {
		t.Fatalf("new redis limiter: %v", err)
	}
	fixed := time.Date(2025, 1, 1, 10, 0, 15, 0, time.UTC)
	limiter.now = func() time.Time { return fixed }

	for i := 0; i < 2; i++ {
		if ok, _ := limiter.Allow("ip-1"); !ok {
			t.Fatalf("request %d should pass", i+1)
		}
	}
	ok, retryAfter := limiter.Allow("ip-1")
	if ok {
		t.Fatalf("third request should be blocked")
	}
	if retryAfter != 45*time.Second {
		t.Fatalf("retry after = %v, want 45s", retryAfter)
	}
	if ok, _ := limiter.Allow("ip-2"); !ok {
		t.Fatalf("other keys keep their own quota")
	}

	limiter.now = func() time.Time { return fixed.Add(time.Minute) }
	if ok, _ := limiter.Allow("ip-1"); !ok {
		t.Fatalf("next window should reset the quota")
	}
}

func TestFixedWindowLimiterRedisFailClosed(t *testing.T) {
	redis := miniredis.RunT(t)
	limiter, err := NewRedisFixedWindowLimiter(redis.Addr(), "", "test:ratelimit", 1, time.Second)
	if err != nil {
		t.Fatalf("new redis limiter: %v", err)
	}
	redis.Close()
	if ok, _ := limiter.Allow("ip-1"); ok {
		t.Fatalf("limiter should fail closed on redis errors")
	}
}

func TestFixedWindowLimiterRequiresRedisAddr(t *testing.T) {
	limiter, err := NewRedisFixedWindowLimiter("", "", "test:ratelimit", 1, time.Second)
	if err == nil || limiter != nil {
		t.Fatalf("expected constructor error for empty redis addr")
	}
}
