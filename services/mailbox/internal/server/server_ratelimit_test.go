package server

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestLoginRateLimitRedis(t *testing.T) {
	redis := miniredis.RunT(t)
	ts := newTestServer(t, func(cfg *Config) {
		cfg.RedisAddr = redis.Addr()
		cfg.LoginRateLimitPerMinute = 1
	})
	body := map[string]string{"email": "nobody@example.com", "password": "secret123"}

	status, _ := ts.do(t, http.MethodPost, "/api/auth/login", "", body)
	if status != http.StatusUnauthorized {
		t.Fatalf("first login expected 401, got %d", status)
	}
	req, err := http.NewRequest(http.MethodPost, ts.srv.URL+"/api/auth/login", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second login expected 429, got %d", resp.StatusCode)
	}
	retry, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || retry < 1 {
		t.Fatalf("expected positive Retry-After, got %q", resp.Header.Get("Retry-After"))
	}
}

func TestSignupRateLimitLocal(t *testing.T) {
	ts := newTestServer(t, func(cfg *Config) {
		cfg.SignupRateLimitPerMinute = 2
	})
	for i, want := range []int{http.StatusBadRequest, http.StatusBadRequest, http.StatusTooManyRequests} {
		status, env := ts.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "bad"})
		if status != want {
			t.Fatalf("attempt %d expected %d, got %d (%s)", i+1, want, status, env.Error)
		}
	}
}

func TestRateLimitFailsClosedWhenRedisDown(t *testing.T) {
	redis := miniredis.RunT(t)
	ts := newTestServer(t, func(cfg *Config) {
		cfg.RedisAddr = redis.Addr()
	})
	redis.Close()

	status, _ := ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "a@example.com", "password": "secret123"})
	if status != http.StatusTooManyRequests {
		t.Fatalf("expected 429 when redis is unavailable, got %d", status)
	}
}
