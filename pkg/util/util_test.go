package util

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"mailtriage/pkg/circuitbreaker"
)

func TestClassifyError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"breaker", fmt.Errorf("summarize: %w", circuitbreaker.ErrCircuitBreakerOpen), "circuit_open"},
		{"deadline", fmt.Errorf("fetch: %w", context.DeadlineExceeded), "timeout"},
		{"canceled", context.Canceled, "context_canceled"},
		{"no rows", fmt.Errorf("load: %w", pgx.ErrNoRows), "not_found"},
		{"not found text", errors.New("record not found"), "not_found"},
		{"unavailable", errors.New("advisor unavailable"), "unavailable"},
		{"login", errors.New("imap login: bad credentials"), "auth_error"},
		{"other", errors.New("weird"), "unknown_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyError(tc.err); got != tc.want {
				t.Fatalf("ClassifyError(%v): got %q, want %q", tc.err, got, tc.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(context.DeadlineExceeded) {
		t.Error("deadline should be retryable")
	}
	if IsRetryable(pgx.ErrNoRows) {
		t.Error("no rows should not be retryable")
	}
}

func TestJWTRoundTrip(t *testing.T) {
	token, err := GenerateJWT("ops", "secret", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	sub, err := ParseJWT(token, "secret")
	if err != nil || sub != "ops" {
		t.Fatalf("ParseJWT: got (%q, %v), want ops", sub, err)
	}
	if _, err := ParseJWT(token, "other"); err == nil {
		t.Fatal("expected signature error with wrong secret")
	}
}

func TestJWTExpired(t *testing.T) {
	token, err := GenerateJWT("ops", "secret", time.Nanosecond)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	time.Sleep(1100 * time.Millisecond)
	if _, err := ParseJWT(token, "secret"); err == nil {
		t.Fatal("expected expired token error")
	}
}

func TestExtractToken(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	if ExtractToken(r) != "" {
		t.Fatal("no header should yield empty token")
	}
	r.Header.Set("Authorization", "Bearer abc")
	if got := ExtractToken(r); got != "abc" {
		t.Fatalf("got %q, want abc", got)
	}
	r.Header.Set("Authorization", "Basic abc")
	if got := ExtractToken(r); got != "" {
		t.Fatalf("basic auth: got %q, want empty", got)
	}
}

func TestDeduperAllowsWhenRedisDown(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })

	d := NewDeduper(rdb, time.Minute, nil)
	if !d.AcquireOnce(context.Background(), "urgent_alert", "m1") {
		t.Fatal("deduper should allow processing when redis is unreachable")
	}
	d.Release(context.Background(), "urgent_alert", "m1")
}
