package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	pkgerrors "github.com/lensportal/lensportal-backend/pkg/errors"
)

type fakeLimiter struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newFakeLimiter() *fakeLimiter {
	return &fakeLimiter{counts: map[string]int64{}}
}

func (f *fakeLimiter) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[scope]++
	return f.counts[scope] <= limit, f.counts[scope], nil
}

func registrationRequest(email, ip string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/registrations", strings.NewReader(`{"email":"`+email+`","company_name":"Optica"}`))
	req.RemoteAddr = ip + ":5678"
	return req
}

func TestRateLimitRestoresBody(t *testing.T) {
	policy := RateLimitPolicy{Name: "registration", Window: time.Minute, IPLimit: 2, EmailLimit: 2}
	handler := RateLimit(policy, newFakeLimiter(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if !strings.Contains(string(body), `"email":"buyer@optica.test"`) {
			t.Fatalf("unexpected body: %s", string(body))
		}
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, registrationRequest("buyer@optica.test", "1.2.3.4"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
}

func TestRateLimitEmailLimitTriggers(t *testing.T) {
	policy := RateLimitPolicy{Name: "registration", Window: time.Minute, EmailLimit: 2}
	handler := RateLimit(policy, newFakeLimiter(), nil)(okHandler())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		// Case and whitespace differences count against the same address.
		email := "Blocked@Optica.test"
		if i%2 == 0 {
			email = " blocked@optica.test"
		}
		handler.ServeHTTP(rec, registrationRequest(email, "10.0.0."+string(rune('1'+i))))

		if i < 2 && rec.Code != http.StatusOK {
			t.Fatalf("expected success before limit, got %d", rec.Code)
		}
		if i == 2 {
			if rec.Code != http.StatusTooManyRequests {
				t.Fatalf("expected 429, got %d", rec.Code)
			}
			if rec.Header().Get("Retry-After") != "60" {
				t.Fatalf("expected Retry-After 60, got %q", rec.Header().Get("Retry-After"))
			}
			var payload struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
				t.Fatalf("decode error: %v", err)
			}
			if payload.Error.Code != string(pkgerrors.CodeRateLimit) {
				t.Fatalf("unexpected code: %s", payload.Error.Code)
			}
		}
	}
}

func TestRateLimitIPLimitTriggers(t *testing.T) {
	policy := RateLimitPolicy{Name: "registration", Window: time.Minute, IPLimit: 1}
	handler := RateLimit(policy, newFakeLimiter(), nil)(okHandler())

	for i, email := range []string{"a@optica.test", "b@optica.test"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, registrationRequest(email, "5.6.7.8"))
		if i == 0 && rec.Code != http.StatusOK {
			t.Fatalf("expected success, got %d", rec.Code)
		}
		if i == 1 && rec.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429, got %d", rec.Code)
		}
	}
}

func TestRateLimitDisabledPolicyPassesThrough(t *testing.T) {
	handler := RateLimit(RateLimitPolicy{Name: "registration"}, newFakeLimiter(), nil)(okHandler())
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, registrationRequest("x@optica.test", "1.1.1.1"))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected pass-through, got %d", rec.Code)
		}
	}
}
