package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRateLimitConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     RateLimitConfig
		wantErr bool
	}{
		{"valid", RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Second}, false},
		{"zero requests", RateLimitConfig{RequestsPerWindow: 0, WindowDuration: time.Second}, true},
		{"zero window", RateLimitConfig{RequestsPerWindow: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	for _, cfg := range []RateLimitConfig{DefaultGlobalLimit(), DefaultCheckoutLimit(), WebhookLimit(0), WebhookLimit(30)} {
		if err := cfg.Validate(); err != nil {
			t.Errorf("default %+v invalid: %v", cfg, err)
		}
	}
	if WebhookLimit(0).RequestsPerWindow != 120 {
		t.Error("WebhookLimit(0) should fall back to 120/min")
	}
}

func TestInMemoryRateLimitStore_FixedWindow(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	cfg := RateLimitConfig{RequestsPerWindow: 3, WindowDuration: time.Minute}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if ok, _ := store.Allow(ctx, "k", cfg); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	ok, retry := store.Allow(ctx, "k", cfg)
	if ok {
		t.Fatal("4th request should be blocked")
	}
	if retry != 60 {
		t.Errorf("retryAfter = %d, want 60", retry)
	}

	if ok, _ := store.Allow(ctx, "other", cfg); !ok {
		t.Error("keys must not share buckets")
	}

	now = now.Add(time.Minute + time.Second)
	if ok, _ := store.Allow(ctx, "k", cfg); !ok {
		t.Error("new window should allow again")
	}
}

func TestInMemoryRateLimitStore_Cleanup(t *testing.T) {
	store := NewInMemoryRateLimitStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	cfg := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Second}

	store.Allow(context.Background(), "a", cfg)
	now = now.Add(2 * time.Second)
	store.Cleanup()

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.buckets) != 0 {
		t.Errorf("expected expired buckets removed, %d left", len(store.buckets))
	}
}

func TestIPKeyFunc(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": " 203.0.113.9 , 10.0.0.1"}, "10.0.0.2:1234", "203.0.113.9"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.7"}, "10.0.0.2:1234", "198.51.100.7"},
		{"remote addr", nil, "192.0.2.1:5555", "192.0.2.1"},
		{"ipv6 remote", nil, "[2001:db8::1]:443", "2001:db8::1"},
		{"no port", nil, "192.0.2.1", "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := IPKeyFunc()(req); got != tt.want {
				t.Errorf("IPKeyFunc() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUserKeyFunc(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:80"
	if got := UserKeyFunc()(req); got != "ip:192.0.2.1" {
		t.Errorf("anonymous key = %q", got)
	}

	req = req.WithContext(SetUser(req.Context(), "admin@example.com"))
	if got := UserKeyFunc()(req); got != "user:admin@example.com" {
		t.Errorf("user key = %q", got)
	}

	if got := PrefixedKeyFunc("webhook", IPKeyFunc())(req); got != "webhook:192.0.2.1" {
		t.Errorf("prefixed key = %q", got)
	}
}

func TestRateLimiter_Blocks(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	cfg := RateLimitConfig{RequestsPerWindow: 2, WindowDuration: time.Minute}
	handler := RateLimiter(NewInMemoryRateLimitStore(), cfg, IPKeyFunc(), m)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }),
	)

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/webhook/stripe", nil)
		req.RemoteAddr = "192.0.2.10:1000"
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, req)
	}

	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", last.Code)
	}
	if retry, err := strconv.Atoi(last.Header().Get("Retry-After")); err != nil || retry <= 0 {
		t.Errorf("Retry-After = %q", last.Header().Get("Retry-After"))
	}
	if last.Header().Get("X-RateLimit-Reset") == "" {
		t.Error("missing X-RateLimit-Reset")
	}
	if code, _ := decodeError(t, last.Body.Bytes()); code != "rate_limited" {
		t.Errorf("error code = %q, want rate_limited", code)
	}

	labels := map[string]string{"endpoint": "/webhook/{gateway}", "key_type": "ip"}
	if got := findMetric(t, reg, MetricRateLimitRequests, labels).GetCounter().GetValue(); got != 3 {
		t.Errorf("checks = %v, want 3", got)
	}
	if got := findMetric(t, reg, MetricRateLimitBlocked, labels).GetCounter().GetValue(); got != 1 {
		t.Errorf("blocked = %v, want 1", got)
	}
}

func TestRateLimiter_NilMetrics(t *testing.T) {
	cfg := RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute}
	handler := RateLimiter(NewInMemoryRateLimitStore(), cfg, IPKeyFunc(), nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
	)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
}
