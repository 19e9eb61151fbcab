package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type testLogEntry struct {
	Level     string `json:"level"`
	Msg       string `json:"msg"`
	Method    string `json:"method"`
	Path      string `json:"path"`
	Status    int    `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Size      int    `json:"size"`
	RequestID string `json:"request_id"`
	User      string `json:"user"`
	ErrorCode string `json:"error_code"`
}

func runLogged(t *testing.T, h http.HandlerFunc, req *http.Request) testLogEntry {
	t.Helper()
	buf := &bytes.Buffer{}
	handler := RequestID(Logging(newTestLogger(buf))(h))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry testLogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v, log: %s", err, buf.String())
	}
	return entry
}

func TestLogging_BasicFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/tours/42/payload", nil)
	req.Header.Set(RequestIDHeader, "req-123")

	entry := runLogged(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hello"))
	}, req)

	if entry.Method != "GET" || entry.Path != "/tours/42/payload" {
		t.Errorf("unexpected method/path: %s %s", entry.Method, entry.Path)
	}
	if entry.Status != 200 {
		t.Errorf("status = %d, want 200", entry.Status)
	}
	if entry.Size != 5 {
		t.Errorf("size = %d, want 5", entry.Size)
	}
	if entry.RequestID != "req-123" {
		t.Errorf("request_id = %q, want req-123", entry.RequestID)
	}
	if entry.Level != "INFO" {
		t.Errorf("level = %s, want INFO", entry.Level)
	}
	if entry.Msg != "request completed" {
		t.Errorf("msg = %q", entry.Msg)
	}
}

func TestLogging_PicksUpValuesSetByInnerHandlers(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/tours/7", nil)

	entry := runLogged(t, func(w http.ResponseWriter, r *http.Request) {
		ctx := SetUser(r.Context(), "editor@example.com")
		ctx = SetErrorCode(ctx, "plan-upgrade-required")
		_ = ctx
		w.WriteHeader(http.StatusForbidden)
	}, req)

	if entry.User != "editor@example.com" {
		t.Errorf("user = %q, want editor@example.com", entry.User)
	}
	if entry.ErrorCode != "plan-upgrade-required" {
		t.Errorf("error_code = %q, want plan-upgrade-required", entry.ErrorCode)
	}
	if entry.Level != "WARN" {
		t.Errorf("level = %s, want WARN", entry.Level)
	}
}

func TestLogging_LevelsByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusFound, "INFO"},
		{http.StatusNotFound, "WARN"},
		{http.StatusBadGateway, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/license/status", nil)
			entry := runLogged(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}, req)
			if entry.Level != tt.level {
				t.Errorf("level = %s, want %s", entry.Level, tt.level)
			}
		})
	}
}

func TestLogging_ErrorCodeOmittedOnSuccess(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	entry := runLogged(t, func(w http.ResponseWriter, r *http.Request) {
		SetErrorCode(r.Context(), "should-not-appear")
		w.WriteHeader(http.StatusOK)
	}, req)
	if entry.ErrorCode != "" {
		t.Errorf("error_code = %q, want empty", entry.ErrorCode)
	}
}

func TestLogging_OnlyFirstStatusCounts(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	entry := runLogged(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.WriteHeader(http.StatusInternalServerError)
	}, req)
	if entry.Status != http.StatusCreated {
		t.Errorf("status = %d, want 201", entry.Status)
	}
}

func TestGetErrorCode_WithoutLogging(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := GetErrorCode(req.Context()); got != "" {
		t.Errorf("GetErrorCode() = %q, want empty", got)
	}
	ctx := SetErrorCode(req.Context(), "missing-email")
	if got := GetErrorCode(ctx); got != "missing-email" {
		t.Errorf("GetErrorCode() = %q, want missing-email", got)
	}
}

func TestNewLogger(t *testing.T) {
	for _, env := range []string{"production", "development", ""} {
		if NewLogger(env) == nil {
			t.Errorf("NewLogger(%q) returned nil", env)
		}
	}
}
