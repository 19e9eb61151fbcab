package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestCORS(t *testing.T) {
	handler := CORS(DefaultEditorCORS("https://tours.example.com"))(okHandler())

	tests := []struct {
		name       string
		method     string
		origin     string
		wantStatus int
		wantAllow  string
	}{
		{"same origin request", http.MethodPut, "", http.StatusOK, ""},
		{"allowed origin", http.MethodPut, "https://tours.example.com", http.StatusOK, "https://tours.example.com"},
		{"preflight", http.MethodOptions, "https://tours.example.com", http.StatusNoContent, "https://tours.example.com"},
		{"foreign origin", http.MethodPut, "https://evil.example", http.StatusForbidden, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/tours/1", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantAllow)
			}
		})
	}
}

func TestCORS_PreflightHeaders(t *testing.T) {
	handler := CORS(DefaultEditorCORS("https://tours.example.com/"))(okHandler())

	req := httptest.NewRequest(http.MethodOptions, "/license/activate", nil)
	req.Header.Set("Origin", "https://tours.example.com")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Error("expected credentials to be allowed")
	}
	if rr.Header().Get("Access-Control-Max-Age") != "600" {
		t.Errorf("Max-Age = %q", rr.Header().Get("Access-Control-Max-Age"))
	}
	if rr.Header().Get("Access-Control-Allow-Headers") == "" {
		t.Error("expected allowed headers")
	}
}

func TestCORS_DisabledWithoutOrigins(t *testing.T) {
	handler := CORS(CORSConfig{AllowedOrigins: []string{"*", " "}})(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://anywhere.example")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK || rr.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Errorf("wildcard-only config should disable CORS, got %d %q", rr.Code, rr.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestPublicCORS(t *testing.T) {
	handler := PublicCORS(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/tours/5/payload", nil)
	req.Header.Set("Origin", "https://blog.example")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("payload should be readable from any origin")
	}
	if rr.Header().Get("Access-Control-Allow-Credentials") != "" {
		t.Error("public routes must not allow credentials")
	}

	pre := httptest.NewRecorder()
	handler.ServeHTTP(pre, httptest.NewRequest(http.MethodOptions, "/tours/5/payload", nil))
	if pre.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", pre.Code)
	}
}
