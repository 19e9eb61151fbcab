// Package middleware provides HTTP middleware components for the PhantomViews API server.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"
)

// requestStateKey is the context key for the per-request log state.
type requestStateKey struct{}

// userKey is the context key for the authenticated user.
type userKey struct{}

// errorCodeKey is the context key for error code.
type errorCodeKey struct{}

// requestState collects fields that inner handlers learn after the logging
// middleware has already passed the request down. Handlers only see a derived
// context, so values must flow back through this shared holder.
type requestState struct {
	mu        sync.Mutex
	user      string
	errorCode string
}

func stateFrom(ctx context.Context) *requestState {
	s, _ := ctx.Value(requestStateKey{}).(*requestState)
	return s
}

// SetUser stores the authenticated user (email or subject) in the context.
// Called by the auth middleware after the token validates.
func SetUser(ctx context.Context, user string) context.Context {
	if s := stateFrom(ctx); s != nil {
		s.mu.Lock()
		s.user = user
		s.mu.Unlock()
	}
	return context.WithValue(ctx, userKey{}, user)
}

// GetUser retrieves the authenticated user from context. Returns empty string if not present.
func GetUser(ctx context.Context) string {
	if u, ok := ctx.Value(userKey{}).(string); ok {
		return u
	}
	return ""
}

// SetErrorCode stores an error code in the context.
// Handlers call this when writing an error response; the logging middleware
// picks the code up even though it holds the parent context.
func SetErrorCode(ctx context.Context, code string) context.Context {
	if s := stateFrom(ctx); s != nil {
		s.mu.Lock()
		s.errorCode = code
		s.mu.Unlock()
	}
	return context.WithValue(ctx, errorCodeKey{}, code)
}

// GetErrorCode retrieves the error code from context. Returns empty string if not present.
func GetErrorCode(ctx context.Context) string {
	if code, ok := ctx.Value(errorCodeKey{}).(string); ok {
		return code
	}
	if s := stateFrom(ctx); s != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.errorCode
	}
	return ""
}

// responseWriter wraps http.ResponseWriter to capture status code and response size.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int
	wroteHeader bool
}

// WriteHeader captures the status code before writing it.
// Only the first call counts, matching what actually reaches the client.
func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

// Write captures the response size and writes the data.
func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.wroteHeader = true
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// NewLogger creates an slog.Logger based on the environment.
// In production (env == "production"), it returns a JSON handler.
// Otherwise, it returns a text handler for development.
func NewLogger(env string) *slog.Logger {
	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}
	return slog.New(handler)
}

// Logging is a middleware that logs HTTP requests with structured fields:
// method, path, status, latency (ms), request ID, user (if present),
// response size, and error_code (for error responses).
//
// A panicking handler skips the log line; place a recovery middleware
// outside of this one if that matters.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			state := &requestState{}
			ctx := context.WithValue(r.Context(), requestStateKey{}, state)
			rw := newResponseWriter(w)

			next.ServeHTTP(rw, r.WithContext(ctx))

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rw.statusCode),
				slog.Int64("latency_ms", time.Since(start).Milliseconds()),
				slog.Int("size", rw.size),
			}

			if requestID := GetRequestID(r.Context()); requestID != "" {
				attrs = append(attrs, slog.String("request_id", requestID))
			}

			state.mu.Lock()
			user, errorCode := state.user, state.errorCode
			state.mu.Unlock()

			if user == "" {
				user = GetUser(r.Context())
			}
			if user != "" {
				attrs = append(attrs, slog.String("user", user))
			}

			if rw.statusCode >= 400 {
				if errorCode == "" {
					errorCode = GetErrorCode(r.Context())
				}
				if errorCode != "" {
					attrs = append(attrs, slog.String("error_code", errorCode))
				}
			}

			switch {
			case rw.statusCode >= 500:
				logger.LogAttrs(r.Context(), slog.LevelError, "request completed", attrs...)
			case rw.statusCode >= 400:
				logger.LogAttrs(r.Context(), slog.LevelWarn, "request completed", attrs...)
			default:
				logger.LogAttrs(r.Context(), slog.LevelInfo, "request completed", attrs...)
			}
		})
	}
}
