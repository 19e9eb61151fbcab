package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/umarmf343/PhantomViews/internal/idempotency"
)

// IdempotencyKeyHeader is the HTTP header name for idempotency keys.
const IdempotencyKeyHeader = "Idempotency-Key"

// IdempotentReplayHeader marks a response served from the idempotency cache.
const IdempotentReplayHeader = "Idempotent-Replayed"

type idempotencyKeyContextKey struct{}

// idempotencyResponseWriter tees the response so it can be cached.
type idempotencyResponseWriter struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
	written    bool
}

func (w *idempotencyResponseWriter) WriteHeader(statusCode int) {
	if !w.written {
		w.statusCode = statusCode
		w.written = true
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *idempotencyResponseWriter) Write(b []byte) (int, error) {
	w.written = true
	n, err := w.ResponseWriter.Write(b)
	w.body.Write(b[:n])
	return n, err
}

func (w *idempotencyResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// GetIdempotencyKey retrieves the idempotency key from context. Returns empty string if not present.
func GetIdempotencyKey(ctx context.Context) string {
	if key, ok := ctx.Value(idempotencyKeyContextKey{}).(string); ok {
		return key
	}
	return ""
}

// Idempotency replays cached responses for POST requests on the given routes
// that carry an Idempotency-Key header. Requests without the header pass
// through untouched. A key whose first request is still running gets 409.
// Only 2xx responses are cached; failures release the key for a retry.
// metrics may be nil.
func Idempotency(repo idempotency.Repository, routes map[string]bool, metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost || !routes[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(IdempotencyKeyHeader)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			if err := idempotency.ValidateKey(key); err != nil {
				if errors.Is(err, idempotency.ErrKeyTooLong) {
					writeError(w, r.Context(), http.StatusBadRequest, "idempotency_key_too_long", "Idempotency-Key is too long")
					return
				}
				writeError(w, r.Context(), http.StatusBadRequest, "invalid_idempotency_key", "Invalid Idempotency-Key format")
				return
			}

			ctx := context.WithValue(r.Context(), idempotencyKeyContextKey{}, key)
			r = r.WithContext(ctx)

			// Keys are scoped to the route so a checkout key can't replay elsewhere.
			scoped := r.URL.Path + ":" + key

			existing, err := repo.Get(ctx, scoped)
			switch {
			case err == nil && existing.Status == idempotency.StatusCompleted:
				slog.InfoContext(ctx, "replaying idempotent response", "key", key, "status", existing.ResponseStatusCode)
				metrics.IncIdempotency(r.URL.Path, IdempotencyReplayed)
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.Header().Set(IdempotentReplayHeader, "true")
				w.WriteHeader(existing.ResponseStatusCode)
				_, _ = w.Write([]byte(existing.ResponseBody))
				return
			case err == nil:
				metrics.IncIdempotency(r.URL.Path, IdempotencyConflict)
				writeError(w, ctx, http.StatusConflict, "idempotency_in_progress", "A request with this Idempotency-Key is still being processed")
				return
			case !errors.Is(err, idempotency.ErrKeyNotFound):
				slog.ErrorContext(ctx, "failed to check idempotency key", "key", key, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			claimed, err := repo.Claim(ctx, scoped, r.URL.Path)
			if err != nil {
				slog.ErrorContext(ctx, "failed to claim idempotency key", "key", key, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !claimed {
				metrics.IncIdempotency(r.URL.Path, IdempotencyConflict)
				writeError(w, ctx, http.StatusConflict, "idempotency_in_progress", "A request with this Idempotency-Key is still being processed")
				return
			}

			capture := &idempotencyResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(capture, r)

			if capture.statusCode < 200 || capture.statusCode >= 300 {
				metrics.IncIdempotency(r.URL.Path, IdempotencyReleased)
				if err := repo.Release(ctx, scoped); err != nil {
					slog.ErrorContext(ctx, "failed to release idempotency key", "key", key, "error", err)
				}
				return
			}

			responseBody := capture.body.String()
			record := &idempotency.Record{
				Key:                scoped,
				Method:             r.Method,
				Route:              r.URL.Path,
				Status:             idempotency.StatusCompleted,
				ResponseHash:       idempotency.ComputeResponseHash(responseBody),
				ResponseBody:       responseBody,
				ResponseStatusCode: capture.statusCode,
			}
			if err := repo.Store(ctx, record); err != nil {
				slog.ErrorContext(ctx, "failed to store idempotency key", "key", key, "error", err)
				return
			}
			metrics.IncIdempotency(r.URL.Path, IdempotencyStored)
		})
	}
}
