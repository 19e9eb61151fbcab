package idempotency

import (
	"context"
	"log/slog"
	"time"
)

// DefaultExpiry is how long records are kept. Gateways stop retrying
// webhooks well within a day.
const DefaultExpiry = 72 * time.Hour

// CleanupOldKeys removes records older than expiry and returns how many went.
func CleanupOldKeys(ctx context.Context, repo Repository, expiry time.Duration) (int64, error) {
	deleted, err := repo.DeleteOlderThan(ctx, expiry)
	if err != nil {
		slog.ErrorContext(ctx, "failed to cleanup old idempotency keys", "error", err)
		return 0, err
	}

	if deleted > 0 {
		slog.InfoContext(ctx, "cleaned up old idempotency keys", "deleted", deleted, "older_than", expiry)
	}
	return deleted, nil
}

// RunPeriodicCleanup runs CleanupOldKeys every interval until ctx is cancelled.
// It blocks; run it in a goroutine.
func RunPeriodicCleanup(ctx context.Context, repo Repository, interval, expiry time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	_, _ = CleanupOldKeys(ctx, repo, expiry)

	for {
		select {
		case <-ticker.C:
			_, _ = CleanupOldKeys(ctx, repo, expiry)
		case <-ctx.Done():
			slog.Info("stopping idempotency cleanup")
			return
		}
	}
}
