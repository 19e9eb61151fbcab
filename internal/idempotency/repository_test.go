package idempotency

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestInMemoryRepository_StoreAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("Get() error = %v, want %v", err, ErrKeyNotFound)
	}

	record := &Record{
		Key:                "checkout-1",
		Method:             "POST",
		Route:              "/checkout",
		ResponseBody:       `{"authorization_url":"https://pay"}`,
		ResponseStatusCode: 200,
	}
	if err := repo.Store(ctx, record); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	got, err := repo.Get(ctx, "checkout-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusCompleted {
		t.Errorf("Status = %q, want %q", got.Status, StatusCompleted)
	}
	if got.ResponseBody != record.ResponseBody {
		t.Errorf("ResponseBody = %q", got.ResponseBody)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	if err := repo.Store(ctx, record); !errors.Is(err, ErrKeyExists) {
		t.Errorf("duplicate Store() error = %v, want %v", err, ErrKeyExists)
	}
}

func TestInMemoryRepository_StoreInvalidKey(t *testing.T) {
	repo := NewInMemoryRepository()
	if err := repo.Store(context.Background(), &Record{Key: ""}); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Store() error = %v, want %v", err, ErrInvalidKey)
	}
}

func TestInMemoryRepository_ClaimLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()
	key := DeliveryKey("paystack", "ref-1")

	ok, err := repo.Claim(ctx, key, "/webhook/paystack")
	if err != nil || !ok {
		t.Fatalf("first Claim() = %v, %v", ok, err)
	}

	ok, err = repo.Claim(ctx, key, "/webhook/paystack")
	if err != nil || ok {
		t.Fatalf("second Claim() = %v, %v; want false", ok, err)
	}

	if err := repo.Release(ctx, key); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	ok, _ = repo.Claim(ctx, key, "/webhook/paystack")
	if !ok {
		t.Fatal("Claim() after Release should succeed")
	}

	// Completing a claim replaces it; a later release must not drop it.
	if err := repo.Store(ctx, &Record{Key: key, Route: "/webhook/paystack"}); err != nil {
		t.Fatalf("Store() over claim error = %v", err)
	}
	if err := repo.Release(ctx, key); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if _, err := repo.Get(ctx, key); err != nil {
		t.Errorf("completed record should survive Release, got %v", err)
	}
}

func TestInMemoryRepository_ClaimConcurrent(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := repo.Claim(ctx, "same", "/webhook/stripe"); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("expected exactly one winner, got %d", wins.Load())
	}
}

func TestInMemoryRepository_DeleteOlderThan(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	_ = repo.Store(ctx, &Record{Key: "old", CreatedAt: now.Add(-100 * time.Hour)})
	_ = repo.Store(ctx, &Record{Key: "new", CreatedAt: now.Add(-time.Hour)})

	deleted, err := repo.DeleteOlderThan(ctx, DefaultExpiry)
	if err != nil {
		t.Fatalf("DeleteOlderThan() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
	if _, err := repo.Get(ctx, "new"); err != nil {
		t.Errorf("recent record should remain: %v", err)
	}
}

func TestInMemoryRepository_Isolation(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()
	_ = repo.Store(ctx, &Record{Key: "k", ResponseBody: "original"})

	got, _ := repo.Get(ctx, "k")
	got.ResponseBody = "mutated"

	again, _ := repo.Get(ctx, "k")
	if again.ResponseBody != "original" {
		t.Errorf("stored record was mutated: %q", again.ResponseBody)
	}
}
