package idempotency

import (
	"context"
	"sync"
	"time"
)

// InMemoryRepository implements Repository with in-memory storage.
type InMemoryRepository struct {
	mu   sync.RWMutex
	keys map[string]*Record
	now  func() time.Time
}

// NewInMemoryRepository creates a new in-memory idempotency repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		keys: make(map[string]*Record),
		now:  time.Now,
	}
}

// Get retrieves a record by key.
func (r *InMemoryRepository) Get(_ context.Context, key string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.keys[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	cp := *record
	return &cp, nil
}

// Store saves a completed record.
func (r *InMemoryRepository) Store(_ context.Context, record *Record) error {
	if err := ValidateKey(record.Key); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, exists := r.keys[record.Key]; exists && existing.Status != StatusProcessing {
		return ErrKeyExists
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = r.now()
	}
	if record.Status == "" {
		record.Status = StatusCompleted
	}

	cp := *record
	r.keys[record.Key] = &cp
	return nil
}

// Claim marks key as processing if nobody holds it.
func (r *InMemoryRepository) Claim(_ context.Context, key, route string) (bool, error) {
	if err := ValidateKey(key); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.keys[key]; exists {
		return false, nil
	}
	r.keys[key] = &Record{
		Key:       key,
		Route:     route,
		CreatedAt: r.now(),
		Status:    StatusProcessing,
	}
	return true, nil
}

// Release removes a processing claim. Completed records are left alone.
func (r *InMemoryRepository) Release(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.keys[key]; ok && existing.Status == StatusProcessing {
		delete(r.keys, key)
	}
	return nil
}

// DeleteOlderThan removes records created before now minus age.
func (r *InMemoryRepository) DeleteOlderThan(_ context.Context, age time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-age)
	var deleted int64
	for key, record := range r.keys {
		if record.CreatedAt.Before(cutoff) {
			delete(r.keys, key)
			deleted++
		}
	}
	return deleted, nil
}
