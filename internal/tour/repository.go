package tour

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrTourNotFound is returned when a tour does not exist in the content store.
var ErrTourNotFound = errors.New("tour not found")

// Repository is the content store for tours. Implementations write all six
// blobs of a tour as one unit.
type Repository interface {
	Create(ctx context.Context, t *Tour) error
	Get(ctx context.Context, id string) (*Tour, error)
	Exists(ctx context.Context, id string) (bool, error)
	SaveContent(ctx context.Context, id string, c Content) error
}

// InMemoryRepository implements Repository with in-memory storage.
// Used for development and tests.
type InMemoryRepository struct {
	mu    sync.RWMutex
	tours map[string]*Tour
	now   func() time.Time
}

// NewInMemoryRepository creates a new in-memory tour repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		tours: make(map[string]*Tour),
		now:   time.Now,
	}
}

// Create stores a new tour, assigning an ID when none is set.
func (r *InMemoryRepository) Create(ctx context.Context, t *Tour) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	now := r.now()
	t.UpdatedAt = &now

	stored := t.Clone()
	stored.Apply(t.Content().Normalize())
	r.tours[t.ID] = stored
	return nil
}

// Get retrieves a tour by ID.
func (r *InMemoryRepository) Get(ctx context.Context, id string) (*Tour, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tours[id]
	if !ok {
		return nil, ErrTourNotFound
	}
	return t.Clone(), nil
}

// Exists reports whether a tour with the given ID exists.
func (r *InMemoryRepository) Exists(ctx context.Context, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.tours[id]
	return ok, nil
}

// SaveContent replaces the six metadata blobs of an existing tour.
func (r *InMemoryRepository) SaveContent(ctx context.Context, id string, c Content) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tours[id]
	if !ok {
		return ErrTourNotFound
	}

	updated := t.Clone()
	updated.Apply(c.Normalize())
	now := r.now()
	updated.UpdatedAt = &now
	r.tours[id] = updated
	return nil
}
