// Package account attaches issued license keys to the user accounts that paid for them.
package account

import (
	"context"
	"errors"
	"sync"

	"github.com/umarmf343/PhantomViews/internal/validate"
)

// ErrUserNotFound is returned when no account exists for an email.
var ErrUserNotFound = errors.New("user not found")

// User is an operator account known to the directory.
type User struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	LicenseKey string `json:"license_key,omitempty"`
}

// Directory looks up accounts by email.
type Directory interface {
	// AttachLicense records key on every account registered under email and
	// reports how many accounts were updated. Zero matches is not an error.
	AttachLicense(ctx context.Context, email, key string) (int, error)
}

// InMemoryDirectory is a Directory backed by a map keyed on normalized email.
type InMemoryDirectory struct {
	mu    sync.RWMutex
	users map[string][]*User
}

// NewInMemoryDirectory creates an empty directory.
func NewInMemoryDirectory() *InMemoryDirectory {
	return &InMemoryDirectory{users: make(map[string][]*User)}
}

// Add registers an account. Invalid emails are rejected.
func (d *InMemoryDirectory) Add(id, email string) error {
	normalized, err := validate.Email(email)
	if err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[normalized] = append(d.users[normalized], &User{ID: id, Email: normalized})
	return nil
}

// AttachLicense implements Directory.
func (d *InMemoryDirectory) AttachLicense(_ context.Context, email, key string) (int, error) {
	normalized := validate.SanitizeEmail(email)
	if normalized == "" {
		return 0, nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	users := d.users[normalized]
	for _, u := range users {
		u.LicenseKey = key
	}
	return len(users), nil
}

// Lookup returns copies of the accounts registered under email.
func (d *InMemoryDirectory) Lookup(email string) ([]User, error) {
	normalized := validate.SanitizeEmail(email)
	d.mu.RLock()
	defer d.mu.RUnlock()
	users := d.users[normalized]
	if len(users) == 0 {
		return nil, ErrUserNotFound
	}
	out := make([]User, len(users))
	for i, u := range users {
		out[i] = *u
	}
	return out, nil
}
