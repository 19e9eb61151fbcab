// Package events carries license domain events from the engine and the
// payment pipeline to whoever listens: audit logs, the admin websocket.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Event types.
const (
	LicenseActivated   = "license.activated"
	LicenseDeactivated = "license.deactivated"
	LicenseExpired     = "license.expired"
	LicenseIssued      = "license.issued"
)

// Event is a single domain event.
type Event struct {
	Type string         `json:"type"`
	At   time.Time      `json:"at"`
	Data map[string]any `json:"data,omitempty"`
}

// Publisher emits events.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// Handler receives published events. Handlers run synchronously on the
// publisher's goroutine and must not block.
type Handler func(ctx context.Context, e Event)

// Bus fans events out to subscribed handlers.
type Bus struct {
	mu       sync.RWMutex
	handlers map[int]Handler
	nextID   int
	now      func() time.Time
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[int]Handler), now: time.Now}
}

// Subscribe registers h and returns a function that removes it.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.handlers[id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
	}
}

// Publish stamps e with the current time if unset and delivers it to every handler.
func (b *Bus) Publish(ctx context.Context, e Event) {
	if e.At.IsZero() {
		e.At = b.now().UTC()
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, e)
	}
}

// unlogged lists event fields kept out of the logs: the key itself and the payer's address.
var unlogged = map[string]bool{"license_key": true, "email": true}

// LogHandler writes every event to the structured log.
func LogHandler(logger *slog.Logger) Handler {
	return func(ctx context.Context, e Event) {
		attrs := []any{"event", e.Type}
		for k, v := range e.Data {
			if unlogged[k] {
				continue
			}
			attrs = append(attrs, k, v)
		}
		logger.InfoContext(ctx, "domain event", attrs...)
	}
}

// Nop discards events.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) {}
