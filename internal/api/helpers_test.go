package api

import (
	"context"
	"testing"
	"time"

	"github.com/umarmf343/PhantomViews/internal/auth"
	"github.com/umarmf343/PhantomViews/internal/events"
	"github.com/umarmf343/PhantomViews/internal/kv"
	"github.com/umarmf343/PhantomViews/internal/license"
	"github.com/umarmf343/PhantomViews/internal/middleware"
)

// testNow is the fixed clock used by handler tests.
var testNow = time.Date(2025, time.January, 15, 10, 0, 0, 0, time.UTC)

func clock() time.Time { return testNow }

func kvStore() kv.Store { return kv.NewInMemoryStore() }

func nopPublisher() events.Publisher { return events.Nop{} }

func newTestEngine(t *testing.T) *license.Engine {
	t.Helper()
	return license.NewEngine(kvStore(), nopPublisher(), license.WithClock(clock))
}

func activate(t *testing.T, e *license.Engine, plan string) {
	t.Helper()
	if _, err := e.Activate(context.Background(), "TESTKEY123456789", plan); err != nil {
		t.Fatalf("Activate: %v", err)
	}
}

func adminContext() context.Context {
	return middleware.WithClaims(context.Background(), &auth.Claims{Email: "admin@example.com", Role: auth.RoleAdmin})
}
