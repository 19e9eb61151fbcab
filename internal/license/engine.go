package license

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/umarmf343/PhantomViews/internal/events"
	"github.com/umarmf343/PhantomViews/internal/kv"
	"github.com/umarmf343/PhantomViews/internal/validate"
)

// Engine owns the license state machine.
//
// Writes are serialized within the process; across processes the option
// store is last-write-wins per key, same as the record it replaces.
type Engine struct {
	mu        sync.Mutex
	pending   []events.Event // published by unlock, guarded by mu
	store     kv.Store
	events    events.Publisher
	validator RemoteValidator
	metrics   *Metrics
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithValidator overrides the remote validator.
func WithValidator(v RemoteValidator) Option {
	return func(e *Engine) { e.validator = v }
}

// WithMetrics records state changes in m.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates an Engine over store, publishing to pub.
func NewEngine(store kv.Store, pub events.Publisher, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		events:    pub,
		validator: AlwaysValid{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.events == nil {
		e.events = events.Nop{}
	}
	return e
}

// queue holds ev until the lock is released; subscribers never run under mu.
func (e *Engine) queue(ev events.Event) {
	e.pending = append(e.pending, ev)
}

// unlock releases mu, then publishes what the locked section queued.
func (e *Engine) unlock(ctx context.Context) {
	pending := e.pending
	e.pending = nil
	e.mu.Unlock()
	for _, ev := range pending {
		e.events.Publish(ctx, ev)
	}
}

// today is the current UTC date at midnight.
func (e *Engine) today() time.Time {
	y, m, d := e.now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (e *Engine) todayString() string {
	return e.today().Format(DateLayout)
}

// Activate stores key as the active license for plan. Unknown plans become yearly.
func (e *Engine) Activate(ctx context.Context, key string, plan string) (Result, error) {
	key = validate.Text(key)
	if key == "" {
		return Result{Success: false, Message: "License key cannot be empty."}, ErrEmptyKey
	}
	p := ParsePlan(plan, PlanYearly)
	expires := expiryFor(p, e.today())

	e.mu.Lock()
	defer e.unlock(ctx)

	writes := []struct{ k, v string }{
		{KeyLicenseKey, key},
		{KeyState, string(StateActive)},
		{KeyValid, "true"},
		{KeyPlan, string(p)},
		{KeyExpires, expires},
	}
	for _, w := range writes {
		if err := e.store.Set(ctx, w.k, w.v); err != nil {
			return Result{}, fmt.Errorf("activate license: %w", err)
		}
	}

	if e.metrics != nil {
		e.metrics.transition(StateActive)
	}
	slog.InfoContext(ctx, "license activated", "plan", p, "expires_at", expires)
	e.queue(events.Event{
		Type: events.LicenseActivated,
		Data: map[string]any{"license_key": key, "plan": string(p), "expires_at": expires},
	})

	return Result{Success: true, Message: "License activated successfully."}, nil
}

// Deactivate clears the license and marks it inactive.
func (e *Engine) Deactivate(ctx context.Context) (Result, error) {
	e.mu.Lock()
	defer e.unlock(ctx)

	if err := e.deactivateLocked(ctx); err != nil {
		return Result{}, err
	}
	return Result{Success: true, Message: "License deactivated."}, nil
}

func (e *Engine) deactivateLocked(ctx context.Context) error {
	if err := e.store.Delete(ctx, KeyValid); err != nil {
		return fmt.Errorf("deactivate license: %w", err)
	}
	if err := e.store.Set(ctx, KeyState, string(StateInactive)); err != nil {
		return fmt.Errorf("deactivate license: %w", err)
	}
	if err := e.store.Delete(ctx, KeyExpires, KeyPlan, KeyLicenseKey); err != nil {
		return fmt.Errorf("deactivate license: %w", err)
	}

	if e.metrics != nil {
		e.metrics.transition(StateInactive)
	}
	slog.InfoContext(ctx, "license deactivated")
	e.queue(events.Event{Type: events.LicenseDeactivated})
	return nil
}

// CheckExpiry marks the license expired once today is past its expiry date.
// The expired event fires only on the transition.
func (e *Engine) CheckExpiry(ctx context.Context) error {
	e.mu.Lock()
	defer e.unlock(ctx)
	return e.checkExpiryLocked(ctx)
}

func (e *Engine) checkExpiryLocked(ctx context.Context) error {
	expires, ok, err := e.store.Get(ctx, KeyExpires)
	if err != nil {
		return fmt.Errorf("check license expiry: %w", err)
	}
	// Dates compare correctly as strings in YYYY-MM-DD form.
	if !ok || expires == "" || e.todayString() <= expires {
		return nil
	}

	current, _, err := e.store.Get(ctx, KeyState)
	if err != nil {
		return fmt.Errorf("check license expiry: %w", err)
	}
	if err := e.store.Set(ctx, KeyState, string(StateExpired)); err != nil {
		return fmt.Errorf("expire license: %w", err)
	}
	if err := e.store.Set(ctx, KeyValid, "false"); err != nil {
		return fmt.Errorf("expire license: %w", err)
	}
	if State(current) == StateExpired {
		return nil
	}

	key, _, _ := e.store.Get(ctx, KeyLicenseKey)
	if e.metrics != nil {
		e.metrics.transition(StateExpired)
	}
	slog.InfoContext(ctx, "license expired", "expires_at", expires)
	e.queue(events.Event{
		Type: events.LicenseExpired,
		Data: map[string]any{"license_key": key, "expires_at": expires},
	})
	return nil
}

// State runs the expiry check and returns the current state.
func (e *Engine) State(ctx context.Context) (State, error) {
	e.mu.Lock()
	defer e.unlock(ctx)

	if err := e.checkExpiryLocked(ctx); err != nil {
		return "", err
	}
	return e.stateLocked(ctx)
}

func (e *Engine) stateLocked(ctx context.Context) (State, error) {
	v, ok, err := e.store.Get(ctx, KeyState)
	if err != nil {
		return "", fmt.Errorf("read license state: %w", err)
	}
	if !ok || v == "" {
		return StateInactive, nil
	}
	return State(v), nil
}

// HasProAccess reports whether premium features are unlocked: the license is
// valid, not past its expiry date, and active. It never writes, so a license
// past expiry that nobody has checked yet reads as active but not pro.
func (e *Engine) HasProAccess(ctx context.Context) (bool, error) {
	valid, _, err := e.store.Get(ctx, KeyValid)
	if err != nil {
		return false, fmt.Errorf("read license validity: %w", err)
	}
	if !truthy(valid) {
		return false, nil
	}

	expires, _, err := e.store.Get(ctx, KeyExpires)
	if err != nil {
		return false, fmt.Errorf("read license expiry: %w", err)
	}
	if expires != "" && e.todayString() > expires {
		return false, nil
	}

	state, _, err := e.store.Get(ctx, KeyState)
	if err != nil {
		return false, fmt.Errorf("read license state: %w", err)
	}
	return State(state) == StateActive, nil
}

// ValidateOnLogin asks the remote validator about the stored key and
// deactivates on an explicit invalid verdict. No key, no call.
func (e *Engine) ValidateOnLogin(ctx context.Context) error {
	key, _, err := e.store.Get(ctx, KeyLicenseKey)
	if err != nil {
		return fmt.Errorf("read license key: %w", err)
	}
	if key == "" {
		return nil
	}

	valid, err := e.validator.Validate(ctx, key)
	if err != nil {
		return fmt.Errorf("validate license: %w", err)
	}
	if valid {
		return nil
	}

	slog.WarnContext(ctx, "license rejected by remote validator")
	e.mu.Lock()
	defer e.unlock(ctx)
	return e.deactivateLocked(ctx)
}

// StoredPlan returns the plan of the current license, if any.
func (e *Engine) StoredPlan(ctx context.Context) (Plan, bool, error) {
	v, ok, err := e.store.Get(ctx, KeyPlan)
	if err != nil {
		return "", false, fmt.Errorf("read license plan: %w", err)
	}
	if !ok || v == "" {
		return "", false, nil
	}
	return Plan(v), true, nil
}

// Current returns the full stored record after the expiry check.
func (e *Engine) Current(ctx context.Context) (License, error) {
	state, err := e.State(ctx)
	if err != nil {
		return License{}, err
	}

	values := make(map[string]string, 4)
	for _, k := range []string{KeyLicenseKey, KeyPlan, KeyExpires, KeyValid} {
		v, _, err := e.store.Get(ctx, k)
		if err != nil {
			return License{}, fmt.Errorf("read %s: %w", k, err)
		}
		values[k] = v
	}

	return License{
		Key:       values[KeyLicenseKey],
		State:     state,
		Plan:      Plan(values[KeyPlan]),
		ExpiresAt: values[KeyExpires],
		Valid:     truthy(values[KeyValid]),
	}, nil
}

// Status summarizes the license for the admin screen.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	l, err := e.Current(ctx)
	if err != nil {
		return Status{}, err
	}
	pro, err := e.HasProAccess(ctx)
	if err != nil {
		return Status{}, err
	}

	s := Status{
		State:     l.State,
		Plan:      l.Plan,
		ExpiresAt: l.ExpiresAt,
		HasPro:    pro,
		MaskedKey: MaskKey(l.Key),
	}
	if exp, err := time.Parse(DateLayout, l.ExpiresAt); err == nil {
		days := int(exp.Sub(e.today()).Hours() / 24)
		if days < 0 {
			days = 0
		}
		s.DaysRemaining = days
	}
	if e.metrics != nil {
		e.metrics.observe(s.State)
	}
	return s, nil
}

func truthy(v string) bool {
	if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
		return b
	}
	return false
}
