package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/umarmf343/PhantomViews/internal/account"
	"github.com/umarmf343/PhantomViews/internal/events"
	"github.com/umarmf343/PhantomViews/internal/idempotency"
	"github.com/umarmf343/PhantomViews/internal/license"
	"github.com/umarmf343/PhantomViews/internal/mail"
	"github.com/umarmf343/PhantomViews/internal/tracing"
	"github.com/umarmf343/PhantomViews/internal/validate"
)

// Webhook result statuses, as sent back to the gateway.
const (
	StatusIgnored          = "ignored"
	StatusMissingSignature = "missing-signature"
	StatusInvalidSignature = "invalid-signature"
	StatusMissingEmail     = "missing-email"
	StatusInProgress       = "in-progress"
	StatusLicenseIssued    = "license-issued"
)

// Result is the webhook response body.
type Result struct {
	Status     string `json:"status"`
	LicenseKey string `json:"license_key,omitempty"`
	Gateway    string `json:"gateway,omitempty"`
	Plan       string `json:"plan,omitempty"`
	// Replayed is set when a duplicate delivery returned the recorded result.
	Replayed bool `json:"-"`
}

// Activator activates a license key. *license.Engine implements it.
type Activator interface {
	Activate(ctx context.Context, key, plan string) (license.Result, error)
}

// Reconciler turns verified payment webhooks into issued licenses.
type Reconciler struct {
	gateways  *Registry
	licenses  Activator
	directory account.Directory
	mailer    mail.Sender
	events    events.Publisher
	ledger    idempotency.Repository
	metrics   *Metrics
	newKey    func() (string, error)
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithDirectory attaches issued keys to matching accounts.
func WithDirectory(d account.Directory) ReconcilerOption {
	return func(r *Reconciler) { r.directory = d }
}

// WithMailer emails issued keys to the payer.
func WithMailer(s mail.Sender) ReconcilerOption {
	return func(r *Reconciler) { r.mailer = s }
}

// WithPublisher publishes license.issued events.
func WithPublisher(p events.Publisher) ReconcilerOption {
	return func(r *Reconciler) { r.events = p }
}

// WithLedger records deliveries so duplicates replay their result.
func WithLedger(l idempotency.Repository) ReconcilerOption {
	return func(r *Reconciler) { r.ledger = l }
}

// WithReconcilerMetrics records webhook outcomes.
func WithReconcilerMetrics(m *Metrics) ReconcilerOption {
	return func(r *Reconciler) { r.metrics = m }
}

// WithKeyGenerator replaces license.GenerateKey.
func WithKeyGenerator(f func() (string, error)) ReconcilerOption {
	return func(r *Reconciler) { r.newKey = f }
}

// NewReconciler creates a Reconciler.
func NewReconciler(gateways *Registry, licenses Activator, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		gateways: gateways,
		licenses: licenses,
		events:   events.Nop{},
		newKey:   license.GenerateKey,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// HandleWebhook verifies, parses and acts on one webhook delivery.
//
// Signature failures return before the body is parsed. Unparseable or
// unsuccessful notifications are ignored without error.
func (r *Reconciler) HandleWebhook(ctx context.Context, gateway string, body []byte, headers http.Header) (res Result, err error) {
	ctx, endSpan := tracing.StartSpan(ctx, "payment.handle_webhook", attribute.String("payment.gateway", gateway))
	defer func() {
		tracing.SetAttributes(ctx, attribute.String("webhook.status", res.Status))
		endSpan(err)
	}()

	gw, err := r.gateways.Get(gateway)
	if err != nil {
		return Result{Status: StatusIgnored}, err
	}
	name := gw.Name()
	defer func() { r.metrics.observeWebhook(name, res.Status) }()

	if err := gw.Verify(body, headers); err != nil {
		status := StatusInvalidSignature
		if errors.Is(err, ErrMissingSignature) {
			status = StatusMissingSignature
		}
		slog.WarnContext(ctx, "webhook signature rejected", "gateway", name, "status", status)
		return Result{Status: status}, err
	}

	n, err := gw.Parse(body)
	if err != nil {
		slog.InfoContext(ctx, "webhook payload not understood, ignoring", "gateway", name, "error", err)
		return Result{Status: StatusIgnored}, nil
	}
	if !n.Successful {
		slog.InfoContext(ctx, "webhook for unsuccessful payment, ignoring", "gateway", name, "reference", n.Reference)
		return Result{Status: StatusIgnored}, nil
	}

	email := validate.SanitizeEmail(n.Email)
	if email == "" {
		return Result{Status: StatusMissingEmail}, ErrMissingEmail
	}
	plan := license.ParsePlan(n.Plan, license.PlanMonthly)

	if r.ledger == nil || n.Reference == "" {
		return r.issue(ctx, name, email, plan)
	}
	return r.issueOnce(ctx, name, n.Reference, email, plan)
}

// issueOnce issues at most one license per delivery reference.
func (r *Reconciler) issueOnce(ctx context.Context, gateway, reference, email string, plan license.Plan) (Result, error) {
	key := idempotency.DeliveryKey(gateway, reference)
	if err := idempotency.ValidateKey(key); err != nil {
		slog.WarnContext(ctx, "unusable delivery reference, processing without ledger", "gateway", gateway, "error", err)
		return r.issue(ctx, gateway, email, plan)
	}

	if res, ok := r.replay(ctx, key); ok {
		return res, nil
	}

	claimed, err := r.ledger.Claim(ctx, key, "webhook:"+gateway)
	if err != nil {
		return Result{}, fmt.Errorf("claim delivery %s: %w", key, err)
	}
	if !claimed {
		// Lost the race to another delivery of the same payment.
		if res, ok := r.replay(ctx, key); ok {
			return res, nil
		}
		return Result{Status: StatusInProgress}, ErrDeliveryInProgress
	}

	res, err := r.issue(ctx, gateway, email, plan)
	if err != nil {
		if relErr := r.ledger.Release(ctx, key); relErr != nil {
			slog.ErrorContext(ctx, "failed to release delivery claim", "key", key, "error", relErr)
		}
		return res, err
	}

	body, err := json.Marshal(res)
	if err != nil {
		return res, nil
	}
	record := &idempotency.Record{
		Key:                key,
		Method:             http.MethodPost,
		Route:              "webhook:" + gateway,
		CreatedAt:          time.Now().UTC(),
		Status:             idempotency.StatusCompleted,
		ResponseHash:       idempotency.ComputeResponseHash(string(body)),
		ResponseBody:       string(body),
		ResponseStatusCode: http.StatusOK,
	}
	if err := r.ledger.Store(ctx, record); err != nil {
		// The license is issued; a later duplicate may issue another.
		slog.ErrorContext(ctx, "failed to record delivery", "key", key, "error", err)
	}
	return res, nil
}

func (r *Reconciler) replay(ctx context.Context, key string) (Result, bool) {
	rec, err := r.ledger.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, idempotency.ErrKeyNotFound) {
			slog.WarnContext(ctx, "delivery ledger lookup failed", "key", key, "error", err)
		}
		return Result{}, false
	}
	if rec.Status != idempotency.StatusCompleted {
		return Result{}, false
	}
	var res Result
	if err := json.Unmarshal([]byte(rec.ResponseBody), &res); err != nil {
		slog.WarnContext(ctx, "unreadable delivery record", "key", key, "error", err)
		return Result{}, false
	}
	res.Replayed = true
	tracing.AddEvent(ctx, "delivery.replayed", attribute.String("delivery.key", key))
	slog.InfoContext(ctx, "duplicate delivery, replaying recorded result", "key", key)
	return res, true
}

// issue generates a key, activates it and notifies the payer. Only
// generation and activation can fail the delivery.
func (r *Reconciler) issue(ctx context.Context, gateway, email string, plan license.Plan) (Result, error) {
	key, err := r.newKey()
	if err != nil {
		return Result{}, fmt.Errorf("generate license key: %w", err)
	}

	if _, err := r.licenses.Activate(ctx, key, string(plan)); err != nil {
		return Result{}, fmt.Errorf("activate issued license: %w", err)
	}

	if r.directory != nil {
		n, err := r.directory.AttachLicense(ctx, email, key)
		if err != nil {
			slog.WarnContext(ctx, "failed to attach license to accounts", "gateway", gateway, "error", err)
		} else {
			slog.InfoContext(ctx, "license attached to accounts", "accounts", n)
		}
	}

	r.events.Publish(ctx, events.Event{
		Type: events.LicenseIssued,
		Data: map[string]any{
			"email":       email,
			"license_key": key,
			"plan":        string(plan),
			"gateway":     gateway,
		},
	})

	if r.mailer != nil {
		if err := r.mailer.Send(ctx, mail.LicenseMessage(email, key, string(plan))); err != nil {
			slog.WarnContext(ctx, "failed to email license key", "gateway", gateway, "error", err)
		}
	}

	r.metrics.observeIssued(gateway, string(plan))
	tracing.AddEvent(ctx, "license.issued", attribute.String("license.plan", string(plan)))
	slog.InfoContext(ctx, "license issued from payment", "gateway", gateway, "plan", plan, "key", license.MaskKey(key))

	return Result{
		Status:     StatusLicenseIssued,
		LicenseKey: key,
		Gateway:    gateway,
		Plan:       string(plan),
	}, nil
}
