package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/umarmf343/PhantomViews/internal/license"
	"github.com/umarmf343/PhantomViews/internal/validate"
)

// Pricing holds the configured plan prices in major currency units.
type Pricing struct {
	Monthly  float64
	Yearly   float64
	Currency string
}

// Amount returns the price of plan. An unset price falls back to the other plan's.
func (p Pricing) Amount(plan license.Plan) float64 {
	if plan == license.PlanYearly {
		if p.Yearly > 0 {
			return p.Yearly
		}
		return p.Monthly
	}
	if p.Monthly > 0 {
		return p.Monthly
	}
	return p.Yearly
}

// Site identifies this installation to the gateways.
type Site struct {
	URL  string
	Name string
	// CallbackURL is where the payer lands after checkout. Defaults to URL.
	CallbackURL string
}

// CheckoutService starts gateway checkouts for license purchases.
type CheckoutService struct {
	gateways *Registry
	pricing  Pricing
	site     Site
	metrics  *Metrics
}

// NewCheckoutService creates the service. metrics may be nil.
func NewCheckoutService(gateways *Registry, pricing Pricing, site Site, metrics *Metrics) *CheckoutService {
	pricing.Currency = strings.ToUpper(strings.TrimSpace(pricing.Currency))
	if site.CallbackURL == "" {
		site.CallbackURL = site.URL
	}
	return &CheckoutService{gateways: gateways, pricing: pricing, site: site, metrics: metrics}
}

// Pricing returns the configured prices.
func (s *CheckoutService) Pricing() Pricing { return s.pricing }

// CreateCheckout returns the URL the payer should be redirected to.
// Plan defaults to monthly.
func (s *CheckoutService) CreateCheckout(ctx context.Context, gateway, plan, email string) (string, error) {
	gw, err := s.gateways.Get(gateway)
	if err != nil {
		return "", err
	}
	p := license.ParsePlan(plan, license.PlanMonthly)

	amount := s.pricing.Amount(p)
	if amount <= 0 {
		return "", fmt.Errorf("%s plan: %w", p, ErrInvalidAmount)
	}
	normalizedEmail, err := validate.Email(email)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEmail, err)
	}
	if !gw.Configured() {
		return "", &NotConfiguredError{Gateway: gw.Name()}
	}

	start := time.Now()
	checkoutURL, err := gw.Initialize(ctx, CheckoutRequest{
		Plan:        p,
		Email:       normalizedEmail,
		Amount:      amount,
		Currency:    s.pricing.Currency,
		SiteURL:     s.site.URL,
		SiteName:    s.site.Name,
		CallbackURL: s.site.CallbackURL,
	})
	if err != nil {
		outcome := "error"
		if errors.Is(err, ErrGateway) {
			outcome = "gateway_error"
		}
		s.metrics.observeCheckout(gw.Name(), outcome, time.Since(start))
		slog.WarnContext(ctx, "checkout initialization failed", "gateway", gw.Name(), "plan", p, "error", err)
		return "", err
	}

	s.metrics.observeCheckout(gw.Name(), "success", time.Since(start))
	slog.InfoContext(ctx, "checkout initialized", "gateway", gw.Name(), "plan", p)
	return checkoutURL, nil
}
