package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sony/gobreaker"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/webhook"
	"github.com/umarmf343/PhantomViews/internal/tracing"
)

// StripeSignatureHeader carries the Stripe webhook signature.
const StripeSignatureHeader = "Stripe-Signature"

// StripeConfig configures a StripeGateway.
type StripeConfig struct {
	APIKey        string
	WebhookSecret string
	HTTPClient    *http.Client
}

// SessionCreator creates Checkout Sessions. Tests substitute it.
type SessionCreator func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)

// StripeGateway uses hosted Checkout Sessions and signed webhook events.
type StripeGateway struct {
	cfg           StripeConfig
	createSession SessionCreator
	breaker       *gobreaker.CircuitBreaker
}

// NewStripeGateway creates the gateway with a client scoped to cfg.APIKey.
func NewStripeGateway(cfg StripeConfig) *StripeGateway {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = NewHTTPClient()
	}
	sc := client.New(cfg.APIKey, stripe.NewBackends(httpClient))
	return &StripeGateway{
		cfg:           cfg,
		createSession: sc.CheckoutSessions.New,
		breaker:       newBreaker(GatewayStripe),
	}
}

// Name implements Gateway.
func (g *StripeGateway) Name() string { return GatewayStripe }

// Configured implements Gateway.
func (g *StripeGateway) Configured() bool { return g.cfg.APIKey != "" }

// Initialize implements Gateway.
func (g *StripeGateway) Initialize(ctx context.Context, req CheckoutRequest) (checkoutURL string, err error) {
	if !g.Configured() {
		return "", &NotConfiguredError{Gateway: GatewayStripe}
	}
	const fallback = "Unable to create Stripe checkout session."

	ctx, endSpan := tracing.StartGatewaySpan(ctx, GatewayStripe, "checkout.session.create")
	defer func() { endSpan(err) }()

	plan := string(req.Plan)
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(req.Currency)),
				UnitAmount: stripe.Int64(MinorUnits(req.Amount)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(flutterwaveTitle),
					Description: stripe.String(flutterwaveDescription),
				},
			},
			Quantity: stripe.Int64(1),
		}},
		CustomerEmail: stripe.String(req.Email),
		SuccessURL:    stripe.String(withQuery(req.CallbackURL, map[string]string{"plan": plan})),
		CancelURL:     stripe.String(req.CallbackURL),
	}
	params.Context = ctx
	params.AddMetadata("plan", plan)
	params.AddMetadata("site_url", req.SiteURL)

	res, err := g.breaker.Execute(func() (interface{}, error) {
		sess, createErr := g.createSession(params)
		var stripeErr *stripe.Error
		if errors.As(createErr, &stripeErr) && stripeErr.HTTPStatusCode < http.StatusInternalServerError {
			// Request errors say nothing about gateway health.
			return createErr, nil
		}
		return sess, createErr
	})
	if err != nil {
		return "", &GatewayError{Gateway: GatewayStripe, Message: fallback, Err: err}
	}

	switch v := res.(type) {
	case error:
		message := fallback
		var stripeErr *stripe.Error
		if errors.As(v, &stripeErr) && stripeErr.Msg != "" {
			message = stripeErr.Msg
		}
		return "", &GatewayError{Gateway: GatewayStripe, Message: message, Err: v}
	case *stripe.CheckoutSession:
		if v == nil || v.URL == "" {
			return "", &GatewayError{Gateway: GatewayStripe, Message: fallback}
		}
		return v.URL, nil
	}
	return "", &GatewayError{Gateway: GatewayStripe, Message: fallback}
}

// Verify implements Gateway.
func (g *StripeGateway) Verify(body []byte, headers http.Header) error {
	signature := headers.Get(StripeSignatureHeader)
	if g.cfg.WebhookSecret == "" || signature == "" {
		return ErrMissingSignature
	}
	if err := webhook.ValidatePayloadWithTolerance(body, signature, g.cfg.WebhookSecret, webhook.DefaultTolerance); err != nil {
		if errors.Is(err, webhook.ErrNotSigned) {
			return ErrMissingSignature
		}
		return ErrInvalidSignature
	}
	return nil
}

// Parse implements Gateway. Only checkout.session.completed events with a
// paid session count as successful.
func (g *StripeGateway) Parse(body []byte) (Notification, error) {
	var event stripe.Event
	if err := json.Unmarshal(body, &event); err != nil {
		return Notification{}, err
	}
	if event.Type != stripe.EventTypeCheckoutSessionCompleted || event.Data == nil {
		return Notification{Reference: event.ID}, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return Notification{}, err
	}

	email := sess.CustomerEmail
	if sess.CustomerDetails != nil && sess.CustomerDetails.Email != "" {
		email = sess.CustomerDetails.Email
	}

	return Notification{
		Successful: sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		Email:      email,
		Plan:       sess.Metadata["plan"],
		Reference:  event.ID,
	}, nil
}
