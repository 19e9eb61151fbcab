// Package payment turns checkout requests into gateway redirect URLs and
// verified gateway webhooks into issued licenses.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"github.com/umarmf343/PhantomViews/internal/license"
	"github.com/umarmf343/PhantomViews/internal/tracing"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Gateway names.
const (
	GatewayPaystack    = "paystack"
	GatewayFlutterwave = "flutterwave"
	GatewayStripe      = "stripe"
)

// RequestTimeout bounds every outbound gateway call.
const RequestTimeout = 45 * time.Second

// maxResponseBytes caps how much of a gateway response is read.
const maxResponseBytes = 1 << 20

// CheckoutRequest describes one checkout to initialize.
type CheckoutRequest struct {
	Plan        license.Plan
	Email       string
	Amount      float64 // major currency units
	Currency    string
	SiteURL     string
	SiteName    string
	CallbackURL string
}

// Notification is the part of a verified webhook the reconciler acts on.
type Notification struct {
	Successful bool
	Email      string
	Plan       string
	// Reference identifies the payment at the provider. Empty when the
	// payload carries none.
	Reference string
}

// Gateway is a payment provider.
type Gateway interface {
	Name() string
	Configured() bool
	// Initialize starts a checkout and returns the URL to redirect the payer to.
	Initialize(ctx context.Context, req CheckoutRequest) (string, error)
	// Verify authenticates a webhook. It returns ErrMissingSignature or
	// ErrInvalidSignature and never inspects the payload content.
	Verify(body []byte, headers http.Header) error
	// Parse extracts the notification from a verified webhook body.
	Parse(body []byte) (Notification, error)
}

// Registry holds the gateways by name.
type Registry struct {
	gateways map[string]Gateway
}

// NewRegistry creates a registry. Later gateways replace earlier ones with the same name.
func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[string]Gateway, len(gateways))}
	for _, g := range gateways {
		r.gateways[g.Name()] = g
	}
	return r
}

// Get returns the named gateway, matching case-insensitively.
func (r *Registry) Get(name string) (Gateway, error) {
	g, ok := r.gateways[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGateway, name)
	}
	return g, nil
}

// Names lists the registered gateways in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.gateways))
	for name := range r.gateways {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func displayName(gateway string) string {
	switch gateway {
	case GatewayPaystack:
		return "Paystack"
	case GatewayFlutterwave:
		return "Flutterwave"
	case GatewayStripe:
		return "Stripe"
	}
	return gateway
}

// NewHTTPClient returns the client used for gateway calls: a 45s timeout
// and an otelhttp transport so each call is a child span.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout:   RequestTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// newBreaker trips after repeated transport failures or 5xx responses from a gateway.
func newBreaker(gateway string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        gateway,
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("gateway circuit breaker state change", "gateway", name, "from", from.String(), "to", to.String())
		},
	})
}

// apiClient posts JSON to a gateway REST API with bearer authentication.
type apiClient struct {
	gateway string
	baseURL string
	secret  string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

func newAPIClient(gateway, baseURL, secret string, client *http.Client) *apiClient {
	if client == nil {
		client = NewHTTPClient()
	}
	return &apiClient{
		gateway: gateway,
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		http:    client,
		breaker: newBreaker(gateway),
	}
}

type apiResponse struct {
	status int
	body   []byte
}

// postJSON sends payload to path and decodes the response into out.
// It returns the HTTP status. Transport failures and 5xx responses are
// returned as *GatewayError carrying fallback as the message.
func (c *apiClient) postJSON(ctx context.Context, operation, path string, payload, out any, fallback string) (status int, err error) {
	ctx, endSpan := tracing.StartGatewaySpan(ctx, c.gateway, operation)
	defer func() { endSpan(err) }()

	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("encode %s request: %w", c.gateway, err)
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if reqErr != nil {
			return nil, reqErr
		}
		req.Header.Set("Authorization", "Bearer "+c.secret)
		req.Header.Set("Content-Type", "application/json")

		resp, doErr := c.http.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		defer resp.Body.Close()

		data, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if readErr != nil {
			return nil, readErr
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("status %d", resp.StatusCode)
		}
		return apiResponse{status: resp.StatusCode, body: data}, nil
	})
	if err != nil {
		message := fallback
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			message = displayName(c.gateway) + " is temporarily unavailable. Please try again shortly."
		}
		return 0, &GatewayError{Gateway: c.gateway, Message: message, Err: err}
	}

	r := res.(apiResponse)
	if len(r.body) > 0 {
		// Error responses may not be JSON; callers fall back on status.
		_ = json.Unmarshal(r.body, out)
	}
	return r.status, nil
}

// withQuery appends params to rawURL, keeping any query it already has.
func withQuery(rawURL string, params map[string]string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
