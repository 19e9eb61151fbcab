package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/umarmf343/PhantomViews/internal/auth"
	"github.com/umarmf343/PhantomViews/internal/payment"
)

// stubGateway is a payment.Gateway that records checkout requests.
type stubGateway struct {
	name       string
	configured bool
	url        string
	err        error

	mu       sync.Mutex
	requests []payment.CheckoutRequest
}

func (g *stubGateway) Name() string     { return g.name }
func (g *stubGateway) Configured() bool { return g.configured }

func (g *stubGateway) Initialize(_ context.Context, req payment.CheckoutRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	return g.url, g.err
}

func (g *stubGateway) Verify([]byte, http.Header) error { return nil }

func (g *stubGateway) Parse([]byte) (payment.Notification, error) {
	return payment.Notification{}, nil
}

func newCheckoutHandlers(gw *stubGateway, pricing payment.Pricing) (*CheckoutHandlers, *auth.NonceService) {
	nonces := auth.NewNonceService("nonce-secret")
	svc := payment.NewCheckoutService(payment.NewRegistry(gw), pricing, payment.Site{URL: "https://tours.example.com", Name: "Example Tours"}, nil)
	return NewCheckoutHandlers(svc, nonces), nonces
}

func postCheckout(h *CheckoutHandlers, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req = req.WithContext(adminContext())
	w := httptest.NewRecorder()
	h.CreateCheckout(w, req)
	return w
}

func decodeCheckout(t *testing.T, w *httptest.ResponseRecorder) CheckoutResponse {
	t.Helper()
	var resp CheckoutResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v: %s", err, w.Body.String())
	}
	return resp
}

func TestCreateCheckout(t *testing.T) {
	tests := []struct {
		name        string
		gateway     *stubGateway
		pricing     payment.Pricing
		form        url.Values
		badNonce    bool
		wantStatus  int
		wantMessage string
		wantURL     string
	}{
		{
			name:       "success",
			gateway:    &stubGateway{name: payment.GatewayPaystack, configured: true, url: "https://checkout.paystack.com/abc"},
			pricing:    testPricing,
			form:       url.Values{"action": {CheckoutAction}, "gateway": {"paystack"}, "plan": {"yearly"}, "email": {"buyer@example.com"}},
			wantStatus: http.StatusOK,
			wantURL:    "https://checkout.paystack.com/abc",
		},
		{
			name:        "bad nonce",
			gateway:     &stubGateway{name: payment.GatewayPaystack, configured: true, url: "https://x"},
			pricing:     testPricing,
			form:        url.Values{"gateway": {"paystack"}},
			badNonce:    true,
			wantStatus:  http.StatusForbidden,
			wantMessage: "Security check failed. Reload the page and try again.",
		},
		{
			name:        "missing gateway",
			gateway:     &stubGateway{name: payment.GatewayPaystack, configured: true},
			pricing:     testPricing,
			form:        url.Values{"plan": {"monthly"}},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Gateway is required.",
		},
		{
			name:        "unknown gateway",
			gateway:     &stubGateway{name: payment.GatewayPaystack, configured: true},
			pricing:     testPricing,
			form:        url.Values{"gateway": {"bitpay"}},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Unknown payment gateway.",
		},
		{
			name:        "keys not configured",
			gateway:     &stubGateway{name: payment.GatewayPaystack},
			pricing:     testPricing,
			form:        url.Values{"gateway": {"paystack"}},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Paystack API keys are not configured.",
		},
		{
			name:        "no price set",
			gateway:     &stubGateway{name: payment.GatewayPaystack, configured: true},
			pricing:     payment.Pricing{Currency: "NGN"},
			form:        url.Values{"gateway": {"paystack"}},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Set a price for the selected plan before generating a checkout.",
		},
		{
			name:        "gateway failure passes the message through",
			gateway:     &stubGateway{name: payment.GatewayPaystack, configured: true, err: &payment.GatewayError{Gateway: payment.GatewayPaystack, Message: "Invalid key"}},
			pricing:     testPricing,
			form:        url.Values{"gateway": {"paystack"}},
			wantStatus:  http.StatusBadGateway,
			wantMessage: "Invalid key",
		},
		{
			name:        "empty checkout url",
			gateway:     &stubGateway{name: payment.GatewayPaystack, configured: true},
			pricing:     testPricing,
			form:        url.Values{"gateway": {"paystack"}},
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "Unable to generate payment URL.",
		},
		{
			name:        "unknown action",
			gateway:     &stubGateway{name: payment.GatewayPaystack, configured: true},
			pricing:     testPricing,
			form:        url.Values{"action": {"delete_everything"}, "gateway": {"paystack"}},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Unknown action.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, nonces := newCheckoutHandlers(tt.gateway, tt.pricing)
			nonce := nonces.Issue(CheckoutAction)
			if tt.badNonce {
				nonce = nonces.Issue("some_other_action")
			}
			tt.form.Set("nonce", nonce)

			w := postCheckout(h, tt.form)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, w.Code, w.Body.String())
			}
			resp := decodeCheckout(t, w)
			if resp.Success != (tt.wantURL != "") {
				t.Errorf("unexpected success flag in %+v", resp)
			}
			if tt.wantURL != "" && resp.Data["checkout_url"] != tt.wantURL {
				t.Errorf("expected checkout_url %q, got %q", tt.wantURL, resp.Data["checkout_url"])
			}
			if tt.wantMessage != "" && resp.Data["message"] != tt.wantMessage {
				t.Errorf("expected message %q, got %q", tt.wantMessage, resp.Data["message"])
			}
		})
	}
}

func TestCreateCheckout_EmailFallsBackToAdmin(t *testing.T) {
	gw := &stubGateway{name: payment.GatewayFlutterwave, configured: true, url: "https://checkout.flutterwave.com/x"}
	h, nonces := newCheckoutHandlers(gw, testPricing)

	w := postCheckout(h, url.Values{
		"action":  {CheckoutAction},
		"gateway": {"Flutterwave"},
		"nonce":   {nonces.Issue(CheckoutAction)},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(gw.requests) != 1 {
		t.Fatalf("expected one initialize call, got %d", len(gw.requests))
	}
	req := gw.requests[0]
	if req.Email != "admin@example.com" {
		t.Errorf("expected admin email, got %q", req.Email)
	}
	if req.Plan != "monthly" || req.Amount != 5000 || req.Currency != "NGN" {
		t.Errorf("unexpected checkout request %+v", req)
	}
}

func TestCheckoutNonce(t *testing.T) {
	h, nonces := newCheckoutHandlers(&stubGateway{name: payment.GatewayPaystack}, testPricing)

	req := httptest.NewRequest(http.MethodGet, "/checkout/nonce", nil)
	w := httptest.NewRecorder()
	h.Nonce(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp NonceResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if !nonces.Verify(CheckoutAction, resp.Nonce) {
		t.Errorf("issued nonce %q does not verify", resp.Nonce)
	}
}

func TestCreateCheckout_LogsFailure(t *testing.T) {
	buf := &bytes.Buffer{}
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	h, _ := newCheckoutHandlers(&stubGateway{name: "paystack", configured: true}, payment.Pricing{Monthly: 5000})
	w := postCheckout(h, url.Values{"action": {CheckoutAction}, "gateway": {"paystack"}, "nonce": {"stale"}})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}

	var entry struct {
		Level     string `json:"level"`
		Msg       string `json:"msg"`
		Status    int    `json:"status"`
		ErrorCode string `json:"error_code"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected one JSON log line, got %q: %v", buf.String(), err)
	}
	if entry.Level != "WARN" || entry.Msg != "checkout failed" || entry.Status != http.StatusForbidden || entry.ErrorCode == "" {
		t.Errorf("unexpected log entry %+v", entry)
	}
}
