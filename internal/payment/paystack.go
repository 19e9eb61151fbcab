package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"math"
	"net/http"
	"strings"
)

// PaystackSignatureHeader carries hex(HMAC-SHA512(secret, body)).
const PaystackSignatureHeader = "X-Paystack-Signature"

// Paystack channels offered at checkout.
var paystackChannels = []string{"card", "bank"}

// PaystackConfig configures a PaystackGateway.
type PaystackConfig struct {
	PublicKey  string
	SecretKey  string
	BaseURL    string
	HTTPClient *http.Client
}

// PaystackGateway bills in minor currency units and signs webhooks with HMAC-SHA512.
type PaystackGateway struct {
	cfg PaystackConfig
	api *apiClient
}

// NewPaystackGateway creates the gateway. An empty BaseURL uses the public API.
func NewPaystackGateway(cfg PaystackConfig) *PaystackGateway {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.paystack.co"
	}
	return &PaystackGateway{
		cfg: cfg,
		api: newAPIClient(GatewayPaystack, cfg.BaseURL, cfg.SecretKey, cfg.HTTPClient),
	}
}

// Name implements Gateway.
func (g *PaystackGateway) Name() string { return GatewayPaystack }

// Configured implements Gateway.
func (g *PaystackGateway) Configured() bool {
	return g.cfg.PublicKey != "" && g.cfg.SecretKey != ""
}

// MinorUnits converts a major-unit amount to the gateway's integer minor units.
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

type paystackInitRequest struct {
	Email       string            `json:"email"`
	Amount      int64             `json:"amount"`
	CallbackURL string            `json:"callback_url"`
	Metadata    map[string]string `json:"metadata"`
	Currency    string            `json:"currency"`
	Channels    []string          `json:"channels"`
}

type paystackInitResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

// Initialize implements Gateway.
func (g *PaystackGateway) Initialize(ctx context.Context, req CheckoutRequest) (string, error) {
	if !g.Configured() {
		return "", &NotConfiguredError{Gateway: GatewayPaystack}
	}
	const fallback = "Unable to initialize Paystack transaction."

	body := paystackInitRequest{
		Email:       req.Email,
		Amount:      MinorUnits(req.Amount),
		CallbackURL: withQuery(req.CallbackURL, map[string]string{"plan": string(req.Plan)}),
		Metadata:    map[string]string{"plan": string(req.Plan), "site_url": req.SiteURL},
		Currency:    req.Currency,
		Channels:    paystackChannels,
	}

	var resp paystackInitResponse
	status, err := g.api.postJSON(ctx, "transaction.initialize", "/transaction/initialize", body, &resp, fallback)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK || !resp.Status {
		message := resp.Message
		if message == "" {
			message = fallback
		}
		return "", &GatewayError{Gateway: GatewayPaystack, Message: message}
	}
	if resp.Data.AuthorizationURL == "" {
		return "", &GatewayError{Gateway: GatewayPaystack, Message: fallback}
	}
	return resp.Data.AuthorizationURL, nil
}

// Sign computes the signature Paystack sends for body.
func (g *PaystackGateway) Sign(body []byte) string {
	mac := hmac.New(sha512.New, []byte(g.cfg.SecretKey))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify implements Gateway.
func (g *PaystackGateway) Verify(body []byte, headers http.Header) error {
	signature := strings.TrimSpace(headers.Get(PaystackSignatureHeader))
	if g.cfg.SecretKey == "" || signature == "" {
		return ErrMissingSignature
	}
	if !hmac.Equal([]byte(g.Sign(body)), []byte(strings.ToLower(signature))) {
		return ErrInvalidSignature
	}
	return nil
}

type paystackEvent struct {
	Event string `json:"event"`
	Data  struct {
		Status    string `json:"status"`
		Reference string `json:"reference"`
		Customer  struct {
			Email string `json:"email"`
		} `json:"customer"`
		Metadata json.RawMessage `json:"metadata"`
	} `json:"data"`
}

// Parse implements Gateway.
func (g *PaystackGateway) Parse(body []byte) (Notification, error) {
	var e paystackEvent
	if err := json.Unmarshal(body, &e); err != nil {
		return Notification{}, err
	}
	return Notification{
		Successful: e.Data.Status == "success",
		Email:      e.Data.Customer.Email,
		Plan:       planFromMeta(e.Data.Metadata),
		Reference:  e.Data.Reference,
	}, nil
}

// planFromMeta reads "plan" from a metadata object. Gateways send metadata
// as an object, an empty string or an empty array depending on the checkout.
func planFromMeta(raw json.RawMessage) string {
	var meta map[string]any
	if len(raw) == 0 || json.Unmarshal(raw, &meta) != nil {
		return ""
	}
	plan, _ := meta["plan"].(string)
	return plan
}
