package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/umarmf343/PhantomViews/internal/auth"
	"github.com/umarmf343/PhantomViews/internal/middleware"
	"github.com/umarmf343/PhantomViews/internal/payment"
)

// CheckoutAction is the nonce action and form action for checkout creation.
const CheckoutAction = "create_checkout"

// maxCheckoutFormBytes caps the checkout form body.
const maxCheckoutFormBytes = 16 << 10

// CheckoutHandlers serves the admin checkout endpoints.
type CheckoutHandlers struct {
	checkout *payment.CheckoutService
	nonces   *auth.NonceService
}

// NewCheckoutHandlers creates a new CheckoutHandlers instance.
func NewCheckoutHandlers(checkout *payment.CheckoutService, nonces *auth.NonceService) *CheckoutHandlers {
	return &CheckoutHandlers{checkout: checkout, nonces: nonces}
}

// CheckoutResponse is the admin checkout reply. Data carries checkout_url on
// success and message otherwise.
type CheckoutResponse struct {
	Success bool              `json:"success"`
	Data    map[string]string `json:"data"`
}

// NonceResponse is the body of GET /checkout/nonce.
type NonceResponse struct {
	Nonce string `json:"nonce"`
}

// Nonce handles GET /checkout/nonce.
func (h *CheckoutHandlers) Nonce(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r.Context(), http.StatusOK, NonceResponse{Nonce: h.nonces.Issue(CheckoutAction)})
}

// CreateCheckout handles POST /checkout. The form carries action, gateway,
// plan, email and nonce; email defaults to the signed-in admin's address.
func (h *CheckoutHandlers) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, maxCheckoutFormBytes)
	if err := r.ParseForm(); err != nil {
		h.fail(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Invalid form body.")
		return
	}
	if action := r.PostForm.Get("action"); action != "" && action != CheckoutAction {
		h.fail(w, r, http.StatusBadRequest, ErrCodeBadRequest, "Unknown action.")
		return
	}
	if !h.nonces.Verify(CheckoutAction, r.PostForm.Get("nonce")) {
		h.fail(w, r, http.StatusForbidden, ErrCodeInvalidNonce, "Security check failed. Reload the page and try again.")
		return
	}

	gateway := strings.TrimSpace(r.PostForm.Get("gateway"))
	if gateway == "" {
		h.fail(w, r, http.StatusBadRequest, ErrCodeValidation, "Gateway is required.")
		return
	}

	email := strings.TrimSpace(r.PostForm.Get("email"))
	if email == "" {
		if claims := middleware.ClaimsFromContext(ctx); claims != nil {
			email = claims.Email
		}
	}

	checkoutURL, err := h.checkout.CreateCheckout(ctx, gateway, r.PostForm.Get("plan"), email)
	if err != nil {
		status, code := http.StatusBadRequest, ErrCodeValidation
		switch {
		case errors.Is(err, payment.ErrGateway):
			status, code = http.StatusBadGateway, ErrCodeGatewayError
		case errors.Is(err, payment.ErrUnknownGateway):
			code = ErrCodeUnknownGateway
		}
		h.fail(w, r, status, code, payment.Message(err))
		return
	}
	if checkoutURL == "" {
		h.fail(w, r, http.StatusInternalServerError, ErrCodeInternal, "Unable to generate payment URL.")
		return
	}

	writeJSON(w, ctx, http.StatusOK, CheckoutResponse{
		Success: true,
		Data:    map[string]string{"checkout_url": checkoutURL},
	})
}

func (h *CheckoutHandlers) fail(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	ctx := middleware.SetErrorCode(r.Context(), code)
	slog.WarnContext(ctx, "checkout failed", "status", status, "error_code", code, "message", message)
	writeJSON(w, ctx, status, CheckoutResponse{
		Success: false,
		Data:    map[string]string{"message": message},
	})
}
