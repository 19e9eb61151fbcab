package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/umarmf343/PhantomViews/internal/middleware"
	"github.com/umarmf343/PhantomViews/internal/payment"
)

// MaxWebhookBodyBytes caps webhook payloads. Gateway notifications are small.
const MaxWebhookBodyBytes = 64 << 10

// WebhookHandlers receives payment gateway notifications.
type WebhookHandlers struct {
	reconciler *payment.Reconciler
}

// NewWebhookHandlers creates a new WebhookHandlers instance.
func NewWebhookHandlers(reconciler *payment.Reconciler) *WebhookHandlers {
	return &WebhookHandlers{reconciler: reconciler}
}

// HandleWebhook handles POST /webhook/{gateway}. The raw body is read once
// and handed to the reconciler untouched; signatures are computed over it.
//
// Responses carry {status, ...}: 200 for issued and ignored deliveries, 401
// for signature failures, 400 for a missing email, and 409 while the same
// delivery is still being processed so the gateway retries later.
func (h *WebhookHandlers) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	gateway := r.PathValue("gateway")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxWebhookBodyBytes))
	if err != nil {
		WriteError(w, ctx, http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "Request body too large")
		return
	}

	res, err := h.reconciler.HandleWebhook(ctx, gateway, body, r.Header)
	switch {
	case err == nil:
		writeJSON(w, ctx, http.StatusOK, res)
	case errors.Is(err, payment.ErrUnknownGateway):
		WriteError(w, ctx, http.StatusNotFound, ErrCodeUnknownGateway, "Unknown payment gateway.")
	case errors.Is(err, payment.ErrMissingSignature), errors.Is(err, payment.ErrInvalidSignature):
		writeJSON(w, middleware.SetErrorCode(ctx, res.Status), http.StatusUnauthorized, res)
	case errors.Is(err, payment.ErrMissingEmail):
		writeJSON(w, middleware.SetErrorCode(ctx, ErrCodeMissingEmail), http.StatusBadRequest, res)
	case errors.Is(err, payment.ErrDeliveryInProgress):
		writeJSON(w, middleware.SetErrorCode(ctx, ErrCodeInProgress), http.StatusConflict, payment.Result{Status: payment.StatusInProgress})
	default:
		slog.ErrorContext(ctx, "webhook processing failed", "gateway", gateway, "error", err)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Webhook processing failed")
	}
}
