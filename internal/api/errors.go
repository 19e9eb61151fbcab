// Package api provides the HTTP handlers of the PhantomViews service and
// its standardized error envelope.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/umarmf343/PhantomViews/internal/access"
	"github.com/umarmf343/PhantomViews/internal/middleware"
	"github.com/umarmf343/PhantomViews/internal/payment"
)

// Common error codes used throughout the API.
const (
	// ErrCodeValidation indicates input validation failure.
	ErrCodeValidation = "validation_error"

	// ErrCodeAuthFailed indicates authentication failure.
	ErrCodeAuthFailed = "auth_failed"

	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound = "not_found"

	// ErrCodeRateLimited indicates rate limit exceeded.
	ErrCodeRateLimited = "rate_limited"

	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal = "internal_error"

	// ErrCodeForbidden indicates the request is forbidden.
	ErrCodeForbidden = "forbidden"

	// ErrCodeConflict indicates a conflict with the current state.
	ErrCodeConflict = "conflict"

	// ErrCodeBadRequest indicates a malformed request.
	ErrCodeBadRequest = "bad_request"

	ErrCodeInvalidJSON   = "invalid_json"
	ErrCodeInvalidTourID = "invalid_tour_id"
	ErrCodeTourNotFound  = "tour_not_found"

	// ErrCodePlanUpgradeRequired is returned when a scene write exceeds the free plan.
	ErrCodePlanUpgradeRequired = access.ReasonPlanUpgradeRequired

	ErrCodeInvalidNonce   = "invalid_nonce"
	ErrCodeUnknownGateway = "unknown_gateway"
	ErrCodeGatewayError   = "gateway_error"

	// Webhook codes match the status strings gateways see in the body.
	ErrCodeMissingSignature = payment.StatusMissingSignature
	ErrCodeInvalidSignature = payment.StatusInvalidSignature
	ErrCodeMissingEmail     = payment.StatusMissingEmail
	ErrCodeInProgress       = payment.StatusInProgress
)

// ErrorResponse represents the standard error response format.
// All API errors return JSON in this structure: {"error": {"code": "...", "message": "..."}}
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code and human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes {"error": {"code", "message"}} with the given status and
// records code on the request so the logging middleware reports it.
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	middleware.SetErrorCode(ctx, code)

	errResp := ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	}

	data, err := json.Marshal(errResp)
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal error response", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal server error"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}

// writeJSON writes v with the given status.
func writeJSON(w http.ResponseWriter, ctx context.Context, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// StatusCodeMapping returns the recommended HTTP status code for common error codes.
func StatusCodeMapping(code string) int {
	switch code {
	case ErrCodeValidation, ErrCodeBadRequest, ErrCodeInvalidJSON, ErrCodeInvalidTourID,
		ErrCodeUnknownGateway, ErrCodeMissingEmail:
		return http.StatusBadRequest
	case ErrCodeAuthFailed, ErrCodeMissingSignature, ErrCodeInvalidSignature:
		return http.StatusUnauthorized
	case ErrCodeNotFound, ErrCodeTourNotFound:
		return http.StatusNotFound
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeForbidden, ErrCodePlanUpgradeRequired, ErrCodeInvalidNonce:
		return http.StatusForbidden
	case ErrCodeConflict, ErrCodeInProgress:
		return http.StatusConflict
	case ErrCodeGatewayError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
