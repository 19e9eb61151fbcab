package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/umarmf343/PhantomViews/internal/license"
	"github.com/umarmf343/PhantomViews/internal/middleware"
	"github.com/umarmf343/PhantomViews/internal/payment"
)

// maxLicenseBodyBytes caps license request bodies.
const maxLicenseBodyBytes = 16 << 10

// LicenseManager is the slice of the license engine the admin endpoints use.
type LicenseManager interface {
	Activate(ctx context.Context, key, plan string) (license.Result, error)
	Deactivate(ctx context.Context) (license.Result, error)
	StoredPlan(ctx context.Context) (license.Plan, bool, error)
	Status(ctx context.Context) (license.Status, error)
	ValidateOnLogin(ctx context.Context) error
}

// LicenseHandlers serves the admin license endpoints.
type LicenseHandlers struct {
	licenses  LicenseManager
	pricing   payment.Pricing
	freeLimit int
}

// NewLicenseHandlers creates a new LicenseHandlers instance.
func NewLicenseHandlers(licenses LicenseManager, pricing payment.Pricing, freeLimit int) *LicenseHandlers {
	return &LicenseHandlers{licenses: licenses, pricing: pricing, freeLimit: freeLimit}
}

// ActivateRequest is the body of POST /license/activate.
type ActivateRequest struct {
	LicenseKey string `json:"license_key"`
	Plan       string `json:"plan,omitempty"`
}

// PricingInfo is the configured price list.
type PricingInfo struct {
	Monthly  float64 `json:"monthly"`
	Yearly   float64 `json:"yearly"`
	Currency string  `json:"currency"`
}

// LicenseStatusResponse is the admin licensing screen data.
type LicenseStatusResponse struct {
	License        license.Status `json:"license"`
	Pricing        PricingInfo    `json:"pricing"`
	FreeSceneLimit int            `json:"free_scene_limit"`
}

// Activate handles POST /license/activate. A request without a plan keeps
// the stored plan, or monthly when none is stored.
func (h *LicenseHandlers) Activate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ActivateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxLicenseBodyBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidJSON, "Invalid JSON body")
		return
	}

	plan := strings.TrimSpace(req.Plan)
	if plan == "" {
		stored, ok, err := h.licenses.StoredPlan(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "failed to read stored plan", "error", err)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to activate license")
			return
		}
		plan = string(license.PlanMonthly)
		if ok {
			plan = string(stored)
		}
	}

	res, err := h.licenses.Activate(ctx, req.LicenseKey, plan)
	if errors.Is(err, license.ErrEmptyKey) {
		ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
		writeJSON(w, ctx, http.StatusBadRequest, res)
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to activate license", "error", err)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to activate license")
		return
	}
	writeJSON(w, ctx, http.StatusOK, res)
}

// Deactivate handles POST /license/deactivate.
func (h *LicenseHandlers) Deactivate(w http.ResponseWriter, r *http.Request) {
	res, err := h.licenses.Deactivate(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to deactivate license", "error", err)
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to deactivate license")
		return
	}
	writeJSON(w, r.Context(), http.StatusOK, res)
}

// Status handles GET /license/status.
func (h *LicenseHandlers) Status(w http.ResponseWriter, r *http.Request) {
	h.writeStatus(w, r.Context())
}

// Validate handles POST /license/validate: re-checks the stored key with the
// remote validator, then reports the resulting status.
func (h *LicenseHandlers) Validate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.licenses.ValidateOnLogin(ctx); err != nil {
		slog.ErrorContext(ctx, "license validation failed", "error", err)
		WriteError(w, ctx, http.StatusBadGateway, ErrCodeInternal, "Unable to validate license")
		return
	}
	h.writeStatus(w, ctx)
}

func (h *LicenseHandlers) writeStatus(w http.ResponseWriter, ctx context.Context) {
	st, err := h.licenses.Status(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to read license status", "error", err)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to read license status")
		return
	}
	writeJSON(w, ctx, http.StatusOK, LicenseStatusResponse{
		License: st,
		Pricing: PricingInfo{
			Monthly:  h.pricing.Monthly,
			Yearly:   h.pricing.Yearly,
			Currency: h.pricing.Currency,
		},
		FreeSceneLimit: h.freeLimit,
	})
}
