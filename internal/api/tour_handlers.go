package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"

	"github.com/umarmf343/PhantomViews/internal/access"
	"github.com/umarmf343/PhantomViews/internal/license"
	"github.com/umarmf343/PhantomViews/internal/render"
	"github.com/umarmf343/PhantomViews/internal/tour"
	"github.com/umarmf343/PhantomViews/internal/validate"
)

// MaxTourBodyBytes caps a tour write body.
const MaxTourBodyBytes = 2 << 20

// TourSavedMessage is returned after a successful tour write.
const TourSavedMessage = "Tour updated successfully."

var tourIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Entitlements is the slice of the license engine the tour handlers need.
type Entitlements interface {
	HasProAccess(ctx context.Context) (bool, error)
	State(ctx context.Context) (license.State, error)
}

// TourHandlers holds dependencies for tour HTTP handlers.
type TourHandlers struct {
	repo         tour.Repository
	entitlements Entitlements
	gate         *access.Gate
	builder      *render.Builder
}

// NewTourHandlers creates a new TourHandlers instance.
func NewTourHandlers(repo tour.Repository, entitlements Entitlements, gate *access.Gate, builder *render.Builder) *TourHandlers {
	return &TourHandlers{repo: repo, entitlements: entitlements, gate: gate, builder: builder}
}

// CreateTourRequest is the body of POST /tours.
type CreateTourRequest struct {
	Title string `json:"title"`
}

// MessageResponse is the body of simple confirmations.
type MessageResponse struct {
	Message string `json:"message"`
}

// ExpiredResponse is returned by the payload endpoint for expired tours.
type ExpiredResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// CreateTour handles POST /tours.
func (h *TourHandlers) CreateTour(w http.ResponseWriter, r *http.Request) {
	var req CreateTourRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(io.LimitReader(r.Body, MaxTourBodyBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeInvalidJSON, "Invalid JSON body")
			return
		}
	}

	t := &tour.Tour{Title: validate.Text(req.Title)}
	if err := h.repo.Create(r.Context(), t); err != nil {
		slog.ErrorContext(r.Context(), "failed to create tour", "error", err)
		WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Failed to create tour")
		return
	}

	slog.InfoContext(r.Context(), "tour created", "tour_id", t.ID)
	writeJSON(w, r.Context(), http.StatusCreated, t)
}

// GetTour handles GET /tours/{id} for editors: the stored, normalized tour.
func (h *TourHandlers) GetTour(w http.ResponseWriter, r *http.Request) {
	t, ok := h.loadTour(w, r)
	if !ok {
		return
	}
	writeJSON(w, r.Context(), http.StatusOK, t)
}

// SaveTour handles PUT and POST /tours/{id}. The access gate runs before
// anything is written; a denied write leaves the stored tour untouched.
func (h *TourHandlers) SaveTour(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	if !tourIDPattern.MatchString(id) {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidTourID, "Invalid tour ID.")
		return
	}
	exists, err := h.repo.Exists(ctx, id)
	if err != nil {
		slog.ErrorContext(ctx, "failed to look up tour", "tour_id", id, "error", err)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to save tour")
		return
	}
	if !exists {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidTourID, "Invalid tour ID.")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxTourBodyBytes))
	if err != nil {
		WriteError(w, ctx, http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "Request body too large")
		return
	}
	// An empty body means every key defaults to empty.
	if len(bytes.TrimSpace(body)) == 0 {
		body = []byte("{}")
	}
	content, err := tour.ParseInput(body)
	if err != nil {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidJSON, "Invalid JSON body")
		return
	}

	// State runs the expiry transition, so a lapsed license is marked expired here.
	if _, err := h.entitlements.State(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to check license expiry", "error", err)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to save tour")
		return
	}
	hasPro, err := h.entitlements.HasProAccess(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to read license", "error", err)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to save tour")
		return
	}
	decision := h.gate.AuthorizeSceneWrite(len(content.Scenes), hasPro)
	if !decision.Allowed {
		slog.InfoContext(ctx, "tour write denied", "tour_id", id, "scenes", len(content.Scenes), "decision", decision.String())
		WriteError(w, ctx, http.StatusForbidden, ErrCodePlanUpgradeRequired, decision.Message)
		return
	}

	if err := h.repo.SaveContent(ctx, id, content); err != nil {
		if errors.Is(err, tour.ErrTourNotFound) {
			WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidTourID, "Invalid tour ID.")
			return
		}
		slog.ErrorContext(ctx, "failed to save tour", "tour_id", id, "error", err)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to save tour")
		return
	}

	if issues := tour.CheckGraph(content.Scenes); len(issues) > 0 {
		slog.InfoContext(ctx, "tour saved with graph issues", "tour_id", id, "issues", len(issues))
	}
	slog.InfoContext(ctx, "tour saved", "tour_id", id, "scenes", len(content.Scenes))
	writeJSON(w, ctx, http.StatusOK, MessageResponse{Message: TourSavedMessage})
}

// Payload handles GET /tours/{id}/payload, the viewer's render contract.
// Expired tours answer 410 and carry no scene data.
func (h *TourHandlers) Payload(w http.ResponseWriter, r *http.Request) {
	t, ok := h.loadTour(w, r)
	if !ok {
		return
	}

	res := h.builder.Build(*t)
	if res.Expired {
		writeJSON(w, r.Context(), http.StatusGone, ExpiredResponse{Status: "expired", Message: res.Message})
		return
	}
	writeJSON(w, r.Context(), http.StatusOK, res.Payload)
}

// Embed handles GET /tours/{id}/embed: the viewer markup with the payload
// inlined. Query parameters width, height and autoplay size the container.
func (h *TourHandlers) Embed(w http.ResponseWriter, r *http.Request) {
	t, ok := h.loadTour(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	state, err := h.entitlements.State(ctx)
	if err != nil {
		slog.WarnContext(ctx, "failed to read license state for embed", "error", err)
		state = license.StateInactive
	}

	q := r.URL.Query()
	autoplay, _ := strconv.ParseBool(q.Get("autoplay"))
	opts := render.EmbedOptions{Width: q.Get("width"), Height: q.Get("height"), Autoplay: autoplay}

	var buf bytes.Buffer
	if err := render.Embed(&buf, t.ID, string(state), h.builder.Build(*t), opts); err != nil {
		slog.ErrorContext(ctx, "failed to render embed", "tour_id", t.ID, "error", err)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to render tour")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *TourHandlers) loadTour(w http.ResponseWriter, r *http.Request) (*tour.Tour, bool) {
	ctx := r.Context()
	id := r.PathValue("id")
	if !tourIDPattern.MatchString(id) {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeInvalidTourID, "Invalid tour ID.")
		return nil, false
	}

	t, err := h.repo.Get(ctx, id)
	if errors.Is(err, tour.ErrTourNotFound) {
		WriteError(w, ctx, http.StatusNotFound, ErrCodeTourNotFound, "Tour not found")
		return nil, false
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to load tour", "tour_id", id, "error", err)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Failed to load tour")
		return nil, false
	}
	return t, true
}
