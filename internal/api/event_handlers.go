package api

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/umarmf343/PhantomViews/internal/auth"
	"github.com/umarmf343/PhantomViews/internal/events"
	"github.com/umarmf343/PhantomViews/internal/middleware"
)

// EventHandlers streams license domain events to the admin UI.
type EventHandlers struct {
	hub      *events.Hub
	jwt      *auth.JWTService
	upgrader websocket.Upgrader
}

// NewEventHandlers creates a new EventHandlers instance. Upgrades are only
// accepted from allowedOrigins; requests without an Origin header (non-browser
// clients) are allowed.
func NewEventHandlers(hub *events.Hub, jwt *auth.JWTService, allowedOrigins []string) *EventHandlers {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			allowed[strings.ToLower(u.Scheme+"://"+u.Host)] = true
		}
	}
	return &EventHandlers{
		hub: hub,
		jwt: jwt,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed[strings.ToLower(origin)]
			},
		},
	}
}

// Stream handles GET /events. Browsers cannot set headers on websocket
// requests, so the admin token may also come in the access_token query parameter.
func (h *EventHandlers) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		token = r.URL.Query().Get("access_token")
	}
	if token == "" {
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authorization required")
		return
	}
	claims, err := h.jwt.ValidateToken(token)
	if err != nil {
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Invalid token")
		return
	}
	ctx = middleware.SetUser(ctx, claims.Email)
	if !claims.Role.Allows(auth.RoleAdmin) {
		WriteError(w, ctx, http.StatusForbidden, ErrCodeForbidden, "You are not allowed to do this")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		slog.WarnContext(ctx, "websocket upgrade failed", "error", err)
		return
	}

	clientID := h.hub.Add(conn)
	slog.InfoContext(ctx, "event stream client connected",
		"client_id", clientID,
		"request_id", middleware.GetRequestID(ctx),
		"clients", h.hub.Count(),
	)

	defer func() {
		h.hub.Remove(conn)
		conn.Close()
		slog.InfoContext(ctx, "event stream client disconnected", "client_id", clientID)
	}()

	// Clients never send anything; reading is how a disconnect is noticed.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slog.WarnContext(ctx, "event stream closed unexpectedly", "client_id", clientID, "error", err)
			}
			return
		}
	}
}
