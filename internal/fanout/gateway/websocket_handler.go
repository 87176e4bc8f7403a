package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/draftops/gavel/internal/auth"
)

// WebSocketHandler upgrades auction stream requests. The snapshot is
// assembled before the upgrade so a failed load turns into a plain HTTP
// error instead of an immediately closed socket.
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	provider          *StateProvider
	jwt               *auth.JWTProvider
}

// NewWebSocketHandler creates the gateway's HTTP-facing handler.
func NewWebSocketHandler(cm *ConnectionManager, provider *StateProvider, jwt *auth.JWTProvider) *WebSocketHandler {
	return &WebSocketHandler{connectionManager: cm, provider: provider, jwt: jwt}
}

// HandleAuctionConnection serves GET /auctions/{auctionID}/ws. Browsers
// cannot set headers on WebSocket upgrades, so the token rides in the
// query string.
func (h *WebSocketHandler) HandleAuctionConnection(w http.ResponseWriter, r *http.Request) {
	auctionID, err := uuid.Parse(chi.URLParam(r, "auctionID"))
	if err != nil {
		http.Error(w, "invalid auction id", http.StatusBadRequest)
		return
	}

	actor, err := h.jwt.ResolveActor(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	snapshot, err := h.provider.Snapshot(r.Context(), auctionID)
	if err != nil {
		log.Error().
			Err(err).
			Str("auction_id", auctionID.String()).
			Msg("failed to build connect snapshot")
		http.Error(w, "auction not found", http.StatusNotFound)
		return
	}

	frame, err := json.Marshal(ServerMessage{
		Type:     MessageTypeSnapshot,
		SentAt:   time.Now().UTC(),
		Snapshot: snapshot,
	})
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if err := h.connectionManager.UpgradeConnection(w, r, actor.UserID.String(), auctionID, frame); err != nil {
		log.Error().
			Err(err).
			Str("auction_id", auctionID.String()).
			Str("user_id", actor.UserID.String()).
			Msg("failed to upgrade WebSocket connection")
	}
}

// HandleConnectionStats reports pool sizes.
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(h.connectionManager.ConnectionStats())
}
