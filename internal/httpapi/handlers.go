package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/cors"

	"github.com/draftops/gavel/internal/auction"
	"github.com/draftops/gavel/internal/auth"
	"github.com/draftops/gavel/internal/bid"
	"github.com/draftops/gavel/internal/cursor"
	"github.com/draftops/gavel/internal/fanout/gateway"
	"github.com/draftops/gavel/internal/models"
	"github.com/draftops/gavel/internal/queue"
	"github.com/draftops/gavel/internal/sale"
	"github.com/draftops/gavel/internal/team"
	"github.com/draftops/gavel/internal/undo"
)

// Handler exposes the auction engine over JSON HTTP.
type Handler struct {
	auctions *auction.App
	bids     *bid.App
	teams    *team.App
	queue    *queue.App
	cursor   *cursor.App
	sale     *sale.App
	undo     *undo.App
	ws       *gateway.WebSocketHandler
	jwt      *auth.JWTProvider
}

// NewHandler wires the HTTP surface.
func NewHandler(
	auctions *auction.App,
	bids *bid.App,
	teams *team.App,
	q *queue.App,
	cur *cursor.App,
	sl *sale.App,
	und *undo.App,
	ws *gateway.WebSocketHandler,
	jwt *auth.JWTProvider,
) *Handler {
	return &Handler{
		auctions: auctions,
		bids:     bids,
		teams:    teams,
		queue:    q,
		cursor:   cur,
		sale:     sl,
		undo:     und,
		ws:       ws,
		jwt:      jwt,
	}
}

// Router builds the chi router with CORS, auth, and all auction routes.
func (h *Handler) Router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", h.handleHealth)

	// The upgrade authenticates via query token; see the gateway handler.
	r.Get("/auctions/{auctionID}/ws", h.ws.HandleAuctionConnection)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(h.jwt))

		r.Route("/auctions/{auctionID}", func(r chi.Router) {
			r.Get("/", h.handleGetAuction)
			r.Post("/start", h.handleStart)
			r.Post("/complete", h.handleComplete)

			r.Post("/bids", h.handlePlaceBid)
			r.Get("/bids", h.handleListBids)
			r.Post("/bids/{bidID}/undo", h.handleUndoBid)

			r.Get("/teams", h.handleListTeams)
			r.Get("/queue", h.handleListQueue)

			r.Get("/current", h.handleGetCurrent)
			r.Post("/current", h.handleCurrentAction)

			r.Post("/skips", h.handleSkip)
			r.Delete("/skips", h.handleUnskip)

			r.Post("/sale", h.handleAssignPlayer)
			r.Post("/sale/undo", h.handleUndoSale)

			r.Post("/replacements", h.handleReplacePlayer)
		})
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})
	return c.Handler(r)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func auctionID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "auctionID"))
	return id, err == nil
}

func requestActor(w http.ResponseWriter, r *http.Request) (auth.Actor, bool) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeErrorCode(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing actor")
	}
	return actor, ok
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeErrorCode(w, http.StatusBadRequest, "BAD_REQUEST", "malformed request body")
		return false
	}
	return true
}

func (h *Handler) handleGetAuction(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionID(r)
	if !ok {
		writeErrorCode(w, http.StatusBadRequest, "BAD_REQUEST", "invalid auction id")
		return
	}
	a, err := h.auctions.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	h.handleLifecycle(w, r, h.auctions.Start)
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	h.handleLifecycle(w, r, h.auctions.Complete)
}

func (h *Handler) handleLifecycle(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, id uuid.UUID, actor auth.Actor) (*models.Auction, error),
) {
	id, ok := auctionID(r)
	if !ok {
		writeErrorCode(w, http.StatusBadRequest, "BAD_REQUEST", "invalid auction id")
		return
	}
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}

	updated, err := op(r.Context(), id, actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) handlePlaceBid(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionID(r)
	if !ok {
		writeErrorCode(w, http.StatusBadRequest, "BAD_REQUEST", "invalid auction id")
		return
	}
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}

	var body struct {
		TeamID    uuid.UUID `json:"team_id"`
		BidAmount int64     `json:"bid_amount"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	result, err := h.bids.PlaceBid(r.Context(), bid.PlaceBidRequest{
		AuctionID: id,
		TeamID:    body.TeamID,
		Amount:    body.BidAmount,
		Actor:     actor,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleListBids(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionID(r)
	if !ok {
		writeErrorCode(w, http.StatusBadRequest, "BAD_REQUEST", "invalid auction id")
		return
	}

	req := bid.ListBidsRequest{AuctionID: id, Limit: bid.MaxListLimit}
	if raw := r.URL.Query().Get("player_id"); raw != "" {
		playerID, err := uuid.Parse(raw)
		if err != nil {
			writeErrorCode(w, http.StatusBadRequest, "BAD_REQUEST", "invalid player_id")
			return
		}
		req.PlayerID = &playerID
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			writeErrorCode(w, http.StatusBadRequest, "BAD_REQUEST", "invalid limit")
			return
		}
		req.Limit = limit
	}

	bids, err := h.bids.ListBids(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bids": bids})
}

func (h *Handler) handleUndoBid(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionID(r)
	if !ok {
		writeErrorCode(w, http.StatusBadRequest, "BAD_REQUEST", "invalid auction id")
		return
	}
	bidID, err := uuid.Parse(chi.URLParam(r, "bidID"))
	if err != nil {
		writeErrorCode(w, http.StatusBadRequest, "BAD_REQUEST", "invalid bid id")
		return
	}
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}

	undone, err := h.undo.UndoBid(r.Context(), id, bidID, actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, undone)
}

func (h *Handler) handleListTeams(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionID(r)
	if !ok {
		writeErrorCode(w, http.StatusBadRequest, "BAD_REQUEST", "invalid auction id")
		return
	}
	teams, err := h.teams.ListByAuction(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"teams": teams})
}

func (h *Handler) handleListQueue(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionID(r)
	if !ok {
		writeErrorCode(w, http.StatusBadRequest, "BAD_REQUEST", "invalid auction id")
		return
	}
	queued, err := h.queue.ListByAuction(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"queue": queued})
}

func (h *Handler) handleGetCurrent(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionID(r)
	if !ok {
		writeErrorCode(w, http.StatusBadRequest, "BAD_REQUEST", "invalid auction id")
		return
	}
	current, err := h.cursor.Current(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"current": current})
}

// handleCurrentAction drives the cursor: set, first, next, previous, clear.
func (h *Handler) handleCurrentAction(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionID(r)
	if !ok {
		writeErrorCode(w, http.StatusBadRequest, "BAD_REQUEST", "invalid auction id")
		return
	}
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}

	var body struct {
		Action   string     `json:"action"`
		PlayerID *uuid.UUID `json:"player_id,omitempty"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	var (
		result *cursor.Result
		err    error
	)
	switch body.Action {
	case "set":
		if body.PlayerID == nil {
			writeErrorCode(w, http.StatusBadRequest, "BAD_REQUEST", "player_id required for set")
			return
		}
		result, err = h.cursor.SetCurrent(r.Context(), id, *body.PlayerID, actor)
	case "first":
		result, err = h.cursor.SetFirst(r.Context(), id, actor)
	case "next":
		result, err = h.cursor.Next(r.Context(), id, actor)
	case "previous":
		result, err = h.cursor.Previous(r.Context(), id, actor)
	default:
		writeErrorCode(w, http.StatusBadRequest, "BAD_REQUEST", "unknown action")
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleSkip(w http.ResponseWriter, r *http.Request) {
	h.handleSkipChange(w, r, h.queue.Skip)
}

func (h *Handler) handleUnskip(w http.ResponseWriter, r *http.Request) {
	h.handleSkipChange(w, r, h.queue.Unskip)
}

func (h *Handler) handleSkipChange(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, auctionID, playerID, teamID uuid.UUID, actor auth.Actor) error,
) {
	id, ok := auctionID(r)
	if !ok {
		writeErrorCode(w, http.StatusBadRequest, "BAD_REQUEST", "invalid auction id")
		return
	}
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}

	var body struct {
		PlayerID uuid.UUID `json:"player_id"`
		TeamID   uuid.UUID `json:"team_id"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	if err := op(r.Context(), id, body.PlayerID, body.TeamID, actor); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleAssignPlayer(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionID(r)
	if !ok {
		writeErrorCode(w, http.StatusBadRequest, "BAD_REQUEST", "invalid auction id")
		return
	}
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}

	result, err := h.sale.AssignPlayer(r.Context(), id, actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleUndoSale(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionID(r)
	if !ok {
		writeErrorCode(w, http.StatusBadRequest, "BAD_REQUEST", "invalid auction id")
		return
	}
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}

	restored, err := h.undo.UndoPlayerAssignment(r.Context(), id, actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, restored)
}

func (h *Handler) handleReplacePlayer(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionID(r)
	if !ok {
		writeErrorCode(w, http.StatusBadRequest, "BAD_REQUEST", "invalid auction id")
		return
	}
	actor, ok := requestActor(w, r)
	if !ok {
		return
	}

	var body struct {
		TeamID              uuid.UUID `json:"team_id"`
		OriginalQueuedID    uuid.UUID `json:"original_queued_id"`
		ReplacementPlayerID uuid.UUID `json:"replacement_player_id"`
		Reason              string    `json:"reason"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	record, err := h.undo.ReplacePlayer(r.Context(), undo.ReplaceRequest{
		AuctionID:           id,
		TeamID:              body.TeamID,
		OriginalQueuedID:    body.OriginalQueuedID,
		ReplacementPlayerID: body.ReplacementPlayerID,
		Reason:              body.Reason,
		Actor:               actor,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}
