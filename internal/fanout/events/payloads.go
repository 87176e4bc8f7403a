package events

import (
	"time"

	"github.com/google/uuid"
)

// Event types carried on the auction change stream.
const (
	TypeBidPlaced            = "BidPlaced"
	TypeBidUndone            = "BidUndone"
	TypePlayerSold           = "PlayerSold"
	TypeSaleUndone           = "SaleUndone"
	TypeCurrentPlayerChanged = "CurrentPlayerChanged"
	TypePlayerSkipped        = "PlayerSkipped"
	TypePlayerUnskipped      = "PlayerUnskipped"
	TypePlayerReplaced       = "PlayerReplaced"
	TypeAuctionStarted       = "AuctionStarted"
	TypeAuctionCompleted     = "AuctionCompleted"
)

// BidPlacedPayload announces a newly accepted winning bid.
type BidPlacedPayload struct {
	BidID    uuid.UUID `json:"bid_id"`
	PlayerID uuid.UUID `json:"player_id"`
	TeamID   uuid.UUID `json:"team_id"`
	Amount   int64     `json:"amount"`
	PlacedAt time.Time `json:"placed_at"`
}

// BidUndonePayload announces a reversed bid and the bid promoted in its place.
type BidUndonePayload struct {
	BidID         uuid.UUID  `json:"bid_id"`
	PlayerID      uuid.UUID  `json:"player_id"`
	PromotedBidID *uuid.UUID `json:"promoted_bid_id,omitempty"`
	UndoneAt      time.Time  `json:"undone_at"`
}

// PlayerSoldPayload announces a completed sale.
type PlayerSoldPayload struct {
	QueuedPlayerID uuid.UUID `json:"queued_player_id"`
	PlayerID       uuid.UUID `json:"player_id"`
	TeamID         uuid.UUID `json:"team_id"`
	Price          int64     `json:"price"`
	SoldAt         time.Time `json:"sold_at"`
}

// SaleUndonePayload announces reversal of the most recent sale.
type SaleUndonePayload struct {
	QueuedPlayerID uuid.UUID `json:"queued_player_id"`
	PlayerID       uuid.UUID `json:"player_id"`
	TeamID         uuid.UUID `json:"team_id"`
	RefundedPrice  int64     `json:"refunded_price"`
	UndoneAt       time.Time `json:"undone_at"`
}

// CurrentPlayerChangedPayload announces cursor movement. PlayerID is nil
// when the auction has no current player.
type CurrentPlayerChangedPayload struct {
	QueuedPlayerID *uuid.UUID `json:"queued_player_id,omitempty"`
	PlayerID       *uuid.UUID `json:"player_id,omitempty"`
	ChangedAt      time.Time  `json:"changed_at"`
}

// PlayerSkippedPayload announces a per-team skip declaration.
type PlayerSkippedPayload struct {
	PlayerID  uuid.UUID `json:"player_id"`
	TeamID    uuid.UUID `json:"team_id"`
	SkippedAt time.Time `json:"skipped_at"`
}

// PlayerReplacedPayload announces a post-completion substitution.
type PlayerReplacedPayload struct {
	OriginalQueuedID    uuid.UUID `json:"original_queued_id"`
	ReplacementPlayerID uuid.UUID `json:"replacement_player_id"`
	TeamID              uuid.UUID `json:"team_id"`
	ReplacedAt          time.Time `json:"replaced_at"`
}

// AuctionStatusPayload announces auction lifecycle changes.
type AuctionStatusPayload struct {
	Status    string    `json:"status"`
	ChangedAt time.Time `json:"changed_at"`
}
