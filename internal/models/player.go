package models

import (
	"time"

	"github.com/google/uuid"
)

// Player is the pool entry teams bid on.
type Player struct {
	ID        uuid.UUID `json:"id"`
	FullName  string    `json:"full_name"`
	IsCaptain bool      `json:"is_captain"`
	BasePrice int64     `json:"base_price"`
}

// QueuedPlayerStatus defines the auction-local state of a queued player.
type QueuedPlayerStatus string

const (
	QueuedPlayerAvailable QueuedPlayerStatus = "AVAILABLE"
	QueuedPlayerSold      QueuedPlayerStatus = "SOLD"
	QueuedPlayerReplaced  QueuedPlayerStatus = "REPLACED"
)

// QueuedPlayer ties a player into an auction's ordered queue.
// At most one QueuedPlayer per live auction has IsCurrent=true.
type QueuedPlayer struct {
	ID           uuid.UUID          `json:"id"`
	AuctionID    uuid.UUID          `json:"auction_id"`
	PlayerID     uuid.UUID          `json:"player_id"`
	Status       QueuedPlayerStatus `json:"status"`
	IsCurrent    bool               `json:"is_current"`
	DisplayOrder int                `json:"display_order"`
	SoldTo       *uuid.UUID         `json:"sold_to,omitempty"`
	SoldPrice    *int64             `json:"sold_price,omitempty"`
	SoldAt       *time.Time         `json:"sold_at,omitempty"`
	IsReplaced   bool               `json:"is_replaced"`
	ReplacedBy   *uuid.UUID         `json:"replaced_by,omitempty"`
}
