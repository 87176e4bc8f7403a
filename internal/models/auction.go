package models

import (
	"time"

	"github.com/google/uuid"
)

// AuctionStatus defines the lifecycle state of an auction.
type AuctionStatus string

const (
	AuctionStatusDraft     AuctionStatus = "DRAFT"
	AuctionStatusLive      AuctionStatus = "LIVE"
	AuctionStatusCompleted AuctionStatus = "COMPLETED"
)

// AuctionSettings holds per-auction bidding configuration.
type AuctionSettings struct {
	MinBidIncrement   int64 `json:"min_bid_increment"`
	AutoAdvanceOnSale bool  `json:"auto_advance_on_sale"`
}

// Auction represents a live player auction for a tournament.
type Auction struct {
	ID           uuid.UUID       `json:"id"`
	TournamentID uuid.UUID       `json:"tournament_id"`
	HostUserID   uuid.UUID       `json:"host_user_id"`
	Status       AuctionStatus   `json:"status"`
	Settings     AuctionSettings `json:"settings"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
