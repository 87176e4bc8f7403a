package models

import (
	"time"

	"github.com/google/uuid"
)

// Bid is an append-only record of a bid attempt that was accepted.
// Bids are never deleted, only flagged undone. For a given
// (auction, player) at most one bid has IsWinning=true && !IsUndone.
type Bid struct {
	ID        uuid.UUID  `json:"id"`
	AuctionID uuid.UUID  `json:"auction_id"`
	PlayerID  uuid.UUID  `json:"player_id"`
	TeamID    uuid.UUID  `json:"team_id"`
	Amount    int64      `json:"amount"`
	IsWinning bool       `json:"is_winning"`
	IsUndone  bool       `json:"is_undone"`
	CreatedAt time.Time  `json:"created_at"`
	UndoneAt  *time.Time `json:"undone_at,omitempty"`
	UndoneBy  *uuid.UUID `json:"undone_by,omitempty"`
}

// SkipRecord declares a team's disinterest in a player. Unique per
// (auction, player, team); it never affects global bid state.
type SkipRecord struct {
	ID        uuid.UUID `json:"id"`
	AuctionID uuid.UUID `json:"auction_id"`
	PlayerID  uuid.UUID `json:"player_id"`
	TeamID    uuid.UUID `json:"team_id"`
	SkippedAt time.Time `json:"skipped_at"`
}
