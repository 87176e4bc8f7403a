package models

import (
	"github.com/google/uuid"
)

// Team represents a bidding team in an auction.
type Team struct {
	ID            uuid.UUID `json:"id"`
	AuctionID     uuid.UUID `json:"auction_id"`
	Name          string    `json:"name"`
	CaptainUserID uuid.UUID `json:"captain_user_id"`
	PurseInitial  int64     `json:"purse_initial"`
	PurseSpent    int64     `json:"purse_spent"`
	PlayerCount   int       `json:"player_count"`
}

// PurseRemaining is the budget still available for bids. Invariantly >= 0.
func (t Team) PurseRemaining() int64 {
	return t.PurseInitial - t.PurseSpent
}
