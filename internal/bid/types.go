package bid

import (
	"github.com/google/uuid"

	"github.com/draftops/gavel/internal/auth"
	"github.com/draftops/gavel/internal/models"
)

// PlaceBidRequest carries one bid attempt into the authority.
type PlaceBidRequest struct {
	AuctionID uuid.UUID
	TeamID    uuid.UUID
	Amount    int64
	Actor     auth.Actor
}

// PlaceBidResult reports the accepted bid and the amount now leading.
type PlaceBidResult struct {
	Bid                  models.Bid `json:"bid"`
	CurrentWinningAmount int64      `json:"current_winning_amount"`
}

// ListBidsRequest filters the bid history read.
type ListBidsRequest struct {
	AuctionID uuid.UUID
	PlayerID  *uuid.UUID
	Limit     int
}

// MaxListLimit caps bid-list reads.
const MaxListLimit = 100
