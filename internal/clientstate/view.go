package clientstate

import (
	"github.com/google/uuid"

	"github.com/draftops/gavel/internal/models"
)

// RecentBidCap bounds the bid ring buffer held per session.
const RecentBidCap = 100

// View is the denormalized auction state a client session renders from.
type View struct {
	Auction    *models.Auction
	Teams      map[uuid.UUID]models.Team
	Queue      []models.QueuedPlayer
	Current    *models.QueuedPlayer
	Winning    *models.Bid
	RecentBids []models.Bid
}

// Partial is a multi-field update applied as one transition. Nil fields
// are left untouched; SetCurrent distinguishes "clear current" from
// "no change".
type Partial struct {
	Auction    *models.Auction
	Teams      []models.Team
	Queue      []models.QueuedPlayer
	SetCurrent bool
	Current    *models.QueuedPlayer
	Winning    *models.Bid
}

func newView() *View {
	return &View{
		Teams: make(map[uuid.UUID]models.Team),
	}
}

// clone returns an independent copy safe to hand outside the worker
// goroutine.
func (v *View) clone() View {
	out := View{}
	if v.Auction != nil {
		a := *v.Auction
		out.Auction = &a
	}
	out.Teams = make(map[uuid.UUID]models.Team, len(v.Teams))
	for id, t := range v.Teams {
		out.Teams[id] = t
	}
	out.Queue = append([]models.QueuedPlayer(nil), v.Queue...)
	if v.Current != nil {
		c := *v.Current
		out.Current = &c
	}
	if v.Winning != nil {
		w := *v.Winning
		out.Winning = &w
	}
	out.RecentBids = append([]models.Bid(nil), v.RecentBids...)
	return out
}

func (v *View) apply(p Partial) {
	if p.Auction != nil {
		a := *p.Auction
		v.Auction = &a
	}
	if p.Teams != nil {
		v.Teams = make(map[uuid.UUID]models.Team, len(p.Teams))
		for _, t := range p.Teams {
			v.Teams[t.ID] = t
		}
	}
	if p.Queue != nil {
		v.Queue = append([]models.QueuedPlayer(nil), p.Queue...)
	}
	if p.SetCurrent {
		v.Current = p.Current
	}
	if p.Winning != nil {
		v.Winning = p.Winning
	}
}

// pushBid appends to the ring, evicting the oldest entry at capacity.
func (v *View) pushBid(b models.Bid) {
	v.RecentBids = append(v.RecentBids, b)
	if len(v.RecentBids) > RecentBidCap {
		v.RecentBids = v.RecentBids[len(v.RecentBids)-RecentBidCap:]
	}
}

func (v *View) queueIndex(queuedPlayerID uuid.UUID) int {
	for i := range v.Queue {
		if v.Queue[i].ID == queuedPlayerID {
			return i
		}
	}
	return -1
}
