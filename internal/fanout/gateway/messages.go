package gateway

import (
	"time"

	"github.com/draftops/gavel/internal/fanout/events"
	"github.com/draftops/gavel/internal/models"
)

// Server message kinds pushed over the socket.
const (
	MessageTypeSnapshot   = "snapshot"
	MessageTypeEventBatch = "event_batch"
)

// ServerMessage is the frame written to WebSocket clients. A snapshot is
// sent once on connect; after that clients receive ordered event batches.
type ServerMessage struct {
	Type     string            `json:"type"`
	SentAt   time.Time         `json:"sent_at"`
	Snapshot *Snapshot         `json:"snapshot,omitempty"`
	Events   []events.Envelope `json:"events,omitempty"`
}

// Snapshot is the full auction view sent on (re)connect. It is always
// assembled straight from the store so a reconnecting client never
// inherits a stale cache entry.
type Snapshot struct {
	Auction    *models.Auction       `json:"auction"`
	Teams      []models.Team         `json:"teams"`
	Queue      []models.QueuedPlayer `json:"queue"`
	Current    *models.QueuedPlayer  `json:"current,omitempty"`
	RecentBids []models.Bid          `json:"recent_bids"`
}
