package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Envelope is the wire format carried through the outbox and broker.
type Envelope struct {
	EventID   uuid.UUID       `json:"event_id"`
	EventType string          `json:"event_type"`
	AuctionID uuid.UUID       `json:"auction_id"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NewEnvelope wraps a payload for publication.
func NewEnvelope(auctionID uuid.UUID, eventType string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:   uuid.New(),
		EventType: eventType,
		AuctionID: auctionID,
		Timestamp: time.Now().UTC(),
		Payload:   raw,
	}, nil
}
