package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is a pending row in the outbox table. Rows are written in the
// same transaction as the state change they describe and published by
// the poller afterwards.
type Event struct {
	ID        uuid.UUID
	AuctionID uuid.UUID
	EventType string
	Payload   json.RawMessage
	CreatedAt time.Time
	SentAt    *time.Time
}

// EventPublisher delivers one outbox event to the broker.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}
