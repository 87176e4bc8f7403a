package models

import (
	"time"

	"github.com/google/uuid"
)

// ReplacementStatus defines the review state of a replacement request.
type ReplacementStatus string

const (
	ReplacementStatusPending  ReplacementStatus = "PENDING"
	ReplacementStatusApproved ReplacementStatus = "APPROVED"
	ReplacementStatusRejected ReplacementStatus = "REJECTED"
)

// ReplacementRecord audits a post-completion player substitution.
// Only created once the auction is completed.
type ReplacementRecord struct {
	ID                  uuid.UUID         `json:"id"`
	OriginalQueuedID    uuid.UUID         `json:"original_queued_id"`
	ReplacementPlayerID uuid.UUID         `json:"replacement_player_id"`
	TeamID              uuid.UUID         `json:"team_id"`
	Status              ReplacementStatus `json:"status"`
	Reason              string            `json:"reason"`
	RequestedBy         uuid.UUID         `json:"requested_by"`
	CreatedAt           time.Time         `json:"created_at"`
	ResolvedAt          *time.Time        `json:"resolved_at,omitempty"`
}
