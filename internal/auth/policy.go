package auth

import (
	"errors"

	"github.com/draftops/gavel/internal/models"
)

// ErrPermissionDenied means the actor may not perform the operation.
var ErrPermissionDenied = errors.New("permission denied")

// CanAct is the single authorization policy for mutating operations:
// admins always pass, the auction's host passes, and a team captain
// passes only for their own team. A nil team restricts the operation
// to admin/host (cursor control, undo, replacement).
func CanAct(actor Actor, auction *models.Auction, team *models.Team) error {
	if actor.IsAdmin() {
		return nil
	}
	if auction != nil && auction.HostUserID == actor.UserID {
		return nil
	}
	if team != nil && team.CaptainUserID == actor.UserID {
		return nil
	}
	return ErrPermissionDenied
}
