package bid

import "errors"

// Error is a member of the closed error-code set returned by auction
// operations. Callers translate codes to transport status; free text
// never crosses the API boundary.
type Error struct {
	Code string
}

func (e *Error) Error() string {
	return e.Code
}

var (
	ErrAuctionNotFound   = &Error{Code: "AUCTION_NOT_FOUND"}
	ErrAuctionNotLive    = &Error{Code: "AUCTION_NOT_LIVE"}
	ErrPermissionDenied  = &Error{Code: "PERMISSION_DENIED"}
	ErrTeamNotFound      = &Error{Code: "TEAM_NOT_FOUND"}
	ErrNoCurrentPlayer   = &Error{Code: "NO_CURRENT_PLAYER"}
	ErrInvalidIncrement  = &Error{Code: "INVALID_INCREMENT"}
	ErrInsufficientFunds = &Error{Code: "INSUFFICIENT_FUNDS"}
	ErrBidOutdated       = &Error{Code: "BID_OUTDATED"}

	ErrBidNotFound       = &Error{Code: "BID_NOT_FOUND"}
	ErrPlayerNotFound    = &Error{Code: "PLAYER_NOT_FOUND"}
	ErrNoWinningBid      = &Error{Code: "NO_WINNING_BID"}
	ErrNoCompletedSale   = &Error{Code: "NO_COMPLETED_SALE"}
	ErrAuctionNotDone    = &Error{Code: "AUCTION_NOT_COMPLETED"}
	ErrAlreadyReplaced   = &Error{Code: "ALREADY_REPLACED"}
	ErrReplacementTaken  = &Error{Code: "REPLACEMENT_ALREADY_SOLD"}
	ErrNotLatestBid      = &Error{Code: "NOT_LATEST_BID"}
	ErrPlayerNotCurrent  = &Error{Code: "PLAYER_NOT_CURRENT"}
	ErrPlayerUnavailable = &Error{Code: "PLAYER_NOT_AVAILABLE"}
)

// CodeOf extracts the code from a domain error, if it carries one.
func CodeOf(err error) (string, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}
