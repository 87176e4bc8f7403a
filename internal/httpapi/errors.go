package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/draftops/gavel/internal/bid"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusFor maps domain error codes onto HTTP statuses. BID_OUTDATED is
// the only conflict: the client raced another bidder and must refetch.
func statusFor(code string) int {
	switch code {
	case bid.ErrBidOutdated.Code:
		return http.StatusConflict
	case bid.ErrAuctionNotLive.Code,
		bid.ErrInsufficientFunds.Code,
		bid.ErrInvalidIncrement.Code,
		bid.ErrNoCurrentPlayer.Code,
		bid.ErrNoWinningBid.Code,
		bid.ErrNoCompletedSale.Code,
		bid.ErrAuctionNotDone.Code,
		bid.ErrAlreadyReplaced.Code,
		bid.ErrReplacementTaken.Code,
		bid.ErrNotLatestBid.Code,
		bid.ErrPlayerNotCurrent.Code,
		bid.ErrPlayerUnavailable.Code:
		return http.StatusBadRequest
	case bid.ErrTeamNotFound.Code,
		bid.ErrAuctionNotFound.Code,
		bid.ErrBidNotFound.Code,
		bid.ErrPlayerNotFound.Code:
		return http.StatusNotFound
	case bid.ErrPermissionDenied.Code:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func writeErrorCode(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Code: code, Message: message})
}

// writeError translates a domain error into a response. Unknown errors
// are logged and masked with a generic body.
func writeError(w http.ResponseWriter, err error) {
	if code, ok := bid.CodeOf(err); ok {
		writeErrorCode(w, statusFor(code), code, err.Error())
		return
	}
	log.Error().Err(err).Msg("unhandled error")
	writeErrorCode(w, http.StatusInternalServerError, "INTERNAL", "internal error")
}
