package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftops/gavel/internal/bid"
)

func TestStatusFor(t *testing.T) {
	t.Parallel()

	cases := []struct {
		code string
		want int
	}{
		{bid.ErrBidOutdated.Code, http.StatusConflict},
		{bid.ErrAuctionNotLive.Code, http.StatusBadRequest},
		{bid.ErrInsufficientFunds.Code, http.StatusBadRequest},
		{bid.ErrInvalidIncrement.Code, http.StatusBadRequest},
		{bid.ErrNoCurrentPlayer.Code, http.StatusBadRequest},
		{bid.ErrNoWinningBid.Code, http.StatusBadRequest},
		{bid.ErrNoCompletedSale.Code, http.StatusBadRequest},
		{bid.ErrAuctionNotDone.Code, http.StatusBadRequest},
		{bid.ErrAlreadyReplaced.Code, http.StatusBadRequest},
		{bid.ErrReplacementTaken.Code, http.StatusBadRequest},
		{bid.ErrNotLatestBid.Code, http.StatusBadRequest},
		{bid.ErrPlayerNotCurrent.Code, http.StatusBadRequest},
		{bid.ErrPlayerUnavailable.Code, http.StatusBadRequest},
		{bid.ErrAuctionNotFound.Code, http.StatusNotFound},
		{bid.ErrTeamNotFound.Code, http.StatusNotFound},
		{bid.ErrBidNotFound.Code, http.StatusNotFound},
		{bid.ErrPlayerNotFound.Code, http.StatusNotFound},
		{bid.ErrPermissionDenied.Code, http.StatusForbidden},
		{"SOMETHING_ELSE", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			assert.Equal(t, tc.want, statusFor(tc.code))
		})
	}
}

func TestWriteError_DomainCodePassedThrough(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	writeError(rec, bid.ErrBidOutdated)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, bid.ErrBidOutdated.Code, body.Code)
}

func TestWriteError_UnknownErrorIsMasked(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	writeError(rec, errors.New("pq: connection reset"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "INTERNAL", body.Code)
	assert.NotContains(t, body.Message, "pq:")
}
