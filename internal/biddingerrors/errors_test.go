package biddingerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReason(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{err: nil, want: ""},
		{err: ErrAuctionNotFound, want: ReasonNotFound},
		{err: fmt.Errorf("get user x: %w", ErrUserNotFound), want: ReasonNotFound},
		{err: ErrInvalidBid, want: ReasonValidation},
		{err: ErrSellerNotFound, want: ReasonValidation},
		{err: ErrAuctionNotActive, want: ReasonAuctionNotActive},
		{err: ErrAuctionExpired, want: ReasonAuctionExpired},
		{err: fmt.Errorf("service: %w - current highest bid is 20.00", ErrBidTooLow), want: ReasonBidTooLow},
		{err: ErrSelfBid, want: ReasonSelfBid},
		{err: ErrBidderNotFound, want: ReasonBidderNotFound},
		{err: ErrForbidden, want: ReasonUnauthorized},
		{err: fmt.Errorf("op: %w: disk full", ErrStoreUnavailable), want: ReasonStoreUnavailable},
		{err: ErrConflict, want: ReasonConflict},
		{err: ErrNotificationFailure, want: ReasonNotificationFailure},
		{err: errors.New("boom"), want: ReasonInternal},
	}

	for _, tc := range tests {
		tc := tc
		name := "nil"
		if tc.err != nil {
			name = tc.err.Error()
		}
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, Reason(tc.err))
		})
	}
}
