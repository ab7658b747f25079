package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	bidding "auction-engine/internal/biddingService"
	"auction-engine/internal/biddingerrors"
	model "auction-engine/internal/models"
	"auction-engine/internal/notify"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(db), mock
}

func TestCommitBid_GuardedUpdate(t *testing.T) {
	t.Parallel()

	bid := model.Bid{BidID: "b1", AuctionID: "a1", BidderID: "bob", BidderName: "Bob", Amount: 15, CreatedAt: time.Now()}

	tests := []struct {
		name    string
		setup   func(mock sqlmock.Sqlmock)
		wantErr error
	}{
		{
			name: "version_moved",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("UPDATE auctions").
					WithArgs(15.0, "bob", "Bob", sqlmock.AnyArg(), "a1", int64(3), "ACTIVE").
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery("SELECT 1 FROM auctions").WithArgs("a1").
					WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
				mock.ExpectRollback()
			},
			wantErr: biddingerrors.ErrConflict,
		},
		{
			name: "auction_gone",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("UPDATE auctions").WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery("SELECT 1 FROM auctions").WithArgs("a1").
					WillReturnRows(sqlmock.NewRows([]string{"1"}))
				mock.ExpectRollback()
			},
			wantErr: biddingerrors.ErrAuctionNotFound,
		},
		{
			name: "bid_insert_fails",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("UPDATE auctions").WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec("INSERT INTO bids").WillReturnError(errors.New("disk I/O error"))
				mock.ExpectRollback()
			},
		},
		{
			name: "begin_fails",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin().WillReturnError(errors.New("database is locked"))
			},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			store, mock := newMockStore(t)
			tc.setup(mock)

			_, err := store.CommitBid(context.Background(), bid, 3)
			require.Error(t, err)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
			} else {
				require.Equal(t, biddingerrors.ReasonInternal, biddingerrors.Reason(err))
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUpdateAuctionStatus_MessageFailureRollsBack(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE auctions SET status").
		WithArgs("ENDED", sqlmock.AnyArg(), "a1", int64(2), "ACTIVE").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO messages").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := store.UpdateAuctionStatus(context.Background(), "a1", 2, model.StatusEnded, time.Now(), []model.Message{
		{MessageID: "m1", RecipientID: "bob", Type: model.MessageAuctionWon},
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestServiceReportsStoreOutage(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT (.+) FROM auctions WHERE id").WithArgs("a1").
		WillReturnError(errors.New("disk I/O error"))

	svc := bidding.NewBiddingService(store, notify.NewHub(1))
	_, err := svc.PlaceBid(context.Background(), "a1", "bob", 15, time.Now())
	require.ErrorIs(t, err, biddingerrors.ErrStoreUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestToggleUserActive_SingleStatement(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec(`UPDATE users SET active = NOT active`).
		WithArgs(sqlmock.AnyArg(), "bob").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM users WHERE id").WithArgs("bob").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "roles", "active", "created_at", "updated_at"}).
			AddRow("bob", "Bob", "", "user", false, int64(0), int64(0)))

	user, err := store.ToggleUserActive(context.Background(), "bob", time.Now())
	require.NoError(t, err)
	require.False(t, user.Active)
	require.NoError(t, mock.ExpectationsWereMet())
}
