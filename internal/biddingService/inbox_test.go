package bidding

import (
	"auction-engine/internal/biddingerrors"
	model "auction-engine/internal/models"
	"auction-engine/internal/notify"
	"auction-engine/internal/repository"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Tests SendMessage, inbox listing and MarkMessageRead
func TestBiddingService_Messages(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	service, _, pub := newScenario(t)

	first, err := service.SendMessage(ctx, "alice", model.NewMessage{RecipientID: "bob", Content: " hello "}, baseTime)
	require.NoError(t, err)
	require.Equal(t, model.MessageSystemNotification, first.Type)
	require.Equal(t, "hello", first.Content)
	require.Equal(t, "alice", first.SenderID)

	second, err := service.SendMessage(ctx, "alice", model.NewMessage{RecipientID: "bob", Content: "again"}, baseTime.Add(time.Minute))
	require.NoError(t, err)

	notices := pub.on(notify.UserQueue("bob"))
	require.Len(t, notices, 2)
	require.Equal(t, notify.TypeNewMessage, notices[0].(notify.UserNotice).Type)

	inbox, err := service.GetMessages(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, inbox, 2)
	require.Equal(t, second.MessageID, inbox[0].MessageID)

	_, err = service.MarkMessageRead(ctx, first.MessageID, "carol")
	require.ErrorIs(t, err, biddingerrors.ErrForbidden)

	read, err := service.MarkMessageRead(ctx, first.MessageID, "bob")
	require.NoError(t, err)
	require.True(t, read.Read)

	// marking twice is harmless
	read, err = service.MarkMessageRead(ctx, first.MessageID, "bob")
	require.NoError(t, err)
	require.True(t, read.Read)

	unread, err := service.GetUnreadMessages(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, unread, 1)
	require.Equal(t, second.MessageID, unread[0].MessageID)

	_, err = service.MarkMessageRead(ctx, "missing", "bob")
	require.ErrorIs(t, err, biddingerrors.ErrMessageNotFound)
}

// Tests SendMessage validation
func TestBiddingService_SendMessage_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		senderID      string
		req           model.NewMessage
		expectedError error
	}{
		{name: "empty_sender", senderID: "", req: model.NewMessage{RecipientID: "bob", Content: "hi"}, expectedError: biddingerrors.ErrInvalidMessage},
		{name: "empty_recipient", senderID: "alice", req: model.NewMessage{Content: "hi"}, expectedError: biddingerrors.ErrInvalidMessage},
		{name: "blank_content", senderID: "alice", req: model.NewMessage{RecipientID: "bob", Content: "   "}, expectedError: biddingerrors.ErrInvalidMessage},
		{name: "unknown_type", senderID: "alice", req: model.NewMessage{RecipientID: "bob", Content: "hi", Type: "SPAM"}, expectedError: biddingerrors.ErrInvalidMessage},
		{name: "unknown_recipient", senderID: "alice", req: model.NewMessage{RecipientID: "ghost", Content: "hi"}, expectedError: biddingerrors.ErrUserNotFound},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			service, _, _ := newScenario(t)
			_, err := service.SendMessage(context.Background(), tc.senderID, tc.req, baseTime)
			require.ErrorIs(t, err, tc.expectedError)
		})
	}
}

// Tests profile sync, listing and status toggling
func TestBiddingService_Users(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	service, _, _ := newScenario(t)

	dave, err := service.SyncProfile(ctx, model.User{UserID: "dave", Name: "Dave", Email: "dave@example.com"}, baseTime)
	require.NoError(t, err)
	require.True(t, dave.Active)
	require.Equal(t, []string{model.RoleUser}, dave.Roles)

	toggled, err := service.ToggleUserStatus(ctx, "dave", baseTime.Add(time.Minute))
	require.NoError(t, err)
	require.False(t, toggled.Active)

	// a later sync keeps the active flag and creation time
	synced, err := service.SyncProfile(ctx, model.User{UserID: "dave", Name: "David", Roles: []string{model.RoleAdmin}}, baseTime.Add(time.Hour))
	require.NoError(t, err)
	require.False(t, synced.Active)
	require.Equal(t, "David", synced.Name)
	require.Equal(t, baseTime, synced.CreatedAt)
	require.True(t, synced.HasRole(model.RoleAdmin))

	auction := createLamp(t, service, 10)
	_, err = service.PlaceBid(ctx, auction.AuctionID, "dave", 15, baseTime.Add(time.Minute))
	require.ErrorIs(t, err, biddingerrors.ErrBidderNotFound)

	profile, err := service.GetProfile(ctx, "dave")
	require.NoError(t, err)
	require.Equal(t, "David", profile.Name)

	users, err := service.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 4)

	_, err = service.SyncProfile(ctx, model.User{UserID: "x"}, baseTime)
	require.ErrorIs(t, err, biddingerrors.ErrInvalidUser)

	_, err = service.ToggleUserStatus(ctx, "ghost", baseTime)
	require.ErrorIs(t, err, biddingerrors.ErrUserNotFound)
}

// deactivatingRepo lets an admin deactivation land just before a profile write
type deactivatingRepo struct {
	*repository.MemoryRepo
	once sync.Once
}

func (r *deactivatingRepo) SaveUser(ctx context.Context, user model.User) (model.User, error) {
	var err error
	r.once.Do(func() {
		_, err = r.ToggleUserActive(ctx, user.UserID, baseTime.Add(time.Minute))
	})
	if err != nil {
		return model.User{}, err
	}
	return r.MemoryRepo.SaveUser(ctx, user)
}

// Tests that a deactivation racing a profile sync is not undone by the sync
func TestBiddingService_SyncProfile_KeepsConcurrentDeactivation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, mem, _ := newScenario(t)
	repo := &deactivatingRepo{MemoryRepo: mem}
	service := NewBiddingService(repo, newRecordingPublisher())

	synced, err := service.SyncProfile(ctx, model.User{UserID: "bob", Name: "Robert", Email: "bob@example.com"}, baseTime.Add(time.Hour))
	require.NoError(t, err)
	require.False(t, synced.Active)
	require.Equal(t, "Robert", synced.Name)
	require.Equal(t, baseTime, synced.CreatedAt)

	auction := createLamp(t, service, 10)
	_, err = service.PlaceBid(ctx, auction.AuctionID, "bob", 15, baseTime.Add(time.Minute))
	require.ErrorIs(t, err, biddingerrors.ErrBidderNotFound)
}

// Tests that interleaved syncs and toggles never lose a toggle
func TestBiddingService_SyncProfile_ConcurrentToggles(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	service, _, _ := newScenario(t)

	const rounds = 50
	var wg sync.WaitGroup
	errs := make(chan error, 2*rounds)
	for i := 0; i < rounds; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := service.SyncProfile(ctx, model.User{UserID: "carol", Name: "Carol"}, baseTime.Add(time.Hour))
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := service.ToggleUserStatus(ctx, "carol", baseTime.Add(time.Hour))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// an even number of toggles leaves carol active
	carol, err := service.GetProfile(ctx, "carol")
	require.NoError(t, err)
	require.True(t, carol.Active)
}
