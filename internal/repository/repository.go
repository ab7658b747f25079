package repository

//go:generate mockgen -destination=mock_repository.go -package=repository auction-engine/internal/repository AuctionDB

import (
	"auction-engine/internal/biddingerrors"
	model "auction-engine/internal/models"
	"auction-engine/utils"
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"
)

// AuctionStore holds auctions and performs the conditional writes that serialize bids and
// lifecycle transitions on a single auction
type AuctionStore interface {
	CreateAuction(ctx context.Context, auction model.Auction) (model.Auction, error)
	GetAuction(ctx context.Context, auctionID string) (model.Auction, error)
	FindAuctionsBySeller(ctx context.Context, sellerID string) ([]model.Auction, error)
	FindAuctionsByStatus(ctx context.Context, status model.AuctionStatus) ([]model.Auction, error)
	FindAuctionsEndingBefore(ctx context.Context, t time.Time) ([]model.Auction, error)
	FindAuctionsEndingAfter(ctx context.Context, t time.Time, status model.AuctionStatus) ([]model.Auction, error)

	// CommitBid stores bid and applies it to its auction in one step. It fails with
	// ErrConflict unless the auction is ACTIVE and still at expectedVersion.
	CommitBid(ctx context.Context, bid model.Bid, expectedVersion int64) (model.Auction, error)

	// UpdateAuctionStatus moves an ACTIVE auction at expectedVersion into a terminal status and
	// stores messages in the same step. It fails with ErrConflict otherwise.
	UpdateAuctionStatus(ctx context.Context, auctionID string, expectedVersion int64, status model.AuctionStatus, at time.Time, messages []model.Message) (model.Auction, error)
}

// BidStore reads the bid history
type BidStore interface {
	GetBidsByAuction(ctx context.Context, auctionID string) ([]model.Bid, error)
	GetBidsByBidder(ctx context.Context, bidderID string) ([]model.Bid, error)
}

// MessageStore holds inbox messages
type MessageStore interface {
	SaveMessage(ctx context.Context, msg model.Message) (model.Message, error)
	GetMessage(ctx context.Context, messageID string) (model.Message, error)
	GetMessagesByRecipient(ctx context.Context, recipientID string, unreadOnly bool) ([]model.Message, error)
	MarkMessageRead(ctx context.Context, messageID string) (model.Message, error)
}

// UserStore mirrors identities issued by the identity provider
type UserStore interface {
	SaveUser(ctx context.Context, user model.User) (model.User, error)
	ToggleUserActive(ctx context.Context, userID string, at time.Time) (model.User, error)
	GetUser(ctx context.Context, userID string) (model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
}

// AuctionDB defines the entity storage interface for the auction system
type AuctionDB interface {
	AuctionStore
	BidStore
	MessageStore
	UserStore
}

// MemoryRepo is a concurrency-safe in-memory implementation of AuctionDB
type MemoryRepo struct {
	mu         sync.RWMutex
	auctions   map[string]model.Auction
	bids       map[string][]model.Bid // key: auctionID -> bids in acceptance order
	bidderBids map[string][]model.Bid // key: bidderID -> bids in acceptance order
	messages   map[string]model.Message
	users      map[string]model.User
}

var _ AuctionDB = (*MemoryRepo)(nil)

// NewMemoryRepo creates a new in-memory repository instance
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		auctions:   make(map[string]model.Auction),
		bids:       make(map[string][]model.Bid),
		bidderBids: make(map[string][]model.Bid),
		messages:   make(map[string]model.Message),
		users:      make(map[string]model.User),
	}
}

// CreateAuction stores a new auction, assigning its ID and initial version
func (r *MemoryRepo) CreateAuction(_ context.Context, auction model.Auction) (model.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if auction.AuctionID == "" {
		auction.AuctionID = utils.GenerateID()
	}
	if _, exists := r.auctions[auction.AuctionID]; exists {
		return model.Auction{}, fmt.Errorf("create auction %s: %w", auction.AuctionID, biddingerrors.ErrConflict)
	}
	if auction.BidIDs == nil {
		auction.BidIDs = []string{}
	}
	auction.Version = 1

	r.auctions[auction.AuctionID] = cloneAuction(auction)
	return cloneAuction(auction), nil
}

// GetAuction returns a single auction
func (r *MemoryRepo) GetAuction(_ context.Context, auctionID string) (model.Auction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	auction, ok := r.auctions[auctionID]
	if !ok {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	return cloneAuction(auction), nil
}

// FindAuctionsBySeller returns the auctions listed by sellerID
func (r *MemoryRepo) FindAuctionsBySeller(_ context.Context, sellerID string) ([]model.Auction, error) {
	return r.filterAuctions(func(a model.Auction) bool { return a.SellerID == sellerID }), nil
}

// FindAuctionsByStatus returns the auctions currently in status
func (r *MemoryRepo) FindAuctionsByStatus(_ context.Context, status model.AuctionStatus) ([]model.Auction, error) {
	return r.filterAuctions(func(a model.Auction) bool { return a.Status == status }), nil
}

// FindAuctionsEndingBefore returns auctions whose deadline is strictly before t, in any status
func (r *MemoryRepo) FindAuctionsEndingBefore(_ context.Context, t time.Time) ([]model.Auction, error) {
	return r.filterAuctions(func(a model.Auction) bool { return a.EndTime.Before(t) }), nil
}

// FindAuctionsEndingAfter returns auctions in status whose deadline is strictly after t
func (r *MemoryRepo) FindAuctionsEndingAfter(_ context.Context, t time.Time, status model.AuctionStatus) ([]model.Auction, error) {
	return r.filterAuctions(func(a model.Auction) bool { return a.Status == status && a.EndTime.After(t) }), nil
}

// CommitBid records bid and updates the owning auction atomically
func (r *MemoryRepo) CommitBid(_ context.Context, bid model.Bid, expectedVersion int64) (model.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	auction, ok := r.auctions[bid.AuctionID]
	if !ok {
		return model.Auction{}, fmt.Errorf("commit bid for auction %s: %w", bid.AuctionID, biddingerrors.ErrAuctionNotFound)
	}
	if auction.Version != expectedVersion || auction.Status != model.StatusActive {
		return model.Auction{}, fmt.Errorf("commit bid for auction %s at version %d: %w", bid.AuctionID, expectedVersion, biddingerrors.ErrConflict)
	}

	auction = cloneAuction(auction)
	auction.CurrentBid = bid.Amount
	auction.CurrentBidderID = bid.BidderID
	auction.CurrentBidderName = bid.BidderName
	auction.BidIDs = append(auction.BidIDs, bid.BidID)
	auction.UpdatedAt = bid.CreatedAt
	auction.Version++

	r.auctions[auction.AuctionID] = auction
	r.bids[bid.AuctionID] = append(r.bids[bid.AuctionID], bid)
	r.bidderBids[bid.BidderID] = append(r.bidderBids[bid.BidderID], bid)

	return cloneAuction(auction), nil
}

// UpdateAuctionStatus performs a terminal transition and stores the accompanying messages
func (r *MemoryRepo) UpdateAuctionStatus(_ context.Context, auctionID string, expectedVersion int64, status model.AuctionStatus, at time.Time, messages []model.Message) (model.Auction, error) {
	if !status.Terminal() {
		return model.Auction{}, fmt.Errorf("update auction %s to %s: %w", auctionID, status, biddingerrors.ErrInvalidAuction)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	auction, ok := r.auctions[auctionID]
	if !ok {
		return model.Auction{}, fmt.Errorf("update auction %s: %w", auctionID, biddingerrors.ErrAuctionNotFound)
	}
	if auction.Version != expectedVersion || auction.Status != model.StatusActive {
		return model.Auction{}, fmt.Errorf("update auction %s at version %d: %w", auctionID, expectedVersion, biddingerrors.ErrConflict)
	}

	auction = cloneAuction(auction)
	auction.Status = status
	auction.UpdatedAt = at
	auction.Version++
	r.auctions[auctionID] = auction

	for _, msg := range messages {
		if msg.MessageID == "" {
			msg.MessageID = utils.GenerateID()
		}
		r.messages[msg.MessageID] = msg
	}

	return cloneAuction(auction), nil
}

// GetBidsByAuction returns all bids for an auction in acceptance order
func (r *MemoryRepo) GetBidsByAuction(_ context.Context, auctionID string) ([]model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]model.Bid{}, r.bids[auctionID]...), nil
}

// GetBidsByBidder returns all bids placed by a user in acceptance order
func (r *MemoryRepo) GetBidsByBidder(_ context.Context, bidderID string) ([]model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]model.Bid{}, r.bidderBids[bidderID]...), nil
}

// SaveMessage inserts or replaces a message
func (r *MemoryRepo) SaveMessage(_ context.Context, msg model.Message) (model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if msg.MessageID == "" {
		msg.MessageID = utils.GenerateID()
	}
	r.messages[msg.MessageID] = msg
	return msg, nil
}

// GetMessage returns a single message
func (r *MemoryRepo) GetMessage(_ context.Context, messageID string) (model.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	msg, ok := r.messages[messageID]
	if !ok {
		return model.Message{}, fmt.Errorf("get message %s: %w", messageID, biddingerrors.ErrMessageNotFound)
	}
	return msg, nil
}

// GetMessagesByRecipient returns the recipient's messages, newest first
func (r *MemoryRepo) GetMessagesByRecipient(_ context.Context, recipientID string, unreadOnly bool) ([]model.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []model.Message{}
	for _, msg := range r.messages {
		if msg.RecipientID != recipientID || (unreadOnly && msg.Read) {
			continue
		}
		out = append(out, msg)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].MessageID < out[j].MessageID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// MarkMessageRead flips the read flag of a message
func (r *MemoryRepo) MarkMessageRead(_ context.Context, messageID string) (model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg, ok := r.messages[messageID]
	if !ok {
		return model.Message{}, fmt.Errorf("mark message %s read: %w", messageID, biddingerrors.ErrMessageNotFound)
	}
	msg.Read = true
	r.messages[messageID] = msg
	return msg, nil
}

// SaveUser inserts a user. An existing user only takes the new name, email, roles and update
// time; its active flag and creation time are kept.
func (r *MemoryRepo) SaveUser(_ context.Context, user model.User) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user.UserID == "" {
		user.UserID = utils.GenerateID()
	}
	if existing, ok := r.users[user.UserID]; ok {
		user.Active = existing.Active
		user.CreatedAt = existing.CreatedAt
	}
	user.Roles = slices.Clone(user.Roles)
	r.users[user.UserID] = user
	return cloneUser(user), nil
}

// ToggleUserActive flips the active flag of a user in place
func (r *MemoryRepo) ToggleUserActive(_ context.Context, userID string, at time.Time) (model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[userID]
	if !ok {
		return model.User{}, fmt.Errorf("toggle user %s: %w", userID, biddingerrors.ErrUserNotFound)
	}
	user.Active = !user.Active
	user.UpdatedAt = at
	r.users[userID] = user
	return cloneUser(user), nil
}

// GetUser returns a single user
func (r *MemoryRepo) GetUser(_ context.Context, userID string) (model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[userID]
	if !ok {
		return model.User{}, fmt.Errorf("get user %s: %w", userID, biddingerrors.ErrUserNotFound)
	}
	return cloneUser(user), nil
}

// ListUsers returns every known user ordered by creation time
func (r *MemoryRepo) ListUsers(_ context.Context) ([]model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, cloneUser(u))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].UserID < out[j].UserID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepo) filterAuctions(keep func(model.Auction) bool) []model.Auction {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []model.Auction{}
	for _, a := range r.auctions {
		if keep(a) {
			out = append(out, cloneAuction(a))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].AuctionID < out[j].AuctionID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func cloneAuction(a model.Auction) model.Auction {
	a.BidIDs = slices.Clone(a.BidIDs)
	if a.BidIDs == nil {
		a.BidIDs = []string{}
	}
	return a
}

func cloneUser(u model.User) model.User {
	u.Roles = slices.Clone(u.Roles)
	return u
}
