package bidding

import (
	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/metrics"
	"auction-engine/internal/models"
	"auction-engine/internal/notify"
	"auction-engine/internal/repository"
	"auction-engine/utils"
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// maxCommitAttempts bounds the re-read/re-validate loop after a lost compare-and-swap.
const maxCommitAttempts = 5

// BiddingService defines the business logic for auction bidding
type BiddingService struct {
	repo      repository.AuctionDB
	publisher notify.Publisher
	locks     *auctionLocks
}

// NewBiddingService creates a new BiddingService instance
func NewBiddingService(repo repository.AuctionDB, publisher notify.Publisher) *BiddingService {
	return &BiddingService{
		repo:      repo,
		publisher: publisher,
		locks:     newAuctionLocks(),
	}
}

// PlaceBid validates and commits a bid against an auction.
//
// Checks run in a fixed order and each failure has its own error: unknown auction, auction not
// active, deadline passed (which also settles the auction), amount not above the current bid,
// bidder is the seller, bidder unknown or inactive.
func (s *BiddingService) PlaceBid(ctx context.Context, auctionID, bidderID string, amount float64, now time.Time) (bid models.Bid, err error) {
	defer func() {
		outcome := "accepted"
		if err != nil {
			outcome = biddingerrors.Reason(err)
		}
		metrics.BidsTotal.WithLabelValues(outcome).Inc()
	}()

	if auctionID == "" || bidderID == "" {
		return models.Bid{}, fmt.Errorf("service: %w - missing auctionID or bidderID", biddingerrors.ErrInvalidBid)
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return models.Bid{}, fmt.Errorf("service: %w - bid amount is not a number", biddingerrors.ErrInvalidBid)
	}
	amount = roundAmount(amount)
	if amount <= 0 {
		return models.Bid{}, fmt.Errorf("service: %w - non-positive bid amount", biddingerrors.ErrInvalidBid)
	}

	unlock := s.locks.lock(auctionID)
	defer unlock()

	for attempt := 1; ; attempt++ {
		auction, err := s.repo.GetAuction(ctx, auctionID)
		if err != nil {
			return models.Bid{}, storeErr("get auction", err)
		}

		if auction.Status != models.StatusActive {
			return models.Bid{}, fmt.Errorf("service: %w - auction %s is %s", biddingerrors.ErrAuctionNotActive, auctionID, auction.Status)
		}
		if auction.Expired(now) {
			if _, _, settleErr := s.settleLocked(ctx, auction, now, triggerBid); settleErr != nil {
				utils.Error("PlaceBid: settlement of expired auction failed", map[string]any{
					"auction_id": auctionID,
					"error":      settleErr.Error(),
				})
			}
			return models.Bid{}, fmt.Errorf("service: %w - auction %s ended at %s", biddingerrors.ErrAuctionExpired, auctionID, auction.EndTime.Format(time.RFC3339))
		}
		if !exceeds(amount, auction.CurrentBid) {
			return models.Bid{}, fmt.Errorf("service: %w - current highest bid is %.2f", biddingerrors.ErrBidTooLow, auction.CurrentBid)
		}
		if bidderID == auction.SellerID {
			return models.Bid{}, fmt.Errorf("service: %w - auction %s", biddingerrors.ErrSelfBid, auctionID)
		}

		bidder, err := s.repo.GetUser(ctx, bidderID)
		switch {
		case errors.Is(err, biddingerrors.ErrUserNotFound):
			return models.Bid{}, fmt.Errorf("service: %w - %s", biddingerrors.ErrBidderNotFound, bidderID)
		case err != nil:
			return models.Bid{}, storeErr("get bidder", err)
		case !bidder.Active:
			return models.Bid{}, fmt.Errorf("service: %w - %s is inactive", biddingerrors.ErrBidderNotFound, bidderID)
		}

		bid = models.Bid{
			BidID:      utils.GenerateID(),
			AuctionID:  auctionID,
			BidderID:   bidderID,
			BidderName: bidder.Name,
			Amount:     amount,
			CreatedAt:  now,
		}

		updated, err := s.repo.CommitBid(ctx, bid, auction.Version)
		if errors.Is(err, biddingerrors.ErrConflict) && attempt < maxCommitAttempts {
			utils.Debug("PlaceBid: auction changed underneath, retrying", map[string]any{
				"auction_id": auctionID,
				"attempt":    attempt,
			})
			continue
		}
		if err != nil {
			return models.Bid{}, storeErr("commit bid", err)
		}

		event := notify.NewBidPlaced(updated)
		s.publish(notify.AuctionTopic(auctionID), event)
		s.publish(notify.GlobalTopic, event)

		return bid, nil
	}
}

// GetBidsForAuction returns all bids for an auction in acceptance order
func (s *BiddingService) GetBidsForAuction(ctx context.Context, auctionID string) ([]models.Bid, error) {
	if auctionID == "" {
		return nil, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidBid)
	}

	bids, err := s.repo.GetBidsByAuction(ctx, auctionID)
	if err != nil {
		return nil, storeErr(fmt.Sprintf("get bids for auction %s", auctionID), err)
	}
	return bids, nil
}

// GetBidsByBidder returns all bids a user has placed
func (s *BiddingService) GetBidsByBidder(ctx context.Context, bidderID string) ([]models.Bid, error) {
	if bidderID == "" {
		return nil, fmt.Errorf("service: %w - empty bidder ID", biddingerrors.ErrInvalidBid)
	}

	bids, err := s.repo.GetBidsByBidder(ctx, bidderID)
	if err != nil {
		return nil, storeErr(fmt.Sprintf("get bids for bidder %s", bidderID), err)
	}
	return bids, nil
}

// publish pushes a payload on a best-effort basis
func (s *BiddingService) publish(topic string, payload any) {
	if err := s.publisher.Publish(topic, payload); err != nil {
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		utils.Warn("notification publish failed", map[string]any{"topic": topic, "error": err.Error()})
	}
}

// publishToUser pushes a payload to a single user on a best-effort basis
func (s *BiddingService) publishToUser(userID string, payload any) {
	if err := s.publisher.PublishToUser(userID, payload); err != nil {
		metrics.NotificationsTotal.WithLabelValues("failed").Inc()
		utils.Warn("user notification failed", map[string]any{"user_id": userID, "error": err.Error()})
	}
}

// storeErr keeps domain errors as they are and classifies everything else as a store outage
func storeErr(op string, err error) error {
	if biddingerrors.Reason(err) != biddingerrors.ReasonInternal {
		return fmt.Errorf("service: %s: %w", op, err)
	}
	return fmt.Errorf("service: %s: %w: %v", op, biddingerrors.ErrStoreUnavailable, err)
}
