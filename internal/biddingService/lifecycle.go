package bidding

import (
	"auction-engine/internal/biddingerrors"
	"auction-engine/internal/metrics"
	"auction-engine/internal/models"
	"auction-engine/internal/notify"
	"auction-engine/utils"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Settlement triggers, used as metric labels
const (
	triggerSweep  = "sweep"
	triggerBid    = "bid"
	triggerCancel = "cancel"
)

// CreateAuction lists a new ACTIVE auction for sellerID
func (s *BiddingService) CreateAuction(ctx context.Context, sellerID string, req models.NewAuction, now time.Time) (models.Auction, error) {
	if sellerID == "" {
		return models.Auction{}, fmt.Errorf("service: %w - empty seller ID", biddingerrors.ErrInvalidAuction)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return models.Auction{}, fmt.Errorf("service: %w - name is required", biddingerrors.ErrInvalidAuction)
	}
	minBid := roundAmount(req.MinBid)
	if minBid < 1 {
		return models.Auction{}, fmt.Errorf("service: %w - minimum bid must be at least 1", biddingerrors.ErrInvalidAuction)
	}
	if req.DurationHours < 1 {
		return models.Auction{}, fmt.Errorf("service: %w - duration must be at least 1 hour", biddingerrors.ErrInvalidAuction)
	}

	seller, err := s.repo.GetUser(ctx, sellerID)
	if errors.Is(err, biddingerrors.ErrUserNotFound) {
		return models.Auction{}, fmt.Errorf("service: %w - %s", biddingerrors.ErrSellerNotFound, sellerID)
	}
	if err != nil {
		return models.Auction{}, storeErr("get seller", err)
	}

	auction, err := s.repo.CreateAuction(ctx, models.Auction{
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		SellerID:    seller.UserID,
		SellerName:  seller.Name,
		MinBid:      minBid,
		CurrentBid:  minBid,
		ImageURL:    req.ImageURL,
		BidIDs:      []string{},
		Status:      models.StatusActive,
		EndTime:     now.Add(time.Duration(req.DurationHours) * time.Hour),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return models.Auction{}, storeErr("create auction", err)
	}

	utils.Info("auction created", map[string]any{
		"auction_id": auction.AuctionID,
		"seller_id":  sellerID,
		"min_bid":    auction.MinBid,
		"end_time":   auction.EndTime.Format(time.RFC3339),
	})
	return auction, nil
}

// GetAuction returns a single auction
func (s *BiddingService) GetAuction(ctx context.Context, auctionID string) (models.Auction, error) {
	if auctionID == "" {
		return models.Auction{}, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidAuction)
	}
	auction, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return models.Auction{}, storeErr("get auction", err)
	}
	return auction, nil
}

// ListActiveAuctions returns ACTIVE auctions whose deadline is still ahead of now
func (s *BiddingService) ListActiveAuctions(ctx context.Context, now time.Time) ([]models.Auction, error) {
	auctions, err := s.repo.FindAuctionsEndingAfter(ctx, now, models.StatusActive)
	if err != nil {
		return nil, storeErr("list active auctions", err)
	}
	return auctions, nil
}

// GetAuctionsBySeller returns every auction listed by sellerID
func (s *BiddingService) GetAuctionsBySeller(ctx context.Context, sellerID string) ([]models.Auction, error) {
	if sellerID == "" {
		return nil, fmt.Errorf("service: %w - empty seller ID", biddingerrors.ErrInvalidAuction)
	}
	auctions, err := s.repo.FindAuctionsBySeller(ctx, sellerID)
	if err != nil {
		return nil, storeErr("list seller auctions", err)
	}
	return auctions, nil
}

// ExpiredAuctions returns ACTIVE auctions whose deadline is strictly before now
func (s *BiddingService) ExpiredAuctions(ctx context.Context, now time.Time) ([]models.Auction, error) {
	candidates, err := s.repo.FindAuctionsEndingBefore(ctx, now)
	if err != nil {
		return nil, storeErr("find expired auctions", err)
	}

	expired := candidates[:0]
	for _, a := range candidates {
		if a.Status == models.StatusActive {
			expired = append(expired, a)
		}
	}
	return expired, nil
}

// CancelAuction moves an ACTIVE auction to CANCELLED. Nothing is settled or published. An auction
// already past its deadline is settled instead and ErrAuctionExpired is returned.
func (s *BiddingService) CancelAuction(ctx context.Context, auctionID string, now time.Time) (models.Auction, error) {
	if auctionID == "" {
		return models.Auction{}, fmt.Errorf("service: %w - empty auction ID", biddingerrors.ErrInvalidAuction)
	}

	unlock := s.locks.lock(auctionID)
	defer unlock()

	for attempt := 1; ; attempt++ {
		auction, err := s.repo.GetAuction(ctx, auctionID)
		if err != nil {
			return models.Auction{}, storeErr("get auction", err)
		}
		if auction.Status != models.StatusActive {
			return models.Auction{}, fmt.Errorf("service: %w - auction %s is %s", biddingerrors.ErrAuctionNotActive, auctionID, auction.Status)
		}
		if auction.Expired(now) {
			if _, _, err := s.settleLocked(ctx, auction, now, triggerCancel); err != nil {
				return models.Auction{}, err
			}
			return models.Auction{}, fmt.Errorf("service: %w - auction %s ended at %s", biddingerrors.ErrAuctionExpired, auctionID, auction.EndTime.Format(time.RFC3339))
		}

		cancelled, err := s.repo.UpdateAuctionStatus(ctx, auctionID, auction.Version, models.StatusCancelled, now, nil)
		if errors.Is(err, biddingerrors.ErrConflict) && attempt < maxCommitAttempts {
			continue
		}
		if err != nil {
			return models.Auction{}, storeErr("cancel auction", err)
		}

		metrics.CancellationsTotal.Inc()
		utils.Info("auction cancelled", map[string]any{"auction_id": auctionID})
		return cancelled, nil
	}
}

// SettleAuction ends an expired ACTIVE auction and notifies its participants. It reports whether
// this call performed the transition; an auction that already left ACTIVE is returned untouched.
func (s *BiddingService) SettleAuction(ctx context.Context, auctionID string, now time.Time) (models.Auction, bool, error) {
	unlock := s.locks.lock(auctionID)
	defer unlock()

	auction, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return models.Auction{}, false, storeErr("get auction", err)
	}
	if auction.Status == models.StatusActive && !auction.Expired(now) {
		return auction, false, fmt.Errorf("service: %w - auction %s ends at %s", biddingerrors.ErrInvalidAuction, auctionID, auction.EndTime.Format(time.RFC3339))
	}
	return s.settleLocked(ctx, auction, now, triggerSweep)
}

// settleLocked runs the ACTIVE -> ENDED transition. The caller holds the auction lock.
func (s *BiddingService) settleLocked(ctx context.Context, auction models.Auction, now time.Time, trigger string) (models.Auction, bool, error) {
	for attempt := 1; ; attempt++ {
		if auction.Status != models.StatusActive {
			return auction, false, nil
		}

		ended, err := s.repo.UpdateAuctionStatus(ctx, auction.AuctionID, auction.Version, models.StatusEnded, now, settlementMessages(auction, now))
		if errors.Is(err, biddingerrors.ErrConflict) && attempt < maxCommitAttempts {
			auction, err = s.repo.GetAuction(ctx, auction.AuctionID)
			if err != nil {
				return models.Auction{}, false, storeErr("get auction", err)
			}
			continue
		}
		if err != nil {
			return auction, false, storeErr("settle auction", err)
		}

		metrics.SettlementsTotal.WithLabelValues(trigger).Inc()
		utils.Info("auction settled", map[string]any{
			"auction_id": ended.AuctionID,
			"trigger":    trigger,
			"final_bid":  ended.CurrentBid,
			"winner_id":  ended.CurrentBidderID,
		})
		s.notifyAuctionEnded(ended)
		return ended, true, nil
	}
}

func (s *BiddingService) notifyAuctionEnded(a models.Auction) {
	event := notify.NewAuctionEnded(a)
	s.publish(notify.AuctionTopic(a.AuctionID), event)
	s.publish(notify.GlobalTopic, event)

	if a.HasWinner() {
		s.publishToUser(a.CurrentBidderID, notify.UserNotice{
			Type:      notify.TypeUserNotice,
			AuctionID: a.AuctionID,
			Text:      "You won the auction for " + a.Name,
		})
	}
	s.publishToUser(a.SellerID, notify.UserNotice{
		Type:      notify.TypeUserNotice,
		AuctionID: a.AuctionID,
		Text:      "Your auction for " + a.Name + " has ended",
	})
}

// settlementMessages builds the winner and seller inbox messages; none without a winner
func settlementMessages(a models.Auction, now time.Time) []models.Message {
	if !a.HasWinner() {
		return nil
	}

	return []models.Message{
		{
			MessageID:   utils.GenerateID(),
			SenderID:    models.SystemSenderID,
			RecipientID: a.CurrentBidderID,
			AuctionID:   a.AuctionID,
			Type:        models.MessageAuctionWon,
			Content: fmt.Sprintf("Congratulations! You've won the auction for %s. Please contact the seller at: %s",
				a.Name, a.SellerName),
			CreatedAt: now,
		},
		{
			MessageID:   utils.GenerateID(),
			SenderID:    models.SystemSenderID,
			RecipientID: a.SellerID,
			AuctionID:   a.AuctionID,
			Type:        models.MessageAuctionSold,
			Content: fmt.Sprintf("Your auction for %s has ended. The winning bidder is %s. Please collect 25%% of the final bid amount: $%s",
				a.Name, a.CurrentBidderName, collectionFee(a.CurrentBid).StringFixed(monetaryPrecision)),
			CreatedAt: now,
		},
	}
}
