package handler

//go:generate mockgen -destination=mock_service.go -package=handler auction-engine/services/bidding/handler BiddingServiceInterface

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"auction-engine/internal/biddingerrors"
	model "auction-engine/internal/models"
	"auction-engine/services/bidding/helpers"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
)

type BiddingServiceInterface interface {
	PlaceBid(ctx context.Context, auctionID, bidderID string, amount float64, now time.Time) (model.Bid, error)
	GetBidsForAuction(ctx context.Context, auctionID string) ([]model.Bid, error)
	GetBidsByBidder(ctx context.Context, bidderID string) ([]model.Bid, error)

	CreateAuction(ctx context.Context, sellerID string, req model.NewAuction, now time.Time) (model.Auction, error)
	GetAuction(ctx context.Context, auctionID string) (model.Auction, error)
	ListActiveAuctions(ctx context.Context, now time.Time) ([]model.Auction, error)
	GetAuctionsBySeller(ctx context.Context, sellerID string) ([]model.Auction, error)
	CancelAuction(ctx context.Context, auctionID string, now time.Time) (model.Auction, error)

	GetMessages(ctx context.Context, userID string) ([]model.Message, error)
	GetUnreadMessages(ctx context.Context, userID string) ([]model.Message, error)
	MarkMessageRead(ctx context.Context, messageID, userID string) (model.Message, error)
	SendMessage(ctx context.Context, senderID string, req model.NewMessage, now time.Time) (model.Message, error)

	SyncProfile(ctx context.Context, identity model.User, now time.Time) (model.User, error)
	GetProfile(ctx context.Context, userID string) (model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	ToggleUserStatus(ctx context.Context, userID string, now time.Time) (model.User, error)
}

type BiddingHandler struct {
	service BiddingServiceInterface
	now     func() time.Time
}

func NewBiddingHandler(service BiddingServiceInterface) *BiddingHandler {
	return &BiddingHandler{
		service: service,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source, for tests
func (h *BiddingHandler) WithClock(now func() time.Time) *BiddingHandler {
	h.now = now
	return h
}

// RecordBidHandler handles POST /bids
func (h *BiddingHandler) RecordBidHandler(c *gin.Context) {
	caller, ok := requireCaller(c, "RecordBidHandler")
	if !ok {
		return
	}

	var req helpers.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "RecordBidHandler", err)
		return
	}

	bid, err := h.service.PlaceBid(c.Request.Context(), req.AuctionID, caller.UserID, req.Amount, h.now())
	if err != nil {
		helpers.HandleServiceError(c, "RecordBidHandler", err, map[string]any{
			"auction_id": req.AuctionID,
			"bidder_id":  caller.UserID,
			"amount":     req.Amount,
		})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, helpers.NewBidResponse(bid), "bid placed successfully")
	helpers.LogSuccess("RecordBidHandler", "bid placed successfully", map[string]any{
		"bid_id":     bid.BidID,
		"auction_id": bid.AuctionID,
		"bidder_id":  bid.BidderID,
		"amount":     bid.Amount,
	})
}

// GetBidsByAuctionHandler handles GET /bids/auction/:auctionId
func (h *BiddingHandler) GetBidsByAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auctionId")
	bids, err := h.service.GetBidsForAuction(c.Request.Context(), auctionID)
	if err != nil {
		helpers.HandleServiceError(c, "GetBidsByAuctionHandler", err, map[string]any{"auction_id": auctionID})
		return
	}

	if bids == nil {
		bids = []model.Bid{}
	}

	utils.JSONResponse(c, http.StatusOK, bids, "bids retrieved successfully")
	helpers.LogSuccess("GetBidsByAuctionHandler", "bids retrieved successfully", map[string]any{
		"auction_id": auctionID,
		"count":      len(bids),
	})
}

// GetMyBidsHandler handles GET /bids/user
func (h *BiddingHandler) GetMyBidsHandler(c *gin.Context) {
	caller, ok := requireCaller(c, "GetMyBidsHandler")
	if !ok {
		return
	}

	bids, err := h.service.GetBidsByBidder(c.Request.Context(), caller.UserID)
	if err != nil {
		helpers.HandleServiceError(c, "GetMyBidsHandler", err, map[string]any{"bidder_id": caller.UserID})
		return
	}

	if bids == nil {
		bids = []model.Bid{}
	}

	utils.JSONResponse(c, http.StatusOK, bids, "bids retrieved successfully")
}

// requireCaller returns the authenticated user or answers 401
func requireCaller(c *gin.Context, handlerName string) (model.User, bool) {
	claims, ok := helpers.CurrentUser(c)
	if !ok {
		err := fmt.Errorf("%s: %w", handlerName, biddingerrors.ErrUnauthorized)
		utils.JSONError(c, http.StatusUnauthorized, err, "authentication required")
		return model.User{}, false
	}
	return claims.Identity(), true
}
