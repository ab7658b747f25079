package handler

import (
	"net/http"

	model "auction-engine/internal/models"
	"auction-engine/services/bidding/helpers"
	"auction-engine/utils"

	"github.com/gin-gonic/gin"
)

// ListAuctionsHandler handles GET /auctions
func (h *BiddingHandler) ListAuctionsHandler(c *gin.Context) {
	auctions, err := h.service.ListActiveAuctions(c.Request.Context(), h.now())
	if err != nil {
		helpers.HandleServiceError(c, "ListAuctionsHandler", err, nil)
		return
	}
	if auctions == nil {
		auctions = []model.Auction{}
	}

	utils.JSONResponse(c, http.StatusOK, auctions, "auctions retrieved successfully")
}

// GetAuctionHandler handles GET /auctions/:id
func (h *BiddingHandler) GetAuctionHandler(c *gin.Context) {
	auctionID := c.Param("id")
	auction, err := h.service.GetAuction(c.Request.Context(), auctionID)
	if err != nil {
		helpers.HandleServiceError(c, "GetAuctionHandler", err, map[string]any{"auction_id": auctionID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, auction, "auction retrieved successfully")
}

// GetSellerAuctionsHandler handles GET /auctions/seller
func (h *BiddingHandler) GetSellerAuctionsHandler(c *gin.Context) {
	caller, ok := requireCaller(c, "GetSellerAuctionsHandler")
	if !ok {
		return
	}

	auctions, err := h.service.GetAuctionsBySeller(c.Request.Context(), caller.UserID)
	if err != nil {
		helpers.HandleServiceError(c, "GetSellerAuctionsHandler", err, map[string]any{"seller_id": caller.UserID})
		return
	}
	if auctions == nil {
		auctions = []model.Auction{}
	}

	utils.JSONResponse(c, http.StatusOK, auctions, "auctions retrieved successfully")
}

// CreateAuctionHandler handles POST /auctions
func (h *BiddingHandler) CreateAuctionHandler(c *gin.Context) {
	caller, ok := requireCaller(c, "CreateAuctionHandler")
	if !ok {
		return
	}

	var req helpers.CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CreateAuctionHandler", err)
		return
	}

	auction, err := h.service.CreateAuction(c.Request.Context(), caller.UserID, model.NewAuction{
		Name:          req.Name,
		Description:   req.Description,
		MinBid:        req.MinBid,
		DurationHours: req.DurationHours,
		ImageURL:      req.ImageURL,
	}, h.now())
	if err != nil {
		helpers.HandleServiceError(c, "CreateAuctionHandler", err, map[string]any{"seller_id": caller.UserID})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, auction, "auction created successfully")
	helpers.LogSuccess("CreateAuctionHandler", "auction created successfully", map[string]any{
		"auction_id": auction.AuctionID,
		"seller_id":  caller.UserID,
	})
}

// CancelAuctionHandler handles PUT /auctions/:id/cancel
func (h *BiddingHandler) CancelAuctionHandler(c *gin.Context) {
	auctionID := c.Param("id")
	auction, err := h.service.CancelAuction(c.Request.Context(), auctionID, h.now())
	if err != nil {
		helpers.HandleServiceError(c, "CancelAuctionHandler", err, map[string]any{"auction_id": auctionID})
		return
	}

	utils.JSONResponse(c, http.StatusOK, auction, "auction cancelled successfully")
	helpers.LogSuccess("CancelAuctionHandler", "auction cancelled successfully", map[string]any{"auction_id": auctionID})
}
