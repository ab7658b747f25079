package helpers

// Request/Response DTOs
type PlaceBidRequest struct {
	AuctionID string  `json:"auction_id" binding:"required"`
	Amount    float64 `json:"amount" binding:"required,gte=1"`
}

type BidResponse struct {
	BidID      string  `json:"bid_id"`
	AuctionID  string  `json:"auction_id"`
	BidderID   string  `json:"bidder_id"`
	BidderName string  `json:"bidder_name"`
	Amount     float64 `json:"amount"`
	CreatedAt  string  `json:"created_at"`
}

type CreateAuctionRequest struct {
	Name          string  `json:"name" binding:"required"`
	Description   string  `json:"description"`
	MinBid        float64 `json:"min_bid" binding:"required,gte=1"`
	DurationHours int     `json:"duration_hours" binding:"required,gte=1"`
	ImageURL      string  `json:"image_url"`
}

type SendMessageRequest struct {
	RecipientID string `json:"recipient_id" binding:"required"`
	Content     string `json:"content" binding:"required"`
	AuctionID   string `json:"auction_id"`
	Type        string `json:"type"`
}

type UpdateProfileRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"omitempty,email"`
}
