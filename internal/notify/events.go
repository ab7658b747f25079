package notify

import model "auction-engine/internal/models"

// Event type names carried in payloads
const (
	TypeBidPlaced    = "BID_PLACED"
	TypeAuctionEnded = "AUCTION_ENDED"
	TypeUserNotice   = "NOTIFICATION"
	TypeNewMessage   = "NEW_MESSAGE"
)

// BidPlaced is published on the auction and global topics after a bid commits
type BidPlaced struct {
	Type        string  `json:"type"`
	AuctionID   string  `json:"auction_id"`
	AuctionName string  `json:"auction_name"`
	CurrentBid  float64 `json:"current_bid"`
	BidderName  string  `json:"bidder_name"`
}

// AuctionEnded is published on the auction and global topics after settlement
type AuctionEnded struct {
	Type        string              `json:"type"`
	AuctionID   string              `json:"auction_id"`
	AuctionName string              `json:"auction_name"`
	Status      model.AuctionStatus `json:"status"`
	FinalBid    float64             `json:"final_bid"`
	WinnerID    string              `json:"winner_id,omitempty"`
	WinnerName  string              `json:"winner_name,omitempty"`
}

// UserNotice is pushed to a single user
type UserNotice struct {
	Type      string `json:"type"`
	AuctionID string `json:"auction_id,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Text      string `json:"text"`
}

// NewBidPlaced builds the bid event from the committed auction state
func NewBidPlaced(a model.Auction) BidPlaced {
	return BidPlaced{
		Type:        TypeBidPlaced,
		AuctionID:   a.AuctionID,
		AuctionName: a.Name,
		CurrentBid:  a.CurrentBid,
		BidderName:  a.CurrentBidderName,
	}
}

// NewAuctionEnded builds the settlement event from the ended auction
func NewAuctionEnded(a model.Auction) AuctionEnded {
	return AuctionEnded{
		Type:        TypeAuctionEnded,
		AuctionID:   a.AuctionID,
		AuctionName: a.Name,
		Status:      a.Status,
		FinalBid:    a.CurrentBid,
		WinnerID:    a.CurrentBidderID,
		WinnerName:  a.CurrentBidderName,
	}
}
