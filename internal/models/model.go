package models

import "time"

// AuctionStatus is the lifecycle state of an auction
type AuctionStatus string

const (
	StatusActive    AuctionStatus = "ACTIVE"
	StatusEnded     AuctionStatus = "ENDED"
	StatusCancelled AuctionStatus = "CANCELLED"
)

// Terminal reports whether no further transitions are allowed from s
func (s AuctionStatus) Terminal() bool {
	return s == StatusEnded || s == StatusCancelled
}

// Valid reports whether s is a known status
func (s AuctionStatus) Valid() bool {
	switch s {
	case StatusActive, StatusEnded, StatusCancelled:
		return true
	}
	return false
}

// MessageType classifies inbox messages
type MessageType string

const (
	MessageAuctionWon         MessageType = "AUCTION_WON"
	MessageAuctionSold        MessageType = "AUCTION_SOLD"
	MessageSystemNotification MessageType = "SYSTEM_NOTIFICATION"
)

// Valid reports whether t is a known message type
func (t MessageType) Valid() bool {
	switch t {
	case MessageAuctionWon, MessageAuctionSold, MessageSystemNotification:
		return true
	}
	return false
}

// SystemSenderID is the sender of messages produced by settlement
const SystemSenderID = "system"

// Roles carried by users
const (
	RoleUser  = "ROLE_USER"
	RoleAdmin = "ROLE_ADMIN"
)

// User represents a participant in the marketplace
type User struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Roles     []string  `json:"roles"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasRole reports whether the user carries role
func (u User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Auction represents a single-item ascending auction
type Auction struct {
	AuctionID         string        `json:"auction_id"`
	Name              string        `json:"name"`
	Description       string        `json:"description"`
	SellerID          string        `json:"seller_id"`
	SellerName        string        `json:"seller_name"`
	MinBid            float64       `json:"min_bid"`
	CurrentBid        float64       `json:"current_bid"`
	CurrentBidderID   string        `json:"current_bidder_id,omitempty"`
	CurrentBidderName string        `json:"current_bidder_name,omitempty"`
	ImageURL          string        `json:"image_url"`
	BidIDs            []string      `json:"bid_ids"`
	Status            AuctionStatus `json:"status"`
	EndTime           time.Time     `json:"end_time"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`

	// Version is bumped on every write and used for compare-and-swap updates.
	Version int64 `json:"version"`
}

// HasWinner reports whether at least one bid was accepted
func (a Auction) HasWinner() bool {
	return a.CurrentBidderID != ""
}

// Expired reports whether the deadline has passed at now
func (a Auction) Expired(now time.Time) bool {
	return !now.Before(a.EndTime)
}

// Bid represents a user's bid on an auction
type Bid struct {
	BidID      string    `json:"bid_id"`
	AuctionID  string    `json:"auction_id"`
	BidderID   string    `json:"bidder_id"`
	BidderName string    `json:"bidder_name"`
	Amount     float64   `json:"amount"`
	CreatedAt  time.Time `json:"created_at"`
}

// Message is an inbox entry addressed to a single recipient
type Message struct {
	MessageID   string      `json:"message_id"`
	SenderID    string      `json:"sender_id"`
	RecipientID string      `json:"recipient_id"`
	Content     string      `json:"content"`
	AuctionID   string      `json:"auction_id,omitempty"`
	Read        bool        `json:"read"`
	Type        MessageType `json:"type"`
	CreatedAt   time.Time   `json:"created_at"`
}

// NewAuction carries the seller supplied fields of an auction listing
type NewAuction struct {
	Name          string
	Description   string
	MinBid        float64
	DurationHours int
	ImageURL      string
}

// NewMessage carries the fields of a user authored message
type NewMessage struct {
	RecipientID string
	Content     string
	AuctionID   string
	Type        MessageType
}
