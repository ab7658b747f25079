package biddingerrors

import "errors"

// Repository-level errors
var (
	ErrAuctionNotFound = errors.New("auction not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrUserNotFound    = errors.New("user not found")

	// ErrConflict is returned when a compare-and-swap write lost a race.
	ErrConflict = errors.New("concurrent modification")

	ErrStoreUnavailable = errors.New("store unavailable")
)

// business logic errors
var (
	ErrInvalidRequest   = errors.New("invalid request payload")
	ErrInvalidBid       = errors.New("invalid bid")
	ErrInvalidAuction   = errors.New("invalid auction")
	ErrInvalidMessage   = errors.New("invalid message")
	ErrInvalidUser      = errors.New("invalid user")
	ErrAuctionNotActive = errors.New("auction is not active")
	ErrAuctionExpired   = errors.New("auction has ended")
	ErrBidTooLow        = errors.New("bid amount too low")
	ErrSelfBid          = errors.New("seller cannot bid on own auction")
	ErrBidderNotFound   = errors.New("bidder not found")
	ErrSellerNotFound   = errors.New("seller not found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")

	ErrNotificationFailure = errors.New("notification failure")
)

// Stable reason codes returned to API clients
const (
	ReasonNotFound            = "NOT_FOUND"
	ReasonValidation          = "VALIDATION_ERROR"
	ReasonAuctionNotActive    = "AUCTION_NOT_ACTIVE"
	ReasonAuctionExpired      = "AUCTION_EXPIRED"
	ReasonBidTooLow           = "BID_TOO_LOW"
	ReasonSelfBid             = "SELF_BID"
	ReasonBidderNotFound      = "BIDDER_NOT_FOUND"
	ReasonUnauthorized        = "UNAUTHORIZED"
	ReasonStoreUnavailable    = "STORE_UNAVAILABLE"
	ReasonConflict            = "CONFLICT"
	ReasonNotificationFailure = "NOTIFICATION_FAILURE"
	ReasonInternal            = "INTERNAL"
)

// Reason maps err onto its stable reason code
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAuctionNotFound), errors.Is(err, ErrMessageNotFound), errors.Is(err, ErrUserNotFound):
		return ReasonNotFound
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrInvalidBid), errors.Is(err, ErrInvalidAuction), errors.Is(err, ErrInvalidMessage),
		errors.Is(err, ErrInvalidUser), errors.Is(err, ErrSellerNotFound):
		return ReasonValidation
	case errors.Is(err, ErrAuctionNotActive):
		return ReasonAuctionNotActive
	case errors.Is(err, ErrAuctionExpired):
		return ReasonAuctionExpired
	case errors.Is(err, ErrBidTooLow):
		return ReasonBidTooLow
	case errors.Is(err, ErrSelfBid):
		return ReasonSelfBid
	case errors.Is(err, ErrBidderNotFound):
		return ReasonBidderNotFound
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrForbidden):
		return ReasonUnauthorized
	case errors.Is(err, ErrStoreUnavailable):
		return ReasonStoreUnavailable
	case errors.Is(err, ErrConflict):
		return ReasonConflict
	case errors.Is(err, ErrNotificationFailure):
		return ReasonNotificationFailure
	default:
		return ReasonInternal
	}
}
