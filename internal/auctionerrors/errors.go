package auctionerrors

import (
	"errors"
	"fmt"
	"time"
)

// Repository-level errors
var (
	ErrAuctionNotFound = errors.New("auction not found")
	ErrNoBids          = errors.New("no bids found for auction")
)

// Bid rejection errors, in validator check order
var (
	ErrSelfBid        = errors.New("seller cannot bid on own auction")
	ErrNotLive        = errors.New("auction is not live")
	ErrAuctionOver    = errors.New("auction has ended")
	ErrCooldown       = errors.New("bid cooldown has not elapsed")
	ErrBidTooLow      = errors.New("bid amount too low")
	ErrBelowIncrement = errors.New("bid amount below minimum increment")
)

// Service-level errors
var (
	ErrInvalidBid  = errors.New("invalid bid")
	ErrRateLimited = errors.New("too many bids, slow down")
	ErrNoBuyNow    = errors.New("auction has no buy-now price")
	ErrBadStatus   = errors.New("illegal auction status transition")
)

// Client-side errors
var (
	ErrUnauthorized = errors.New("authentication required")
	ErrNotLoaded    = errors.New("auction state not loaded")
	ErrClosed       = errors.New("session is closed")
)

// Rejection is a bid validation failure. It wraps one of the rejection
// sentinels so errors.Is keeps working, and carries the detail the UI
// surfaces to the bidder.
type Rejection struct {
	Err         error
	Reason      string        // machine-readable reason code
	MinRequired float64       // set for below-increment rejections
	RetryAfter  time.Duration // set for cooldown rejections
}

func (r *Rejection) Error() string {
	switch {
	case r.MinRequired > 0:
		return fmt.Sprintf("%v (minimum %.2f)", r.Err, r.MinRequired)
	case r.RetryAfter > 0:
		return fmt.Sprintf("%v (retry in %s)", r.Err, r.RetryAfter.Round(time.Millisecond))
	default:
		return r.Err.Error()
	}
}

func (r *Rejection) Unwrap() error { return r.Err }

// ReasonCode maps a rejection sentinel to its wire reason code.
func ReasonCode(err error) string {
	switch {
	case errors.Is(err, ErrSelfBid):
		return "self_bid"
	case errors.Is(err, ErrNotLive):
		return "not_live"
	case errors.Is(err, ErrAuctionOver):
		return "ended"
	case errors.Is(err, ErrCooldown):
		return "cooldown"
	case errors.Is(err, ErrBidTooLow):
		return "too_low"
	case errors.Is(err, ErrBelowIncrement):
		return "below_increment"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	default:
		return ""
	}
}

// FromReasonCode rebuilds the rejection sentinel for a wire reason code, so
// the client surfaces the same error the server decided on. Returns nil for
// unknown codes.
func FromReasonCode(code string) error {
	switch code {
	case "self_bid":
		return ErrSelfBid
	case "not_live":
		return ErrNotLive
	case "ended":
		return ErrAuctionOver
	case "cooldown":
		return ErrCooldown
	case "too_low":
		return ErrBidTooLow
	case "below_increment":
		return ErrBelowIncrement
	case "rate_limited":
		return ErrRateLimited
	default:
		return nil
	}
}
