package models

import "time"

// AuctionStatus is the lifecycle phase of an auction.
type AuctionStatus string

const (
	StatusScheduled AuctionStatus = "scheduled"
	StatusLive      AuctionStatus = "live"
	StatusEnded     AuctionStatus = "ended"
	StatusCancelled AuctionStatus = "cancelled"
)

// CanTransition reports whether moving from s to "to" is a legal forward
// transition. Transitions never move backward; ended and cancelled are
// terminal.
func (s AuctionStatus) CanTransition(to AuctionStatus) bool {
	switch s {
	case StatusScheduled:
		return to == StatusLive || to == StatusCancelled
	case StatusLive:
		return to == StatusEnded || to == StatusCancelled
	default:
		return false
	}
}

// Terminal reports whether the status admits no further transitions.
func (s AuctionStatus) Terminal() bool {
	return s == StatusEnded || s == StatusCancelled
}

// BidStatus is the classification of one bid within its auction.
type BidStatus string

const (
	BidActive  BidStatus = "active"
	BidOutbid  BidStatus = "outbid"
	BidWinning BidStatus = "winning"
	BidWon     BidStatus = "won"
)

// User represents a participant in the marketplace
type User struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// Bid represents one bid attempt's outcome on an auction
type Bid struct {
	BidID     string    `json:"bid_id"`
	AuctionID string    `json:"auction_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Amount    float64   `json:"amount"`
	IsAutoBid bool      `json:"is_auto_bid"`
	MaxBid    float64   `json:"max_bid,omitempty"` // ceiling, only set when IsAutoBid
	Status    BidStatus `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Inventory tracks stock counters for a lot
type Inventory struct {
	Quantity int `json:"quantity"`
	Reserved int `json:"reserved"`
	Sold     int `json:"sold"`
}

// Auction represents one sellable lot under timed bidding.
// Bids is ordered by insertion, which matches chronological order.
type Auction struct {
	AuctionID     string        `json:"auction_id"`
	SellerID      string        `json:"seller_id"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	Images        []string      `json:"images,omitempty"`
	StartingPrice float64       `json:"starting_price"`
	CurrentBid    float64       `json:"current_bid"`
	BidIncrement  float64       `json:"bid_increment"`
	ReservePrice  float64       `json:"reserve_price,omitempty"` // 0 = no reserve
	BuyNowPrice   float64       `json:"buy_now_price,omitempty"` // 0 = no buy-now
	StartTime     time.Time     `json:"start_time"`
	EndTime       time.Time     `json:"end_time"`
	Status        AuctionStatus `json:"status"`
	Bids          []Bid         `json:"bids"`
	Watchers      []string      `json:"watchers,omitempty"`
	Inventory     Inventory     `json:"inventory"`
}

// MinNextBid returns the lowest amount the next bid must reach.
// CurrentBid starts at StartingPrice, so the floor holds for the first bid too.
func (a Auction) MinNextBid() float64 {
	return a.CurrentBid + a.BidIncrement
}

// WinningBid returns the bid currently marked winning, if any.
func (a Auction) WinningBid() (Bid, bool) {
	for i := len(a.Bids) - 1; i >= 0; i-- {
		if a.Bids[i].Status == BidWinning {
			return a.Bids[i], true
		}
	}
	return Bid{}, false
}

// TimeRemaining returns the duration until the auction's end time, floored at
// zero. It is recomputed from the wall-clock end time so repeated calls never
// accumulate drift.
func (a Auction) TimeRemaining(now time.Time) time.Duration {
	if !now.Before(a.EndTime) {
		return 0
	}
	return a.EndTime.Sub(now)
}

// IsWatching reports whether userID is in the watcher set.
func (a Auction) IsWatching(userID string) bool {
	for _, w := range a.Watchers {
		if w == userID {
			return true
		}
	}
	return false
}

// ReserveMet reports whether the current bid satisfies the reserve price.
// Auctions without a reserve always satisfy it.
func (a Auction) ReserveMet() bool {
	return a.ReservePrice <= 0 || a.CurrentBid >= a.ReservePrice
}

// Clone returns a deep copy of the auction. Callers use this to retain a
// snapshot that must stay untouched by later mutation (rollback).
func (a Auction) Clone() Auction {
	c := a
	if a.Images != nil {
		c.Images = append([]string(nil), a.Images...)
	}
	if a.Bids != nil {
		c.Bids = append([]Bid(nil), a.Bids...)
	}
	if a.Watchers != nil {
		c.Watchers = append([]string(nil), a.Watchers...)
	}
	return c
}
