// Package autobid counters rival bids automatically up to a user-set ceiling.
package autobid

import (
	"context"
	"sync"
	"time"

	"auction-live/internal/bidclient"
	model "auction-live/internal/models"
	"auction-live/internal/session"
	"auction-live/utils"
)

const bidTimeout = 10 * time.Second

// Bidder is the slice of the session controller the agent drives.
type Bidder interface {
	Snapshot() (model.Auction, bool)
	PlaceBidWithOptions(ctx context.Context, amount float64, opts session.BidOptions) (session.BidAttempt, error)
}

// Agent watches bid_placed events and answers rival bids with the minimum
// valid counter-bid, stopping at its ceiling. Rejections are logged and not
// retried; the next rival bid triggers a fresh attempt.
type Agent struct {
	bidder  Bidder
	channel bidclient.EventChannel
	userID  string

	mu      sync.Mutex
	ceiling float64
	enabled bool
	cancel  func()
	closed  bool
}

// NewAgent creates an inactive agent for the given user.
func NewAgent(bidder Bidder, channel bidclient.EventChannel, userID string) *Agent {
	return &Agent{bidder: bidder, channel: channel, userID: userID}
}

// Enable arms the agent with a ceiling. Enabling an armed agent just moves
// the ceiling.
func (a *Agent) Enable(ceiling float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.ceiling = ceiling
	if a.enabled {
		return
	}
	a.enabled = true
	a.cancel = a.channel.On(model.EventBidPlaced, a.handleBidPlaced)
}

// Disable disarms the agent. It can be re-enabled later.
func (a *Agent) Disable() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.disarmLocked()
}

// Close disarms the agent permanently.
func (a *Agent) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.disarmLocked()
	a.closed = true
}

// Enabled reports whether the agent is currently armed.
func (a *Agent) Enabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enabled
}

func (a *Agent) disarmLocked() {
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.enabled = false
}

func (a *Agent) handleBidPlaced(ev model.Event) {
	payload, err := ev.BidPlaced()
	if err != nil {
		return
	}
	if payload.Bid.UserID == a.userID {
		return // our own bid, nothing to counter
	}

	auction, ok := a.bidder.Snapshot()
	if !ok || auction.AuctionID != ev.AuctionID || auction.Status != model.StatusLive {
		return
	}

	a.mu.Lock()
	ceiling := a.ceiling
	enabled := a.enabled
	a.mu.Unlock()
	if !enabled {
		return
	}

	next := payload.Bid.Amount + auction.BidIncrement
	if next > ceiling {
		utils.Info("auto-bid ceiling reached", map[string]any{
			"auction_id": auction.AuctionID,
			"rival_bid":  payload.Bid.Amount,
			"next_bid":   next,
			"ceiling":    ceiling,
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), bidTimeout)
	defer cancel()

	opts := session.BidOptions{EnableAutoBid: true, MaxBid: ceiling}
	if _, err := a.bidder.PlaceBidWithOptions(ctx, next, opts); err != nil {
		utils.Warn("auto-bid rejected", map[string]any{
			"auction_id": auction.AuctionID,
			"amount":     next,
			"error":      err.Error(),
		})
	}
}
