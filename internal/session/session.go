// Package session holds the client-side live view of one auction. The
// controller applies optimistic updates for the local user's bids, reconciles
// realtime events into its state, and rolls back cleanly when the backend
// rejects a bid.
package session

import (
	"context"
	"sync"
	"time"

	"auction-live/internal/auctionerrors"
	"auction-live/internal/bidclient"
	"auction-live/internal/bidrules"
	model "auction-live/internal/models"
	"auction-live/internal/realtime"
	"auction-live/utils"
)

// BackendAPI is the slice of the HTTP client the controller needs.
type BackendAPI interface {
	GetAuction(ctx context.Context, auctionID string) (model.Auction, error)
	GetBids(ctx context.Context, auctionID string) ([]model.Bid, error)
	PlaceBid(ctx context.Context, auctionID string, bid bidclient.BidRequest) (model.Bid, error)
	ToggleWatch(ctx context.Context, auctionID string) (bool, error)
}

// AttemptState tracks one optimistic bid through its lifecycle.
type AttemptState string

const (
	AttemptPending    AttemptState = "pending"
	AttemptConfirmed  AttemptState = "confirmed"
	AttemptRolledBack AttemptState = "rolled_back"
)

// BidAttempt is the record of one local bid submission.
type BidAttempt struct {
	BidID  string // optimistic ID until confirmed, then the server's bid ID
	Amount float64
	State  AttemptState
	Err    error // set when rolled back
}

// Controller drives the live session for a single auction.
type Controller struct {
	backend   BackendAPI
	channel   bidclient.EventChannel
	auctionID string
	userID    string
	username  string

	mu         sync.Mutex
	auction    *model.Auction
	seenBids   map[string]struct{}
	lastBidAt  time.Time
	attempt    *BidAttempt
	subscribed bool
	cancels    []func()
	// endedLocally marks a countdown expiry the server has not confirmed.
	// A later time_extended reopens the auction; a server auction_ended
	// makes the end authoritative.
	endedLocally  bool
	endedByServer bool
	gen           int // bumped on Close so stale responses are discarded

	now      func() time.Time
	onUpdate func(model.Auction)
}

// NewController creates a controller for the given auction. Call Load before
// anything else.
func NewController(backend BackendAPI, channel bidclient.EventChannel, auctionID, userID, username string) *Controller {
	return &Controller{
		backend:   backend,
		channel:   channel,
		auctionID: auctionID,
		userID:    userID,
		username:  username,
		seenBids:  make(map[string]struct{}),
		now:       time.Now,
	}
}

// SetOnUpdate registers a callback invoked with a snapshot after every state
// change. Used by display layers; may be nil.
func (c *Controller) SetOnUpdate(fn func(model.Auction)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUpdate = fn
}

// Load fetches the auction and its bid history and primes the local state.
// Calling Load again refreshes the snapshot.
func (c *Controller) Load(ctx context.Context) error {
	a, err := c.backend.GetAuction(ctx, c.auctionID)
	if err != nil {
		return err
	}
	// Missing history is not fatal: the auction header alone is enough to
	// bid, and events fill the history back in.
	bids, err := c.backend.GetBids(ctx, c.auctionID)
	if err != nil {
		utils.Warn("failed to load bid history", map[string]any{
			"auction_id": c.auctionID,
			"error":      err.Error(),
		})
		bids = nil
	}
	a.Bids = bids

	c.mu.Lock()
	c.auction = &a
	c.endedLocally = false
	c.endedByServer = a.Status == model.StatusEnded
	for _, bid := range bids {
		c.seenBids[bid.BidID] = struct{}{}
	}
	c.mu.Unlock()

	c.notify()
	return nil
}

// Subscribe attaches the controller to the auction's realtime topic and
// registers its event handlers. Calling it again is a no-op: handlers are
// never registered twice.
func (c *Controller) Subscribe() error {
	c.mu.Lock()
	if c.auction == nil {
		c.mu.Unlock()
		return auctionerrors.ErrNotLoaded
	}
	if c.subscribed {
		c.mu.Unlock()
		return nil
	}
	c.subscribed = true
	c.cancels = []func(){
		c.channel.On(model.EventBidPlaced, c.handleBidPlaced),
		c.channel.On(model.EventAuctionEnded, c.handleAuctionEnded),
		c.channel.On(model.EventTimeExtended, c.handleTimeExtended),
		c.channel.On(model.EventAuctionStarted, c.handleAuctionStarted),
		c.channel.On(model.EventBidRetracted, c.handleBidRetracted),
		c.channel.OnConnect(c.refreshAfterReconnect),
	}
	c.mu.Unlock()

	return c.channel.Subscribe(realtime.Topic(c.auctionID))
}

// BidOptions carries the auto-bid settings attached to a bid.
type BidOptions struct {
	EnableAutoBid bool
	MaxBid        float64
}

// PlaceBid validates locally, applies the bid optimistically, submits it to
// the backend and confirms or rolls back based on the response. The local
// cooldown clock advances even on rejection.
func (c *Controller) PlaceBid(ctx context.Context, amount float64) (BidAttempt, error) {
	return c.PlaceBidWithOptions(ctx, amount, BidOptions{})
}

// PlaceBidWithOptions is PlaceBid with the auto-bid flag and ceiling attached.
func (c *Controller) PlaceBidWithOptions(ctx context.Context, amount float64, opts BidOptions) (BidAttempt, error) {
	if c.userID == "" {
		return BidAttempt{}, auctionerrors.ErrUnauthorized
	}

	c.mu.Lock()
	if c.auction == nil {
		c.mu.Unlock()
		return BidAttempt{}, auctionerrors.ErrNotLoaded
	}
	now := c.now()

	if err := bidrules.ValidateBid(*c.auction, amount, c.userID, c.lastBidAt, now); err != nil {
		c.mu.Unlock()
		return BidAttempt{}, err
	}

	snapshot := c.auction.Clone()
	gen := c.gen

	optimistic := model.Bid{
		BidID:     utils.GenerateID(),
		AuctionID: c.auctionID,
		UserID:    c.userID,
		Username:  c.username,
		Amount:    amount,
		IsAutoBid: opts.EnableAutoBid,
		Status:    model.BidWinning,
		CreatedAt: now,
	}
	if opts.EnableAutoBid {
		optimistic.MaxBid = opts.MaxBid
	}
	c.applyBidLocked(optimistic)
	c.lastBidAt = now

	attempt := &BidAttempt{BidID: optimistic.BidID, Amount: amount, State: AttemptPending}
	c.attempt = attempt
	c.mu.Unlock()
	c.notify()

	serverBid, err := c.backend.PlaceBid(ctx, c.auctionID, bidclient.BidRequest{
		Amount:        amount,
		MaxBid:        opts.MaxBid,
		EnableAutoBid: opts.EnableAutoBid,
	})

	c.mu.Lock()
	if c.gen != gen {
		// session closed while the request was in flight
		c.mu.Unlock()
		return *attempt, auctionerrors.ErrClosed
	}
	if err != nil {
		restored := snapshot
		c.auction = &restored
		attempt.State = AttemptRolledBack
		attempt.Err = err
		c.mu.Unlock()
		c.notify()
		return *attempt, err
	}

	// Swap the optimistic bid for the server's record so the echoed
	// bid_placed event deduplicates. When the echo outran this response the
	// optimistic entry is already gone and the loop finds nothing.
	for i := range c.auction.Bids {
		if c.auction.Bids[i].BidID == optimistic.BidID {
			c.auction.Bids[i] = serverBid
			break
		}
	}
	c.auction.CurrentBid = serverBid.Amount
	c.seenBids[serverBid.BidID] = struct{}{}
	attempt.BidID = serverBid.BidID
	attempt.State = AttemptConfirmed
	c.mu.Unlock()
	c.notify()

	return *attempt, nil
}

// ToggleWatch flips the watch flag on the backend and mirrors the result
// locally.
func (c *Controller) ToggleWatch(ctx context.Context) (bool, error) {
	if c.userID == "" {
		return false, auctionerrors.ErrUnauthorized
	}

	c.mu.Lock()
	if c.auction == nil {
		c.mu.Unlock()
		return false, auctionerrors.ErrNotLoaded
	}
	c.mu.Unlock()

	watching, err := c.backend.ToggleWatch(ctx, c.auctionID)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	if c.auction != nil {
		if watching {
			if !c.auction.IsWatching(c.userID) {
				c.auction.Watchers = append(c.auction.Watchers, c.userID)
			}
		} else {
			kept := c.auction.Watchers[:0]
			for _, w := range c.auction.Watchers {
				if w != c.userID {
					kept = append(kept, w)
				}
			}
			c.auction.Watchers = kept
		}
	}
	c.mu.Unlock()
	c.notify()

	return watching, nil
}

// Tick advances the countdown. When the clock passes the end time of a live
// auction it flips the local status to ended without waiting for the server;
// the authoritative auction_ended (or a reopening time_extended) follows.
func (c *Controller) Tick() {
	c.mu.Lock()
	if c.auction == nil {
		c.mu.Unlock()
		return
	}
	if c.auction.Status == model.StatusLive && !c.now().Before(c.auction.EndTime) {
		c.auction.Status = model.StatusEnded
		c.endedLocally = true
	}
	c.mu.Unlock()
	c.notify()
}

// Run ticks the countdown once a second until the context is cancelled.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Tick()
		}
	}
}

// Close detaches the controller from the channel. In-flight bid responses
// arriving after Close are discarded. The channel itself stays open for other
// sessions.
func (c *Controller) Close() error {
	c.mu.Lock()
	cancels := c.cancels
	c.cancels = nil
	subscribed := c.subscribed
	c.subscribed = false
	c.gen++
	c.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	if subscribed {
		return c.channel.Unsubscribe(realtime.Topic(c.auctionID))
	}
	return nil
}

// Snapshot returns a copy of the current auction state.
func (c *Controller) Snapshot() (model.Auction, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.auction == nil {
		return model.Auction{}, false
	}
	return c.auction.Clone(), true
}

// IsWinning reports whether the local user holds the winning bid.
func (c *Controller) IsWinning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.auction == nil {
		return false
	}
	winning, ok := c.auction.WinningBid()
	return ok && winning.UserID == c.userID
}

// TimeRemaining returns the countdown to the end time, zero once passed.
func (c *Controller) TimeRemaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.auction == nil {
		return 0
	}
	return c.auction.TimeRemaining(c.now())
}

// LastAttempt returns the most recent local bid attempt.
func (c *Controller) LastAttempt() (BidAttempt, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.attempt == nil {
		return BidAttempt{}, false
	}
	return *c.attempt, true
}

// --- event reconciliation ---

func (c *Controller) handleBidPlaced(ev model.Event) {
	if ev.AuctionID != c.auctionID {
		return
	}
	payload, err := ev.BidPlaced()
	if err != nil {
		utils.Warn("malformed bid_placed event", map[string]any{"error": err.Error()})
		return
	}

	c.mu.Lock()
	if c.auction == nil {
		c.mu.Unlock()
		return
	}
	if _, seen := c.seenBids[payload.Bid.BidID]; seen {
		c.mu.Unlock()
		return
	}
	c.seenBids[payload.Bid.BidID] = struct{}{}
	switch {
	case c.adoptPendingLocked(payload.Bid):
		// echo of our own in-flight bid, folded into the pending attempt
	case payload.Bid.Amount > c.auction.CurrentBid:
		c.applyBidLocked(payload.Bid)
	default:
		// stale or out-of-order event; record the bid without moving price
		// or disturbing the current winner
		bid := payload.Bid
		bid.Status = model.BidOutbid
		c.auction.Bids = append(c.auction.Bids, bid)
	}
	c.mu.Unlock()
	c.notify()
}

// adoptPendingLocked correlates a bid_placed event with the local pending
// attempt. The hub broadcasts before the HTTP handler writes its response, so
// the echo of our own bid normally arrives first; its server ID replaces the
// optimistic one in place, keeping a single history entry and a single
// winning bid. Caller holds c.mu.
func (c *Controller) adoptPendingLocked(bid model.Bid) bool {
	if c.attempt == nil || c.attempt.State != AttemptPending {
		return false
	}
	if bid.UserID != c.userID || bid.Amount != c.attempt.Amount {
		return false
	}
	for i := range c.auction.Bids {
		if c.auction.Bids[i].BidID == c.attempt.BidID {
			bid.Status = model.BidWinning
			c.auction.Bids[i] = bid
			c.auction.CurrentBid = bid.Amount
			c.attempt.BidID = bid.BidID
			return true
		}
	}
	return false
}

// handleAuctionEnded applies the authoritative end. Duplicate deliveries and
// an earlier optimistic local expiry both collapse into the same final state.
func (c *Controller) handleAuctionEnded(ev model.Event) {
	if ev.AuctionID != c.auctionID {
		return
	}
	payload, err := ev.AuctionEnded()
	if err != nil {
		utils.Warn("malformed auction_ended event", map[string]any{"error": err.Error()})
		return
	}

	c.mu.Lock()
	if c.auction == nil {
		c.mu.Unlock()
		return
	}
	c.auction.Status = model.StatusEnded
	if payload.FinalPrice > 0 {
		c.auction.CurrentBid = payload.FinalPrice
	}
	c.endedLocally = false
	c.endedByServer = true
	c.mu.Unlock()
	c.notify()
}

// handleTimeExtended moves the end time forward, never backward. It also
// reopens an auction the countdown closed optimistically, since the extension
// proves the server considers it still live.
func (c *Controller) handleTimeExtended(ev model.Event) {
	if ev.AuctionID != c.auctionID {
		return
	}
	payload, err := ev.TimeExtended()
	if err != nil {
		utils.Warn("malformed time_extended event", map[string]any{"error": err.Error()})
		return
	}

	c.mu.Lock()
	if c.auction == nil {
		c.mu.Unlock()
		return
	}
	if payload.NewEndTime.After(c.auction.EndTime) {
		c.auction.EndTime = payload.NewEndTime
	}
	if c.endedLocally && !c.endedByServer {
		c.auction.Status = model.StatusLive
		c.endedLocally = false
	}
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) handleAuctionStarted(ev model.Event) {
	if ev.AuctionID != c.auctionID {
		return
	}
	c.mu.Lock()
	if c.auction == nil || c.auction.Status != model.StatusScheduled {
		c.mu.Unlock()
		return
	}
	c.auction.Status = model.StatusLive
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) handleBidRetracted(ev model.Event) {
	// retraction is not supported in this marketplace; log and keep state
	utils.Warn("ignoring bid_retracted event", map[string]any{"auction_id": ev.AuctionID})
}

// refreshAfterReconnect reloads the snapshot after the transport comes back,
// covering any events missed during the gap. The channel replays the topic
// subscription itself.
func (c *Controller) refreshAfterReconnect() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Load(ctx); err != nil {
		utils.Warn("post-reconnect refresh failed", map[string]any{
			"auction_id": c.auctionID,
			"error":      err.Error(),
		})
	}
}

// applyBidLocked installs a new highest bid: the previous winner is demoted
// and the price moves. Caller holds c.mu.
func (c *Controller) applyBidLocked(bid model.Bid) {
	for i := range c.auction.Bids {
		if c.auction.Bids[i].Status == model.BidWinning {
			c.auction.Bids[i].Status = model.BidOutbid
		}
	}
	bid.Status = model.BidWinning
	c.auction.Bids = append(c.auction.Bids, bid)
	c.auction.CurrentBid = bid.Amount
}

func (c *Controller) notify() {
	c.mu.Lock()
	fn := c.onUpdate
	var snap model.Auction
	if fn != nil && c.auction != nil {
		snap = c.auction.Clone()
	} else {
		fn = nil
	}
	c.mu.Unlock()

	if fn != nil {
		fn(snap)
	}
}
