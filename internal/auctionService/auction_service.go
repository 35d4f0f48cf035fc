package auction

import (
	"fmt"
	"sync"
	"time"

	"auction-live/internal/auctionerrors"
	"auction-live/internal/bidrules"
	model "auction-live/internal/models"
	"auction-live/internal/repository"
	"auction-live/utils"

	"golang.org/x/time/rate"
)

// Broadcaster fans an event out to every subscriber of the auction's topic.
type Broadcaster interface {
	Broadcast(ev model.Event)
}

// Options tunes the service's bidding behavior.
type Options struct {
	AntiSnipeWindow    time.Duration // bids landing inside this window extend the auction
	AntiSnipeExtension time.Duration // how far past "now" one extension pushes the end time
	BidInterval        time.Duration // authoritative per-user pacing between submissions
	BidBurst           int
}

// Service defines the authoritative business logic for auction bidding.
// Client-side validation is advisory; every rule is re-checked here.
type Service struct {
	store  repository.AuctionStore
	events Broadcaster
	opts   Options
	now    func() time.Time

	mu       sync.Mutex
	limiters map[string]*rate.Limiter // key: userID
}

// BidRequest carries one bid submission.
type BidRequest struct {
	UserID        string
	Username      string
	Amount        float64
	EnableAutoBid bool
	MaxBid        float64
}

// NewService creates a new auction Service instance
func NewService(store repository.AuctionStore, events Broadcaster, opts Options) *Service {
	if opts.AntiSnipeWindow <= 0 {
		opts.AntiSnipeWindow = 30 * time.Second
	}
	if opts.AntiSnipeExtension <= 0 {
		opts.AntiSnipeExtension = 60 * time.Second
	}
	if opts.BidInterval <= 0 {
		opts.BidInterval = bidrules.Cooldown
	}
	if opts.BidBurst <= 0 {
		opts.BidBurst = 1
	}
	return &Service{
		store:    store,
		events:   events,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
		limiters: make(map[string]*rate.Limiter),
	}
}

// CreateAuction registers a new lot. An empty id gets a generated one, and
// the current bid starts at the starting price.
func (s *Service) CreateAuction(a model.Auction) (model.Auction, error) {
	if a.SellerID == "" || a.Title == "" {
		return model.Auction{}, fmt.Errorf("service: %w - missing seller or title", auctionerrors.ErrInvalidBid)
	}
	if a.BidIncrement <= 0 || a.StartingPrice < 0 {
		return model.Auction{}, fmt.Errorf("service: %w - bad price configuration", auctionerrors.ErrInvalidBid)
	}
	if a.EndTime.Before(a.StartTime) {
		return model.Auction{}, fmt.Errorf("service: %w - end time before start time", auctionerrors.ErrInvalidBid)
	}
	if a.AuctionID == "" {
		a.AuctionID = utils.GenerateID()
	}
	if a.Status == "" {
		if s.now().Before(a.StartTime) {
			a.Status = model.StatusScheduled
		} else {
			a.Status = model.StatusLive
		}
	}
	a.CurrentBid = a.StartingPrice

	if err := s.store.CreateAuction(a); err != nil {
		return model.Auction{}, fmt.Errorf("service: failed to create auction %s: %w", a.AuctionID, err)
	}
	return a, nil
}

// PlaceBid validates and records a user's bid on an auction. Accepted bids
// are broadcast as bid_placed; bids landing inside the anti-snipe window also
// extend the auction and broadcast time_extended.
func (s *Service) PlaceBid(auctionID string, req BidRequest) (model.Bid, error) {
	if auctionID == "" || req.UserID == "" {
		return model.Bid{}, fmt.Errorf("service: %w - missing auctionID or userID", auctionerrors.ErrInvalidBid)
	}

	// Authoritative pacing. The client's 2s cooldown is UX only; this is the
	// limit that actually holds, auto-bidders included.
	if !s.limiter(req.UserID).Allow() {
		return model.Bid{}, &auctionerrors.Rejection{Err: auctionerrors.ErrRateLimited, Reason: "rate_limited"}
	}

	a, err := s.store.GetAuction(auctionID)
	if err != nil {
		return model.Bid{}, fmt.Errorf("service: failed to load auction %s: %w", auctionID, err)
	}

	now := s.now()
	if err := bidrules.ValidateBid(a, req.Amount, req.UserID, time.Time{}, now); err != nil {
		return model.Bid{}, err
	}

	bid := model.Bid{
		BidID:     utils.GenerateID(),
		AuctionID: auctionID,
		UserID:    req.UserID,
		Username:  req.Username,
		Amount:    req.Amount,
		IsAutoBid: req.EnableAutoBid,
		Status:    model.BidWinning,
		CreatedAt: now,
	}
	if req.EnableAutoBid {
		bid.MaxBid = req.MaxBid
	}

	if err := s.store.RecordBid(bid); err != nil {
		return model.Bid{}, fmt.Errorf("service: failed to record bid for auction %s by user %s: %w", auctionID, req.UserID, err)
	}

	s.maybeExtend(a, now)
	s.broadcast(model.EventBidPlaced, auctionID, model.BidPlacedPayload{Bid: bid})

	return bid, nil
}

// BuyNow closes the auction immediately at its buy-now price.
func (s *Service) BuyNow(auctionID string, req BidRequest) (model.Bid, error) {
	if auctionID == "" || req.UserID == "" {
		return model.Bid{}, fmt.Errorf("service: %w - missing auctionID or userID", auctionerrors.ErrInvalidBid)
	}
	if !s.limiter(req.UserID).Allow() {
		return model.Bid{}, &auctionerrors.Rejection{Err: auctionerrors.ErrRateLimited, Reason: "rate_limited"}
	}

	a, err := s.store.GetAuction(auctionID)
	if err != nil {
		return model.Bid{}, fmt.Errorf("service: failed to load auction %s: %w", auctionID, err)
	}
	if a.BuyNowPrice <= 0 {
		return model.Bid{}, fmt.Errorf("service: auction %s: %w", auctionID, auctionerrors.ErrNoBuyNow)
	}

	now := s.now()
	if req.UserID == a.SellerID {
		return model.Bid{}, &auctionerrors.Rejection{Err: auctionerrors.ErrSelfBid, Reason: "self_bid"}
	}
	if a.Status != model.StatusLive {
		return model.Bid{}, &auctionerrors.Rejection{Err: auctionerrors.ErrNotLive, Reason: "not_live"}
	}
	if now.After(a.EndTime) {
		return model.Bid{}, &auctionerrors.Rejection{Err: auctionerrors.ErrAuctionOver, Reason: "ended"}
	}

	bid := model.Bid{
		BidID:     utils.GenerateID(),
		AuctionID: auctionID,
		UserID:    req.UserID,
		Username:  req.Username,
		Amount:    a.BuyNowPrice,
		Status:    model.BidWinning,
		CreatedAt: now,
	}
	if err := s.store.RecordBid(bid); err != nil {
		return model.Bid{}, fmt.Errorf("service: failed to record buy-now for auction %s: %w", auctionID, err)
	}
	if err := s.store.UpdateStatus(auctionID, model.StatusEnded); err != nil {
		return model.Bid{}, fmt.Errorf("service: failed to close auction %s after buy-now: %w", auctionID, err)
	}

	s.broadcast(model.EventBidPlaced, auctionID, model.BidPlacedPayload{Bid: bid})
	s.broadcast(model.EventAuctionEnded, auctionID, model.AuctionEndedPayload{
		WinnerID:   req.UserID,
		FinalPrice: a.BuyNowPrice,
	})

	return bid, nil
}

// GetAuction returns one auction's authoritative snapshot
func (s *Service) GetAuction(auctionID string) (model.Auction, error) {
	if auctionID == "" {
		return model.Auction{}, fmt.Errorf("service: %w - empty auction ID", auctionerrors.ErrInvalidBid)
	}
	a, err := s.store.GetAuction(auctionID)
	if err != nil {
		return model.Auction{}, fmt.Errorf("service: failed to get auction %s: %w", auctionID, err)
	}
	return a, nil
}

// GetBids returns the chronological bid history of an auction
func (s *Service) GetBids(auctionID string) ([]model.Bid, error) {
	if auctionID == "" {
		return nil, fmt.Errorf("service: %w - empty auction ID", auctionerrors.ErrInvalidBid)
	}
	bids, err := s.store.GetBids(auctionID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for auction %s: %w", auctionID, err)
	}
	return bids, nil
}

// ToggleWatch flips userID's membership in the auction's watcher set and
// returns the new state.
func (s *Service) ToggleWatch(auctionID, userID string) (bool, error) {
	if auctionID == "" || userID == "" {
		return false, fmt.Errorf("service: %w - missing auctionID or userID", auctionerrors.ErrInvalidBid)
	}
	a, err := s.store.GetAuction(auctionID)
	if err != nil {
		return false, fmt.Errorf("service: failed to load auction %s: %w", auctionID, err)
	}

	watching := !a.IsWatching(userID)
	if err := s.store.SetWatching(auctionID, userID, watching); err != nil {
		return false, fmt.Errorf("service: failed to toggle watch for auction %s: %w", auctionID, err)
	}
	return watching, nil
}

// maybeExtend pushes the end time out when a bid lands inside the anti-snipe
// window, and broadcasts the extension.
func (s *Service) maybeExtend(a model.Auction, now time.Time) {
	if a.EndTime.Sub(now) > s.opts.AntiSnipeWindow {
		return
	}
	newEnd := now.Add(s.opts.AntiSnipeExtension)
	if !newEnd.After(a.EndTime) {
		return
	}
	if err := s.store.UpdateEndTime(a.AuctionID, newEnd); err != nil {
		utils.Error("failed to extend auction", map[string]any{
			"auction_id": a.AuctionID,
			"error":      err.Error(),
		})
		return
	}
	utils.Info("anti-snipe extension", map[string]any{
		"auction_id": a.AuctionID,
		"new_end":    newEnd.Format(time.RFC3339),
	})
	s.broadcast(model.EventTimeExtended, a.AuctionID, model.TimeExtendedPayload{NewEndTime: newEnd})
}

func (s *Service) broadcast(t model.EventType, auctionID string, payload any) {
	if s.events == nil {
		return
	}
	ev, err := model.NewEvent(t, auctionID, payload)
	if err != nil {
		utils.Error("failed to build event", map[string]any{
			"type":       string(t),
			"auction_id": auctionID,
			"error":      err.Error(),
		})
		return
	}
	s.events.Broadcast(ev)
}

func (s *Service) limiter(userID string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.limiters[userID]
	if !ok {
		l = rate.NewLimiter(rate.Every(s.opts.BidInterval), s.opts.BidBurst)
		s.limiters[userID] = l
	}
	return l
}
