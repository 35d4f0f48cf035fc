package repository

import (
	"fmt"
	"sync"
	"time"

	"auction-live/internal/auctionerrors"
	model "auction-live/internal/models"
)

// AuctionStore defines the auction and bid storage interface
type AuctionStore interface {
	CreateAuction(a model.Auction) error
	GetAuction(auctionID string) (model.Auction, error)
	ListByStatus(status model.AuctionStatus) ([]model.Auction, error)
	RecordBid(bid model.Bid) error
	GetBids(auctionID string) ([]model.Bid, error)
	UpdateStatus(auctionID string, status model.AuctionStatus) error
	UpdateEndTime(auctionID string, end time.Time) error
	SetWatching(auctionID, userID string, watching bool) error
}

// MemoryStore is a concurrency-safe in-memory implementation of AuctionStore
type MemoryStore struct {
	mu       sync.RWMutex
	auctions map[string]*model.Auction // key: auctionID
}

// NewMemoryStore creates a new in-memory store instance
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		auctions: make(map[string]*model.Auction),
	}
}

// CreateAuction adds a new auction. CurrentBid is initialized to the starting
// price when the caller left it zero.
func (s *MemoryStore) CreateAuction(a model.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.auctions[a.AuctionID]; ok {
		return fmt.Errorf("create auction %s: already exists", a.AuctionID)
	}
	if a.CurrentBid < a.StartingPrice {
		a.CurrentBid = a.StartingPrice
	}
	c := a.Clone()
	s.auctions[a.AuctionID] = &c
	return nil
}

// GetAuction returns a deep copy of the auction with its full bid history
func (s *MemoryStore) GetAuction(auctionID string) (model.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.auctions[auctionID]
	if !ok {
		return model.Auction{}, fmt.Errorf("get auction %s: %w", auctionID, auctionerrors.ErrAuctionNotFound)
	}
	return a.Clone(), nil
}

// ListByStatus returns all auctions in the given status; an empty status
// matches everything.
func (s *MemoryStore) ListByStatus(status model.AuctionStatus) ([]model.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Auction
	for _, a := range s.auctions {
		if status == "" || a.Status == status {
			out = append(out, a.Clone())
		}
	}
	return out, nil
}

// RecordBid appends an accepted bid, demotes the previous winning bid to
// outbid and raises the auction's current bid. The caller has already
// validated the amount.
func (s *MemoryStore) RecordBid(bid model.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[bid.AuctionID]
	if !ok {
		return fmt.Errorf("record bid for auction %s: %w", bid.AuctionID, auctionerrors.ErrAuctionNotFound)
	}

	for i := range a.Bids {
		if a.Bids[i].Status == model.BidWinning {
			a.Bids[i].Status = model.BidOutbid
		}
	}
	bid.Status = model.BidWinning
	a.Bids = append(a.Bids, bid)
	a.CurrentBid = bid.Amount
	return nil
}

// GetBids returns all bids for an auction in chronological order
func (s *MemoryStore) GetBids(auctionID string) ([]model.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.auctions[auctionID]
	if !ok {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, auctionerrors.ErrAuctionNotFound)
	}
	if len(a.Bids) == 0 {
		return nil, fmt.Errorf("get bids for auction %s: %w", auctionID, auctionerrors.ErrNoBids)
	}
	return append([]model.Bid(nil), a.Bids...), nil
}

// UpdateStatus moves the auction to a new lifecycle status. Only forward
// transitions are allowed. Ending an auction reclassifies the winning bid as
// won and bumps the sold counter when the reserve was met.
func (s *MemoryStore) UpdateStatus(auctionID string, status model.AuctionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[auctionID]
	if !ok {
		return fmt.Errorf("update status for auction %s: %w", auctionID, auctionerrors.ErrAuctionNotFound)
	}
	if !a.Status.CanTransition(status) {
		return fmt.Errorf("update status for auction %s: %s -> %s: %w", auctionID, a.Status, status, auctionerrors.ErrBadStatus)
	}
	a.Status = status

	if status == model.StatusEnded {
		for i := range a.Bids {
			if a.Bids[i].Status == model.BidWinning {
				a.Bids[i].Status = model.BidWon
				if a.ReserveMet() {
					a.Inventory.Sold++
				}
			}
		}
	}
	return nil
}

// UpdateEndTime replaces the auction's end time. End times only move forward
// (anti-snipe extensions); an earlier time is rejected.
func (s *MemoryStore) UpdateEndTime(auctionID string, end time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[auctionID]
	if !ok {
		return fmt.Errorf("update end time for auction %s: %w", auctionID, auctionerrors.ErrAuctionNotFound)
	}
	if end.Before(a.EndTime) {
		return fmt.Errorf("update end time for auction %s: end time may not decrease", auctionID)
	}
	a.EndTime = end
	return nil
}

// SetWatching adds or removes userID from the auction's watcher set
func (s *MemoryStore) SetWatching(auctionID, userID string, watching bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.auctions[auctionID]
	if !ok {
		return fmt.Errorf("set watching for auction %s: %w", auctionID, auctionerrors.ErrAuctionNotFound)
	}

	for i, w := range a.Watchers {
		if w == userID {
			if !watching {
				a.Watchers = append(a.Watchers[:i], a.Watchers[i+1:]...)
			}
			return nil
		}
	}
	if watching {
		a.Watchers = append(a.Watchers, userID)
	}
	return nil
}
