package auction

import (
	"errors"
	"sync"
	"testing"
	"time"

	"auction-live/internal/auctionerrors"
	model "auction-live/internal/models"
	"auction-live/internal/repository"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
)

// captureBroadcaster records broadcast events for assertions.
type captureBroadcaster struct {
	mu     sync.Mutex
	events []model.Event
}

func (c *captureBroadcaster) Broadcast(ev model.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *captureBroadcaster) byType(t model.EventType) []model.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []model.Event
	for _, ev := range c.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// Helper to create a live auction at current bid 100, increment 10
func liveAuction(now time.Time) model.Auction {
	return model.Auction{
		AuctionID:     "a1",
		SellerID:      "seller",
		Title:         "vintage camera",
		StartingPrice: 100,
		CurrentBid:    100,
		BidIncrement:  10,
		StartTime:     now.Add(-time.Hour),
		EndTime:       now.Add(time.Hour),
		Status:        model.StatusLive,
		Inventory:     model.Inventory{Quantity: 1},
	}
}

// wideOpenOptions disable rate limiting so tests exercise one rule at a time.
func wideOpenOptions() Options {
	return Options{BidInterval: time.Millisecond, BidBurst: 1000}
}

// Tests PlaceBid against a mocked store
func TestService_PlaceBid(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockStore := repository.NewMockAuctionStore(ctrl)
	svc := NewService(mockStore, nil, wideOpenOptions())

	now := time.Now().UTC()
	svc.now = func() time.Time { return now }

	tests := []struct {
		name          string
		auctionID     string
		req           BidRequest
		mockSetup     func()
		expectError   bool
		expectedError error
	}{
		{
			name:      "valid_bid",
			auctionID: "a1",
			req:       BidRequest{UserID: "alice", Username: "alice", Amount: 120},
			mockSetup: func() {
				mockStore.EXPECT().GetAuction("a1").Return(liveAuction(now), nil)
				mockStore.EXPECT().RecordBid(gomock.Any()).Return(nil)
			},
		},
		{
			name:          "empty_auctionID",
			auctionID:     "",
			req:           BidRequest{UserID: "alice", Amount: 120},
			mockSetup:     func() {},
			expectError:   true,
			expectedError: auctionerrors.ErrInvalidBid,
		},
		{
			name:          "empty_userID",
			auctionID:     "a1",
			req:           BidRequest{Amount: 120},
			mockSetup:     func() {},
			expectError:   true,
			expectedError: auctionerrors.ErrInvalidBid,
		},
		{
			name:      "seller_self_bid",
			auctionID: "a1",
			req:       BidRequest{UserID: "seller", Amount: 120},
			mockSetup: func() {
				mockStore.EXPECT().GetAuction("a1").Return(liveAuction(now), nil)
			},
			expectError:   true,
			expectedError: auctionerrors.ErrSelfBid,
		},
		{
			name:      "bid_too_low",
			auctionID: "a1",
			req:       BidRequest{UserID: "alice", Amount: 80},
			mockSetup: func() {
				mockStore.EXPECT().GetAuction("a1").Return(liveAuction(now), nil)
			},
			expectError:   true,
			expectedError: auctionerrors.ErrBidTooLow,
		},
		{
			name:      "below_increment",
			auctionID: "a1",
			req:       BidRequest{UserID: "alice", Amount: 105},
			mockSetup: func() {
				mockStore.EXPECT().GetAuction("a1").Return(liveAuction(now), nil)
			},
			expectError:   true,
			expectedError: auctionerrors.ErrBelowIncrement,
		},
		{
			name:      "auction_missing",
			auctionID: "missing",
			req:       BidRequest{UserID: "alice", Amount: 120},
			mockSetup: func() {
				mockStore.EXPECT().GetAuction("missing").Return(model.Auction{}, auctionerrors.ErrAuctionNotFound)
			},
			expectError:   true,
			expectedError: auctionerrors.ErrAuctionNotFound,
		},
		{
			name:      "store_write_fails",
			auctionID: "a1",
			req:       BidRequest{UserID: "alice", Amount: 120},
			mockSetup: func() {
				mockStore.EXPECT().GetAuction("a1").Return(liveAuction(now), nil)
				mockStore.EXPECT().RecordBid(gomock.Any()).Return(errors.New("disk full"))
			},
			expectError: true,
		},
		{
			name:      "auto_bid_keeps_ceiling",
			auctionID: "a1",
			req:       BidRequest{UserID: "alice", Amount: 120, EnableAutoBid: true, MaxBid: 200},
			mockSetup: func() {
				mockStore.EXPECT().GetAuction("a1").Return(liveAuction(now), nil)
				mockStore.EXPECT().RecordBid(gomock.Any()).DoAndReturn(func(b model.Bid) error {
					require.True(t, b.IsAutoBid)
					require.Equal(t, 200.0, b.MaxBid)
					return nil
				})
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.mockSetup()

			bid, err := svc.PlaceBid(tc.auctionID, tc.req)
			if tc.expectError {
				require.Error(t, err)
				if tc.expectedError != nil {
					require.ErrorIs(t, err, tc.expectedError)
				}
				return
			}
			require.NoError(t, err)
			require.NotEmpty(t, bid.BidID)
			require.Equal(t, tc.req.Amount, bid.Amount)
			require.Equal(t, model.BidWinning, bid.Status)
		})
	}
}

// Full competitive scenario against the real in-memory store: start 100,
// increment 10; 120 accepted, 125 rejected with minimum 130, 130 accepted and
// demotes the first bidder.
func TestService_CompetingBidders(t *testing.T) {
	t.Parallel()

	store := repository.NewMemoryStore()
	events := &captureBroadcaster{}
	svc := NewService(store, events, wideOpenOptions())

	now := time.Now().UTC()
	require.NoError(t, store.CreateAuction(liveAuction(now)))

	first, err := svc.PlaceBid("a1", BidRequest{UserID: "alice", Username: "alice", Amount: 120})
	require.NoError(t, err)
	require.Equal(t, model.BidWinning, first.Status)

	_, err = svc.PlaceBid("a1", BidRequest{UserID: "bob", Username: "bob", Amount: 125})
	require.ErrorIs(t, err, auctionerrors.ErrBelowIncrement)
	var rej *auctionerrors.Rejection
	require.ErrorAs(t, err, &rej)
	require.Equal(t, 130.0, rej.MinRequired)

	second, err := svc.PlaceBid("a1", BidRequest{UserID: "bob", Username: "bob", Amount: 130})
	require.NoError(t, err)

	a, err := svc.GetAuction("a1")
	require.NoError(t, err)
	require.Equal(t, 130.0, a.CurrentBid)
	require.Len(t, a.Bids, 2)
	require.Equal(t, model.BidOutbid, a.Bids[0].Status)
	require.Equal(t, model.BidWinning, a.Bids[1].Status)

	placed := events.byType(model.EventBidPlaced)
	require.Len(t, placed, 2)
	payload, err := placed[1].BidPlaced()
	require.NoError(t, err)
	require.Equal(t, second.BidID, payload.Bid.BidID)
}

// The per-user limiter rejects back-to-back submissions but not other users.
func TestService_RateLimit(t *testing.T) {
	t.Parallel()

	store := repository.NewMemoryStore()
	svc := NewService(store, nil, Options{BidInterval: time.Hour, BidBurst: 1})

	now := time.Now().UTC()
	require.NoError(t, store.CreateAuction(liveAuction(now)))

	_, err := svc.PlaceBid("a1", BidRequest{UserID: "alice", Amount: 120})
	require.NoError(t, err)

	_, err = svc.PlaceBid("a1", BidRequest{UserID: "alice", Amount: 130})
	require.ErrorIs(t, err, auctionerrors.ErrRateLimited)

	_, err = svc.PlaceBid("a1", BidRequest{UserID: "bob", Amount: 130})
	require.NoError(t, err)
}

// A bid inside the anti-snipe window extends the end time and broadcasts it.
func TestService_AntiSnipe(t *testing.T) {
	t.Parallel()

	store := repository.NewMemoryStore()
	events := &captureBroadcaster{}
	svc := NewService(store, events, Options{
		AntiSnipeWindow:    30 * time.Second,
		AntiSnipeExtension: 60 * time.Second,
		BidInterval:        time.Millisecond,
		BidBurst:           100,
	})

	now := time.Now().UTC()
	svc.now = func() time.Time { return now }

	a := liveAuction(now)
	a.EndTime = now.Add(10 * time.Second) // inside the window
	require.NoError(t, store.CreateAuction(a))

	_, err := svc.PlaceBid("a1", BidRequest{UserID: "alice", Amount: 120})
	require.NoError(t, err)

	extended := events.byType(model.EventTimeExtended)
	require.Len(t, extended, 1)
	payload, err := extended[0].TimeExtended()
	require.NoError(t, err)
	require.True(t, payload.NewEndTime.After(a.EndTime))

	got, err := store.GetAuction("a1")
	require.NoError(t, err)
	require.True(t, got.EndTime.After(a.EndTime))

	// a bid well before the window does not extend
	events.mu.Lock()
	events.events = nil
	events.mu.Unlock()

	b := liveAuction(now)
	b.AuctionID = "a2"
	require.NoError(t, store.CreateAuction(b))

	_, err = svc.PlaceBid("a2", BidRequest{UserID: "alice", Amount: 120})
	require.NoError(t, err)
	require.Empty(t, events.byType(model.EventTimeExtended))
}

// BuyNow closes the auction at the buy-now price and broadcasts both events.
func TestService_BuyNow(t *testing.T) {
	t.Parallel()

	store := repository.NewMemoryStore()
	events := &captureBroadcaster{}
	svc := NewService(store, events, wideOpenOptions())

	now := time.Now().UTC()
	a := liveAuction(now)
	a.BuyNowPrice = 500
	require.NoError(t, store.CreateAuction(a))

	bid, err := svc.BuyNow("a1", BidRequest{UserID: "alice", Username: "alice"})
	require.NoError(t, err)
	require.Equal(t, 500.0, bid.Amount)

	got, err := store.GetAuction("a1")
	require.NoError(t, err)
	require.Equal(t, model.StatusEnded, got.Status)
	require.Equal(t, model.BidWon, got.Bids[0].Status)

	require.Len(t, events.byType(model.EventBidPlaced), 1)
	ended := events.byType(model.EventAuctionEnded)
	require.Len(t, ended, 1)
	payload, err := ended[0].AuctionEnded()
	require.NoError(t, err)
	require.Equal(t, "alice", payload.WinnerID)
	require.Equal(t, 500.0, payload.FinalPrice)

	// no buy-now price configured
	b := liveAuction(now)
	b.AuctionID = "a2"
	require.NoError(t, store.CreateAuction(b))
	_, err = svc.BuyNow("a2", BidRequest{UserID: "alice"})
	require.ErrorIs(t, err, auctionerrors.ErrNoBuyNow)
}

// Tests ToggleWatch flip semantics
func TestService_ToggleWatch(t *testing.T) {
	t.Parallel()

	store := repository.NewMemoryStore()
	svc := NewService(store, nil, wideOpenOptions())

	now := time.Now().UTC()
	require.NoError(t, store.CreateAuction(liveAuction(now)))

	watching, err := svc.ToggleWatch("a1", "alice")
	require.NoError(t, err)
	require.True(t, watching)

	watching, err = svc.ToggleWatch("a1", "alice")
	require.NoError(t, err)
	require.False(t, watching)

	_, err = svc.ToggleWatch("missing", "alice")
	require.ErrorIs(t, err, auctionerrors.ErrAuctionNotFound)
}

// Tests CreateAuction validation and defaults
func TestService_CreateAuction(t *testing.T) {
	t.Parallel()

	store := repository.NewMemoryStore()
	svc := NewService(store, nil, wideOpenOptions())

	now := time.Now().UTC()

	tests := []struct {
		name        string
		auction     model.Auction
		expectError bool
	}{
		{
			name: "valid",
			auction: model.Auction{
				SellerID:      "seller",
				Title:         "lot",
				StartingPrice: 100,
				BidIncrement:  10,
				StartTime:     now.Add(-time.Minute),
				EndTime:       now.Add(time.Hour),
			},
		},
		{
			name:        "missing_seller",
			auction:     model.Auction{Title: "lot", BidIncrement: 10, EndTime: now.Add(time.Hour)},
			expectError: true,
		},
		{
			name:        "zero_increment",
			auction:     model.Auction{SellerID: "s", Title: "lot", EndTime: now.Add(time.Hour)},
			expectError: true,
		},
		{
			name: "end_before_start",
			auction: model.Auction{
				SellerID: "s", Title: "lot", BidIncrement: 10,
				StartTime: now.Add(time.Hour), EndTime: now,
			},
			expectError: true,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			created, err := svc.CreateAuction(tc.auction)
			if tc.expectError {
				require.Error(t, err)
				require.ErrorIs(t, err, auctionerrors.ErrInvalidBid)
				return
			}
			require.NoError(t, err)
			require.NotEmpty(t, created.AuctionID)
			require.Equal(t, model.StatusLive, created.Status)
			require.Equal(t, created.StartingPrice, created.CurrentBid)
		})
	}

	// future start time schedules instead of going live
	scheduled, err := svc.CreateAuction(model.Auction{
		SellerID: "s", Title: "later", BidIncrement: 10,
		StartingPrice: 50,
		StartTime:     now.Add(time.Hour), EndTime: now.Add(2 * time.Hour),
	})
	require.NoError(t, err)
	require.Equal(t, model.StatusScheduled, scheduled.Status)
}
