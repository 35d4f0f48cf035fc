package bidclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"auction-live/internal/auctionerrors"
	model "auction-live/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestAPIClient_GetAuction(t *testing.T) {
	t.Parallel()

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/api/auctions/:auction_id", func(c *gin.Context) {
		require.Equal(t, "alice", c.GetHeader("X-User-ID"))
		c.JSON(http.StatusOK, gin.H{
			"status":  http.StatusOK,
			"message": "auction retrieved successfully",
			"data": model.Auction{
				AuctionID:    "a1",
				Title:        "vintage camera",
				CurrentBid:   120,
				BidIncrement: 10,
				Status:       model.StatusLive,
			},
		})
	})
	srv := httptest.NewServer(router)
	defer srv.Close()

	client := NewAPIClient(srv.URL, "alice", "Alice")
	a, err := client.GetAuction(context.Background(), "a1")
	require.NoError(t, err)
	require.Equal(t, "a1", a.AuctionID)
	require.Equal(t, 120.0, a.CurrentBid)
	require.Equal(t, model.StatusLive, a.Status)
}

func TestAPIClient_GetAuction_NotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"status":404,"error":"auction not found"}`))
	}))
	defer srv.Close()

	client := NewAPIClient(srv.URL, "alice", "Alice")
	_, err := client.GetAuction(context.Background(), "missing")
	require.ErrorIs(t, err, auctionerrors.ErrAuctionNotFound)
}

func TestAPIClient_GetAuction_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":200,"message":"ok","data":{"auction_id":"a1"}}`))
	}))
	defer srv.Close()

	client := NewAPIClient(srv.URL, "alice", "Alice")
	a, err := client.GetAuction(context.Background(), "a1")
	require.NoError(t, err)
	require.Equal(t, "a1", a.AuctionID)
	require.EqualValues(t, 3, calls.Load())
}

func TestAPIClient_PlaceBid(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"status":201,"message":"bid placed successfully","data":{"bid":{"bid_id":"b1","auction_id":"a1","user_id":"alice","amount":120,"status":"winning","created_at":"2026-08-31T12:00:00Z"}}}`))
	}))
	defer srv.Close()

	client := NewAPIClient(srv.URL, "alice", "Alice")
	bid, err := client.PlaceBid(context.Background(), "a1", BidRequest{Amount: 120})
	require.NoError(t, err)
	require.Equal(t, "b1", bid.BidID)
	require.Equal(t, 120.0, bid.Amount)
	require.Equal(t, model.BidWinning, bid.Status)
	require.Equal(t, time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC), bid.CreatedAt.UTC())
}

func TestAPIClient_PlaceBid_RejectionCarriesDetail(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"status":409,"error":"bid below minimum increment (minimum 130.00)","reason":"below_increment","min_required":130}`))
	}))
	defer srv.Close()

	client := NewAPIClient(srv.URL, "bob", "Bob")
	_, err := client.PlaceBid(context.Background(), "a1", BidRequest{Amount: 125})
	require.ErrorIs(t, err, auctionerrors.ErrBelowIncrement)

	var rej *auctionerrors.Rejection
	require.True(t, errors.As(err, &rej))
	require.Equal(t, "below_increment", rej.Reason)
	require.Equal(t, 130.0, rej.MinRequired)
}

func TestAPIClient_PlaceBid_CooldownRejection(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"status":409,"error":"bidding too quickly","reason":"cooldown","retry_after_ms":1500}`))
	}))
	defer srv.Close()

	client := NewAPIClient(srv.URL, "bob", "Bob")
	_, err := client.PlaceBid(context.Background(), "a1", BidRequest{Amount: 200})
	require.ErrorIs(t, err, auctionerrors.ErrCooldown)

	var rej *auctionerrors.Rejection
	require.True(t, errors.As(err, &rej))
	require.Equal(t, 1500*time.Millisecond, rej.RetryAfter)
}

func TestAPIClient_GetBids(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":200,"message":"ok","data":[{"bid_id":"b1","amount":120},{"bid_id":"b2","amount":130}]}`))
	}))
	defer srv.Close()

	client := NewAPIClient(srv.URL, "alice", "Alice")
	bids, err := client.GetBids(context.Background(), "a1")
	require.NoError(t, err)
	require.Len(t, bids, 2)
	require.Equal(t, 130.0, bids[1].Amount)
}

func TestAPIClient_ToggleWatch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":200,"message":"watch state updated","data":{"auction_id":"a1","watching":true}}`))
	}))
	defer srv.Close()

	client := NewAPIClient(srv.URL, "alice", "Alice")
	watching, err := client.ToggleWatch(context.Background(), "a1")
	require.NoError(t, err)
	require.True(t, watching)
}
