package integrationtests

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	auction "auction-live/internal/auctionService"
	model "auction-live/internal/models"
	"auction-live/internal/realtime"
	"auction-live/internal/repository"
	"auction-live/internal/server"

	"github.com/gin-gonic/gin"
)

// SetupTestRouter initializes the full router over an in-memory store seeded
// with the given auctions. Rate limiting is opened wide so tests can bid
// rapidly.
func SetupTestRouter(t *testing.T, auctions ...model.Auction) (*gin.Engine, *realtime.Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repository.NewMemoryStore()
	for _, a := range auctions {
		if err := store.CreateAuction(a); err != nil {
			t.Fatalf("failed to seed auction: %v", err)
		}
	}

	hub := realtime.NewHub()
	svc := auction.NewService(store, hub, auction.Options{
		BidInterval: time.Millisecond,
		BidBurst:    1000,
	})
	return server.SetupRouter(svc, hub), hub
}

// ExecuteRequest executes an HTTP request as the given user and returns the
// response recorder.
func ExecuteRequest(t *testing.T, router *gin.Engine, method, url, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reqBody []byte
	var err error
	switch v := body.(type) {
	case nil:
	case []byte:
		reqBody = v
	default:
		reqBody, err = json.Marshal(v)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
	}

	req := httptest.NewRequest(method, url, bytes.NewReader(reqBody))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ParseResponse unmarshals the recorded response body.
func ParseResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var resp map[string]any
	if len(w.Body.Bytes()) > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to unmarshal response: %v", err)
		}
	}
	return resp
}

// liveAuction returns a live auction open for bidding.
func liveAuction(id string) model.Auction {
	now := time.Now().UTC()
	return model.Auction{
		AuctionID:     id,
		SellerID:      "seller",
		Title:         "Vintage film camera",
		StartingPrice: 100,
		CurrentBid:    100,
		BidIncrement:  10,
		StartTime:     now.Add(-time.Minute),
		EndTime:       now.Add(time.Hour),
		Status:        model.StatusLive,
		Inventory:     model.Inventory{Quantity: 1},
	}
}
