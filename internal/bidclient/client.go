package bidclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"auction-live/internal/auctionerrors"
	model "auction-live/internal/models"
	"auction-live/utils"
)

const (
	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// BidRequest is the payload for placing a bid through the backend API.
type BidRequest struct {
	Amount        float64 `json:"amount"`
	MaxBid        float64 `json:"max_bid,omitempty"`
	EnableAutoBid bool    `json:"enable_auto_bid,omitempty"`
}

// APIClient talks to the auction backend over HTTP. Reads retry on transient
// failures with exponential backoff; bid submission is sent exactly once
// because a retried bid could double-submit.
type APIClient struct {
	http     *http.Client
	base     string
	userID   string
	username string
}

// NewAPIClient creates an APIClient for the given backend base URL,
// authenticating as the given user.
func NewAPIClient(base, userID, username string) *APIClient {
	return &APIClient{
		http:     &http.Client{Timeout: 10 * time.Second},
		base:     base,
		userID:   userID,
		username: username,
	}
}

// envelope is the backend's standard success wrapper.
type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// rejectionBody is the backend's bid rejection wrapper.
type rejectionBody struct {
	Status       int     `json:"status"`
	Error        string  `json:"error"`
	Reason       string  `json:"reason"`
	MinRequired  float64 `json:"min_required"`
	RetryAfterMS int64   `json:"retry_after_ms"`
}

// GetAuction fetches the current auction snapshot.
func (c *APIClient) GetAuction(ctx context.Context, auctionID string) (model.Auction, error) {
	var a model.Auction
	url := fmt.Sprintf("%s/api/auctions/%s", c.base, auctionID)
	if err := c.getWithRetry(ctx, url, &a); err != nil {
		return model.Auction{}, err
	}
	return a, nil
}

// GetBids fetches the auction's bid history, oldest first.
func (c *APIClient) GetBids(ctx context.Context, auctionID string) ([]model.Bid, error) {
	var bids []model.Bid
	url := fmt.Sprintf("%s/api/auctions/%s/bids", c.base, auctionID)
	if err := c.getWithRetry(ctx, url, &bids); err != nil {
		return nil, err
	}
	return bids, nil
}

// PlaceBid submits a bid. A rejected bid returns an *auctionerrors.Rejection
// carrying the backend's reason code.
func (c *APIClient) PlaceBid(ctx context.Context, auctionID string, bid BidRequest) (model.Bid, error) {
	url := fmt.Sprintf("%s/api/auctions/%s/bid", c.base, auctionID)

	var out struct {
		Bid model.Bid `json:"bid"`
	}
	if err := c.post(ctx, url, bid, &out); err != nil {
		return model.Bid{}, err
	}
	return out.Bid, nil
}

// ToggleWatch flips the watch flag for the auction, returning the new state.
func (c *APIClient) ToggleWatch(ctx context.Context, auctionID string) (bool, error) {
	url := fmt.Sprintf("%s/api/auctions/%s/watch", c.base, auctionID)

	var out struct {
		Watching bool `json:"watching"`
	}
	if err := c.post(ctx, url, nil, &out); err != nil {
		return false, err
	}
	return out.Watching, nil
}

func (c *APIClient) getWithRetry(ctx context.Context, url string, out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		c.setHeaders(req)

		resp, err := c.http.Do(req)
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("server error %d after %d retries", resp.StatusCode, maxRetries)
			}
			utils.Warn("retrying after server error", map[string]any{
				"url":     url,
				"status":  resp.StatusCode,
				"attempt": attempt + 1,
			})
			c.sleep(ctx, attempt)
			continue
		}

		return decodeResponse(resp, out)
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

func (c *APIClient) post(ctx context.Context, url string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reqBody)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	return decodeResponse(resp, out)
}

func (c *APIClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-User-ID", c.userID)
	req.Header.Set("X-Username", c.username)
}

// decodeResponse unwraps the backend envelope, mapping error statuses onto
// the shared error taxonomy.
func decodeResponse(resp *http.Response, out any) error {
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return decodeError(resp.StatusCode, raw)
	}

	if out == nil {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

func decodeError(status int, raw []byte) error {
	var body rejectionBody
	if err := json.Unmarshal(raw, &body); err == nil && body.Reason != "" {
		return &auctionerrors.Rejection{
			Err:         auctionerrors.FromReasonCode(body.Reason),
			Reason:      body.Reason,
			MinRequired: body.MinRequired,
			RetryAfter:  time.Duration(body.RetryAfterMS) * time.Millisecond,
		}
	}

	switch status {
	case http.StatusNotFound:
		return auctionerrors.ErrAuctionNotFound
	case http.StatusUnauthorized:
		return auctionerrors.ErrUnauthorized
	default:
		if body.Error != "" {
			return fmt.Errorf("backend error %d: %s", status, body.Error)
		}
		return fmt.Errorf("backend error %d", status)
	}
}

// sleep waits with exponential backoff and jitter, honoring the context.
func (c *APIClient) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	wait += time.Duration(rand.Int63n(int64(baseRetryWait)))
	select {
	case <-ctx.Done():
	case <-time.After(wait):
	}
}
