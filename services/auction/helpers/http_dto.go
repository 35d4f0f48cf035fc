package helpers

import "time"

// Request/Response DTOs
type PlaceBidRequest struct {
	Amount        float64 `json:"amount" binding:"required,gt=0"`
	MaxBid        float64 `json:"max_bid" binding:"omitempty,gt=0"`
	EnableAutoBid bool    `json:"enable_auto_bid"`
}

type CreateAuctionRequest struct {
	Title         string    `json:"title" binding:"required"`
	Description   string    `json:"description"`
	Images        []string  `json:"images"`
	StartingPrice float64   `json:"starting_price" binding:"gte=0"`
	BidIncrement  float64   `json:"bid_increment" binding:"required,gt=0"`
	ReservePrice  float64   `json:"reserve_price" binding:"omitempty,gt=0"`
	BuyNowPrice   float64   `json:"buy_now_price" binding:"omitempty,gt=0"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time" binding:"required"`
	Quantity      int       `json:"quantity"`
}

type BidResponse struct {
	BidID     string  `json:"bid_id"`
	AuctionID string  `json:"auction_id"`
	UserID    string  `json:"user_id"`
	Username  string  `json:"username"`
	Amount    float64 `json:"amount"`
	IsAutoBid bool    `json:"is_auto_bid"`
	Status    string  `json:"status"`
	CreatedAt string  `json:"created_at"`
}

type WatchResponse struct {
	AuctionID string `json:"auction_id"`
	Watching  bool   `json:"watching"`
}
