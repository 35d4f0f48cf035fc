package handler

import (
	"errors"
	"fmt"
	"net/http"

	"auction-live/internal/auctionerrors"
	auction "auction-live/internal/auctionService"
	model "auction-live/internal/models"
	"auction-live/services/auction/helpers"
	"auction-live/utils"

	"github.com/gin-gonic/gin"
)

type AuctionServiceInterface interface {
	CreateAuction(a model.Auction) (model.Auction, error)
	GetAuction(auctionID string) (model.Auction, error)
	GetBids(auctionID string) ([]model.Bid, error)
	PlaceBid(auctionID string, req auction.BidRequest) (model.Bid, error)
	BuyNow(auctionID string, req auction.BidRequest) (model.Bid, error)
	ToggleWatch(auctionID, userID string) (bool, error)
}

type AuctionHandler struct {
	service AuctionServiceInterface
}

func NewAuctionHandler(service AuctionServiceInterface) *AuctionHandler {
	return &AuctionHandler{service: service}
}

// GetAuctionHandler handles GET /api/auctions/:auction_id
func (h *AuctionHandler) GetAuctionHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	a, err := h.service.GetAuction(auctionID)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("GetAuctionHandler: error retrieving auction", map[string]any{"auction_id": auctionID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, a, "auction retrieved successfully")
	helpers.LogSuccess("GetAuctionHandler", "auction retrieved successfully", map[string]any{
		"auction_id": a.AuctionID,
		"status":     string(a.Status),
	})
}

// GetBidsHandler handles GET /api/auctions/:auction_id/bids
func (h *AuctionHandler) GetBidsHandler(c *gin.Context) {
	auctionID := c.Param("auction_id")
	bids, err := h.service.GetBids(auctionID)
	if err != nil && !errors.Is(err, auctionerrors.ErrNoBids) {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("GetBidsHandler: error retrieving bids", map[string]any{"auction_id": auctionID, "error": err.Error()})
		return
	}

	resp := make([]helpers.BidResponse, 0, len(bids))
	for _, bid := range bids {
		resp = append(resp, helpers.NewBidResponse(bid))
	}

	utils.JSONResponse(c, http.StatusOK, resp, "bids retrieved successfully")
	helpers.LogSuccess("GetBidsHandler", "bids retrieved successfully", map[string]any{
		"auction_id": auctionID,
		"count":      len(resp),
	})
}

// PlaceBidHandler handles POST /api/auctions/:auction_id/bid
func (h *AuctionHandler) PlaceBidHandler(c *gin.Context) {
	userID, username, ok := requireUser(c, "PlaceBidHandler")
	if !ok {
		return
	}

	var req helpers.PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "PlaceBidHandler", err)
		return
	}

	auctionID := c.Param("auction_id")
	bid, err := h.service.PlaceBid(auctionID, auction.BidRequest{
		UserID:        userID,
		Username:      username,
		Amount:        req.Amount,
		EnableAutoBid: req.EnableAutoBid,
		MaxBid:        req.MaxBid,
	})
	if err != nil {
		helpers.RespondBidError(c, "PlaceBidHandler", err)
		return
	}

	utils.JSONResponse(c, http.StatusCreated, gin.H{"bid": helpers.NewBidResponse(bid)}, "bid placed successfully")
	helpers.LogSuccess("PlaceBidHandler", "bid placed successfully", map[string]any{
		"bid_id":     bid.BidID,
		"auction_id": auctionID,
		"user_id":    userID,
		"amount":     bid.Amount,
	})
}

// BuyNowHandler handles POST /api/auctions/:auction_id/buy
func (h *AuctionHandler) BuyNowHandler(c *gin.Context) {
	userID, username, ok := requireUser(c, "BuyNowHandler")
	if !ok {
		return
	}

	auctionID := c.Param("auction_id")
	bid, err := h.service.BuyNow(auctionID, auction.BidRequest{UserID: userID, Username: username})
	if err != nil {
		helpers.RespondBidError(c, "BuyNowHandler", err)
		return
	}

	utils.JSONResponse(c, http.StatusCreated, gin.H{"bid": helpers.NewBidResponse(bid)}, "auction bought successfully")
	helpers.LogSuccess("BuyNowHandler", "auction bought successfully", map[string]any{
		"bid_id":     bid.BidID,
		"auction_id": auctionID,
		"user_id":    userID,
		"amount":     bid.Amount,
	})
}

// WatchHandler handles POST /api/auctions/:auction_id/watch
func (h *AuctionHandler) WatchHandler(c *gin.Context) {
	userID, _, ok := requireUser(c, "WatchHandler")
	if !ok {
		return
	}

	auctionID := c.Param("auction_id")
	watching, err := h.service.ToggleWatch(auctionID, userID)
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("WatchHandler: failed to toggle watch", map[string]any{"auction_id": auctionID, "user_id": userID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.WatchResponse{AuctionID: auctionID, Watching: watching}, "watch state updated")
	helpers.LogSuccess("WatchHandler", "watch state updated", map[string]any{
		"auction_id": auctionID,
		"user_id":    userID,
		"watching":   watching,
	})
}

// CreateAuctionHandler handles POST /api/auctions
func (h *AuctionHandler) CreateAuctionHandler(c *gin.Context) {
	userID, _, ok := requireUser(c, "CreateAuctionHandler")
	if !ok {
		return
	}

	var req helpers.CreateAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.HandleBindError(c, "CreateAuctionHandler", err)
		return
	}

	quantity := req.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	a, err := h.service.CreateAuction(model.Auction{
		SellerID:      userID,
		Title:         req.Title,
		Description:   req.Description,
		Images:        req.Images,
		StartingPrice: req.StartingPrice,
		BidIncrement:  req.BidIncrement,
		ReservePrice:  req.ReservePrice,
		BuyNowPrice:   req.BuyNowPrice,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		Inventory:     model.Inventory{Quantity: quantity},
	})
	if err != nil {
		status, message := helpers.MapErrorToHTTP(err)
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
		utils.Warn("CreateAuctionHandler: failed to create auction", map[string]any{"seller_id": userID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusCreated, a, "auction created successfully")
	helpers.LogSuccess("CreateAuctionHandler", "auction created successfully", map[string]any{
		"auction_id": a.AuctionID,
		"seller_id":  userID,
		"status":     string(a.Status),
	})
}

// requireUser pulls the authenticated user off the context, replying 401 when
// the identity middleware found none.
func requireUser(c *gin.Context, handlerName string) (userID, username string, ok bool) {
	userID = c.GetString("user_id")
	if userID == "" {
		utils.JSONError(c, http.StatusUnauthorized, auctionerrors.ErrUnauthorized, "authentication required")
		utils.Warn(handlerName+": unauthenticated request", map[string]any{"path": c.Request.URL.Path})
		return "", "", false
	}
	username = c.GetString("username")
	if username == "" {
		username = userID
	}
	return userID, username, true
}
