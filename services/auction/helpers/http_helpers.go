package helpers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"auction-live/internal/auctionerrors"
	model "auction-live/internal/models"
	"auction-live/utils"

	"github.com/gin-gonic/gin"
)

// HandleBindError sends a standardized JSON error for binding failures
func HandleBindError(c *gin.Context, handlerName string, err error) {
	wrappedErr := fmt.Errorf("invalid request payload: %w", err)
	utils.JSONError(c, http.StatusBadRequest, wrappedErr, "invalid request payload")
	utils.Warn(handlerName+": binding error", map[string]any{"error": err.Error()})
}

// MapErrorToHTTP maps domain/service errors to HTTP status code and message
func MapErrorToHTTP(err error) (int, string) {
	switch {
	case errors.Is(err, auctionerrors.ErrAuctionNotFound):
		return http.StatusNotFound, "auction not found"
	case errors.Is(err, auctionerrors.ErrUnauthorized):
		return http.StatusUnauthorized, "authentication required"
	case errors.Is(err, auctionerrors.ErrInvalidBid), errors.Is(err, auctionerrors.ErrNoBuyNow):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, auctionerrors.ErrSelfBid):
		return http.StatusForbidden, "sellers cannot bid on their own auctions"
	case errors.Is(err, auctionerrors.ErrRateLimited):
		return http.StatusTooManyRequests, "too many bids"
	case errors.Is(err, auctionerrors.ErrNotLive),
		errors.Is(err, auctionerrors.ErrAuctionOver),
		errors.Is(err, auctionerrors.ErrCooldown),
		errors.Is(err, auctionerrors.ErrBidTooLow),
		errors.Is(err, auctionerrors.ErrBelowIncrement):
		return http.StatusConflict, "bid rejected"
	case errors.Is(err, auctionerrors.ErrNoBids):
		return http.StatusOK, "no bids found for auction"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// RespondBidError writes the right error response for a failed bid. Rejections
// carry a machine-readable reason plus the detail the bidder needs (required
// minimum, cooldown remaining); everything else goes through MapErrorToHTTP.
func RespondBidError(c *gin.Context, handlerName string, err error) {
	status, message := MapErrorToHTTP(err)

	var rej *auctionerrors.Rejection
	if errors.As(err, &rej) {
		detail := map[string]any{}
		if rej.MinRequired > 0 {
			detail["min_required"] = rej.MinRequired
		}
		if rej.RetryAfter > 0 {
			detail["retry_after_ms"] = rej.RetryAfter.Milliseconds()
		}
		utils.JSONRejection(c, status, rej, rej.Reason, detail)
	} else {
		utils.JSONError(c, status, fmt.Errorf("%s: %w", message, err), message)
	}

	utils.Warn(handlerName+": bid rejected", map[string]any{
		"handler": handlerName,
		"error":   err.Error(),
	})
}

// NewBidResponse converts a domain bid into its response DTO
func NewBidResponse(bid model.Bid) BidResponse {
	return BidResponse{
		BidID:     bid.BidID,
		AuctionID: bid.AuctionID,
		UserID:    bid.UserID,
		Username:  bid.Username,
		Amount:    bid.Amount,
		IsAutoBid: bid.IsAutoBid,
		Status:    string(bid.Status),
		CreatedAt: bid.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// LogSuccess is a small helper to standardize logging of successful operations
func LogSuccess(handlerName, message string, ctx map[string]any) {
	utils.Info(handlerName+": "+message, ctx)
}
