// Package bidrules holds the pure bid acceptance rules. The client runs them
// before submitting for immediate feedback; the auction service re-runs them
// authoritatively on every submission.
package bidrules

import (
	"auction-live/internal/auctionerrors"
	"auction-live/internal/models"
	"time"
)

// Cooldown is the minimum gap between two submissions by the same user on the
// same auction.
const Cooldown = 2000 * time.Millisecond

// ValidateBid decides whether userID may place amount on the auction right
// now. lastBidAt is the user's previous submission time on this auction; pass
// the zero time when cooldown does not apply (no prior bid, or the caller
// paces users by other means). Returns nil on accept or a *Rejection
// explaining the first failing rule. No side effects.
func ValidateBid(a models.Auction, amount float64, userID string, lastBidAt, now time.Time) error {
	if userID == a.SellerID {
		return &auctionerrors.Rejection{Err: auctionerrors.ErrSelfBid, Reason: "self_bid"}
	}
	if a.Status != models.StatusLive {
		return &auctionerrors.Rejection{Err: auctionerrors.ErrNotLive, Reason: "not_live"}
	}
	if now.After(a.EndTime) {
		return &auctionerrors.Rejection{Err: auctionerrors.ErrAuctionOver, Reason: "ended"}
	}
	if !lastBidAt.IsZero() {
		if elapsed := now.Sub(lastBidAt); elapsed < Cooldown {
			return &auctionerrors.Rejection{
				Err:        auctionerrors.ErrCooldown,
				Reason:     "cooldown",
				RetryAfter: Cooldown - elapsed,
			}
		}
	}
	if amount <= a.CurrentBid {
		return &auctionerrors.Rejection{Err: auctionerrors.ErrBidTooLow, Reason: "too_low"}
	}
	if min := a.MinNextBid(); amount < min {
		return &auctionerrors.Rejection{
			Err:         auctionerrors.ErrBelowIncrement,
			Reason:      "below_increment",
			MinRequired: min,
		}
	}
	return nil
}
