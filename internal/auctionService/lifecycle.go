package auction

import (
	"context"
	"time"

	model "auction-live/internal/models"
	"auction-live/utils"
)

// Run drives auction lifecycles off the wall clock until ctx is done:
// scheduled auctions go live at their start time, live auctions end at their
// end time, and both transitions are broadcast.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.advance()
		}
	}
}

// advance performs one lifecycle sweep.
func (s *Service) advance() {
	now := s.now()

	scheduled, err := s.store.ListByStatus(model.StatusScheduled)
	if err != nil {
		utils.Error("lifecycle: failed to list scheduled auctions", map[string]any{"error": err.Error()})
	}
	for _, a := range scheduled {
		if now.Before(a.StartTime) {
			continue
		}
		if err := s.store.UpdateStatus(a.AuctionID, model.StatusLive); err != nil {
			utils.Error("lifecycle: failed to start auction", map[string]any{
				"auction_id": a.AuctionID,
				"error":      err.Error(),
			})
			continue
		}
		utils.Info("auction started", map[string]any{"auction_id": a.AuctionID})
		s.broadcast(model.EventAuctionStarted, a.AuctionID, model.AuctionStartedPayload{
			StartTime: a.StartTime,
			EndTime:   a.EndTime,
		})
	}

	live, err := s.store.ListByStatus(model.StatusLive)
	if err != nil {
		utils.Error("lifecycle: failed to list live auctions", map[string]any{"error": err.Error()})
	}
	for _, a := range live {
		if !now.After(a.EndTime) {
			continue
		}
		// Reload with the bid history: ListByStatus may return a slim row,
		// and the ended payload names the winner.
		full, err := s.store.GetAuction(a.AuctionID)
		if err != nil {
			utils.Error("lifecycle: failed to load ending auction", map[string]any{
				"auction_id": a.AuctionID,
				"error":      err.Error(),
			})
			continue
		}
		winner, _ := full.WinningBid()

		if err := s.store.UpdateStatus(a.AuctionID, model.StatusEnded); err != nil {
			utils.Error("lifecycle: failed to end auction", map[string]any{
				"auction_id": a.AuctionID,
				"error":      err.Error(),
			})
			continue
		}
		utils.Info("auction ended", map[string]any{
			"auction_id":  a.AuctionID,
			"winner_id":   winner.UserID,
			"final_price": full.CurrentBid,
		})
		s.broadcast(model.EventAuctionEnded, a.AuctionID, model.AuctionEndedPayload{
			WinnerID:   winner.UserID,
			FinalPrice: full.CurrentBid,
		})
	}
}
