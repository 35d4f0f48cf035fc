package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"auction-live/config"
	auction "auction-live/internal/auctionService"
	model "auction-live/internal/models"
	"auction-live/internal/realtime"
	"auction-live/internal/repository"
	"auction-live/internal/server"
	"auction-live/utils"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	utils.ConfigureLogger(cfg.Log.Level, cfg.Log.Format)

	store, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open store: %v\n", err)
		os.Exit(1)
	}

	prepopulateAuctions(store)

	hub := realtime.NewHub()
	auctionSvc := auction.NewService(store, hub, auction.Options{
		AntiSnipeWindow:    cfg.AntiSnipeWindow(),
		AntiSnipeExtension: cfg.AntiSnipeExtension(),
		BidInterval:        cfg.BidInterval(),
		BidBurst:           cfg.Auction.BidBurst,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go auctionSvc.Run(ctx, time.Second)

	router := server.SetupRouter(auctionSvc, hub)

	addr := ":" + cfg.Server.Port
	fmt.Printf("Starting auction server on %s...\n", addr)
	if err := router.Run(addr); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start server: %v\n", err)
		os.Exit(1)
	}
}

// openStore picks the storage backend from config: a SQLite DSN when set,
// in-memory maps otherwise.
func openStore(cfg *config.Config) (repository.AuctionStore, error) {
	if cfg.Storage.DSN == "" {
		return repository.NewMemoryStore(), nil
	}
	return repository.NewSQLiteStore(cfg.Storage.DSN)
}

// prepopulateAuctions adds sample lots so a fresh server has something to bid
// on.
func prepopulateAuctions(store repository.AuctionStore) {
	now := time.Now().UTC()
	auctions := []model.Auction{
		{
			AuctionID:     "a1",
			SellerID:      "seller1",
			Title:         "Vintage film camera",
			Description:   "1970s rangefinder, working meter",
			StartingPrice: 100,
			CurrentBid:    100,
			BidIncrement:  10,
			StartTime:     now.Add(-time.Minute),
			EndTime:       now.Add(time.Hour),
			Status:        model.StatusLive,
			Inventory:     model.Inventory{Quantity: 1},
		},
		{
			AuctionID:     "a2",
			SellerID:      "seller1",
			Title:         "Mechanical keyboard",
			Description:   "Lightly used, brown switches",
			StartingPrice: 40,
			CurrentBid:    40,
			BidIncrement:  5,
			BuyNowPrice:   120,
			StartTime:     now.Add(-time.Minute),
			EndTime:       now.Add(2 * time.Hour),
			Status:        model.StatusLive,
			Inventory:     model.Inventory{Quantity: 1},
		},
		{
			AuctionID:     "a3",
			SellerID:      "seller2",
			Title:         "Road bike frame",
			Description:   "54cm aluminium frame, minor scratches",
			StartingPrice: 150,
			CurrentBid:    150,
			BidIncrement:  25,
			ReservePrice:  300,
			StartTime:     now.Add(30 * time.Minute),
			EndTime:       now.Add(3 * time.Hour),
			Status:        model.StatusScheduled,
			Inventory:     model.Inventory{Quantity: 1},
		},
	}

	for _, a := range auctions {
		if err := store.CreateAuction(a); err != nil {
			utils.Warn("failed to seed auction", map[string]any{
				"auction_id": a.AuctionID,
				"error":      err.Error(),
			})
		}
	}
}
