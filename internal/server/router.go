package server

import (
	auction "auction-live/internal/auctionService"
	"auction-live/internal/realtime"
	handler "auction-live/services/auction/handler"

	"github.com/gin-gonic/gin"
)

// SetupRouter configures all Gin routes for the application
func SetupRouter(auctionService *auction.Service, hub *realtime.Hub) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())          // recover from panics
	router.Use(RequestLoggerMiddleware) // custom request logging
	router.Use(UserIdentityMiddleware)

	auctionHandler := handler.NewAuctionHandler(auctionService)

	auctions := router.Group("/api/auctions")
	{
		auctions.POST("", auctionHandler.CreateAuctionHandler)
		auctions.GET("/:auction_id", auctionHandler.GetAuctionHandler)
		auctions.GET("/:auction_id/bids", auctionHandler.GetBidsHandler)
		auctions.POST("/:auction_id/bid", auctionHandler.PlaceBidHandler)
		auctions.POST("/:auction_id/buy", auctionHandler.BuyNowHandler)
		auctions.POST("/:auction_id/watch", auctionHandler.WatchHandler)
	}

	router.GET("/ws", hub.HandleWS)

	return router
}
