package server

import (
	"net/http"

	"auction-engine/internal/auth"
	"auction-engine/internal/metrics"
	"auction-engine/internal/models"
	handler "auction-engine/services/bidding/handler"

	"github.com/gin-gonic/gin"
)

// Options tunes the router
type Options struct {
	BidRatePerSecond float64
	BidRateBurst     int
}

// SetupRouter configures all Gin routes for the application
func SetupRouter(service handler.BiddingServiceInterface, events handler.EventSource, jwtManager *auth.JWTManager, opts Options) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())          // recover from panics
	router.Use(RequestLoggerMiddleware) // custom request logging
	router.Use(MetricsMiddleware)

	biddingHandler := handler.NewBiddingHandler(service)
	eventsHandler := handler.NewEventsHandler(events)

	authenticated := []gin.HandlerFunc{RequireAuth(jwtManager), EnsureUser(service)}
	admin := []gin.HandlerFunc{RequireAuth(jwtManager), EnsureUser(service), RequireRole(models.RoleAdmin)}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	auctions := router.Group("/auctions")
	{
		auctions.GET("", biddingHandler.ListAuctionsHandler)
		auctions.GET("/seller", append(authenticated, biddingHandler.GetSellerAuctionsHandler)...)
		auctions.GET("/:id", biddingHandler.GetAuctionHandler)
		auctions.POST("", append(authenticated, biddingHandler.CreateAuctionHandler)...)
		auctions.PUT("/:id/cancel", append(admin, biddingHandler.CancelAuctionHandler)...)
	}

	limiter := NewBidRateLimiter(opts.BidRatePerSecond, opts.BidRateBurst)
	bids := router.Group("/bids")
	{
		bids.POST("", append(authenticated, limiter.Middleware, biddingHandler.RecordBidHandler)...)
		bids.GET("/auction/:auctionId", biddingHandler.GetBidsByAuctionHandler)
		bids.GET("/user", append(authenticated, biddingHandler.GetMyBidsHandler)...)
	}

	messages := router.Group("/messages", authenticated...)
	{
		messages.GET("", biddingHandler.GetMessagesHandler)
		messages.GET("/unread", biddingHandler.GetUnreadMessagesHandler)
		messages.PUT("/:id/read", biddingHandler.MarkMessageReadHandler)
		messages.POST("", biddingHandler.SendMessageHandler)
	}

	users := router.Group("/users")
	{
		users.GET("/profile", append(authenticated, biddingHandler.GetProfileHandler)...)
		users.PUT("/profile", append(authenticated, biddingHandler.UpdateProfileHandler)...)
		users.GET("", append(admin, biddingHandler.ListUsersHandler)...)
		users.PUT("/:id/toggle-status", append(admin, biddingHandler.ToggleUserStatusHandler)...)
	}

	stream := router.Group("/events")
	{
		stream.GET("/auctions", eventsHandler.AllAuctionsHandler)
		stream.GET("/auctions/:id", eventsHandler.AuctionHandler)
		stream.GET("/user", RequireAuth(jwtManager), eventsHandler.UserHandler)
	}

	return router
}
