package routes

import (
	"github.com/gin-gonic/gin"

	"freight_link/internal/controllers"
	"freight_link/internal/middleware"
)

func BiddingRoutes(r *gin.Engine, ctl *controllers.BidController) {
	bids := r.Group("/orders/:id/bids")
	bids.Use(middleware.RequireAuth())
	{
		bids.POST("/", ctl.PlaceBid)
		bids.GET("/", ctl.ListBids)
		bids.DELETE("/", ctl.WithdrawBid)
		bids.POST("/accept", ctl.AcceptBid)
	}
}
