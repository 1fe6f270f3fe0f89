package routes

import (
	"github.com/gin-gonic/gin"

	"freight_link/internal/controllers"
	"freight_link/internal/middleware"
)

func OrderRoutes(r *gin.Engine, ctl *controllers.OrderController) {
	orders := r.Group("/orders")
	orders.Use(middleware.RequireAuth())
	{
		orders.POST("/", ctl.CreateOrder)
		orders.GET("/", ctl.ListOrders)
		orders.GET("/:id", ctl.GetOrder)
		orders.POST("/:id/cancel", ctl.CancelOrder)
		orders.POST("/:id/assign", ctl.AssignOrder)
		orders.POST("/:id/bidding/reopen", ctl.ReopenBidding)
		orders.POST("/:id/stops/:seq/complete", ctl.CompleteStop)
	}
}
