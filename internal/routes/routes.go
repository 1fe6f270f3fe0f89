package routes

import (
	ginlog "github.com/gin-contrib/logger"
	"github.com/gin-gonic/gin"

	"freight_link/internal/controllers"
)

// Controllers bundles the wired HTTP handlers for route registration.
type Controllers struct {
	Orders   *controllers.OrderController
	Bids     *controllers.BidController
	Tracking *controllers.TrackingController
	WS       *controllers.WSController
}

// SetupRouter builds the gin engine with all route groups registered.
func SetupRouter(ctl Controllers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ginlog.SetLogger())

	OrderRoutes(r, ctl.Orders)
	BiddingRoutes(r, ctl.Bids)
	TrackingRoutes(r, ctl.Tracking)
	WebSocketRoutes(r, ctl.WS)

	return r
}
