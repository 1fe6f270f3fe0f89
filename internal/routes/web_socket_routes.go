package routes

import (
	"github.com/gin-gonic/gin"

	"freight_link/internal/controllers"
)

// WebSocketRoutes registers the live-tracking endpoint. Authentication
// happens inside the handler via the token query parameter, since browser
// WebSocket clients cannot send an Authorization header.
func WebSocketRoutes(r *gin.Engine, ctl *controllers.WSController) {
	r.GET("/ws/track", ctl.HandleTrackingWebSocket)
}
