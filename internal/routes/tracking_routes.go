package routes

import (
	"github.com/gin-gonic/gin"

	"freight_link/internal/controllers"
	"freight_link/internal/middleware"
)

func TrackingRoutes(r *gin.Engine, ctl *controllers.TrackingController) {
	loc := r.Group("/orders/:id/location")
	loc.Use(middleware.RequireAuth())
	{
		loc.POST("/", ctl.ReportLocation)
		loc.GET("/", ctl.CurrentLocation)
	}

	trail := r.Group("/orders/:id/trail")
	trail.Use(middleware.RequireAuth())
	{
		trail.GET("/", ctl.Trail)
	}
}
