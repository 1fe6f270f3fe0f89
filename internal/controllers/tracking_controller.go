package controllers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"freight_link/internal/middleware"
	"freight_link/internal/tracking"
)

// TrackingController exposes the location tracker: the driver's report
// endpoint (~5s cadence) and the viewer's polling endpoints.
type TrackingController struct {
	Tracker *tracking.Service
	Hub     *TrackHub
}

// ReportLocation ingests one GPS sample from the assigned driver. Stale or
// duplicate samples answer 200 with status "ignored" — never an error, so
// the device has no reason to retry them.
func (ctl *TrackingController) ReportLocation(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		return
	}
	var input locationMessage
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid location payload: " + err.Error()})
		return
	}
	actor := middleware.ActorFrom(c)
	res, err := ctl.Tracker.Report(c.Request.Context(), actor, id, tracking.ReportInput{
		Latitude:   input.Latitude,
		Longitude:  input.Longitude,
		CapturedAt: input.Timestamp,
		Speed:      input.Speed,
		Bearing:    input.Bearing,
	})
	if err != nil {
		renderError(c, err)
		return
	}
	if !res.Accepted {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}
	ctl.Hub.Publish(id, positionPayload(id, input, res))
	c.JSON(http.StatusOK, gin.H{
		"status":             "accepted",
		"order_status":       res.Status,
		"distance_from_last": res.DistanceFromLast,
		"next_stop_distance": res.NextStopDistance,
	})
}

// CurrentLocation answers position polls with the latest sample and its
// age; a fresh order reports known=false rather than an error.
func (ctl *TrackingController) CurrentLocation(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		return
	}
	actor := middleware.ActorFrom(c)
	pos, err := ctl.Tracker.Current(c.Request.Context(), actor, id)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"position": pos})
}

// Trail returns the retained history as a GeoJSON LineString.
func (ctl *TrackingController) Trail(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		return
	}
	actor := middleware.ActorFrom(c)
	geo, count, err := ctl.Tracker.Trail(c.Request.Context(), actor, id)
	if err != nil {
		renderError(c, err)
		return
	}
	if geo == "" {
		c.JSON(http.StatusOK, gin.H{"trail": nil, "samples": count})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trail": json.RawMessage(geo), "samples": count})
}

func positionPayload(orderID uint, in locationMessage, res *tracking.ReportResult) map[string]interface{} {
	return map[string]interface{}{
		"order_id":           orderID,
		"latitude":           in.Latitude,
		"longitude":          in.Longitude,
		"speed":              in.Speed,
		"bearing":            in.Bearing,
		"captured_at":        in.Timestamp.Format(time.RFC3339Nano),
		"order_status":       res.Status,
		"distance_from_last": res.DistanceFromLast,
		"next_stop_distance": res.NextStopDistance,
	}
}
