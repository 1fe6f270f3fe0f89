package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"freight_link/internal/middleware"
	"freight_link/internal/models"
	"freight_link/internal/orders"
)

// OrderController exposes the order lifecycle over HTTP.
type OrderController struct {
	Orders *orders.Service
}

// CreateOrder books a shipment; when bidding is enabled the auction window
// opens in the same call.
func (ctl *OrderController) CreateOrder(c *gin.Context) {
	var input struct {
		PickupAddress   string              `json:"pickup_address" binding:"required"`
		PickupLatitude  float64             `json:"pickup_latitude"`
		PickupLongitude float64             `json:"pickup_longitude"`
		Stops           []orders.StopInput  `json:"stops" binding:"required"`
		WeightTon       float64             `json:"weight_ton"`
		DistanceKm      float64             `json:"distance_km"`
		LoadCategory    string              `json:"load_category"`
		BiddingEnabled  bool                `json:"bidding_enabled"`
		BidWindowSecs   int                 `json:"bid_window_seconds"`
		CompanyID       uint                `json:"company_id"` // honored for admins only
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order input: " + err.Error()})
		return
	}

	actor := middleware.ActorFrom(c)
	o, err := ctl.Orders.Create(c.Request.Context(), actor, orders.CreateOrderInput{
		CompanyID:        input.CompanyID,
		PickupAddress:    input.PickupAddress,
		PickupLatitude:   input.PickupLatitude,
		PickupLongitude:  input.PickupLongitude,
		Stops:            input.Stops,
		WeightTon:        input.WeightTon,
		DistanceKm:       input.DistanceKm,
		LoadCategory:     input.LoadCategory,
		BiddingEnabled:   input.BiddingEnabled,
		BidWindowSeconds: input.BidWindowSecs,
	})
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"order": o})
}

// ListOrders returns the caller's orders, scoped by role.
func (ctl *OrderController) ListOrders(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	list, err := ctl.Orders.List(c.Request.Context(), actor, models.OrderStatus(c.Query("status")))
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": list})
}

// GetOrder returns one order with its stop sequence.
func (ctl *OrderController) GetOrder(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		return
	}
	actor := middleware.ActorFrom(c)
	o, err := ctl.Orders.Get(c.Request.Context(), actor, id)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}

// CancelOrder cancels from any non-terminal state. Repeating the call on an
// already cancelled order succeeds.
func (ctl *OrderController) CancelOrder(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		return
	}
	var input struct {
		Reason string `json:"reason"`
	}
	// Reason is optional; an empty body is fine.
	_ = c.ShouldBindJSON(&input)

	actor := middleware.ActorFrom(c)
	o, err := ctl.Orders.Cancel(c.Request.Context(), actor, id, input.Reason)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}

// AssignOrder is the direct assignment path for orders without an auction.
func (ctl *OrderController) AssignOrder(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		return
	}
	var input struct {
		TransporterID uint  `json:"transporter_id" binding:"required"`
		DriverID      uint  `json:"driver_id"`
		TruckID       uint  `json:"truck_id"`
		Fare          int64 `json:"fare"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid assignment input: " + err.Error()})
		return
	}
	actor := middleware.ActorFrom(c)
	o, err := ctl.Orders.Assign(c.Request.Context(), actor, id, input.TransporterID, input.DriverID, input.TruckID, input.Fare)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}

// CompleteStop marks the next stop in sequence as done.
func (ctl *OrderController) CompleteStop(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		return
	}
	seq, err := strconv.Atoi(c.Param("seq"))
	if err != nil || seq <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid stop index"})
		return
	}
	actor := middleware.ActorFrom(c)
	o, err := ctl.Orders.CompleteStop(c.Request.Context(), actor, id, seq)
	if err != nil {
		renderError(c, err)
		return
	}
	if o.Status == models.StatusDelivered {
		logrus.WithField("order_id", o.ID).Info("Order fully delivered.")
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}

// ReopenBidding starts a fresh auction window on a pending order.
func (ctl *OrderController) ReopenBidding(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		return
	}
	var input struct {
		WindowSeconds int `json:"bid_window_seconds"`
	}
	_ = c.ShouldBindJSON(&input)

	actor := middleware.ActorFrom(c)
	o, err := ctl.Orders.ReopenBidding(c.Request.Context(), actor, id, input.WindowSeconds)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}
