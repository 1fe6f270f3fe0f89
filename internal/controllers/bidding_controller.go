package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"freight_link/internal/bidding"
	"freight_link/internal/middleware"
)

// BidController exposes the bid ledger and auction operations.
type BidController struct {
	Bids *bidding.Service
}

// PlaceBid submits a transporter's offer on an open auction.
func (ctl *BidController) PlaceBid(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		return
	}
	var input struct {
		Amount   int64  `json:"amount" binding:"required"`
		TruckID  uint   `json:"truck_id"`
		DriverID uint   `json:"driver_id"`
		Message  string `json:"message"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid bid input: " + err.Error()})
		return
	}
	actor := middleware.ActorFrom(c)
	b, err := ctl.Bids.Submit(c.Request.Context(), actor, id, bidding.SubmitBidInput{
		Amount:   input.Amount,
		TruckID:  input.TruckID,
		DriverID: input.DriverID,
		Message:  input.Message,
	})
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"bid": b})
}

// WithdrawBid retracts the caller's pending bid; already-settled bids make
// this a no-op.
func (ctl *BidController) WithdrawBid(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		return
	}
	actor := middleware.ActorFrom(c)
	if err := ctl.Bids.Withdraw(c.Request.Context(), actor, id); err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Bid withdrawn"})
}

// ListBids returns the leaderboard: amount ascending, earliest first on
// ties.
func (ctl *BidController) ListBids(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		return
	}
	actor := middleware.ActorFrom(c)
	bids, err := ctl.Bids.List(c.Request.Context(), actor, id)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bids": bids})
}

// AcceptBid closes the auction early in favor of one transporter.
func (ctl *BidController) AcceptBid(c *gin.Context) {
	id, ok := orderIDParam(c)
	if !ok {
		return
	}
	var input struct {
		TransporterID uint `json:"transporter_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid accept input: " + err.Error()})
		return
	}
	actor := middleware.ActorFrom(c)
	o, err := ctl.Bids.Accept(c.Request.Context(), actor, id, input.TransporterID)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}
