package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"freight_link/internal/models"
)

// renderError maps core errors onto HTTP statuses. Race outcomes get 409
// with a message the frontend can show verbatim.
func renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrOrderNotFound), errors.Is(err, models.ErrBidNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrAuctionClosed):
		c.JSON(http.StatusConflict, gin.H{"error": "this order was already assigned"})
	case errors.Is(err, models.ErrBiddingClosed),
		errors.Is(err, models.ErrDuplicateBid),
		errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrOutOfSequence),
		errors.Is(err, models.ErrAlreadyAssigned):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// orderIDParam parses the :id path segment.
func orderIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order id"})
		return 0, false
	}
	return uint(id), true
}
