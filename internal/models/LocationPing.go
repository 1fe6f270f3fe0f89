package models

import (
	"time"

	"gorm.io/gorm"
)

// LocationPing is one accepted GPS sample for an order. Retention is
// bounded: only the most recent TRAIL_KEEP rows per order survive, enough
// for trail rendering.
type LocationPing struct {
	gorm.Model
	OrderID          uint      `json:"order_id" gorm:"index"`
	DriverID         uint      `json:"driver_id"`
	Latitude         float64   `json:"latitude"`
	Longitude        float64   `json:"longitude"`
	Speed            float64   `json:"speed"`   // m/s, as reported by the device
	Bearing          float64   `json:"bearing"` // degrees
	DistanceFromLast float64   `json:"distance_from_last"` // meters
	CapturedAt       time.Time `json:"captured_at" gorm:"index"` // producer's clock
}
