package store

import (
	"context"
	"time"

	"freight_link/internal/models"
)

// OrderFilter narrows ListOrders. Zero values mean "any".
type OrderFilter struct {
	CompanyID     uint
	TransporterID uint
	DriverID      uint
	Status        models.OrderStatus
	Limit         int
	Offset        int
}

// Tx is the view of one order's aggregate (order row, bids, pings) held
// under that order's mutation right. Everything reached through a Tx is
// written atomically when the enclosing WithOrderLock returns nil.
type Tx interface {
	// Order returns the locked order with its stop sequence loaded.
	Order() *models.Order
	// SaveOrder persists the order row and its stops.
	SaveOrder(o *models.Order) error

	Bids() ([]models.Bid, error)
	AddBid(b *models.Bid) error
	SaveBid(b *models.Bid) error

	AddPing(p *models.LocationPing) error
	// TrimPings deletes all but the newest keep pings for the order.
	TrimPings(keep int) error
}

// Store persists the order/bid/ping aggregate. Orders never coordinate
// with each other: the lock granularity is exactly one order.
type Store interface {
	CreateOrder(ctx context.Context, o *models.Order) error
	// GetOrder loads an order with stops. Missing id -> models.ErrOrderNotFound.
	GetOrder(ctx context.Context, id uint) (*models.Order, error)
	ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, error)
	ListBids(ctx context.Context, orderID uint) ([]models.Bid, error)
	// RecentPings returns up to limit pings, oldest first.
	RecentPings(ctx context.Context, orderID uint, limit int) ([]models.LocationPing, error)
	// ExpiredBiddingOrders finds orders still open_for_bidding whose window
	// deadline has passed; input for the auction sweep.
	ExpiredBiddingOrders(ctx context.Context, now time.Time) ([]uint, error)

	// WithOrderLock runs fn while holding the single per-order mutation
	// right (row lock or per-order mutex, depending on the backend). A
	// non-nil error from fn discards all writes made through the Tx.
	WithOrderLock(ctx context.Context, orderID uint, fn func(Tx) error) error
}
