package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// OrderStatus is the canonical order lifecycle state (persisted as a string).
type OrderStatus string

const (
	StatusPending        OrderStatus = "pending"          // booked, not yet assigned
	StatusOpenForBidding OrderStatus = "open_for_bidding" // reverse auction window open
	StatusAssigned       OrderStatus = "assigned"         // transporter/driver locked in
	StatusInTransit      OrderStatus = "in_transit"       // first location ping received
	StatusDelivered      OrderStatus = "delivered"        // all stops completed
	StatusCancelled      OrderStatus = "cancelled"        // escape valve, terminal
)

// AllowTransition is the directed graph of legal status moves. Cancellation
// is reachable from every non-terminal state; delivered and cancelled are
// terminal.
var AllowTransition = map[OrderStatus][]OrderStatus{
	StatusPending:        {StatusOpenForBidding, StatusAssigned, StatusCancelled},
	StatusOpenForBidding: {StatusAssigned, StatusPending, StatusCancelled}, // -> pending: zero-bid expiry revert
	StatusAssigned:       {StatusInTransit, StatusCancelled},
	StatusInTransit:      {StatusDelivered, StatusCancelled},
	StatusDelivered:      {},
	StatusCancelled:      {},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to OrderStatus) bool {
	for _, s := range AllowTransition[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Stop is a drop location in an order's fixed stop sequence. StopIndex is
// 1-based, contiguous, and never reordered after creation.
type Stop struct {
	gorm.Model
	OrderID      uint       `json:"order_id" gorm:"index"`
	StopIndex    int        `json:"stop_index"`
	Address      string     `json:"address"`
	Latitude     float64    `json:"latitude"`
	Longitude    float64    `json:"longitude"`
	ContactName  string     `json:"contact_name"`
	ContactPhone string     `json:"contact_phone"`
	Instructions string     `json:"instructions"`
	Completed    bool       `json:"completed"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Order is the aggregate root: canonical status, stop sequence, bidding
// window, assignment, and the denormalized last known position maintained
// by the tracker.
type Order struct {
	gorm.Model
	Reference string      `json:"reference" gorm:"uniqueIndex;size:64"`
	CompanyID uint        `json:"company_id" gorm:"index"`
	Status    OrderStatus `json:"status" gorm:"type:varchar(20);index;default:'pending'"`

	PickupAddress   string  `json:"pickup_address"`
	PickupLatitude  float64 `json:"pickup_latitude"`
	PickupLongitude float64 `json:"pickup_longitude"`

	Stops            []Stop `json:"stops" gorm:"foreignKey:OrderID"`
	CurrentStopIndex int    `json:"current_stop_index"` // last completed stop, 0..len(Stops)

	// Load attributes, kept for the external fare oracle.
	WeightTon    float64 `json:"weight_ton"`
	DistanceKm   float64 `json:"distance_km"`
	LoadCategory string  `json:"load_category" gorm:"size:32"`
	FairPrice    int64   `json:"fair_price"` // oracle estimate in whole rupees, 0 if unavailable

	BiddingEnabled bool       `json:"bidding_enabled"`
	BidOpensAt     *time.Time `json:"bid_opens_at,omitempty"`
	BidClosesAt    *time.Time `json:"bid_closes_at,omitempty"`

	// Assignment fields are written exactly once, by Assign.
	AssignedTransporterID uint  `json:"assigned_transporter_id" gorm:"index"`
	AssignedDriverID      uint  `json:"assigned_driver_id" gorm:"index"`
	AssignedTruckID       uint  `json:"assigned_truck_id"`
	FinalFare             int64 `json:"final_fare"`

	// Denormalized cache of the latest accepted location sample.
	LastKnownLatitude  float64    `json:"last_known_latitude"`
	LastKnownLongitude float64    `json:"last_known_longitude"`
	LastKnownAt        *time.Time `json:"last_known_at,omitempty"`

	CancelReason string     `json:"cancel_reason,omitempty"`
	AssignedAt   *time.Time `json:"assigned_at,omitempty"`
	InTransitAt  *time.Time `json:"in_transit_at,omitempty"`
	DeliveredAt  *time.Time `json:"delivered_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
}

// Transition moves the order to a new status, maintaining timeline fields.
func (o *Order) Transition(to OrderStatus, now time.Time) error {
	if !CanTransition(o.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
	}
	o.Status = to
	switch to {
	case StatusAssigned:
		if o.AssignedAt == nil {
			t := now
			o.AssignedAt = &t
		}
	case StatusInTransit:
		if o.InTransitAt == nil {
			t := now
			o.InTransitAt = &t
		}
	case StatusDelivered:
		if o.DeliveredAt == nil {
			t := now
			o.DeliveredAt = &t
		}
	case StatusCancelled:
		if o.CancelledAt == nil {
			t := now
			o.CancelledAt = &t
		}
	}
	return nil
}

// OpenBidding places the order into the auction window [now, now+window].
func (o *Order) OpenBidding(now time.Time, window time.Duration) error {
	if err := o.Transition(StatusOpenForBidding, now); err != nil {
		return err
	}
	opens, closes := now, now.Add(window)
	o.BiddingEnabled = true
	o.BidOpensAt = &opens
	o.BidClosesAt = &closes
	return nil
}

// BiddingOpen reports whether bids are currently accepted.
func (o *Order) BiddingOpen(now time.Time) bool {
	if o.Status != StatusOpenForBidding || o.BidOpensAt == nil || o.BidClosesAt == nil {
		return false
	}
	return !now.Before(*o.BidOpensAt) && now.Before(*o.BidClosesAt)
}

// BiddingExpired reports whether the window deadline has passed while the
// order is still waiting on the auction sweep.
func (o *Order) BiddingExpired(now time.Time) bool {
	return o.Status == StatusOpenForBidding && o.BidClosesAt != nil && !now.Before(*o.BidClosesAt)
}

// Assign sets the transporter/driver/fare exactly once and advances the
// status. A second call fails with ErrAlreadyAssigned rather than silently
// overwriting.
func (o *Order) Assign(transporterID, driverID, truckID uint, fare int64, now time.Time) error {
	if o.AssignedTransporterID != 0 {
		return ErrAlreadyAssigned
	}
	if transporterID == 0 {
		return fmt.Errorf("%w: transporter id required", ErrValidation)
	}
	if err := o.Transition(StatusAssigned, now); err != nil {
		return err
	}
	o.AssignedTransporterID = transporterID
	o.AssignedDriverID = driverID
	o.AssignedTruckID = truckID
	o.FinalFare = fare
	if o.BidClosesAt != nil && o.BidClosesAt.After(now) {
		// Early close: the window ends the moment the order is assigned.
		t := now
		o.BidClosesAt = &t
	}
	return nil
}

// BeginTransit flips assigned -> in_transit. Already in transit is a no-op.
func (o *Order) BeginTransit(now time.Time) error {
	if o.Status == StatusInTransit {
		return nil
	}
	return o.Transition(StatusInTransit, now)
}

// CompleteStop marks stop seq done. Stops complete strictly in sequence:
// seq must equal CurrentStopIndex+1. Completing the final stop delivers the
// order.
func (o *Order) CompleteStop(seq int, now time.Time) error {
	switch o.Status {
	case StatusAssigned, StatusInTransit:
	default:
		return fmt.Errorf("%w: cannot complete stop while %s", ErrInvalidTransition, o.Status)
	}
	if seq != o.CurrentStopIndex+1 {
		return fmt.Errorf("%w: got stop %d, expected %d", ErrOutOfSequence, seq, o.CurrentStopIndex+1)
	}
	var stop *Stop
	for i := range o.Stops {
		if o.Stops[i].StopIndex == seq {
			stop = &o.Stops[i]
			break
		}
	}
	if stop == nil {
		return fmt.Errorf("%w: order has no stop %d", ErrValidation, seq)
	}
	t := now
	stop.Completed = true
	stop.CompletedAt = &t
	o.CurrentStopIndex = seq
	if seq == len(o.Stops) {
		// Delivery may follow either assigned or in_transit (an order can be
		// hand-completed without any pings ever arriving).
		if o.Status == StatusAssigned {
			if err := o.Transition(StatusInTransit, now); err != nil {
				return err
			}
		}
		return o.Transition(StatusDelivered, now)
	}
	return nil
}

// Cancel freezes the order. Idempotent: cancelling an already cancelled
// order succeeds without touching anything. Delivered orders cannot be
// cancelled.
func (o *Order) Cancel(reason string, now time.Time) error {
	if o.Status == StatusCancelled {
		return nil
	}
	if err := o.Transition(StatusCancelled, now); err != nil {
		return err
	}
	o.CancelReason = reason
	return nil
}

// NextStop returns the next incomplete stop, or nil once all are done.
func (o *Order) NextStop() *Stop {
	for i := range o.Stops {
		if o.Stops[i].StopIndex == o.CurrentStopIndex+1 {
			return &o.Stops[i]
		}
	}
	return nil
}
