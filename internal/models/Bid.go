package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// BidStatus tracks a single bid. Pending is the only mutable state; every
// other value is terminal.
type BidStatus string

const (
	BidPending   BidStatus = "pending"
	BidAccepted  BidStatus = "accepted"
	BidRejected  BidStatus = "rejected"
	BidWithdrawn BidStatus = "withdrawn"
	BidExpired   BidStatus = "expired"
)

// Terminal reports whether the bid can no longer change.
func (s BidStatus) Terminal() bool {
	return s != BidPending
}

// Bid is one transporter's offer on an order. The ledger is append-only:
// rows are never deleted, and a transporter may hold at most one pending
// bid per order (resubmission requires a withdraw first).
type Bid struct {
	gorm.Model
	OrderID       uint      `json:"order_id" gorm:"index"`
	TransporterID uint      `json:"transporter_id" gorm:"index"`
	DriverID      uint      `json:"driver_id"` // driver nominated with the truck
	TruckID       uint      `json:"truck_id"`
	Amount        int64     `json:"amount"` // whole rupees
	Message       string    `json:"message" gorm:"size:255"`
	Status        BidStatus `json:"status" gorm:"type:varchar(16);index;default:'pending'"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

func (b *Bid) setTerminal(to BidStatus) error {
	if b.Status != BidPending {
		return fmt.Errorf("%w: bid is %s", ErrAuctionClosed, b.Status)
	}
	b.Status = to
	return nil
}

// Accept marks the bid as the auction winner. Only pending bids can win.
func (b *Bid) Accept() error { return b.setTerminal(BidAccepted) }

// Reject marks a losing bid.
func (b *Bid) Reject() error { return b.setTerminal(BidRejected) }

// Withdraw retracts the bid. Withdrawing an already terminal bid is a
// deliberate no-op, not an error.
func (b *Bid) Withdraw() {
	if b.Status == BidPending {
		b.Status = BidWithdrawn
	}
}
