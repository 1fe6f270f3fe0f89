package bidding

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"freight_link/internal/identity"
	"freight_link/internal/models"
	"freight_link/internal/store"
)

// maxBidsPerOrder caps the ledger per order, matching the booking rules of
// the platform.
const maxBidsPerOrder = 10

// floorFraction is the lowest allowed bid relative to the fair-price
// estimate. Bids below 80% of the oracle's number are refused as
// implausible.
const floorFraction = 0.8

// Service is the bid ledger plus the auction coordinator. Winner selection
// — manual accept or timer-driven auto close — runs as one atomic unit
// under the store's per-order lock, so two racing closes can never both
// assign the order: the loser observes the already-advanced status and gets
// ErrAuctionClosed.
type Service struct {
	store store.Store
	now   func() time.Time
}

func NewService(st store.Store) *Service {
	return &Service{store: st, now: time.Now}
}

// SubmitBidInput is a transporter's offer.
type SubmitBidInput struct {
	Amount   int64
	TruckID  uint
	DriverID uint
	Message  string
}

// Submit appends a bid to the order's ledger.
func (s *Service) Submit(ctx context.Context, actor identity.Actor, orderID uint, in SubmitBidInput) (*models.Bid, error) {
	if !actor.CanBid() {
		return nil, models.ErrForbidden
	}
	if in.Amount <= 0 {
		return nil, fmt.Errorf("%w: bid amount must be positive", models.ErrValidation)
	}
	var out *models.Bid
	err := s.store.WithOrderLock(ctx, orderID, func(tx store.Tx) error {
		o := tx.Order()
		if !o.BiddingOpen(s.now()) {
			return models.ErrBiddingClosed
		}
		if o.FairPrice > 0 {
			floor := int64(float64(o.FairPrice) * floorFraction)
			if in.Amount < floor {
				return fmt.Errorf("%w: bid %d is below the minimum %d for this order",
					models.ErrValidation, in.Amount, floor)
			}
		}
		bids, err := tx.Bids()
		if err != nil {
			return err
		}
		if livePendingBid(bids, actor.UserID) != nil {
			return models.ErrDuplicateBid
		}
		if len(bids) >= maxBidsPerOrder {
			return fmt.Errorf("%w: order already has the maximum of %d bids",
				models.ErrValidation, maxBidsPerOrder)
		}
		b := &models.Bid{
			TransporterID: actor.UserID,
			DriverID:      in.DriverID,
			TruckID:       in.TruckID,
			Amount:        in.Amount,
			Message:       in.Message,
			Status:        models.BidPending,
			SubmittedAt:   s.now(),
		}
		if err := tx.AddBid(b); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"order_id":       orderID,
		"transporter_id": actor.UserID,
		"amount":         in.Amount,
	}).Info("Bid submitted.")
	return out, nil
}

// Withdraw retracts the actor's pending bid. Withdrawing a bid that is
// already terminal — or never existed — succeeds silently.
func (s *Service) Withdraw(ctx context.Context, actor identity.Actor, orderID uint) error {
	if !actor.CanBid() {
		return models.ErrForbidden
	}
	return s.store.WithOrderLock(ctx, orderID, func(tx store.Tx) error {
		bids, err := tx.Bids()
		if err != nil {
			return err
		}
		b := livePendingBid(bids, actor.UserID)
		if b == nil {
			return nil
		}
		b.Withdraw()
		return tx.SaveBid(b)
	})
}

// List returns the order's full ledger in leaderboard order.
func (s *Service) List(ctx context.Context, actor identity.Actor, orderID uint) ([]models.Bid, error) {
	o, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.CanView(o) {
		return nil, models.ErrForbidden
	}
	bids, err := s.store.ListBids(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return Leaderboard(bids), nil
}

// Accept is the operator-triggered early close: the targeted bid wins, all
// other pending bids lose, the window closes, and the order is assigned —
// atomically. Whichever of a manual accept and the expiry sweep reaches the
// order lock second finds the order no longer open and fails with
// ErrAuctionClosed, without re-applying side effects.
func (s *Service) Accept(ctx context.Context, actor identity.Actor, orderID, transporterID uint) (*models.Order, error) {
	var out *models.Order
	err := s.store.WithOrderLock(ctx, orderID, func(tx store.Tx) error {
		o := tx.Order()
		if !actor.CanManageOrder(o) {
			return models.ErrForbidden
		}
		if o.Status != models.StatusOpenForBidding {
			return models.ErrAuctionClosed
		}
		bids, err := tx.Bids()
		if err != nil {
			return err
		}
		winner := livePendingBid(bids, transporterID)
		if winner == nil {
			return fmt.Errorf("%w: no pending bid from transporter %d", models.ErrBidNotFound, transporterID)
		}
		if err := s.closeWith(tx, o, bids, winner); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"order_id":       orderID,
		"transporter_id": transporterID,
		"fare":           out.FinalFare,
	}).Info("Bid accepted, auction closed.")
	return out, nil
}

// AutoCloseExpired sweeps orders whose window deadline has passed. The
// lowest pending bid wins per the canonical ordering; an order with zero
// live bids reverts to pending so it can be rebooked or re-auctioned.
func (s *Service) AutoCloseExpired(ctx context.Context) error {
	ids, err := s.store.ExpiredBiddingOrders(ctx, s.now())
	if err != nil {
		return fmt.Errorf("scan expired auctions: %w", err)
	}
	for _, id := range ids {
		if err := s.autoClose(ctx, id); err != nil {
			logrus.WithError(err).WithField("order_id", id).Error("Auto-close failed for expired auction.")
		}
	}
	return nil
}

func (s *Service) autoClose(ctx context.Context, orderID uint) error {
	return s.store.WithOrderLock(ctx, orderID, func(tx store.Tx) error {
		o := tx.Order()
		// Re-check under the lock: a manual accept or a cancel may have
		// won the race since the sweep scanned.
		if !o.BiddingExpired(s.now()) {
			return nil
		}
		bids, err := tx.Bids()
		if err != nil {
			return err
		}
		winner := SelectWinner(bids)
		if winner == nil {
			// Business event, not an error: the order stays bookable.
			if err := o.Transition(models.StatusPending, s.now()); err != nil {
				return err
			}
			logrus.WithField("order_id", o.ID).Info("Auction expired with no bids, order reverted to pending.")
			return tx.SaveOrder(o)
		}
		if err := s.closeWith(tx, o, bids, winner); err != nil {
			return err
		}
		logrus.WithFields(logrus.Fields{
			"order_id":       o.ID,
			"transporter_id": winner.TransporterID,
			"amount":         winner.Amount,
		}).Info("Auction auto-closed, lowest bid accepted.")
		return nil
	})
}

// closeWith applies the atomic accept sequence: winner accepted, every
// other pending bid rejected, window closed, order assigned.
func (s *Service) closeWith(tx store.Tx, o *models.Order, bids []models.Bid, winner *models.Bid) error {
	now := s.now()
	if err := winner.Accept(); err != nil {
		return err
	}
	if err := tx.SaveBid(winner); err != nil {
		return err
	}
	for i := range bids {
		if bids[i].ID == winner.ID || bids[i].Status != models.BidPending {
			continue
		}
		if err := bids[i].Reject(); err != nil {
			return err
		}
		if err := tx.SaveBid(&bids[i]); err != nil {
			return err
		}
	}
	if err := o.Assign(winner.TransporterID, winner.DriverID, winner.TruckID, winner.Amount, now); err != nil {
		return err
	}
	return tx.SaveOrder(o)
}
