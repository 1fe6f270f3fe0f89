package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"freight_link/internal/identity"
	"freight_link/internal/models"
	"freight_link/internal/pricing"
	"freight_link/internal/store"
)

// Service owns the order state machine. Every mutation runs under the
// store's per-order lock, so a cancel racing a stop completion resolves to
// exactly one of the two outcomes.
type Service struct {
	store     store.Store
	pricing   *pricing.Client
	bidWindow time.Duration

	now func() time.Time
}

func NewService(st store.Store, pc *pricing.Client, bidWindow time.Duration) *Service {
	return &Service{store: st, pricing: pc, bidWindow: bidWindow, now: time.Now}
}

// StopInput is one drop location in a creation request.
type StopInput struct {
	StopIndex    int     `json:"stop_index"`
	Address      string  `json:"address"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	ContactName  string  `json:"contact_name"`
	ContactPhone string  `json:"contact_phone"`
	Instructions string  `json:"instructions"`
}

// CreateOrderInput carries everything the booking flow provides.
type CreateOrderInput struct {
	CompanyID uint

	PickupAddress   string
	PickupLatitude  float64
	PickupLongitude float64
	Stops           []StopInput

	WeightTon    float64
	DistanceKm   float64
	LoadCategory string

	BiddingEnabled   bool
	BidWindowSeconds int // 0 means the configured default
}

func validateStops(stops []StopInput) error {
	if len(stops) == 0 {
		return fmt.Errorf("%w: at least one drop stop is required", models.ErrValidation)
	}
	for i, s := range stops {
		if s.StopIndex != i+1 {
			return fmt.Errorf("%w: stop indices must be contiguous from 1, got %d at position %d",
				models.ErrValidation, s.StopIndex, i+1)
		}
		if s.Address == "" {
			return fmt.Errorf("%w: stop %d has no address", models.ErrValidation, s.StopIndex)
		}
	}
	return nil
}

// Create books a new order. When bidding is enabled the auction window opens
// as part of the same operation, so there is no observable window in which
// the order exists but is not yet biddable.
func (s *Service) Create(ctx context.Context, actor identity.Actor, in CreateOrderInput) (*models.Order, error) {
	if !actor.CanCreateOrder() {
		return nil, models.ErrForbidden
	}
	if in.PickupAddress == "" {
		return nil, fmt.Errorf("%w: pickup address required", models.ErrValidation)
	}
	if err := validateStops(in.Stops); err != nil {
		return nil, err
	}
	companyID := in.CompanyID
	if actor.Role == identity.RoleCompany {
		companyID = actor.UserID
	}
	if companyID == 0 {
		return nil, fmt.Errorf("%w: company id required", models.ErrValidation)
	}

	now := s.now()
	o := &models.Order{
		Reference:       uuid.NewString(),
		CompanyID:       companyID,
		Status:          models.StatusPending,
		PickupAddress:   in.PickupAddress,
		PickupLatitude:  in.PickupLatitude,
		PickupLongitude: in.PickupLongitude,
		WeightTon:       in.WeightTon,
		DistanceKm:      in.DistanceKm,
		LoadCategory:    in.LoadCategory,
	}
	for _, si := range in.Stops {
		o.Stops = append(o.Stops, models.Stop{
			StopIndex:    si.StopIndex,
			Address:      si.Address,
			Latitude:     si.Latitude,
			Longitude:    si.Longitude,
			ContactName:  si.ContactName,
			ContactPhone: si.ContactPhone,
			Instructions: si.Instructions,
		})
	}

	if s.pricing != nil && in.WeightTon > 0 && in.DistanceKm > 0 {
		fair, err := s.pricing.FairPrice(ctx, pricing.EstimateInput{
			WeightTon:    in.WeightTon,
			DistanceKm:   in.DistanceKm,
			MultiStop:    len(in.Stops) > 1,
			LoadCategory: in.LoadCategory,
		})
		if err != nil {
			// Oracle failures must not block booking; bids simply lose
			// their floor for this order.
			logrus.WithError(err).WithField("company_id", companyID).
				Warn("Fair price estimate unavailable for new order.")
		} else {
			o.FairPrice = fair
		}
	}

	if in.BiddingEnabled {
		window := s.bidWindow
		if in.BidWindowSeconds > 0 {
			window = time.Duration(in.BidWindowSeconds) * time.Second
		}
		if err := o.OpenBidding(now, window); err != nil {
			return nil, err
		}
	}

	if err := s.store.CreateOrder(ctx, o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"order_id":   o.ID,
		"reference":  o.Reference,
		"company_id": companyID,
		"bidding":    in.BiddingEnabled,
		"stops":      len(o.Stops),
	}).Info("Order created.")
	return o, nil
}

// Assign is the direct (non-auction) assignment path. Only valid from
// pending or open_for_bidding; assigning twice fails with ErrAlreadyAssigned.
func (s *Service) Assign(ctx context.Context, actor identity.Actor, orderID, transporterID, driverID, truckID uint, fare int64) (*models.Order, error) {
	var out *models.Order
	err := s.store.WithOrderLock(ctx, orderID, func(tx store.Tx) error {
		o := tx.Order()
		if !actor.CanManageOrder(o) {
			return models.ErrForbidden
		}
		if err := o.Assign(transporterID, driverID, truckID, fare, s.now()); err != nil {
			return err
		}
		// Direct assignment ends any auction in flight: open bids lose.
		if err := rejectPendingBids(tx); err != nil {
			return err
		}
		if err := tx.SaveOrder(o); err != nil {
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
		"driver_id":      driverID,
		"fare":           fare,
	}).Info("Order assigned directly.")
	return out, nil
}

// ReopenBidding starts a fresh auction window on a pending order — the
// manual re-bid path after an auction expires with no offers.
func (s *Service) ReopenBidding(ctx context.Context, actor identity.Actor, orderID uint, windowSeconds int) (*models.Order, error) {
	var out *models.Order
	err := s.store.WithOrderLock(ctx, orderID, func(tx store.Tx) error {
		o := tx.Order()
		if !actor.CanManageOrder(o) {
			return models.ErrForbidden
		}
		window := s.bidWindow
		if windowSeconds > 0 {
			window = time.Duration(windowSeconds) * time.Second
		}
		if err := o.OpenBidding(s.now(), window); err != nil {
			return err
		}
		if err := tx.SaveOrder(o); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"order_id": orderID, "closes_at": out.BidClosesAt}).Info("Bidding window reopened.")
	return out, nil
}

// CompleteStop marks the next stop done. Out-of-order completion fails with
// ErrOutOfSequence; the final stop delivers the order.
func (s *Service) CompleteStop(ctx context.Context, actor identity.Actor, orderID uint, seq int) (*models.Order, error) {
	var out *models.Order
	err := s.store.WithOrderLock(ctx, orderID, func(tx store.Tx) error {
		o := tx.Order()
		if !actor.CanDrive(o) && !actor.CanManageOrder(o) {
			return models.ErrForbidden
		}
		if err := o.CompleteStop(seq, s.now()); err != nil {
			return err
		}
		if err := tx.SaveOrder(o); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"order_id": orderID,
		"stop":     seq,
		"status":   out.Status,
	}).Info("Stop completed.")
	return out, nil
}

// Cancel freezes the order and rejects any still-pending bids. Repeated
// cancels succeed as no-ops.
func (s *Service) Cancel(ctx context.Context, actor identity.Actor, orderID uint, reason string) (*models.Order, error) {
	var out *models.Order
	err := s.store.WithOrderLock(ctx, orderID, func(tx store.Tx) error {
		o := tx.Order()
		if !actor.CanManageOrder(o) {
			return models.ErrForbidden
		}
		alreadyCancelled := o.Status == models.StatusCancelled
		if err := o.Cancel(reason, s.now()); err != nil {
			return err
		}
		if !alreadyCancelled {
			if err := rejectPendingBids(tx); err != nil {
				return err
			}
			if err := tx.SaveOrder(o); err != nil {
				return err
			}
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"order_id": orderID, "reason": reason}).Info("Order cancelled.")
	return out, nil
}

// Get returns one order, subject to the actor's view capability.
func (s *Service) Get(ctx context.Context, actor identity.Actor, orderID uint) (*models.Order, error) {
	o, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.CanView(o) {
		return nil, models.ErrForbidden
	}
	return o, nil
}

// List returns the actor's orders, scoped by role.
func (s *Service) List(ctx context.Context, actor identity.Actor, status models.OrderStatus) ([]models.Order, error) {
	f := store.OrderFilter{Status: status}
	switch actor.Role {
	case identity.RoleCompany:
		f.CompanyID = actor.UserID
	case identity.RoleTransporter:
		// Transporters browse the open auction board or their own wins.
		if status == "" || status == models.StatusOpenForBidding {
			f.Status = models.StatusOpenForBidding
		} else {
			f.TransporterID = actor.UserID
		}
	case identity.RoleDriver:
		f.DriverID = actor.UserID
	case identity.RoleAdmin:
	default:
		return nil, models.ErrForbidden
	}
	return s.store.ListOrders(ctx, f)
}

// rejectPendingBids is the cleanup side effect shared by cancel and direct
// assignment.
func rejectPendingBids(tx store.Tx) error {
	bids, err := tx.Bids()
	if err != nil {
		return err
	}
	for i := range bids {
		if bids[i].Status != models.BidPending {
			continue
		}
		if err := bids[i].Reject(); err != nil {
			return err
		}
		if err := tx.SaveBid(&bids[i]); err != nil {
			return err
		}
	}
	return nil
}
