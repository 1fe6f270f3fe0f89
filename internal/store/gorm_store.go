package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"freight_link/internal/models"
)

// GormStore is the Postgres-backed store. Per-order mutual exclusion comes
// from a transaction with SELECT ... FOR UPDATE on the order row.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) CreateOrder(ctx context.Context, o *models.Order) error {
	err := s.db.WithContext(ctx).Create(o).Error
	if isUniqueViolation(err) {
		// Reference collision. Practically unreachable with uuids, but a
		// single regenerate keeps the insert path total.
		o.Reference = uuid.NewString()
		err = s.db.WithContext(ctx).Create(o).Error
	}
	return err
}

func (s *GormStore) GetOrder(ctx context.Context, id uint) (*models.Order, error) {
	var o models.Order
	err := s.db.WithContext(ctx).Preload("Stops", func(db *gorm.DB) *gorm.DB {
		return db.Order("stop_index ASC")
	}).First(&o, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *GormStore) ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	q := s.db.WithContext(ctx).Model(&models.Order{}).Preload("Stops")
	if f.CompanyID != 0 {
		q = q.Where("company_id = ?", f.CompanyID)
	}
	if f.TransporterID != 0 {
		q = q.Where("assigned_transporter_id = ?", f.TransporterID)
	}
	if f.DriverID != 0 {
		q = q.Where("assigned_driver_id = ?", f.DriverID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var orders []models.Order
	if err := q.Order("created_at DESC").Offset(f.Offset).Limit(limit).Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (s *GormStore) ListBids(ctx context.Context, orderID uint) ([]models.Bid, error) {
	var bids []models.Bid
	err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("submitted_at ASC").
		Find(&bids).Error
	return bids, err
}

func (s *GormStore) RecentPings(ctx context.Context, orderID uint, limit int) ([]models.LocationPing, error) {
	if limit <= 0 {
		limit = 50
	}
	var pings []models.LocationPing
	err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("captured_at DESC").
		Limit(limit).
		Find(&pings).Error
	if err != nil {
		return nil, err
	}
	// Flip newest-first into chronological order for trail rendering.
	for i, j := 0, len(pings)-1; i < j; i, j = i+1, j-1 {
		pings[i], pings[j] = pings[j], pings[i]
	}
	return pings, nil
}

func (s *GormStore) ExpiredBiddingOrders(ctx context.Context, now time.Time) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("status = ? AND bid_closes_at <= ?", models.StatusOpenForBidding, now).
		Pluck("id", &ids).Error
	return ids, err
}

func (s *GormStore) WithOrderLock(ctx context.Context, orderID uint, fn func(Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var o models.Order
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&o, orderID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ErrOrderNotFound
		}
		if err != nil {
			return fmt.Errorf("lock order %d: %w", orderID, err)
		}
		if err := tx.Where("order_id = ?", orderID).Order("stop_index ASC").Find(&o.Stops).Error; err != nil {
			return err
		}
		return fn(&gormTx{db: tx, order: &o})
	})
}

type gormTx struct {
	db    *gorm.DB
	order *models.Order
}

func (t *gormTx) Order() *models.Order { return t.order }

func (t *gormTx) SaveOrder(o *models.Order) error {
	return t.db.Session(&gorm.Session{FullSaveAssociations: true}).Save(o).Error
}

func (t *gormTx) Bids() ([]models.Bid, error) {
	var bids []models.Bid
	err := t.db.Where("order_id = ?", t.order.ID).Order("submitted_at ASC").Find(&bids).Error
	return bids, err
}

func (t *gormTx) AddBid(b *models.Bid) error {
	b.OrderID = t.order.ID
	return t.db.Create(b).Error
}

func (t *gormTx) SaveBid(b *models.Bid) error {
	return t.db.Save(b).Error
}

func (t *gormTx) AddPing(p *models.LocationPing) error {
	p.OrderID = t.order.ID
	return t.db.Create(p).Error
}

func (t *gormTx) TrimPings(keep int) error {
	if keep <= 0 {
		return nil
	}
	// Delete everything older than the newest `keep` rows for this order.
	sub := t.db.Model(&models.LocationPing{}).
		Select("id").
		Where("order_id = ?", t.order.ID).
		Order("captured_at DESC").
		Limit(keep)
	return t.db.
		Where("order_id = ? AND id NOT IN (?)", t.order.ID, sub).
		Delete(&models.LocationPing{}).Error
}

// isUniqueViolation recognizes Postgres duplicate-key failures.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
