package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"freight_link/internal/models"
)

// MemoryStore keeps the whole aggregate in process memory. It backs the
// test suite and the STORE=memory dev mode. The per-order mutation right is
// a per-order sync.Mutex; mutations run on a copy and commit only when fn
// succeeds, mirroring the transactional backend.
type MemoryStore struct {
	mu     sync.Mutex
	nextID uint

	orders map[uint]*models.Order
	bids   map[uint][]*models.Bid          // by order id
	pings  map[uint][]*models.LocationPing // by order id, chronological
	locks  map[uint]*sync.Mutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders: make(map[uint]*models.Order),
		bids:   make(map[uint][]*models.Bid),
		pings:  make(map[uint][]*models.LocationPing),
		locks:  make(map[uint]*sync.Mutex),
	}
}

func (s *MemoryStore) id() uint {
	s.nextID++
	return s.nextID
}

func (s *MemoryStore) orderLock(orderID uint) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[orderID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[orderID] = l
	}
	return l
}

func (s *MemoryStore) CreateOrder(ctx context.Context, o *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o.ID = s.id()
	now := time.Now()
	o.CreatedAt = now
	o.UpdatedAt = now
	for i := range o.Stops {
		o.Stops[i].ID = s.id()
		o.Stops[i].OrderID = o.ID
	}
	s.orders[o.ID] = cloneOrder(o)
	return nil
}

func (s *MemoryStore) GetOrder(ctx context.Context, id uint) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, models.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (s *MemoryStore) ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Order
	for _, o := range s.orders {
		if f.CompanyID != 0 && o.CompanyID != f.CompanyID {
			continue
		}
		if f.TransporterID != 0 && o.AssignedTransporterID != f.TransporterID {
			continue
		}
		if f.DriverID != 0 && o.AssignedDriverID != f.DriverID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, *cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *MemoryStore) ListBids(ctx context.Context, orderID uint) ([]models.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bids := make([]models.Bid, 0, len(s.bids[orderID]))
	for _, b := range s.bids[orderID] {
		bids = append(bids, *b)
	}
	sort.Slice(bids, func(i, j int) bool { return bids[i].SubmittedAt.Before(bids[j].SubmittedAt) })
	return bids, nil
}

func (s *MemoryStore) RecentPings(ctx context.Context, orderID uint, limit int) ([]models.LocationPing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.pings[orderID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]models.LocationPing, 0, len(all))
	for _, p := range all {
		out = append(out, *p)
	}
	return out, nil
}

func (s *MemoryStore) ExpiredBiddingOrders(ctx context.Context, now time.Time) ([]uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uint
	for id, o := range s.orders {
		if o.BiddingExpired(now) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *MemoryStore) WithOrderLock(ctx context.Context, orderID uint, fn func(Tx) error) error {
	lock := s.orderLock(orderID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	stored, ok := s.orders[orderID]
	if !ok {
		s.mu.Unlock()
		return models.ErrOrderNotFound
	}
	tx := &memTx{store: s, order: cloneOrder(stored)}
	for _, b := range s.bids[orderID] {
		tx.bids = append(tx.bids, cloneBid(b))
	}
	for _, p := range s.pings[orderID] {
		tx.pings = append(tx.pings, clonePing(p))
	}
	s.mu.Unlock()

	if err := fn(tx); err != nil {
		return err
	}

	// Commit the working copies.
	s.mu.Lock()
	defer s.mu.Unlock()
	tx.order.UpdatedAt = time.Now()
	s.orders[orderID] = tx.order
	s.bids[orderID] = tx.bids
	s.pings[orderID] = tx.pings
	return nil
}

type memTx struct {
	store *MemoryStore
	order *models.Order
	bids  []*models.Bid
	pings []*models.LocationPing
}

func (t *memTx) Order() *models.Order { return t.order }

func (t *memTx) SaveOrder(o *models.Order) error {
	t.order = o
	return nil
}

func (t *memTx) Bids() ([]models.Bid, error) {
	out := make([]models.Bid, 0, len(t.bids))
	for _, b := range t.bids {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

func (t *memTx) AddBid(b *models.Bid) error {
	t.store.mu.Lock()
	b.ID = t.store.id()
	t.store.mu.Unlock()
	b.OrderID = t.order.ID
	b.CreatedAt = time.Now()
	t.bids = append(t.bids, cloneBid(b))
	return nil
}

func (t *memTx) SaveBid(b *models.Bid) error {
	for i, existing := range t.bids {
		if existing.ID == b.ID {
			t.bids[i] = cloneBid(b)
			return nil
		}
	}
	return models.ErrBidNotFound
}

func (t *memTx) AddPing(p *models.LocationPing) error {
	t.store.mu.Lock()
	p.ID = t.store.id()
	t.store.mu.Unlock()
	p.OrderID = t.order.ID
	p.CreatedAt = time.Now()
	t.pings = append(t.pings, clonePing(p))
	return nil
}

func (t *memTx) TrimPings(keep int) error {
	if keep > 0 && len(t.pings) > keep {
		t.pings = t.pings[len(t.pings)-keep:]
	}
	return nil
}

func cloneOrder(o *models.Order) *models.Order {
	c := *o
	c.Stops = make([]models.Stop, len(o.Stops))
	copy(c.Stops, o.Stops)
	for i := range o.Stops {
		if o.Stops[i].CompletedAt != nil {
			t := *o.Stops[i].CompletedAt
			c.Stops[i].CompletedAt = &t
		}
	}
	c.BidOpensAt = cloneTime(o.BidOpensAt)
	c.BidClosesAt = cloneTime(o.BidClosesAt)
	c.LastKnownAt = cloneTime(o.LastKnownAt)
	c.AssignedAt = cloneTime(o.AssignedAt)
	c.InTransitAt = cloneTime(o.InTransitAt)
	c.DeliveredAt = cloneTime(o.DeliveredAt)
	c.CancelledAt = cloneTime(o.CancelledAt)
	return &c
}

func cloneBid(b *models.Bid) *models.Bid {
	c := *b
	return &c
}

func clonePing(p *models.LocationPing) *models.LocationPing {
	c := *p
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
