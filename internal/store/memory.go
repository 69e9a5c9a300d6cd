package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/comanda/internal/models"
)

// MemoryStore keeps everything in process. A single mutex makes every
// method atomic, which gives the same guarantees the SQL store gets from
// conditional updates. Used by tests and STORE_DRIVER=memory.
type MemoryStore struct {
	mu        sync.Mutex
	products  map[uuid.UUID]models.Product
	fees      map[uuid.UUID]models.DeliveryFee
	coupons   map[uuid.UUID]models.Coupon
	customers map[uuid.UUID]models.Customer
	counters  map[uuid.UUID]int64
	orders    map[uuid.UUID]models.Order
	items     map[uuid.UUID][]models.OrderItem
	tables    map[uuid.UUID]models.Table
	tabs      map[uuid.UUID]models.Tab
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products:  make(map[uuid.UUID]models.Product),
		fees:      make(map[uuid.UUID]models.DeliveryFee),
		coupons:   make(map[uuid.UUID]models.Coupon),
		customers: make(map[uuid.UUID]models.Customer),
		counters:  make(map[uuid.UUID]int64),
		orders:    make(map[uuid.UUID]models.Order),
		items:     make(map[uuid.UUID][]models.OrderItem),
		tables:    make(map[uuid.UUID]models.Table),
		tabs:      make(map[uuid.UUID]models.Tab),
	}
}

// Seeding helpers. Catalog, fee and seating data is owned by other
// services; these stand in for them.

func (s *MemoryStore) AddProduct(p models.Product) models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.EnsureID()
	s.products[p.ID] = p
	return p
}

func (s *MemoryStore) AddDeliveryFee(f models.DeliveryFee) models.DeliveryFee {
	s.mu.Lock()
	defer s.mu.Unlock()
	f.EnsureID()
	s.fees[f.ID] = f
	return f
}

func (s *MemoryStore) AddCoupon(c models.Coupon) models.Coupon {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.EnsureID()
	s.coupons[c.ID] = c
	return c
}

func (s *MemoryStore) AddTable(t models.Table) models.Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.EnsureID()
	if t.Status == "" {
		t.Status = models.SeatAvailable
	}
	s.tables[t.ID] = t
	return t
}

func (s *MemoryStore) AddTab(t models.Tab) models.Tab {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.EnsureID()
	if t.Status == "" {
		t.Status = models.SeatAvailable
	}
	s.tabs[t.ID] = t
	return t
}

func (s *MemoryStore) ListProducts(_ context.Context, restaurantID uuid.UUID, ids []uuid.UUID) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Product
	if len(ids) == 0 {
		for _, p := range s.products {
			if p.RestaurantID == restaurantID {
				out = append(out, p)
			}
		}
		return out, nil
	}
	for _, id := range ids {
		if p, ok := s.products[id]; ok && p.RestaurantID == restaurantID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListDeliveryFees(_ context.Context, restaurantID uuid.UUID) ([]models.DeliveryFee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.DeliveryFee
	for _, f := range s.fees {
		if f.RestaurantID == restaurantID && f.IsActive {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Neighborhood < out[j].Neighborhood })
	return out, nil
}

func (s *MemoryStore) FindCoupon(_ context.Context, restaurantID uuid.UUID, code string) (*models.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code = strings.TrimSpace(code)
	for _, c := range s.coupons {
		if c.RestaurantID == restaurantID && strings.EqualFold(c.Code, code) {
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) IncrementCouponUsage(_ context.Context, couponID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.coupons[couponID]
	if !ok {
		return ErrNotFound
	}
	if c.MaxUses > 0 && c.UsedCount >= c.MaxUses {
		return ErrCouponExhausted
	}
	c.UsedCount++
	s.coupons[couponID] = c
	return nil
}

func (s *MemoryStore) UpsertCustomer(_ context.Context, customer *models.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, c := range s.customers {
		if c.RestaurantID == customer.RestaurantID && c.Phone == customer.Phone {
			if customer.Name != "" {
				c.Name = customer.Name
				c.UpdatedAt = time.Now()
				s.customers[id] = c
			}
			*customer = c
			return nil
		}
	}

	customer.EnsureID()
	now := time.Now()
	customer.CreatedAt, customer.UpdatedAt = now, now
	s.customers[customer.ID] = *customer
	return nil
}

func (s *MemoryStore) IncrementCounter(_ context.Context, restaurantID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[restaurantID]++
	return s.counters[restaurantID], nil
}

func (s *MemoryStore) ResetCounter(_ context.Context, restaurantID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[restaurantID] = 0
	return nil
}

func (s *MemoryStore) CreateOrder(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order.EnsureID()
	now := time.Now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	row := *order
	row.Items = nil
	s.orders[order.ID] = row
	return nil
}

func (s *MemoryStore) CreateOrderItems(_ context.Context, items []models.OrderItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range items {
		if _, ok := s.orders[items[i].OrderID]; !ok {
			return ErrNotFound
		}
	}
	for i := range items {
		items[i].EnsureID()
		items[i].CreatedAt = time.Now()
		s.items[items[i].OrderID] = append(s.items[items[i].OrderID], items[i])
	}
	return nil
}

func (s *MemoryStore) FlagOrderInconsistent(_ context.Context, orderID uuid.UUID, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	o.ItemsIncomplete = true
	o.InconsistencyNote = note
	o.UpdatedAt = time.Now()
	s.orders[orderID] = o
	return nil
}

// withItems copies the order and its items so callers never share memory
// with the store.
func (s *MemoryStore) withItems(o models.Order) models.Order {
	items := s.items[o.ID]
	if len(items) > 0 {
		o.Items = append([]models.OrderItem(nil), items...)
	}
	return o
}

func (s *MemoryStore) GetOrder(_ context.Context, restaurantID, orderID uuid.UUID) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok || o.RestaurantID != restaurantID {
		return nil, ErrNotFound
	}
	o = s.withItems(o)
	return &o, nil
}

func (s *MemoryStore) ListOrders(_ context.Context, filter OrderFilter) ([]models.Order, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := make(map[models.OrderStatus]bool, len(filter.Statuses))
	for _, st := range filter.Statuses {
		wanted[st] = true
	}

	var out []models.Order
	for _, o := range s.orders {
		if o.RestaurantID != filter.RestaurantID {
			continue
		}
		if len(wanted) > 0 && !wanted[o.Status] {
			continue
		}
		if filter.Inconsistent && !o.ItemsIncomplete {
			continue
		}
		out = append(out, s.withItems(o))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].OrderNumber > out[j].OrderNumber
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	total := int64(len(out))
	if filter.Limit > 0 {
		start := min(filter.Offset, len(out))
		end := min(start+filter.Limit, len(out))
		out = out[start:end]
	}
	return out, total, nil
}

func (s *MemoryStore) UpdateOrderStatus(_ context.Context, update StatusUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[update.OrderID]
	if !ok || o.RestaurantID != update.RestaurantID || o.Status != update.From {
		return false, nil
	}

	at := update.At
	o.Status = update.To
	o.StatusChangedAt = &at
	o.UpdatedAt = at
	switch update.To {
	case models.StatusReady:
		o.ReadyAt = &at
	case models.StatusDelivered:
		o.DeliveredAt = &at
	case models.StatusCancelled:
		o.CancelledAt = &at
	}
	s.orders[o.ID] = o
	return true, nil
}

func (s *MemoryStore) ListTables(_ context.Context, restaurantID uuid.UUID) ([]models.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Table
	for _, t := range s.tables {
		if t.RestaurantID == restaurantID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (s *MemoryStore) ListTabs(_ context.Context, restaurantID uuid.UUID) ([]models.Tab, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Tab
	for _, t := range s.tabs {
		if t.RestaurantID == restaurantID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (s *MemoryStore) GetSeatStatus(_ context.Context, restaurantID uuid.UUID, ref models.SeatRef) (models.SeatStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ref.Kind {
	case models.KindTable:
		if t, ok := s.tables[ref.ID]; ok && t.RestaurantID == restaurantID {
			return t.Status, nil
		}
	case models.KindTab:
		if t, ok := s.tabs[ref.ID]; ok && t.RestaurantID == restaurantID {
			return t.Status, nil
		}
	}
	return "", ErrNotFound
}

func (s *MemoryStore) SetSeatStatus(_ context.Context, restaurantID uuid.UUID, ref models.SeatRef, status models.SeatStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ref.Kind {
	case models.KindTable:
		if t, ok := s.tables[ref.ID]; ok && t.RestaurantID == restaurantID {
			t.Status = status
			t.UpdatedAt = time.Now()
			s.tables[ref.ID] = t
			return nil
		}
	case models.KindTab:
		if t, ok := s.tabs[ref.ID]; ok && t.RestaurantID == restaurantID {
			t.Status = status
			t.UpdatedAt = time.Now()
			s.tabs[ref.ID] = t
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) CountOpenOrders(_ context.Context, restaurantID uuid.UUID, ref models.SeatRef) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, o := range s.orders {
		if o.RestaurantID != restaurantID || o.Status.Terminal() {
			continue
		}
		seat, ok := models.SeatOf(&o)
		if ok && seat == ref {
			n++
		}
	}
	return n, nil
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*GormStore)(nil)
)
