package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/comanda/internal/models"
)

// GormStore persists the pipeline in PostgreSQL.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *GormStore) ListProducts(ctx context.Context, restaurantID uuid.UUID, ids []uuid.UUID) ([]models.Product, error) {
	var products []models.Product
	query := s.db.WithContext(ctx).Where("restaurant_id = ?", restaurantID)
	if len(ids) > 0 {
		query = query.Where("id IN ?", ids)
	}
	if err := query.Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (s *GormStore) ListDeliveryFees(ctx context.Context, restaurantID uuid.UUID) ([]models.DeliveryFee, error) {
	var fees []models.DeliveryFee
	if err := s.db.WithContext(ctx).
		Where("restaurant_id = ? AND is_active = ?", restaurantID, true).
		Order("neighborhood").
		Find(&fees).Error; err != nil {
		return nil, err
	}
	return fees, nil
}

func (s *GormStore) FindCoupon(ctx context.Context, restaurantID uuid.UUID, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := s.db.WithContext(ctx).
		Where("restaurant_id = ? AND UPPER(code) = ?", restaurantID, strings.ToUpper(strings.TrimSpace(code))).
		First(&coupon).Error; err != nil {
		return nil, notFound(err)
	}
	return &coupon, nil
}

func (s *GormStore) IncrementCouponUsage(ctx context.Context, couponID uuid.UUID) error {
	res := s.db.WithContext(ctx).
		Model(&models.Coupon{}).
		Where("id = ? AND (max_uses = 0 OR used_count < max_uses)", couponID).
		Updates(map[string]any{
			"used_count": gorm.Expr("used_count + 1"),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrCouponExhausted
	}
	return nil
}

func (s *GormStore) UpsertCustomer(ctx context.Context, customer *models.Customer) error {
	db := s.db.WithContext(ctx)
	onConflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: "restaurant_id"}, {Name: "phone"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
	}
	if customer.Name == "" {
		onConflict = clause.OnConflict{
			Columns:   []clause.Column{{Name: "restaurant_id"}, {Name: "phone"}},
			DoNothing: true,
		}
	}
	if err := db.Clauses(onConflict).Omit("Addresses").Create(customer).Error; err != nil {
		return err
	}
	// The conflicting row keeps its own id.
	return db.Where("restaurant_id = ? AND phone = ?", customer.RestaurantID, customer.Phone).
		First(customer).Error
}

const incrementCounterSQL = `
INSERT INTO order_counters (restaurant_id, last_number, updated_at)
VALUES (?, 1, ?)
ON CONFLICT (restaurant_id)
DO UPDATE SET last_number = order_counters.last_number + 1, updated_at = EXCLUDED.updated_at
RETURNING last_number`

func (s *GormStore) IncrementCounter(ctx context.Context, restaurantID uuid.UUID) (int64, error) {
	var next int64
	row := s.db.WithContext(ctx).Raw(incrementCounterSQL, restaurantID, time.Now()).Row()
	if err := row.Scan(&next); err != nil {
		return 0, err
	}
	return next, nil
}

func (s *GormStore) ResetCounter(ctx context.Context, restaurantID uuid.UUID) error {
	now := time.Now()
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "restaurant_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_number", "reset_at", "updated_at"}),
	}).Create(&models.OrderCounter{
		RestaurantID: restaurantID,
		LastNumber:   0,
		ResetAt:      &now,
		UpdatedAt:    now,
	}).Error
}

func (s *GormStore) CreateOrder(ctx context.Context, order *models.Order) error {
	return s.db.WithContext(ctx).Omit("Items").Create(order).Error
}

func (s *GormStore) CreateOrderItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&items).Error
}

func (s *GormStore) FlagOrderInconsistent(ctx context.Context, orderID uuid.UUID, note string) error {
	return s.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]any{
			"items_incomplete":   true,
			"inconsistency_note": note,
			"updated_at":         time.Now(),
		}).Error
}

func (s *GormStore) GetOrder(ctx context.Context, restaurantID, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := s.db.WithContext(ctx).
		Preload("Items").
		First(&order, "id = ? AND restaurant_id = ?", orderID, restaurantID).Error; err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

func (s *GormStore) ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, int64, error) {
	query := s.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("restaurant_id = ?", filter.RestaurantID)

	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.Inconsistent {
		query = query.Where("items_incomplete = ?", true)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit).Offset(filter.Offset)
	}

	var orders []models.Order
	if err := query.Preload("Items").
		Order("created_at desc").
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (s *GormStore) UpdateOrderStatus(ctx context.Context, update StatusUpdate) (bool, error) {
	updates := map[string]any{
		"status":            update.To,
		"status_changed_at": update.At,
		"updated_at":        update.At,
	}
	switch update.To {
	case models.StatusReady:
		updates["ready_at"] = update.At
	case models.StatusDelivered:
		updates["delivered_at"] = update.At
	case models.StatusCancelled:
		updates["cancelled_at"] = update.At
	}

	res := s.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND restaurant_id = ? AND status = ?", update.OrderID, update.RestaurantID, update.From).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) ListTables(ctx context.Context, restaurantID uuid.UUID) ([]models.Table, error) {
	var tables []models.Table
	if err := s.db.WithContext(ctx).
		Where("restaurant_id = ?", restaurantID).
		Order("number").
		Find(&tables).Error; err != nil {
		return nil, err
	}
	return tables, nil
}

func (s *GormStore) ListTabs(ctx context.Context, restaurantID uuid.UUID) ([]models.Tab, error) {
	var tabs []models.Tab
	if err := s.db.WithContext(ctx).
		Where("restaurant_id = ?", restaurantID).
		Order("number").
		Find(&tabs).Error; err != nil {
		return nil, err
	}
	return tabs, nil
}

func seatModel(ref models.SeatRef) any {
	if ref.Kind == models.KindTab {
		return &models.Tab{}
	}
	return &models.Table{}
}

func (s *GormStore) GetSeatStatus(ctx context.Context, restaurantID uuid.UUID, ref models.SeatRef) (models.SeatStatus, error) {
	var status models.SeatStatus
	row := s.db.WithContext(ctx).
		Model(seatModel(ref)).
		Select("status").
		Where("id = ? AND restaurant_id = ?", ref.ID, restaurantID).
		Row()
	if err := row.Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return status, nil
}

func (s *GormStore) SetSeatStatus(ctx context.Context, restaurantID uuid.UUID, ref models.SeatRef, status models.SeatStatus) error {
	res := s.db.WithContext(ctx).
		Model(seatModel(ref)).
		Where("id = ? AND restaurant_id = ?", ref.ID, restaurantID).
		Updates(map[string]any{"status": status, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) CountOpenOrders(ctx context.Context, restaurantID uuid.UUID, ref models.SeatRef) (int64, error) {
	column := "table_id"
	if ref.Kind == models.KindTab {
		column = "tab_id"
	}

	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("restaurant_id = ? AND "+column+" = ? AND status IN ?", restaurantID, ref.ID, models.OpenStatuses).
		Count(&count).Error
	return count, err
}
