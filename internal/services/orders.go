package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/comanda/internal/config"
	"github.com/example/comanda/internal/models"
	"github.com/example/comanda/internal/pricing"
	"github.com/example/comanda/internal/realtime"
	"github.com/example/comanda/internal/store"
	"github.com/example/comanda/internal/utils"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateStruct runs the struct tag rules and reports failures per field.
func ValidateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), strings.Split(fe.Namespace(), ".")[0]+".")
		switch fe.Tag() {
		case "required":
			fields[field] = "is required"
		case "oneof":
			fields[field] = "must be one of: " + fe.Param()
		case "gte", "min":
			fields[field] = "must be at least " + fe.Param()
		case "max":
			fields[field] = "must be at most " + fe.Param()
		default:
			fields[field] = "is invalid"
		}
	}
	return &ValidationError{Fields: fields}
}

// PolicySource supplies the per-restaurant flags.
type PolicySource interface {
	Policy(restaurantID uuid.UUID) config.RestaurantPolicy
}

// OrderService owns order creation and every status change.
type OrderService struct {
	store     store.Store
	bus       realtime.Bus
	seq       *Sequencer
	occupancy *Occupancy
	coupons   CouponAuthority
	handoff   Handoff
	policies  PolicySource
	now       func() time.Time
}

// OrderDeps wires an OrderService. Coupons and Handoff default to the
// store-backed authority and a log-only handoff.
type OrderDeps struct {
	Store     store.Store
	Bus       realtime.Bus
	Occupancy *Occupancy
	Coupons   CouponAuthority
	Handoff   Handoff
	Policies  PolicySource
}

func NewOrderService(deps OrderDeps) *OrderService {
	s := &OrderService{
		store:     deps.Store,
		bus:       deps.Bus,
		seq:       NewSequencer(deps.Store),
		occupancy: deps.Occupancy,
		coupons:   deps.Coupons,
		handoff:   deps.Handoff,
		policies:  deps.Policies,
		now:       time.Now,
	}
	if s.occupancy == nil {
		s.occupancy = NewOccupancy(deps.Store, deps.Bus)
	}
	if s.coupons == nil {
		s.coupons = NewStoreCouponAuthority(deps.Store)
	}
	if s.handoff == nil {
		s.handoff = LogHandoff{}
	}
	return s
}

func (s *OrderService) Sequencer() *Sequencer { return s.seq }

func (s *OrderService) Occupancy() *Occupancy { return s.occupancy }

func (s *OrderService) policy(restaurantID uuid.UUID) config.RestaurantPolicy {
	if s.policies == nil {
		return config.RestaurantPolicy{Name: "Restaurante", IsOpen: true}
	}
	return s.policies.Policy(restaurantID)
}

// QuoteRequest prices a cart without persisting anything.
type QuoteRequest struct {
	OrderType       models.OrderType `json:"order_type" validate:"required,oneof=counter table tab takeaway delivery digital_menu"`
	Cart            pricing.Cart     `json:"cart"`
	DeliveryAddress string           `json:"delivery_address" validate:"max=300"`
	Neighborhood    string           `json:"neighborhood" validate:"max=120"`
	CouponCode      string           `json:"coupon_code" validate:"max=40"`
}

type CreateOrderRequest struct {
	OrderType       models.OrderType `json:"order_type" validate:"required,oneof=counter table tab takeaway delivery digital_menu"`
	Cart            pricing.Cart     `json:"cart"`
	TableID         *uuid.UUID       `json:"table_id"`
	TabID           *uuid.UUID       `json:"tab_id"`
	CustomerName    string           `json:"customer_name" validate:"max=120"`
	CustomerPhone   string           `json:"customer_phone" validate:"omitempty,min=8,max=20"`
	DeliveryAddress string           `json:"delivery_address" validate:"max=300"`
	Neighborhood    string           `json:"neighborhood" validate:"max=120"`
	PaymentMethod   string           `json:"payment_method" validate:"omitempty,oneof=cash credit debit pix"`
	ChangeFor       decimal.Decimal  `json:"change_for"`
	CouponCode      string           `json:"coupon_code" validate:"max=40"`
	Notes           string           `json:"notes" validate:"max=500"`
}

type CreateOrderResult struct {
	Order     *models.Order `json:"order"`
	Quote     pricing.Quote `json:"quote"`
	Message   *OrderMessage `json:"message,omitempty"`
	AutoPrint bool          `json:"auto_print"`
}

// needsDeliveryFee reports whether the order is delivered to an address.
func needsDeliveryFee(t models.OrderType, address string) bool {
	return t == models.TypeDelivery || (t == models.TypeDigitalMenu && strings.TrimSpace(address) != "")
}

func (r *CreateOrderRequest) check() error {
	if err := ValidateStruct(r); err != nil {
		return err
	}
	if r.TableID != nil && r.TabID != nil {
		return invalid("table_id", "an order cannot reference both a table and a tab")
	}

	switch r.OrderType {
	case models.TypeTable:
		if r.TableID == nil {
			return invalid("table_id", "select a valid table")
		}
	case models.TypeTab:
		if r.TabID == nil {
			return invalid("tab_id", "select a valid tab")
		}
	default:
		if r.TableID != nil {
			return invalid("table_id", "only table orders reference a table")
		}
		if r.TabID != nil {
			return invalid("tab_id", "only tab orders reference a tab")
		}
	}

	switch r.OrderType {
	case models.TypeDelivery:
		if strings.TrimSpace(r.DeliveryAddress) == "" {
			return invalid("delivery_address", "delivery orders need an address")
		}
	case models.TypeDigitalMenu:
		if strings.TrimSpace(r.CustomerName) == "" {
			return invalid("customer_name", "is required")
		}
		if strings.TrimSpace(r.CustomerPhone) == "" {
			return invalid("customer_phone", "is required")
		}
	}

	if r.ChangeFor.IsNegative() {
		return invalid("change_for", "cannot be negative")
	}
	return nil
}

func (r *CreateOrderRequest) seat() (models.SeatRef, bool) {
	return models.SeatOf(&models.Order{TableID: r.TableID, TabID: r.TabID})
}

// Quote prices a cart the same way CreateOrder does.
func (s *OrderService) Quote(ctx context.Context, restaurantID uuid.UUID, req QuoteRequest) (pricing.Quote, error) {
	if err := ValidateStruct(&req); err != nil {
		return pricing.Quote{}, err
	}
	delivered := needsDeliveryFee(req.OrderType, req.DeliveryAddress)
	return s.price(ctx, restaurantID, req.Cart, req.Neighborhood, delivered, req.CouponCode)
}

func (s *OrderService) price(ctx context.Context, restaurantID uuid.UUID, cart pricing.Cart, neighborhood string, delivered bool, couponCode string) (pricing.Quote, error) {
	if err := ValidateStruct(&cart); err != nil {
		return pricing.Quote{}, err
	}

	ids := make([]uuid.UUID, 0, len(cart.Lines))
	for _, l := range cart.Lines {
		ids = append(ids, l.ProductID)
	}
	products, err := s.store.ListProducts(ctx, restaurantID, ids)
	if err != nil {
		return pricing.Quote{}, fmt.Errorf("load products: %w", err)
	}

	lines, subtotal, err := pricing.PriceCart(cart, pricing.NewCatalog(products))
	if err != nil {
		return pricing.Quote{}, invalid("cart", err.Error())
	}

	var fee *pricing.FeeResolution
	if delivered {
		resolved := pricing.DeferredFee()
		if fees, err := s.store.ListDeliveryFees(ctx, restaurantID); err != nil {
			log.Printf("[Orders] delivery fee lookup failed, deferring fee: %v", err)
		} else {
			resolved = pricing.ResolveDeliveryFee(neighborhood, fees)
		}
		fee = &resolved
	}

	var coupon *pricing.CouponResult
	if strings.TrimSpace(couponCode) != "" {
		result, err := s.coupons.Validate(ctx, restaurantID, couponCode, subtotal)
		if err != nil {
			log.Printf("[Orders] coupon validation failed: %v", err)
			result = pricing.CouponResult{Code: couponCode, Discount: decimal.Zero, Reason: "coupon could not be validated"}
		}
		coupon = &result
	}

	return pricing.NewQuote(lines, fee, coupon), nil
}

// CreateOrder validates, prices and persists an order. The order row is
// the commit point: a failure before it leaves nothing behind, a failure
// writing items after it leaves the order flagged as inconsistent and
// returns the result together with a *PartialCommitError.
func (s *OrderService) CreateOrder(ctx context.Context, restaurantID uuid.UUID, req CreateOrderRequest) (*CreateOrderResult, error) {
	if restaurantID == uuid.Nil {
		return nil, invalid("restaurant_id", "is required")
	}
	if err := req.check(); err != nil {
		return nil, err
	}

	if ref, ok := req.seat(); ok {
		if _, err := s.store.GetSeatStatus(ctx, restaurantID, ref); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, invalid(string(ref.Kind)+"_id", "select a valid "+string(ref.Kind))
			}
			return nil, fmt.Errorf("load %s: %w", ref.Kind, err)
		}
	}

	policy := s.policy(restaurantID)
	if req.OrderType == models.TypeDigitalMenu && !policy.IsOpen {
		return nil, ErrStoreClosed
	}

	delivered := needsDeliveryFee(req.OrderType, req.DeliveryAddress)
	quote, err := s.price(ctx, restaurantID, req.Cart, req.Neighborhood, delivered, req.CouponCode)
	if err != nil {
		return nil, err
	}
	if req.OrderType == models.TypeDigitalMenu && quote.BelowMinimum {
		return nil, fmt.Errorf("%w: minimum is %s", ErrBelowMinimum, FormatBRL(quote.MinOrderValue.Decimal))
	}

	var customerID *uuid.UUID
	if phone := utils.NormalizePhone(req.CustomerPhone); phone != "" {
		customer := &models.Customer{RestaurantID: restaurantID, Phone: phone, Name: strings.TrimSpace(req.CustomerName)}
		if err := s.store.UpsertCustomer(ctx, customer); err != nil {
			log.Printf("[Orders] customer upsert failed for %s: %v", phone, err)
		} else {
			customerID = &customer.ID
		}
	}

	number, err := s.seq.NextOrderNumber(ctx, restaurantID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	order := &models.Order{
		RestaurantID:       restaurantID,
		OrderNumber:        number,
		BusinessDate:       now.Format("2006-01-02"),
		Status:             models.StatusPending,
		OrderType:          req.OrderType,
		Subtotal:           quote.Subtotal,
		DeliveryFee:        quote.DeliveryFee,
		DeliveryFeePending: delivered && quote.FeePending,
		CouponDiscount:     quote.Discount,
		Total:              quote.Total,
		TableID:            req.TableID,
		TabID:              req.TabID,
		CustomerID:         customerID,
		CustomerName:       strings.TrimSpace(req.CustomerName),
		DeliveryPhone:      strings.TrimSpace(req.CustomerPhone),
		DeliveryAddress:    strings.TrimSpace(req.DeliveryAddress),
		Neighborhood:       strings.TrimSpace(req.Neighborhood),
		PaymentMethod:      req.PaymentMethod,
		ChangeFor:          pricing.Round2(req.ChangeFor),
		Notes:              strings.TrimSpace(req.Notes),
		StatusChangedAt:    &now,
	}
	if quote.Coupon != nil && quote.Coupon.Valid && quote.Discount.IsPositive() {
		order.CouponID = quote.Coupon.CouponID
	}

	if err := s.store.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	items := make([]models.OrderItem, 0, len(quote.Lines))
	for _, l := range quote.Lines {
		productID := l.ProductID
		items = append(items, models.OrderItem{
			OrderID:     order.ID,
			ProductID:   &productID,
			ProductName: l.ProductName,
			Size:        l.Size,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			LineTotal:   l.LineTotal,
			Notes:       l.Notes,
		})
	}

	var partial *PartialCommitError
	if err := s.store.CreateOrderItems(ctx, items); err != nil {
		log.Printf("[Orders] items for order #%d failed: %v", order.OrderNumber, err)
		note := fmt.Sprintf("%d items were not saved: %v", len(items), err)
		if ferr := s.store.FlagOrderInconsistent(ctx, order.ID, note); ferr != nil {
			log.Printf("[Orders] could not flag order #%d: %v", order.OrderNumber, ferr)
		}
		order.ItemsIncomplete = true
		order.InconsistencyNote = note
		partial = &PartialCommitError{OrderID: order.ID, OrderNumber: order.OrderNumber, Err: err}
	} else {
		order.Items = items
	}

	if order.CouponID != nil {
		if err := s.coupons.Redeem(ctx, *order.CouponID); err != nil {
			log.Printf("[Orders] coupon redeem for order #%d failed: %v", order.OrderNumber, err)
		}
	}

	if ref, ok := models.SeatOf(order); ok {
		if err := s.occupancy.Occupy(ctx, restaurantID, ref); err != nil {
			log.Printf("[Orders] occupy %s %s for order #%d: %v", ref.Kind, ref.ID, order.OrderNumber, err)
		}
	}

	publish(ctx, s.bus, realtime.NewEvent(restaurantID, realtime.CollectionOrders, realtime.OpInsert, order.ID))

	result := &CreateOrderResult{Order: order, Quote: quote, AutoPrint: policy.AutoPrint}
	if req.OrderType == models.TypeDigitalMenu {
		msg := BuildOrderMessage(order, policy.Name, policy.Phone)
		if err := s.handoff.Send(ctx, msg); err != nil {
			log.Printf("[Orders] handoff for order #%d failed: %v", order.OrderNumber, err)
		}
		result.Message = &msg
	}

	log.Printf("[Orders] created order #%d (%s) total %s for restaurant %s", order.OrderNumber, order.OrderType, order.Total.StringFixed(2), restaurantID)

	if partial != nil {
		return result, partial
	}
	return result, nil
}

func (s *OrderService) GetOrder(ctx context.Context, restaurantID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.store.GetOrder(ctx, restaurantID, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	return order, err
}

func (s *OrderService) ListOrders(ctx context.Context, filter store.OrderFilter) ([]models.Order, int64, error) {
	return s.store.ListOrders(ctx, filter)
}

// ListOrdersByStatus is the snapshot read a terminal board is built from.
func (s *OrderService) ListOrdersByStatus(ctx context.Context, restaurantID uuid.UUID, statuses []models.OrderStatus) ([]models.Order, error) {
	orders, _, err := s.store.ListOrders(ctx, store.OrderFilter{RestaurantID: restaurantID, Statuses: statuses})
	return orders, err
}

// ListInconsistent returns orders whose items failed to save.
func (s *OrderService) ListInconsistent(ctx context.Context, restaurantID uuid.UUID) ([]models.Order, error) {
	orders, _, err := s.store.ListOrders(ctx, store.OrderFilter{RestaurantID: restaurantID, Inconsistent: true})
	return orders, err
}

func (s *OrderService) ListTables(ctx context.Context, restaurantID uuid.UUID) ([]models.Table, error) {
	return s.store.ListTables(ctx, restaurantID)
}

func (s *OrderService) ListTabs(ctx context.Context, restaurantID uuid.UUID) ([]models.Tab, error) {
	return s.store.ListTabs(ctx, restaurantID)
}

// ResolveDeliveryFee looks up the fee for a neighborhood. Lookup failures
// degrade to a deferred fee.
func (s *OrderService) ResolveDeliveryFee(ctx context.Context, restaurantID uuid.UUID, neighborhood string) pricing.FeeResolution {
	fees, err := s.store.ListDeliveryFees(ctx, restaurantID)
	if err != nil {
		log.Printf("[Orders] delivery fee lookup failed: %v", err)
		return pricing.DeferredFee()
	}
	return pricing.ResolveDeliveryFee(neighborhood, fees)
}
