package pricing

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/comanda/internal/models"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func nullDec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(dec(s))
}

func product(name, price string) models.Product {
	p := models.Product{Name: name, Price: dec(price), IsAvailable: true}
	p.ID = uuid.New()
	return p
}

func sizedProduct(name, base string) models.Product {
	p := product(name, base)
	p.HasSizes = true
	p.PriceSmall = nullDec("12.00")
	p.PriceMedium = nullDec("15.50")
	return p
}

func assertMoney(t *testing.T, label string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Errorf("%s: expected %s, got %s", label, want, got.StringFixed(2))
	}
}

func TestUnitPrice(t *testing.T) {
	plain := product("Coke", "6.00")
	sized := sizedProduct("Pizza", "20.00")

	cases := []struct {
		name    string
		product models.Product
		size    models.Size
		want    string
	}{
		{"plain without size", plain, models.SizeNone, "6.00"},
		{"plain ignores size", plain, models.SizeLarge, "6.00"},
		{"sized tier set", sized, models.SizeMedium, "15.50"},
		{"sized small", sized, models.SizeSmall, "12.00"},
		{"sized tier unset falls back to base", sized, models.SizeLarge, "20.00"},
		{"sized without size uses base", sized, models.SizeNone, "20.00"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := UnitPrice(tc.product, tc.size)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			assertMoney(t, "unit price", got, tc.want)
		})
	}

	if _, err := UnitPrice(sized, models.Size("family")); !errors.Is(err, ErrUnknownSize) {
		t.Errorf("expected ErrUnknownSize, got %v", err)
	}
}

func TestCartMergesAndRemoves(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	var cart Cart
	cart.Add(a, models.SizeNone, 1, "")
	cart.Add(a, models.SizeNone, 2, "no ice")
	cart.Add(a, models.SizeLarge, 1, "")
	cart.Add(b, models.SizeNone, 0, "")

	if cart.Len() != 2 {
		t.Fatalf("expected 2 lines, got %d", cart.Len())
	}
	if cart.Lines[0].Quantity != 3 || cart.Lines[0].Notes != "no ice" {
		t.Errorf("unexpected merged line: %+v", cart.Lines[0])
	}

	cart.SetQuantity(a, models.SizeLarge, 0)
	if cart.Len() != 1 || cart.Units() != 3 {
		t.Errorf("expected one line of 3 units, got %d lines / %d units", cart.Len(), cart.Units())
	}

	cart.Remove(a, models.SizeNone)
	if !cart.Empty() {
		t.Error("expected empty cart")
	}
}

func TestPriceCartRoundsPerLine(t *testing.T) {
	p := product("Pastel", "3.335")
	var cart Cart
	cart.Add(p.ID, models.SizeNone, 3, "")

	lines, subtotal, err := PriceCart(cart, NewCatalog([]models.Product{p}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 3.335 * 3 = 10.005 -> 10.01
	assertMoney(t, "line total", lines[0].LineTotal, "10.01")
	assertMoney(t, "subtotal", subtotal, "10.01")
}

func TestPriceCartErrors(t *testing.T) {
	p := product("Soup", "9.00")
	off := product("Off menu", "1.00")
	off.IsAvailable = false
	catalog := NewCatalog([]models.Product{p, off})

	if _, _, err := PriceCart(Cart{}, catalog); !errors.Is(err, ErrEmptyCart) {
		t.Errorf("expected ErrEmptyCart, got %v", err)
	}

	unknown := Cart{Lines: []CartLine{{ProductID: uuid.New(), Quantity: 1}}}
	if _, _, err := PriceCart(unknown, catalog); !errors.Is(err, ErrUnknownProduct) {
		t.Errorf("expected ErrUnknownProduct, got %v", err)
	}

	unavailable := Cart{Lines: []CartLine{{ProductID: off.ID, Quantity: 1}}}
	if _, _, err := PriceCart(unavailable, catalog); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}

	zero := Cart{Lines: []CartLine{{ProductID: p.ID, Quantity: 0}}}
	if _, _, err := PriceCart(zero, catalog); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("expected ErrInvalidQuantity, got %v", err)
	}
}

func TestResolveDeliveryFee(t *testing.T) {
	fees := []models.DeliveryFee{
		{Neighborhood: "Centro", Fee: dec("5.00"), IsActive: true, MinOrderValue: nullDec("20.00"), EstimatedTime: "30-40 min"},
		{Neighborhood: "Centro Histórico", Fee: dec("7.00"), IsActive: true},
		{Neighborhood: "São José", Fee: dec("8.00"), IsActive: true},
		{Neighborhood: "Jardim", Fee: dec("9.00"), IsActive: false},
	}

	cases := []struct {
		query   string
		outcome FeeOutcome
		fee     string
	}{
		{"Centro", FeeMatched, "5.00"},
		{"  centro ", FeeMatched, "5.00"},
		{"centro historico", FeeMatched, "7.00"},
		{"sao jose", FeeMatched, "8.00"},
		{"Jardim", FeeDeferred, "0"},
		{"Bairro Novo", FeeDeferred, "0"},
		{"", FeeDeferred, "0"},
	}

	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			res := ResolveDeliveryFee(tc.query, fees)
			if res.Outcome != tc.outcome {
				t.Fatalf("expected %s, got %s", tc.outcome, res.Outcome)
			}
			assertMoney(t, "fee", res.Fee, tc.fee)
			if res.Pending() != (tc.outcome == FeeDeferred) {
				t.Errorf("pending flag mismatch for %q", tc.query)
			}
		})
	}

	centro := ResolveDeliveryFee("Centro", fees)
	if !centro.MinOrderValue.Valid || centro.EstimatedTime != "30-40 min" {
		t.Errorf("expected minimum order and estimate to be surfaced, got %+v", centro)
	}
}

func scenarioCart(t *testing.T) ([]PricedLine, decimal.Decimal) {
	t.Helper()
	a := product("Burger", "10.00")
	b := sizedProduct("Acai", "13.00")

	var cart Cart
	cart.Add(a.ID, models.SizeNone, 2, "")
	cart.Add(b.ID, models.SizeMedium, 1, "")

	lines, subtotal, err := PriceCart(cart, NewCatalog([]models.Product{a, b}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return lines, subtotal
}

func TestQuoteScenarioCentro(t *testing.T) {
	lines, subtotal := scenarioCart(t)
	assertMoney(t, "subtotal", subtotal, "35.50")

	fee := ResolveDeliveryFee("Centro", []models.DeliveryFee{{Neighborhood: "Centro", Fee: dec("5.00"), IsActive: true}})
	q := NewQuote(lines, &fee, nil)

	assertMoney(t, "total", q.Total, "40.50")
	if q.FeePending {
		t.Error("fee should not be pending")
	}
}

func TestQuoteScenarioCoupon(t *testing.T) {
	lines, subtotal := scenarioCart(t)
	fee := ResolveDeliveryFee("Centro", []models.DeliveryFee{{Neighborhood: "Centro", Fee: dec("5.00"), IsActive: true}})

	discount := Round2(subtotal.Mul(dec("10")).Div(dec("100")))
	coupon := &CouponResult{Valid: true, Code: "DEZ", DiscountType: models.DiscountPercentage, DiscountValue: dec("10"), Discount: discount}
	q := NewQuote(lines, &fee, coupon)

	assertMoney(t, "discount", q.Discount, "3.55")
	assertMoney(t, "total", q.Total, "36.95")
}

func TestQuoteScenarioUnknownNeighborhood(t *testing.T) {
	lines, _ := scenarioCart(t)
	fee := ResolveDeliveryFee("Bairro Novo", []models.DeliveryFee{{Neighborhood: "Centro", Fee: dec("5.00"), IsActive: true}})
	q := NewQuote(lines, &fee, nil)

	if !q.FeePending {
		t.Error("expected fee to be pending")
	}
	assertMoney(t, "delivery fee", q.DeliveryFee, "0")
	assertMoney(t, "total", q.Total, "35.50")
	if len(q.Notices) == 0 {
		t.Error("expected a fee notice")
	}
}

func TestQuoteClampsDiscount(t *testing.T) {
	lines, _ := scenarioCart(t)
	coupon := &CouponResult{Valid: true, Code: "BIG", DiscountType: models.DiscountFixed, DiscountValue: dec("100"), Discount: dec("100")}
	q := NewQuote(lines, nil, coupon)

	assertMoney(t, "discount", q.Discount, "35.50")
	assertMoney(t, "total", q.Total, "0")
}

func TestQuoteInvalidCouponKeepsTotal(t *testing.T) {
	lines, _ := scenarioCart(t)
	coupon := &CouponResult{Valid: false, Code: "OLD", Reason: "coupon expired"}
	q := NewQuote(lines, nil, coupon)

	assertMoney(t, "total", q.Total, "35.50")
	if len(q.Notices) != 1 || q.Notices[0] != "coupon expired" {
		t.Errorf("expected coupon notice, got %v", q.Notices)
	}
}

func TestQuoteBelowMinimum(t *testing.T) {
	lines, _ := scenarioCart(t)
	fee := FeeResolution{Outcome: FeeMatched, Fee: dec("5.00"), MinOrderValue: nullDec("50.00")}
	q := NewQuote(lines, &fee, nil)
	if !q.BelowMinimum {
		t.Error("expected below minimum")
	}
}

func TestTotalInvariant(t *testing.T) {
	lines, _ := scenarioCart(t)
	fee := FeeResolution{Outcome: FeeMatched, Fee: dec("4.99")}
	for _, d := range []string{"0", "1.11", "12.34", "40.49", "40.50", "99"} {
		q := NewQuote(lines, &fee, &CouponResult{Valid: true, Discount: dec(d)})
		want := FinalTotal(Subtotal(lines), q.DeliveryFee, q.Discount)
		if !q.Total.Equal(want) || q.Total.IsNegative() {
			t.Errorf("discount %s: total %s violates invariant (want %s)", d, q.Total, want)
		}
	}
}
