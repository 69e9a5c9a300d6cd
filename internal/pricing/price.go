package pricing

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/comanda/internal/models"
)

var (
	ErrUnknownSize     = errors.New("unknown size")
	ErrUnknownProduct  = errors.New("unknown product")
	ErrUnavailable     = errors.New("product unavailable")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrEmptyCart       = errors.New("cart is empty")
)

// Round2 rounds a money amount to cents.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// UnitPrice returns the price charged for one unit of product in the given
// size. A sized product without the requested tier falls back to its base
// price; another tier is never used instead.
func UnitPrice(p models.Product, size models.Size) (decimal.Decimal, error) {
	var tier decimal.NullDecimal
	switch size {
	case models.SizeNone:
		return p.Price, nil
	case models.SizeSmall:
		tier = p.PriceSmall
	case models.SizeMedium:
		tier = p.PriceMedium
	case models.SizeLarge:
		tier = p.PriceLarge
	default:
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownSize, size)
	}
	if !p.HasSizes || !tier.Valid {
		return p.Price, nil
	}
	return tier.Decimal, nil
}

// Catalog resolves cart lines to products.
type Catalog map[uuid.UUID]models.Product

func NewCatalog(products []models.Product) Catalog {
	c := make(Catalog, len(products))
	for _, p := range products {
		c[p.ID] = p
	}
	return c
}

// PricedLine is a cart line with its snapshot name and prices.
type PricedLine struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	Size        models.Size     `json:"size,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
	Notes       string          `json:"notes,omitempty"`
}

// LineTotal is unit price times quantity, rounded to cents.
func LineTotal(unit decimal.Decimal, quantity int) decimal.Decimal {
	return Round2(unit.Mul(decimal.NewFromInt(int64(quantity))))
}

// PriceCart prices every line against the catalog. It has no side effects.
func PriceCart(cart Cart, catalog Catalog) ([]PricedLine, decimal.Decimal, error) {
	if cart.Empty() {
		return nil, decimal.Zero, ErrEmptyCart
	}

	lines := make([]PricedLine, 0, len(cart.Lines))
	for _, l := range cart.Lines {
		if l.Quantity < 1 {
			return nil, decimal.Zero, ErrInvalidQuantity
		}
		p, ok := catalog[l.ProductID]
		if !ok {
			return nil, decimal.Zero, fmt.Errorf("%w: %s", ErrUnknownProduct, l.ProductID)
		}
		if !p.IsAvailable {
			return nil, decimal.Zero, fmt.Errorf("%w: %s", ErrUnavailable, p.Name)
		}
		unit, err := UnitPrice(p, l.Size)
		if err != nil {
			return nil, decimal.Zero, err
		}

		name := p.Name
		if label := l.Size.Label(); label != "" && p.HasSizes {
			name += " (" + label + ")"
		}

		lines = append(lines, PricedLine{
			ProductID:   p.ID,
			ProductName: name,
			Size:        l.Size,
			Quantity:    l.Quantity,
			UnitPrice:   unit,
			LineTotal:   LineTotal(unit, l.Quantity),
			Notes:       l.Notes,
		})
	}

	return lines, Subtotal(lines), nil
}

// Subtotal sums already rounded line totals.
func Subtotal(lines []PricedLine) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.LineTotal)
	}
	return sum
}
