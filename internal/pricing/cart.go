package pricing

import (
	"github.com/google/uuid"

	"github.com/example/comanda/internal/models"
)

// CartLine is one product+size entry of a cart.
type CartLine struct {
	ProductID uuid.UUID   `json:"product_id" validate:"required"`
	Size      models.Size `json:"size,omitempty" validate:"omitempty,oneof=small medium large"`
	Quantity  int         `json:"quantity" validate:"gte=1"`
	Notes     string      `json:"notes,omitempty" validate:"max=500"`
}

// Cart is a serializable value owned by the caller. Lines keep insertion
// order; adding the same product and size merges into the existing line.
type Cart struct {
	Lines []CartLine `json:"lines" validate:"required,min=1,dive"`
}

func (c *Cart) find(productID uuid.UUID, size models.Size) int {
	for i, l := range c.Lines {
		if l.ProductID == productID && l.Size == size {
			return i
		}
	}
	return -1
}

// Add increases the quantity of the matching line or appends a new one.
// Notes of a new line are kept; notes passed for an existing line replace
// the old ones only when non-empty.
func (c *Cart) Add(productID uuid.UUID, size models.Size, quantity int, notes string) {
	if quantity <= 0 {
		return
	}
	if i := c.find(productID, size); i >= 0 {
		c.Lines[i].Quantity += quantity
		if notes != "" {
			c.Lines[i].Notes = notes
		}
		return
	}
	c.Lines = append(c.Lines, CartLine{
		ProductID: productID,
		Size:      size,
		Quantity:  quantity,
		Notes:     notes,
	})
}

// SetQuantity overwrites a line quantity. Zero or less removes the line.
func (c *Cart) SetQuantity(productID uuid.UUID, size models.Size, quantity int) {
	i := c.find(productID, size)
	if i < 0 {
		return
	}
	if quantity <= 0 {
		c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
		return
	}
	c.Lines[i].Quantity = quantity
}

func (c *Cart) SetNotes(productID uuid.UUID, size models.Size, notes string) {
	if i := c.find(productID, size); i >= 0 {
		c.Lines[i].Notes = notes
	}
}

func (c *Cart) Remove(productID uuid.UUID, size models.Size) {
	c.SetQuantity(productID, size, 0)
}

func (c *Cart) Len() int {
	return len(c.Lines)
}

func (c *Cart) Empty() bool {
	return len(c.Lines) == 0
}

// Units is the total number of items across all lines.
func (c *Cart) Units() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}
