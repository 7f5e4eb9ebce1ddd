package cart

import (
	"github.com/shopspring/decimal"
)

// Item is one cart line. Lines are identified by product id plus the chosen
// size and color.
type Item struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Image    string          `json:"image,omitempty"`
	Slug     string          `json:"slug,omitempty"`
	Size     string          `json:"size,omitempty"`
	Color    string          `json:"color,omitempty"`
}

func (i Item) matches(id int64, size, color string) bool {
	return i.ID == id && i.Size == size && i.Color == color
}

// Subtotal is price times quantity
func (i Item) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is a snapshot of the cart contents. Totals are derived from Items.
type Cart struct {
	Items      []Item          `json:"items"`
	TotalItems int             `json:"totalItems"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

// IsEmpty reports whether the cart has no lines
func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c *Cart) recalc() {
	c.TotalItems = 0
	c.TotalPrice = decimal.Zero
	for _, it := range c.Items {
		c.TotalItems += it.Quantity
		c.TotalPrice = c.TotalPrice.Add(it.Subtotal())
	}
}

func (c Cart) clone() Cart {
	out := c
	out.Items = make([]Item, len(c.Items))
	copy(out.Items, c.Items)
	return out
}

func (c Cart) indexOf(id int64, size, color string) int {
	for i, it := range c.Items {
		if it.matches(id, size, color) {
			return i
		}
	}
	return -1
}
