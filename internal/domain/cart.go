package domain

import (
	"fmt"
	"time"
)

type DiscountSource string

const (
	SourceNone      DiscountSource = ""
	SourceAutomatic DiscountSource = "automatic"
	SourceManual    DiscountSource = "manual"
)

type DiscountKind string

const (
	KindNone       DiscountKind = ""
	KindPercentage DiscountKind = "percentage"
	KindFixed      DiscountKind = "fixed"
)

// CartLine is one product entry of a cart. Prices are in minor currency units.
type CartLine struct {
	ProductID         int64          `json:"product_id" bson:"product_id"`
	Name              string         `json:"name" bson:"name"`
	Quantity          int            `json:"quantity" bson:"quantity"`
	UnitPrice         int64          `json:"unit_price" bson:"unit_price"`
	OriginalUnitPrice int64          `json:"original_unit_price" bson:"original_unit_price"`
	StockQuantity     *int           `json:"stock_quantity,omitempty" bson:"stock_quantity,omitempty"`
	CategoryIDs       []string       `json:"category_ids,omitempty" bson:"category_ids,omitempty"`
	DiscountSource    DiscountSource `json:"discount_source,omitempty" bson:"discount_source,omitempty"`
	DiscountType      DiscountKind   `json:"discount_type,omitempty" bson:"discount_type,omitempty"`
	// DiscountAmount is the per-unit discount currently applied.
	DiscountAmount int64 `json:"discount_amount,omitempty" bson:"discount_amount,omitempty"`
}

// IsFree reports whether the line is a gift line: no price but a positive original
// price, and not brought to zero by a discount.
func (l CartLine) IsFree() bool {
	return l.UnitPrice <= 0 && l.OriginalUnitPrice > 0 && l.DiscountSource == SourceNone
}

func (l CartLine) LineTotal() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

func (l CartLine) OriginalTotal() int64 {
	return l.OriginalUnitPrice * int64(l.Quantity)
}

// ClearDiscount resets the line to its original price.
func (l *CartLine) ClearDiscount() {
	if !l.IsFree() {
		l.UnitPrice = l.OriginalUnitPrice
	}
	l.DiscountSource = SourceNone
	l.DiscountType = KindNone
	l.DiscountAmount = 0
}

// Clone returns a deep copy; slices and pointers are not shared.
func (l CartLine) Clone() CartLine {
	c := l
	if l.StockQuantity != nil {
		s := *l.StockQuantity
		c.StockQuantity = &s
	}
	if l.CategoryIDs != nil {
		c.CategoryIDs = append([]string(nil), l.CategoryIDs...)
	}
	return c
}

func (l CartLine) HasCategory(id string) bool {
	for _, c := range l.CategoryIDs {
		if c == id {
			return true
		}
	}
	return false
}

// Validate returns the first broken line invariant, if any.
func (l CartLine) Validate() error {
	switch {
	case l.Quantity < 1:
		return fmt.Errorf("product %d: quantity %d below 1", l.ProductID, l.Quantity)
	case l.UnitPrice < 0:
		return fmt.Errorf("product %d: negative unit price %d", l.ProductID, l.UnitPrice)
	case l.UnitPrice > l.OriginalUnitPrice:
		return fmt.Errorf("product %d: unit price %d above original %d", l.ProductID, l.UnitPrice, l.OriginalUnitPrice)
	case l.StockQuantity != nil && *l.StockQuantity == 0:
		return fmt.Errorf("product %d: line kept with zero stock", l.ProductID)
	case l.StockQuantity != nil && l.Quantity > *l.StockQuantity:
		return fmt.Errorf("product %d: quantity %d exceeds stock %d", l.ProductID, l.Quantity, *l.StockQuantity)
	}
	return nil
}

// Cart is the aggregate handed to the presentation layer. It is rebuilt on every pass.
type Cart struct {
	Lines     []CartLine `json:"lines"`
	Version   uint64     `json:"version"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type Totals struct {
	Subtotal int64 `json:"subtotal"`
	Discount int64 `json:"discount"`
	Total    int64 `json:"total"`
}

func (c Cart) Totals() Totals {
	return TotalsOf(c.Lines)
}

func TotalsOf(lines []CartLine) Totals {
	var t Totals
	for _, l := range lines {
		t.Subtotal += l.OriginalTotal()
		t.Discount += (l.OriginalUnitPrice - l.UnitPrice) * int64(l.Quantity)
	}
	t.Total = t.Subtotal - t.Discount
	return t
}

func (c Cart) Clone() Cart {
	out := c
	out.Lines = CloneLines(c.Lines)
	return out
}

func (c Cart) Find(productID int64) (int, bool) {
	for i, l := range c.Lines {
		if l.ProductID == productID {
			return i, true
		}
	}
	return -1, false
}

func CloneLines(lines []CartLine) []CartLine {
	if lines == nil {
		return nil
	}
	out := make([]CartLine, len(lines))
	for i, l := range lines {
		out[i] = l.Clone()
	}
	return out
}

func ProductIDs(lines []CartLine) []int64 {
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	return ids
}

func IntPtr(v int) *int {
	return &v
}
