package stock

import "github.com/fjod/go_cart/storefront/internal/domain"

// Item identifies a line that was removed or clamped.
type Item struct {
	ProductID int64
	Name      string
}

type Result struct {
	Lines   []domain.CartLine
	Removed []Item
	Clamped []Item
}

// Validate applies live stock to the cart lines. A product with zero stock is dropped,
// a quantity above stock is clamped to max(1, stock). Products missing from liveStock
// are passed through untouched. The input slice is not modified.
func Validate(lines []domain.CartLine, liveStock map[int64]int) Result {
	res := Result{Lines: make([]domain.CartLine, 0, len(lines))}

	for _, line := range lines {
		l := line.Clone()
		available, known := liveStock[l.ProductID]
		if !known {
			res.Lines = append(res.Lines, l)
			continue
		}
		if available <= 0 {
			res.Removed = append(res.Removed, Item{ProductID: l.ProductID, Name: l.Name})
			continue
		}
		l.StockQuantity = domain.IntPtr(available)
		if l.Quantity > available {
			l.Quantity = max(1, available)
			res.Clamped = append(res.Clamped, Item{ProductID: l.ProductID, Name: l.Name})
		}
		res.Lines = append(res.Lines, l)
	}

	return res
}

// ClampQuantity bounds a requested quantity by the line's known stock.
func ClampQuantity(requested int, stockQuantity *int) (int, bool) {
	q := max(1, requested)
	if stockQuantity != nil && q > *stockQuantity {
		return max(1, *stockQuantity), true
	}
	return q, q != requested
}
