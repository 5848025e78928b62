package reconcile

import "github.com/fjod/go_cart/storefront/internal/domain"

// Merge unions the local and remote lines. Remote lines come first in remote order,
// local-only lines follow in local order. A product present on both sides keeps the
// larger quantity and the pricing of whichever side shows the lower unit price.
func Merge(local, remote []domain.CartLine) []domain.CartLine {
	localByID := make(map[int64]domain.CartLine, len(local))
	for _, l := range local {
		if _, dup := localByID[l.ProductID]; !dup {
			localByID[l.ProductID] = l
		}
	}

	out := make([]domain.CartLine, 0, len(local)+len(remote))
	seen := make(map[int64]bool, len(local)+len(remote))

	for _, rl := range remote {
		if seen[rl.ProductID] {
			continue
		}
		seen[rl.ProductID] = true

		line := rl.Clone()
		if ll, ok := localByID[rl.ProductID]; ok {
			line.Quantity = max(ll.Quantity, rl.Quantity)
			if ll.UnitPrice < rl.UnitPrice {
				line.UnitPrice = ll.UnitPrice
				line.OriginalUnitPrice = ll.OriginalUnitPrice
				line.DiscountSource = ll.DiscountSource
				line.DiscountType = ll.DiscountType
				line.DiscountAmount = ll.DiscountAmount
			}
			if line.Name == "" {
				line.Name = ll.Name
			}
			if line.CategoryIDs == nil && ll.CategoryIDs != nil {
				line.CategoryIDs = append([]string(nil), ll.CategoryIDs...)
			}
		}
		out = append(out, line)
	}

	for _, l := range local {
		if seen[l.ProductID] {
			continue
		}
		seen[l.ProductID] = true
		out = append(out, l.Clone())
	}

	return out
}

// Diff reports whether the two carts disagree on product membership or on the
// quantity of any shared product.
func Diff(local, remote []domain.CartLine) bool {
	quantities := func(lines []domain.CartLine) map[int64]int {
		m := make(map[int64]int, len(lines))
		for _, l := range lines {
			m[l.ProductID] += l.Quantity
		}
		return m
	}

	lq, rq := quantities(local), quantities(remote)
	if len(lq) != len(rq) {
		return true
	}
	for id, q := range lq {
		if rq[id] != q {
			return true
		}
	}
	return false
}
