package discount

import "github.com/fjod/go_cart/storefront/internal/domain"

// PerLineMax picks, for every line on its own, the single matching rule worth the most
// for that line. There is no shared pool across lines. The manual rule only competes
// when UseManual is set.
type PerLineMax struct {
	UseManual bool
}

func (PerLineMax) Name() string { return "per_line_max" }

func (p PerLineMax) Allocate(lines []domain.CartLine, automatic []domain.DiscountRule, manual *domain.DiscountRule) Allocation {
	out := resetLines(lines)

	candidates := make([]domain.DiscountRule, 0, len(automatic)+1)
	for _, r := range automatic {
		if r.Validate() == nil {
			candidates = append(candidates, r)
		}
	}
	if p.UseManual && manual != nil && manual.Validate() == nil {
		candidates = append(candidates, *manual)
	}

	var total int64
	for i := range out {
		l := &out[i]
		best, bestAmount, found := domain.DiscountRule{}, int64(0), false
		for _, r := range candidates {
			if !eligible(*l, r) {
				continue
			}
			amount := lineAmount(l.OriginalUnitPrice, r)
			// ties keep the earlier rule
			if !found || amount > bestAmount {
				best, bestAmount, found = r, amount, true
			}
		}
		if !found || bestAmount <= 0 {
			continue
		}
		applyUnitDiscount(l, bestAmount, best)
		total += l.DiscountAmount * int64(l.Quantity)
	}

	return Allocation{Lines: out, TotalDiscount: total}
}

func lineAmount(base int64, r domain.DiscountRule) int64 {
	if r.Kind == domain.KindPercentage {
		return percentOf(base, r.Magnitude)
	}
	return min(fixedAmount(r.Magnitude), base)
}
