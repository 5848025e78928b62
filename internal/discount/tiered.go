package discount

import (
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
)

// tierOrder lists scopes from most to least specific.
var tierOrder = []domain.Scope{domain.ScopeProducts, domain.ScopeCategories, domain.ScopeAll}

// Tiered applies one regime at a time: the manual rule alone when present, otherwise
// the automatic rules tier by tier. A line discounted in an earlier tier is claimed and
// skipped by later rules.
type Tiered struct{}

func (Tiered) Name() string { return "tiered" }

func (Tiered) Allocate(lines []domain.CartLine, automatic []domain.DiscountRule, manual *domain.DiscountRule) Allocation {
	out := resetLines(lines)

	rules := automatic
	if manual != nil {
		rules = []domain.DiscountRule{*manual}
	}

	claimed := make([]bool, len(out))
	for _, scope := range tierOrder {
		for _, r := range rules {
			if r.Scope != scope || r.Validate() != nil {
				continue
			}
			switch {
			case r.Kind == domain.KindPercentage:
				applyPercentage(out, claimed, r)
			case r.Scope == domain.ScopeAll:
				applyFixedProportional(out, claimed, r)
			default:
				applyFixedPerProduct(out, claimed, r)
			}
		}
	}

	return Allocation{Lines: out, TotalDiscount: totalDiscount(out)}
}

func unclaimed(lines []domain.CartLine, claimed []bool, r domain.DiscountRule) []int {
	var idx []int
	for i, l := range lines {
		if !claimed[i] && eligible(l, r) {
			idx = append(idx, i)
		}
	}
	return idx
}

func applyPercentage(lines []domain.CartLine, claimed []bool, r domain.DiscountRule) {
	for _, i := range unclaimed(lines, claimed, r) {
		orig := lines[i].OriginalUnitPrice
		applyUnitDiscount(&lines[i], orig-percentOf(orig, 100-r.Magnitude), r)
		claimed[i] = true
	}
}

// applyFixedProportional spreads the amount over eligible lines by their share of the
// eligible value. Per-unit amounts are floored so the rule never hands out more than
// its magnitude.
func applyFixedProportional(lines []domain.CartLine, claimed []bool, r domain.DiscountRule) {
	idx := unclaimed(lines, claimed, r)
	var eligibleValue int64
	for _, i := range idx {
		eligibleValue += lines[i].OriginalTotal()
	}
	if eligibleValue == 0 {
		return
	}

	pool := decimal.NewFromInt(min(fixedAmount(r.Magnitude), eligibleValue))
	total := decimal.NewFromInt(eligibleValue)
	for _, i := range idx {
		l := &lines[i]
		share := pool.Mul(decimal.NewFromInt(l.OriginalTotal())).Div(total)
		perUnit := share.Div(decimal.NewFromInt(int64(l.Quantity))).Floor().IntPart()
		applyUnitDiscount(l, perUnit, r)
		claimed[i] = true
	}
}

// applyFixedPerProduct consumes the amount one unique product at a time, in cart order,
// each capped at the product unit price. Quantity does not change the amount a product
// receives. Products reached after the pool is empty get nothing and stay unclaimed.
func applyFixedPerProduct(lines []domain.CartLine, claimed []bool, r domain.DiscountRule) {
	remaining := fixedAmount(r.Magnitude)
	granted := make(map[int64]int64)

	for _, i := range unclaimed(lines, claimed, r) {
		id := lines[i].ProductID
		amount, seen := granted[id]
		if !seen {
			amount = min(remaining, lines[i].OriginalUnitPrice)
			remaining -= amount
			granted[id] = amount
		}
		if amount > 0 {
			applyUnitDiscount(&lines[i], amount, r)
			claimed[i] = true
		}
	}
}
