package discount

import (
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
)

// Allocation is the result of applying a rule set to a cart.
type Allocation struct {
	Lines         []domain.CartLine
	TotalDiscount int64
}

// Policy computes effective prices for a cart. Call sites pick the policy they need:
// Tiered for the cart itself, PerLineMax for checkout display.
type Policy interface {
	Name() string
	Allocate(lines []domain.CartLine, automatic []domain.DiscountRule, manual *domain.DiscountRule) Allocation
}

var (
	_ Policy = Tiered{}
	_ Policy = PerLineMax{}

	hundred = decimal.NewFromInt(100)
)

// percentOf returns base*pct/100 rounded half away from zero.
func percentOf(base int64, pct float64) int64 {
	return decimal.NewFromInt(base).
		Mul(decimal.NewFromFloat(pct)).
		Div(hundred).
		Round(0).
		IntPart()
}

// fixedAmount truncates a fixed magnitude to whole minor units.
func fixedAmount(magnitude float64) int64 {
	if magnitude <= 0 {
		return 0
	}
	return decimal.NewFromFloat(magnitude).Floor().IntPart()
}

func subtotal(lines []domain.CartLine) int64 {
	var s int64
	for _, l := range lines {
		s += l.OriginalTotal()
	}
	return s
}

func totalDiscount(lines []domain.CartLine) int64 {
	var t int64
	for _, l := range lines {
		t += (l.OriginalUnitPrice - l.UnitPrice) * int64(l.Quantity)
	}
	return t
}

func eligible(l domain.CartLine, r domain.DiscountRule) bool {
	return !l.IsFree() && l.Quantity > 0 && l.OriginalUnitPrice > 0 && r.Matches(l)
}

func applyUnitDiscount(l *domain.CartLine, amount int64, r domain.DiscountRule) {
	amount = min(max(amount, 0), l.OriginalUnitPrice)
	l.UnitPrice = l.OriginalUnitPrice - amount
	l.DiscountAmount = amount
	l.DiscountSource = r.Source()
	l.DiscountType = r.Kind
}

// resetLines copies lines with every previous discount removed.
func resetLines(lines []domain.CartLine) []domain.CartLine {
	out := domain.CloneLines(lines)
	for i := range out {
		if out[i].OriginalUnitPrice < out[i].UnitPrice {
			out[i].OriginalUnitPrice = out[i].UnitPrice
		}
		out[i].ClearDiscount()
	}
	return out
}
