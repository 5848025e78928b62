package discount

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// CouponRequest is what the discount service needs to judge a code.
type CouponRequest struct {
	Code       string  `json:"code"`
	Subtotal   int64   `json:"subtotal"`
	ProductIDs []int64 `json:"product_ids"`
	Prices     []int64 `json:"prices"`
}

type CouponValidation struct {
	Valid                   bool                 `json:"valid"`
	Rule                    *domain.DiscountRule `json:"rule,omitempty"`
	DiscountAmount          *int64               `json:"discount_amount,omitempty"`
	AutomaticDiscountAmount *int64               `json:"automatic_discount_amount,omitempty"`
	ErrorMessage            string               `json:"error_message,omitempty"`
}

// Service is the remote discount collaborator.
type Service interface {
	ListAutomaticDiscounts(ctx context.Context, productIDs []int64) ([]domain.DiscountRule, error)
	ValidateCoupon(ctx context.Context, req CouponRequest) (*CouponValidation, error)
}

type CouponStatus string

const (
	CouponApplied           CouponStatus = "applied"
	CouponNeedsConfirmation CouponStatus = "needs_confirmation"
)

type CouponOutcome struct {
	Status            CouponStatus        `json:"status"`
	Code              string              `json:"code"`
	Rule              domain.DiscountRule `json:"rule"`
	ManualDiscount    int64               `json:"manual_discount"`
	AutomaticDiscount int64               `json:"automatic_discount"`
}

// Coupons holds the active manual rule. While a coupon is active the automatic rules
// are suppressed.
type Coupons struct {
	service Service
	policy  Policy

	mu     sync.RWMutex
	code   string
	active *domain.DiscountRule
}

func NewCoupons(service Service) *Coupons {
	return &Coupons{service: service, policy: Tiered{}}
}

// Apply validates code against the cart. An invalid or inapplicable code yields a
// *domain.ValidationError. When the automatic rules are worth strictly more and the
// customer has not confirmed, the outcome asks for confirmation and nothing changes.
func (c *Coupons) Apply(ctx context.Context, code string, lines []domain.CartLine, automatic []domain.DiscountRule, confirmed bool) (*CouponOutcome, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domain.NewValidationError("coupon code is required")
	}
	if len(lines) == 0 {
		return nil, domain.NewValidationError("your cart is empty")
	}

	req := CouponRequest{Code: code, Subtotal: subtotal(lines)}
	for _, l := range lines {
		req.ProductIDs = append(req.ProductIDs, l.ProductID)
		req.Prices = append(req.Prices, l.OriginalUnitPrice)
	}

	res, err := c.service.ValidateCoupon(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to validate coupon: %w", err)
	}
	if !res.Valid || res.Rule == nil {
		msg := res.ErrorMessage
		if msg == "" {
			msg = fmt.Sprintf("coupon %s is not valid", code)
		}
		return nil, &domain.ValidationError{Message: msg}
	}

	rule := *res.Rule
	rule.IsAutomatic = false
	if err := rule.Validate(); err != nil {
		return nil, domain.NewValidationError("coupon %s cannot be applied", code)
	}
	if !anyEligible(lines, rule) {
		return nil, domain.NewValidationError("coupon %s does not apply to any item in your cart", code)
	}

	outcome := &CouponOutcome{
		Status:            CouponApplied,
		Code:              code,
		Rule:              rule,
		ManualDiscount:    c.policy.Allocate(lines, nil, &rule).TotalDiscount,
		AutomaticDiscount: c.policy.Allocate(lines, automatic, nil).TotalDiscount,
	}
	if outcome.AutomaticDiscount > outcome.ManualDiscount && !confirmed {
		outcome.Status = CouponNeedsConfirmation
		return outcome, nil
	}

	c.mu.Lock()
	c.code = code
	c.active = &rule
	c.mu.Unlock()
	return outcome, nil
}

// Remove drops the active coupon; automatic rules apply again.
func (c *Coupons) Remove() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.code = ""
	c.active = nil
}

// Active returns a copy of the active rule and its code, nil when none.
func (c *Coupons) Active() (*domain.DiscountRule, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.active == nil {
		return nil, ""
	}
	r := *c.active
	r.TargetIDs = append([]string(nil), c.active.TargetIDs...)
	return &r, c.code
}

func anyEligible(lines []domain.CartLine, r domain.DiscountRule) bool {
	for _, l := range lines {
		if eligible(l, r) {
			return true
		}
	}
	return false
}
