package discount

import (
	"context"
	"errors"
	"testing"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCoupon(rule domain.DiscountRule) *CouponValidation {
	return &CouponValidation{Valid: true, Rule: &rule}
}

func TestApply_PercentageCouponOnWholeCart(t *testing.T) {
	svc := &mockService{validation: validCoupon(domain.DiscountRule{
		ID: "SAVE10", Kind: domain.KindPercentage, Scope: domain.ScopeAll, Magnitude: 10,
	})}
	coupons := NewCoupons(svc)
	lines := []domain.CartLine{cartLine(1, 400_000, 1), cartLine(2, 300_000, 2)}

	outcome, err := coupons.Apply(context.Background(), " SAVE10 ", lines, nil, false)

	require.NoError(t, err)
	assert.Equal(t, CouponApplied, outcome.Status)
	assert.Equal(t, int64(100_000), outcome.ManualDiscount)
	assert.Equal(t, int64(0), outcome.AutomaticDiscount)

	rule, code := coupons.Active()
	require.NotNil(t, rule)
	assert.Equal(t, "SAVE10", code)
	assert.False(t, rule.IsAutomatic)

	require.Len(t, svc.requests, 1)
	assert.Equal(t, int64(1_000_000), svc.requests[0].Subtotal)
	assert.Equal(t, []int64{1, 2}, svc.requests[0].ProductIDs)
	assert.Equal(t, []int64{400_000, 300_000}, svc.requests[0].Prices)
}

func TestApply_InvalidCode(t *testing.T) {
	svc := &mockService{validation: &CouponValidation{Valid: false, ErrorMessage: "Coupon expired"}}
	coupons := NewCoupons(svc)

	_, err := coupons.Apply(context.Background(), "OLD", []domain.CartLine{cartLine(1, 1000, 1)}, nil, false)

	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "Coupon expired", verr.Message)
	rule, _ := coupons.Active()
	assert.Nil(t, rule)
}

func TestApply_EmptyCode(t *testing.T) {
	coupons := NewCoupons(&mockService{})

	_, err := coupons.Apply(context.Background(), "   ", []domain.CartLine{cartLine(1, 1000, 1)}, nil, false)

	var verr *domain.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestApply_ScopedCouponWithoutEligibleLines(t *testing.T) {
	svc := &mockService{validation: validCoupon(domain.DiscountRule{
		ID: "GPU5", Kind: domain.KindPercentage, Scope: domain.ScopeCategories, TargetIDs: []string{"GPU"}, Magnitude: 5,
	})}
	coupons := NewCoupons(svc)

	_, err := coupons.Apply(context.Background(), "GPU5", []domain.CartLine{cartLine(1, 1000, 1, "CPU")}, nil, false)

	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Message, "does not apply")
}

func TestApply_BetterAutomaticNeedsConfirmation(t *testing.T) {
	svc := &mockService{validation: validCoupon(domain.DiscountRule{
		ID: "SMALL", Kind: domain.KindFixed, Scope: domain.ScopeAll, Magnitude: 10_000,
	})}
	coupons := NewCoupons(svc)
	lines := []domain.CartLine{cartLine(1, 1_000_000, 1)}
	automatic := []domain.DiscountRule{percentRule("auto", 5, domain.ScopeAll)}

	outcome, err := coupons.Apply(context.Background(), "SMALL", lines, automatic, false)
	require.NoError(t, err)
	assert.Equal(t, CouponNeedsConfirmation, outcome.Status)
	assert.Equal(t, int64(10_000), outcome.ManualDiscount)
	assert.Equal(t, int64(50_000), outcome.AutomaticDiscount)
	rule, _ := coupons.Active()
	assert.Nil(t, rule, "nothing is committed before confirmation")

	outcome, err = coupons.Apply(context.Background(), "SMALL", lines, automatic, true)
	require.NoError(t, err)
	assert.Equal(t, CouponApplied, outcome.Status)
	rule, _ = coupons.Active()
	require.NotNil(t, rule)
	assert.Equal(t, "SMALL", rule.ID)
}

func TestApply_EqualAmountsApplyDirectly(t *testing.T) {
	svc := &mockService{validation: validCoupon(domain.DiscountRule{
		ID: "SAME", Kind: domain.KindPercentage, Scope: domain.ScopeAll, Magnitude: 5,
	})}
	coupons := NewCoupons(svc)

	outcome, err := coupons.Apply(context.Background(), "SAME", []domain.CartLine{cartLine(1, 100_000, 1)},
		[]domain.DiscountRule{percentRule("auto", 5, domain.ScopeAll)}, false)

	require.NoError(t, err)
	assert.Equal(t, CouponApplied, outcome.Status)
}

func TestApply_ServiceErrorIsNotValidation(t *testing.T) {
	coupons := NewCoupons(&mockService{err: domain.ErrNetwork})

	_, err := coupons.Apply(context.Background(), "X", []domain.CartLine{cartLine(1, 1000, 1)}, nil, false)

	require.ErrorIs(t, err, domain.ErrNetwork)
	var verr *domain.ValidationError
	assert.False(t, errors.As(err, &verr))
}

func TestRemove_ClearsActiveCoupon(t *testing.T) {
	svc := &mockService{validation: validCoupon(domain.DiscountRule{
		ID: "SAVE10", Kind: domain.KindPercentage, Scope: domain.ScopeAll, Magnitude: 10,
	})}
	coupons := NewCoupons(svc)
	_, err := coupons.Apply(context.Background(), "SAVE10", []domain.CartLine{cartLine(1, 1000, 1)}, nil, false)
	require.NoError(t, err)

	coupons.Remove()

	rule, code := coupons.Active()
	assert.Nil(t, rule)
	assert.Empty(t, code)
}
