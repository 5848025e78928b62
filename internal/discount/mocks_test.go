package discount

import (
	"context"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

type mockService struct {
	m          sync.Mutex
	automatic  []domain.DiscountRule
	validation *CouponValidation
	err        error
	requests   []CouponRequest
}

func (m *mockService) ListAutomaticDiscounts(context.Context, []int64) ([]domain.DiscountRule, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.automatic, nil
}

func (m *mockService) ValidateCoupon(_ context.Context, req CouponRequest) (*CouponValidation, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	return m.validation, nil
}
