package service

import (
	"context"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/discount"
	"github.com/fjod/go_cart/storefront/internal/domain"
)

type mockRemote struct {
	mu      sync.Mutex
	lines   []domain.CartLine
	updates map[int64]int
	removed []int64
	added   map[int64]int

	updateErr error
}

func newMockRemote() *mockRemote {
	return &mockRemote{updates: map[int64]int{}, added: map[int64]int{}}
}

func (m *mockRemote) GetCart(context.Context) ([]domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.CloneLines(m.lines), nil
}

func (m *mockRemote) AddItem(_ context.Context, productID int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.added[productID] += quantity
	for i := range m.lines {
		if m.lines[i].ProductID == productID {
			m.lines[i].Quantity += quantity
			return nil
		}
	}
	m.lines = append(m.lines, domain.CartLine{ProductID: productID, Quantity: quantity})
	return nil
}

func (m *mockRemote) AddItems(ctx context.Context, productIDs []int64) error {
	for _, id := range productIDs {
		_ = m.AddItem(ctx, id, 1)
	}
	return nil
}

func (m *mockRemote) UpdateQuantity(_ context.Context, productID int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updates[productID] = quantity
	for i := range m.lines {
		if m.lines[i].ProductID == productID {
			m.lines[i].Quantity = quantity
		}
	}
	return nil
}

func (m *mockRemote) RemoveItem(_ context.Context, productID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, productID)
	for i := range m.lines {
		if m.lines[i].ProductID == productID {
			m.lines = append(m.lines[:i], m.lines[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *mockRemote) updated(productID int64) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.updates[productID]
	return q, ok
}

type mockProducts struct {
	mu      sync.Mutex
	infos   map[int64]domain.ProductInfo
	gate    chan struct{}
	waiting int
}

func (m *mockProducts) Lookup(_ context.Context, ids []int64) (map[int64]domain.ProductInfo, error) {
	m.mu.Lock()
	gate := m.gate
	if gate != nil {
		m.waiting++
	}
	m.mu.Unlock()
	if gate != nil {
		<-gate
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64]domain.ProductInfo)
	for _, id := range ids {
		if info, ok := m.infos[id]; ok {
			out[id] = info
		}
	}
	return out, nil
}

func (m *mockProducts) set(info domain.ProductInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos[info.ID] = info
}

func (m *mockProducts) block() chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = make(chan struct{})
	m.waiting = 0
	return m.gate
}

func (m *mockProducts) unblock(gate chan struct{}) {
	m.mu.Lock()
	m.gate = nil
	m.mu.Unlock()
	close(gate)
}

func (m *mockProducts) waiters() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.waiting
}

type mockDiscounts struct {
	mu         sync.Mutex
	automatic  []domain.DiscountRule
	validation *discount.CouponValidation
	listCalls  int
}

func (m *mockDiscounts) ListAutomaticDiscounts(context.Context, []int64) ([]domain.DiscountRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	return append([]domain.DiscountRule(nil), m.automatic...), nil
}

func (m *mockDiscounts) ValidateCoupon(context.Context, discount.CouponRequest) (*discount.CouponValidation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.validation == nil {
		return &discount.CouponValidation{Valid: false}, nil
	}
	return m.validation, nil
}

func (m *mockDiscounts) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls
}

type staticAuth bool

func (a staticAuth) Authenticated(context.Context) bool { return bool(a) }
