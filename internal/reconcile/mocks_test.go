package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

type mockRemote struct {
	mu          sync.Mutex
	lines       []domain.CartLine
	stockLimit  map[int64]int
	getErr      error
	addErr      error
	addErrs     []error
	removeErr   error
	getCalls    int
	addCalls    []int64
	removeCalls []int64
}

func (m *mockRemote) GetCart(context.Context) ([]domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	return domain.CloneLines(m.lines), nil
}

func (m *mockRemote) AddItem(_ context.Context, productID int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addCalls = append(m.addCalls, productID)
	if len(m.addErrs) > 0 {
		err := m.addErrs[0]
		m.addErrs = m.addErrs[1:]
		if err != nil {
			return err
		}
	}
	if m.addErr != nil {
		return m.addErr
	}

	for i := range m.lines {
		if m.lines[i].ProductID == productID {
			if limit, ok := m.stockLimit[productID]; ok && m.lines[i].Quantity+quantity > limit {
				return domain.ErrStockExceeded
			}
			m.lines[i].Quantity += quantity
			return nil
		}
	}
	if limit, ok := m.stockLimit[productID]; ok && quantity > limit {
		return domain.ErrStockExceeded
	}
	m.lines = append(m.lines, domain.CartLine{ProductID: productID, Quantity: quantity})
	return nil
}

func (m *mockRemote) AddItems(ctx context.Context, productIDs []int64) error {
	for _, id := range productIDs {
		if err := m.AddItem(ctx, id, 1); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockRemote) UpdateQuantity(_ context.Context, productID int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.lines {
		if m.lines[i].ProductID == productID {
			m.lines[i].Quantity = quantity
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *mockRemote) RemoveItem(_ context.Context, productID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeCalls = append(m.removeCalls, productID)
	if m.removeErr != nil {
		return m.removeErr
	}
	for i := range m.lines {
		if m.lines[i].ProductID == productID {
			m.lines = append(m.lines[:i], m.lines[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *mockRemote) adds() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.addCalls...)
}

type mockProducts struct {
	mu    sync.Mutex
	infos map[int64]domain.ProductInfo
	err   error
	calls int
	gate  chan struct{}
}

func (m *mockProducts) Lookup(_ context.Context, ids []int64) (map[int64]domain.ProductInfo, error) {
	m.mu.Lock()
	m.calls++
	gate := m.gate
	m.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[int64]domain.ProductInfo)
	for _, id := range ids {
		if info, ok := m.infos[id]; ok {
			out[id] = info
		}
	}
	return out, nil
}

func (m *mockProducts) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type staticAuth bool

func (a staticAuth) Authenticated(context.Context) bool { return bool(a) }

type countingNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (n *countingNotifier) Notify(_ context.Context, note domain.Notification) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, note)
	return true
}

func (n *countingNotifier) kinds() []domain.NotificationKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []domain.NotificationKind
	for _, s := range n.sent {
		out = append(out, s.Kind)
	}
	return out
}

type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = append(s.waits, d)
	return ctx.Err()
}
