package poller

import (
	"context"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/service"
)

type clearerMock struct {
	mu      sync.Mutex
	cleared int
	err     error
}

func (m *clearerMock) ClearCart(context.Context) (service.View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return service.View{}, m.err
	}
	m.cleared++
	return service.View{}, nil
}

func (m *clearerMock) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cleared
}
