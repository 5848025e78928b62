package circuitbreaker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyRemote struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *flakyRemote) call() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *flakyRemote) GetCart(context.Context) ([]domain.CartLine, error) {
	if err := f.call(); err != nil {
		return nil, err
	}
	return []domain.CartLine{{ProductID: 1, Quantity: 1}}, nil
}

func (f *flakyRemote) AddItem(context.Context, int64, int) error { return f.call() }
func (f *flakyRemote) AddItems(context.Context, []int64) error { return f.call() }
func (f *flakyRemote) UpdateQuantity(context.Context, int64, int) error { return f.call() }
func (f *flakyRemote) RemoveItem(context.Context, int64) error { return f.call() }

func testSettings() Settings {
	s := DefaultSettings("remote-cart-test")
	s.ConsecutiveFails = 3
	s.Timeout = time.Hour
	return s
}

func TestRemoteCart_PassesThrough(t *testing.T) {
	remote := &flakyRemote{}
	cb := New(remote, testSettings())

	lines, err := cb.GetCart(context.Background())
	require.NoError(t, err)
	assert.Len(t, lines, 1)
	require.NoError(t, cb.AddItem(context.Background(), 1, 1))
	assert.Equal(t, 2, remote.calls)
}

func TestRemoteCart_OpensAfterConsecutiveFailures(t *testing.T) {
	remote := &flakyRemote{err: &domain.ServerError{Status: 503}}
	cb := New(remote, testSettings())

	for i := 0; i < 3; i++ {
		assert.Error(t, cb.AddItem(context.Background(), 1, 1))
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	err := cb.AddItem(context.Background(), 1, 1)
	assert.ErrorIs(t, err, domain.ErrNetwork)
	assert.True(t, domain.IsRetryable(err))
	assert.Equal(t, 3, remote.calls, "open breaker does not reach the remote")
}

func TestRemoteCart_ClientErrorsDoNotTrip(t *testing.T) {
	for _, clientErr := range []error{domain.ErrNotFound, domain.ErrStockExceeded, domain.ErrAuthenticationRequired} {
		remote := &flakyRemote{err: clientErr}
		cb := New(remote, testSettings())

		for i := 0; i < 5; i++ {
			assert.ErrorIs(t, cb.RemoveItem(context.Background(), 1), clientErr)
		}
		assert.Equal(t, gobreaker.StateClosed, cb.State())
	}
}
