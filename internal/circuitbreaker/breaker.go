package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/reconcile"
	zlog "github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"
)

type Settings struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	ConsecutiveFails uint32
}

func DefaultSettings(name string) Settings {
	return Settings{
		Name:             name,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          10 * time.Second,
		ConsecutiveFails: 5,
	}
}

// RemoteCart guards a remote cart with a circuit breaker. Client-side outcomes such as
// not found, stock conflicts and missing authentication do not count as failures.
type RemoteCart struct {
	next reconcile.RemoteCart
	cb   *gobreaker.CircuitBreaker[[]domain.CartLine]
}

var _ reconcile.RemoteCart = (*RemoteCart)(nil)

func New(next reconcile.RemoteCart, s Settings) *RemoteCart {
	cb := gobreaker.NewCircuitBreaker[[]domain.CartLine](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.ConsecutiveFails
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			zlog.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
		IsSuccessful: isSuccessful,
	})
	return &RemoteCart{next: next, cb: cb}
}

func isSuccessful(err error) bool {
	return err == nil ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrStockExceeded) ||
		errors.Is(err, domain.ErrAuthenticationRequired) ||
		errors.Is(err, context.Canceled)
}

func (r *RemoteCart) State() gobreaker.State {
	return r.cb.State()
}

func (r *RemoteCart) execute(fn func() ([]domain.CartLine, error)) ([]domain.CartLine, error) {
	lines, err := r.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	return lines, err
}

func (r *RemoteCart) GetCart(ctx context.Context) ([]domain.CartLine, error) {
	return r.execute(func() ([]domain.CartLine, error) {
		return r.next.GetCart(ctx)
	})
}

func (r *RemoteCart) AddItem(ctx context.Context, productID int64, quantity int) error {
	_, err := r.execute(func() ([]domain.CartLine, error) {
		return nil, r.next.AddItem(ctx, productID, quantity)
	})
	return err
}

func (r *RemoteCart) AddItems(ctx context.Context, productIDs []int64) error {
	_, err := r.execute(func() ([]domain.CartLine, error) {
		return nil, r.next.AddItems(ctx, productIDs)
	})
	return err
}

func (r *RemoteCart) UpdateQuantity(ctx context.Context, productID int64, quantity int) error {
	_, err := r.execute(func() ([]domain.CartLine, error) {
		return nil, r.next.UpdateQuantity(ctx, productID, quantity)
	})
	return err
}

func (r *RemoteCart) RemoveItem(ctx context.Context, productID int64) error {
	_, err := r.execute(func() ([]domain.CartLine, error) {
		return nil, r.next.RemoveItem(ctx, productID)
	})
	return err
}
