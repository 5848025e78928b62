package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/kv"
)

const localCartKey = "local_cart"

var ErrCartNotFound = errors.New("cart not found")

// CartRepository persists the local cart snapshot.
type CartRepository interface {
	Load(ctx context.Context) (*domain.Cart, error)
	Save(ctx context.Context, cart *domain.Cart) error
	Clear(ctx context.Context) error
}

type kvRepository struct {
	store kv.Store
	key   string
}

// NewCartRepository stores the cart as JSON under a per-owner key.
func NewCartRepository(store kv.Store, sessionID string) CartRepository {
	key := localCartKey
	if sessionID != "" {
		key = fmt.Sprintf("%s:%s", localCartKey, sessionID)
	}
	return &kvRepository{store: store, key: key}
}

func (r *kvRepository) Load(ctx context.Context) (*domain.Cart, error) {
	data, err := r.store.Get(ctx, r.key)
	if errors.Is(err, kv.ErrKeyNotFound) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err)
	}
	return &cart, nil
}

func (r *kvRepository) Save(ctx context.Context, cart *domain.Cart) error {
	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}
	if err := r.store.Set(ctx, r.key, data); err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

func (r *kvRepository) Clear(ctx context.Context) error {
	if err := r.store.Delete(ctx, r.key); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}
