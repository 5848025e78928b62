package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

type cartResponse struct {
	Items []domain.CartLine `json:"items"`
}

type addItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type addItemsRequest struct {
	ProductIDs []int64 `json:"product_ids"`
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// CartClient talks to the remote cart service. Every call needs a signed-in customer.
type CartClient struct {
	base
}

func NewCartClient(baseURL string, tokens TokenSource, timeout time.Duration) *CartClient {
	return &CartClient{base: newBase(baseURL, tokens, timeout)}
}

// Authenticated reports whether a bearer token is available.
func (c *CartClient) Authenticated(ctx context.Context) bool {
	if c.tokens == nil {
		return false
	}
	token, err := c.tokens.Token(ctx)
	return err == nil && token != ""
}

func (c *CartClient) GetCart(ctx context.Context) ([]domain.CartLine, error) {
	var resp cartResponse
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/v1/cart", out: &resp, requireAuth: true})
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return resp.Items, nil
}

func (c *CartClient) AddItem(ctx context.Context, productID int64, quantity int) error {
	err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/api/v1/cart/items",
		body:        addItemRequest{ProductID: productID, Quantity: quantity},
		requireAuth: true,
		idempotent:  true,
	})
	if err != nil {
		return fmt.Errorf("add item %d: %w", productID, err)
	}
	return nil
}

func (c *CartClient) AddItems(ctx context.Context, productIDs []int64) error {
	err := c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/api/v1/cart/items/batch",
		body:        addItemsRequest{ProductIDs: productIDs},
		requireAuth: true,
		idempotent:  true,
	})
	if err != nil {
		return fmt.Errorf("add items: %w", err)
	}
	return nil
}

func (c *CartClient) UpdateQuantity(ctx context.Context, productID int64, quantity int) error {
	err := c.do(ctx, request{
		method:      http.MethodPut,
		path:        fmt.Sprintf("/api/v1/cart/items/%d", productID),
		body:        updateQuantityRequest{Quantity: quantity},
		requireAuth: true,
		idempotent:  true,
	})
	if err != nil {
		return fmt.Errorf("update item %d: %w", productID, err)
	}
	return nil
}

func (c *CartClient) RemoveItem(ctx context.Context, productID int64) error {
	err := c.do(ctx, request{
		method:      http.MethodDelete,
		path:        fmt.Sprintf("/api/v1/cart/items/%d", productID),
		requireAuth: true,
		idempotent:  true,
	})
	if err != nil {
		return fmt.Errorf("remove item %d: %w", productID, err)
	}
	return nil
}
