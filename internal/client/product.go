package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

type lookupRequest struct {
	IDs []int64 `json:"ids"`
}

type lookupResponse struct {
	Products []domain.ProductInfo `json:"products"`
}

// ProductClient fetches authoritative price, category and stock data.
type ProductClient struct {
	base
}

func NewProductClient(baseURL string, timeout time.Duration) *ProductClient {
	return &ProductClient{base: newBase(baseURL, nil, timeout)}
}

func (c *ProductClient) Lookup(ctx context.Context, ids []int64) (map[int64]domain.ProductInfo, error) {
	out := make(map[int64]domain.ProductInfo, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var resp lookupResponse
	err := c.do(ctx, request{method: http.MethodPost, path: "/api/v1/products/lookup", body: lookupRequest{IDs: ids}, out: &resp})
	if err != nil {
		return nil, fmt.Errorf("lookup products: %w", err)
	}
	for _, p := range resp.Products {
		out[p.ID] = p
	}
	return out, nil
}
