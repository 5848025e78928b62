package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/discount"
	"github.com/fjod/go_cart/storefront/internal/domain"
)

type automaticResponse struct {
	Rules []domain.DiscountRule `json:"rules"`
}

// DiscountClient lists automatic promotions and validates coupon codes.
type DiscountClient struct {
	base
}

func NewDiscountClient(baseURL string, tokens TokenSource, timeout time.Duration) *DiscountClient {
	return &DiscountClient{base: newBase(baseURL, tokens, timeout)}
}

func (c *DiscountClient) ListAutomaticDiscounts(ctx context.Context, productIDs []int64) ([]domain.DiscountRule, error) {
	path := "/api/v1/discounts/automatic"
	if len(productIDs) > 0 {
		ids := make([]string, len(productIDs))
		for i, id := range productIDs {
			ids[i] = strconv.FormatInt(id, 10)
		}
		path += "?" + url.Values{"product_ids": {strings.Join(ids, ",")}}.Encode()
	}

	var resp automaticResponse
	if err := c.do(ctx, request{method: http.MethodGet, path: path, out: &resp}); err != nil {
		return nil, fmt.Errorf("list automatic discounts: %w", err)
	}
	for i := range resp.Rules {
		resp.Rules[i].IsAutomatic = true
	}
	return resp.Rules, nil
}

func (c *DiscountClient) ValidateCoupon(ctx context.Context, req discount.CouponRequest) (*discount.CouponValidation, error) {
	var resp discount.CouponValidation
	err := c.do(ctx, request{method: http.MethodPost, path: "/api/v1/discounts/validate", body: req, out: &resp})

	// a rejected code may come back as 400/422 with the same body
	var se *domain.ServerError
	if errors.As(err, &se) && (se.Status == http.StatusBadRequest || se.Status == http.StatusUnprocessableEntity) {
		if jsonErr := json.Unmarshal([]byte(se.Body), &resp); jsonErr == nil && resp.ErrorMessage != "" {
			resp.Valid = false
			return &resp, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("validate coupon: %w", err)
	}
	return &resp, nil
}
