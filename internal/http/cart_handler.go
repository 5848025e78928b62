package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_cart/storefront/internal/discount"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/service"
	"github.com/go-chi/chi/v5"
)

// CartService is what the presentation layer can do with the cart.
type CartService interface {
	Load(ctx context.Context) (service.View, error)
	Snapshot() service.View
	AddItem(ctx context.Context, productID int64, quantity int) (service.View, error)
	UpdateQuantity(ctx context.Context, productID int64, quantity int) (service.View, error)
	RemoveItem(ctx context.Context, productID int64) (service.View, error)
	ClearCart(ctx context.Context) (service.View, error)
	ApplyCoupon(ctx context.Context, code string, confirmed bool) (*discount.CouponOutcome, service.View, error)
	RemoveCoupon(ctx context.Context) service.View
	Checkout(ctx context.Context) (service.CheckoutView, error)
}

// NotificationSource hands out pending customer notifications.
type NotificationSource interface {
	Drain() []domain.Notification
}

type CartHandler struct {
	cart          CartService
	notifications NotificationSource
	timeout       time.Duration
}

func NewCartHandler(cart CartService, notifications NotificationSource, timeout time.Duration) *CartHandler {
	return &CartHandler{
		cart:          cart,
		notifications: notifications,
		timeout:       timeout,
	}
}

const maxQuantity = 99

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type ApplyCouponRequestDTO struct {
	Code      string `json:"code"`
	Confirmed bool   `json:"confirmed"`
}

type CouponResponseDTO struct {
	Outcome *discount.CouponOutcome `json:"outcome"`
	Cart    service.View            `json:"cart"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// Routes mounts the cart endpoints.
func (h *CartHandler) Routes(r chi.Router) {
	r.Get("/", h.GetCart)
	r.Post("/load", h.LoadCart)
	r.Delete("/", h.ClearCart)
	r.Post("/items", h.AddItem)
	r.Put("/items/{product_id}", h.UpdateQuantity)
	r.Delete("/items/{product_id}", h.RemoveItem)
	r.Post("/coupon", h.ApplyCoupon)
	r.Delete("/coupon", h.RemoveCoupon)
	r.Get("/checkout", h.Checkout)
	r.Get("/notifications", h.Notifications)
}

func (h *CartHandler) GetCart(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.cart.Snapshot())
}

func (h *CartHandler) LoadCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	view, err := h.cart.Load(ctx)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}
	if req.Quantity <= 0 || req.Quantity > maxQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	view, err := h.cart.AddItem(ctx, req.ProductID, req.Quantity)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, view)
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity <= 0 || req.Quantity > maxQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	view, err := h.cart.UpdateQuantity(ctx, productID, req.Quantity)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	view, err := h.cart.RemoveItem(ctx, productID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	view, err := h.cart.ClearCart(ctx)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// ApplyCoupon answers 200 both when the coupon is applied and when the customer has
// to confirm a weaker coupon; the outcome status tells them apart.
func (h *CartHandler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ApplyCouponRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	outcome, view, err := h.cart.ApplyCoupon(ctx, req.Code, req.Confirmed)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, CouponResponseDTO{Outcome: outcome, Cart: view})
}

func (h *CartHandler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.cart.RemoveCoupon(r.Context()))
}

func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	view, err := h.cart.Checkout(ctx)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (h *CartHandler) Notifications(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.notifications.Drain())
}

func productIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return 0, false
	}
	return productID, true
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Ctx(context.Background()).Error().Err(err).Msg("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		respondError(w, http.StatusUnprocessableEntity, "validation_failed", verr.Message)
	case errors.Is(err, domain.ErrAuthenticationRequired):
		respondError(w, http.StatusUnauthorized, "unauthenticated", "sign in required")
	case errors.Is(err, domain.ErrItemNotInCart):
		respondError(w, http.StatusNotFound, "not_in_cart", "item not found in cart")
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", "product not found")
	case errors.Is(err, domain.ErrStockExceeded):
		respondError(w, http.StatusConflict, "out_of_stock", "requested quantity is not available")
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		logger.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("cart request failed")
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
