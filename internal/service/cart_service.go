package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/discount"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/reconcile"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/fjod/go_cart/storefront/internal/stock"
	"golang.org/x/time/rate"
)

const (
	// RefreshDelay is how long after a quantity change product info is refreshed
	RefreshDelay = time.Second

	// RecomputeInterval is the minimum spacing of automatic discount refetches
	RecomputeInterval = time.Second

	backgroundTimeout = 10 * time.Second
)

// View is the annotated cart handed to the presentation layer.
type View struct {
	Lines      []domain.CartLine `json:"lines"`
	Totals     domain.Totals     `json:"totals"`
	Version    uint64            `json:"version"`
	UpdatedAt  time.Time         `json:"updated_at"`
	CouponCode string            `json:"coupon_code,omitempty"`
}

// CheckoutView annotates every line with its best single discount.
type CheckoutView struct {
	Lines         []domain.CartLine `json:"lines"`
	Totals        domain.Totals     `json:"totals"`
	TotalDiscount int64             `json:"total_discount"`
	CouponCode    string            `json:"coupon_code,omitempty"`
	Policy        string            `json:"policy"`
	Version       uint64            `json:"version"`
}

// CartService sequences reconciliation, stock and discount allocation and keeps the
// current snapshot. Every cart mutation bumps the version; background results computed
// against an older version are dropped.
type CartService struct {
	reconciler *reconcile.Reconciler
	local      repository.CartRepository
	remote     reconcile.RemoteCart
	discounts  discount.Service
	coupons    *discount.Coupons
	policy     discount.Policy

	refreshDelay time.Duration
	limiter      *rate.Limiter
	now          func() time.Time

	mu               sync.Mutex
	lines            []domain.CartLine
	automatic        []domain.DiscountRule
	version          uint64
	updatedAt        time.Time
	refreshTimer     *time.Timer
	recomputePending bool
	closed           bool

	persistMu sync.Mutex
	persisted uint64

	bgCtx  context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Option func(*CartService)

func WithRefreshDelay(d time.Duration) Option {
	return func(s *CartService) { s.refreshDelay = d }
}

func WithRecomputeInterval(d time.Duration) Option {
	return func(s *CartService) { s.limiter = rate.NewLimiter(rate.Every(d), 1) }
}

func WithClock(now func() time.Time) Option {
	return func(s *CartService) { s.now = now }
}

func NewCartService(rec *reconcile.Reconciler, local repository.CartRepository, remote reconcile.RemoteCart, discounts discount.Service, opts ...Option) *CartService {
	ctx, cancel := context.WithCancel(context.Background())
	s := &CartService{
		reconciler:   rec,
		local:        local,
		remote:       remote,
		discounts:    discounts,
		coupons:      discount.NewCoupons(discounts),
		policy:       discount.Tiered{},
		refreshDelay: RefreshDelay,
		limiter:      rate.NewLimiter(rate.Every(RecomputeInterval), 1),
		now:          time.Now,
		bgCtx:        ctx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load runs a reconciliation pass and refetches the automatic rules. When the cart
// was changed while the pass was in flight the pass result is dropped.
func (s *CartService) Load(ctx context.Context) (View, error) {
	baseline := s.currentVersion()

	res, err := s.reconciler.Load(ctx)
	if err != nil {
		return View{}, fmt.Errorf("failed to load cart: %w", err)
	}

	rules, err := s.discounts.ListAutomaticDiscounts(ctx, domain.ProductIDs(res.Lines))
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("automatic discounts unavailable, keeping previous rules")
	}

	s.mu.Lock()
	if err == nil {
		s.automatic = rules
	}
	if s.version != baseline {
		logger.Ctx(ctx).Debug().Uint64("baseline", baseline).Uint64("version", s.version).Msg("dropping stale load result")
		s.applyLocked(s.lines)
	} else {
		s.commitLocked(res.Lines)
	}
	view := s.viewLocked()
	s.mu.Unlock()

	// the reconciler persisted its own result; the committed snapshot must win
	s.persist(ctx, view)
	return view, nil
}

func (s *CartService) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// UpdateQuantity applies the change locally first, clamped to known stock, then
// best-effort remotely, and schedules a product info refresh.
func (s *CartService) UpdateQuantity(ctx context.Context, productID int64, quantity int) (View, error) {
	if quantity < 1 {
		return View{}, domain.NewValidationError("quantity must be at least 1")
	}

	s.mu.Lock()
	i, ok := find(s.lines, productID)
	if !ok {
		s.mu.Unlock()
		return View{}, domain.ErrItemNotInCart
	}
	lines := domain.CloneLines(s.lines)
	lines[i].Quantity, _ = stock.ClampQuantity(quantity, lines[i].StockQuantity)
	applied := lines[i].Quantity
	s.commitLocked(lines)
	view := s.viewLocked()
	s.mu.Unlock()

	s.persist(ctx, view)
	s.writeRemote(ctx, "update quantity", func(ctx context.Context) error {
		return s.remote.UpdateQuantity(ctx, productID, applied)
	})
	s.scheduleRefresh(view.Version)
	s.requestRecompute()
	return view, nil
}

// AddItem adds quantity units of a product, looking up its price and stock first.
func (s *CartService) AddItem(ctx context.Context, productID int64, quantity int) (View, error) {
	if productID <= 0 {
		return View{}, domain.NewValidationError("product_id must be positive")
	}
	if quantity < 1 {
		return View{}, domain.NewValidationError("quantity must be at least 1")
	}

	enriched, err := s.reconciler.Enrich(ctx, []domain.CartLine{{ProductID: productID, Quantity: quantity}})
	if err != nil {
		return View{}, fmt.Errorf("failed to look up product %d: %w", productID, err)
	}
	if len(enriched.Removed) > 0 {
		return View{}, domain.ErrStockExceeded
	}
	if len(enriched.Lines) != 1 || enriched.Lines[0].OriginalUnitPrice <= 0 {
		return View{}, domain.ErrNotFound
	}
	fresh := enriched.Lines[0]

	s.mu.Lock()
	lines := domain.CloneLines(s.lines)
	added := fresh.Quantity
	if i, ok := find(lines, productID); ok {
		before := lines[i].Quantity
		stockQty := lines[i].StockQuantity
		if fresh.StockQuantity != nil {
			stockQty = fresh.StockQuantity
			lines[i].StockQuantity = domain.IntPtr(*fresh.StockQuantity)
		}
		lines[i].Quantity, _ = stock.ClampQuantity(before+quantity, stockQty)
		added = lines[i].Quantity - before
	} else {
		lines = append(lines, fresh)
	}
	s.commitLocked(lines)
	view := s.viewLocked()
	s.mu.Unlock()

	s.persist(ctx, view)
	if added > 0 {
		s.writeRemote(ctx, "add item", func(ctx context.Context) error {
			return s.remote.AddItem(ctx, productID, added)
		})
	}
	s.requestRecompute()
	return view, nil
}

func (s *CartService) RemoveItem(ctx context.Context, productID int64) (View, error) {
	s.mu.Lock()
	i, ok := find(s.lines, productID)
	if !ok {
		s.mu.Unlock()
		return View{}, domain.ErrItemNotInCart
	}
	lines := domain.CloneLines(s.lines)
	lines = append(lines[:i], lines[i+1:]...)
	s.commitLocked(lines)
	view := s.viewLocked()
	s.mu.Unlock()

	s.persist(ctx, view)
	s.writeRemote(ctx, "remove item", func(ctx context.Context) error {
		return ignoreNotFound(s.remote.RemoveItem(ctx, productID))
	})
	s.requestRecompute()
	return view, nil
}

// ClearCart empties the cart and drops the active coupon.
func (s *CartService) ClearCart(ctx context.Context) (View, error) {
	s.coupons.Remove()

	s.mu.Lock()
	removed := domain.ProductIDs(s.lines)
	s.commitLocked(nil)
	view := s.viewLocked()
	s.mu.Unlock()

	s.persistMu.Lock()
	if err := s.local.Clear(ctx); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("failed to clear local cart")
	} else {
		s.persisted = max(s.persisted, view.Version)
	}
	s.persistMu.Unlock()

	for _, id := range removed {
		productID := id
		s.writeRemote(ctx, "clear cart", func(ctx context.Context) error {
			return ignoreNotFound(s.remote.RemoveItem(ctx, productID))
		})
	}
	return view, nil
}

// ApplyCoupon validates code and, unless confirmation is needed, makes it the active
// manual rule. Invalid codes come back as *domain.ValidationError.
func (s *CartService) ApplyCoupon(ctx context.Context, code string, confirmed bool) (*discount.CouponOutcome, View, error) {
	s.mu.Lock()
	lines := domain.CloneLines(s.lines)
	automatic := append([]domain.DiscountRule(nil), s.automatic...)
	s.mu.Unlock()

	outcome, err := s.coupons.Apply(ctx, code, lines, automatic, confirmed)
	if err != nil {
		return nil, s.Snapshot(), err
	}
	if outcome.Status == discount.CouponNeedsConfirmation {
		return outcome, s.Snapshot(), nil
	}

	view := s.reallocate()
	s.persist(ctx, view)
	return outcome, view, nil
}

// RemoveCoupon drops the manual rule; automatic rules apply again.
func (s *CartService) RemoveCoupon(ctx context.Context) View {
	s.coupons.Remove()
	view := s.reallocate()
	s.persist(ctx, view)
	s.requestRecompute()
	return view
}

// Checkout annotates the cart for the checkout page with the per-line best discount.
func (s *CartService) Checkout(ctx context.Context) (CheckoutView, error) {
	s.mu.Lock()
	lines := domain.CloneLines(s.lines)
	automatic := append([]domain.DiscountRule(nil), s.automatic...)
	version := s.version
	s.mu.Unlock()

	if len(lines) == 0 {
		return CheckoutView{}, domain.NewValidationError("your cart is empty")
	}

	manual, code := s.coupons.Active()
	policy := discount.PerLineMax{UseManual: manual != nil}
	alloc := policy.Allocate(lines, automatic, manual)
	for _, l := range alloc.Lines {
		if err := l.Validate(); err != nil {
			logger.Ctx(ctx).Error().Err(err).Msg("checkout line failed validation")
			return CheckoutView{}, fmt.Errorf("cart is inconsistent: %w", err)
		}
	}

	return CheckoutView{
		Lines:         alloc.Lines,
		Totals:        domain.TotalsOf(alloc.Lines),
		TotalDiscount: alloc.TotalDiscount,
		CouponCode:    code,
		Policy:        policy.Name(),
		Version:       version,
	}, nil
}

// Close stops the background refresh and recompute work.
func (s *CartService) Close() {
	s.mu.Lock()
	s.closed = true
	if s.refreshTimer != nil {
		s.refreshTimer.Stop()
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

func (s *CartService) currentVersion() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// commitLocked installs a new cart state under a new version.
func (s *CartService) commitLocked(lines []domain.CartLine) {
	s.version++
	s.applyLocked(lines)
}

// applyLocked reallocates discounts over lines without changing the version.
func (s *CartService) applyLocked(lines []domain.CartLine) {
	manual, _ := s.coupons.Active()
	s.lines = s.policy.Allocate(lines, s.automatic, manual).Lines
	s.updatedAt = s.now()
}

func (s *CartService) reallocate() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyLocked(s.lines)
	return s.viewLocked()
}

func (s *CartService) viewLocked() View {
	_, code := s.coupons.Active()
	lines := domain.CloneLines(s.lines)
	if lines == nil {
		lines = []domain.CartLine{}
	}
	return View{
		Lines:      lines,
		Totals:     domain.TotalsOf(lines),
		Version:    s.version,
		UpdatedAt:  s.updatedAt,
		CouponCode: code,
	}
}

// persist writes view to the local store unless a newer version was already written.
func (s *CartService) persist(ctx context.Context, view View) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if view.Version < s.persisted {
		return
	}
	cart := &domain.Cart{Lines: view.Lines, Version: view.Version, UpdatedAt: view.UpdatedAt}
	if err := s.local.Save(ctx, cart); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Uint64("version", view.Version).Msg("failed to persist cart")
		return
	}
	s.persisted = view.Version
}

func (s *CartService) writeRemote(ctx context.Context, op string, fn func(ctx context.Context) error) {
	if err := s.reconciler.Write(ctx, fn); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("op", op).Msg("remote cart write failed, keeping local state")
	}
}

// scheduleRefresh re-enriches the cart after the refresh delay. Only the latest
// scheduled refresh runs and its result is dropped if the cart moved on.
func (s *CartService) scheduleRefresh(baseline uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.refreshTimer != nil {
		s.refreshTimer.Stop()
	}
	s.refreshTimer = time.AfterFunc(s.refreshDelay, func() {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		s.wg.Add(1)
		s.mu.Unlock()
		defer s.wg.Done()

		s.refresh(baseline)
	})
}

func (s *CartService) refresh(baseline uint64) {
	ctx, cancel := context.WithTimeout(s.bgCtx, backgroundTimeout)
	defer cancel()

	s.mu.Lock()
	if s.version != baseline {
		s.mu.Unlock()
		return
	}
	lines := domain.CloneLines(s.lines)
	s.mu.Unlock()

	res, err := s.reconciler.Enrich(ctx, lines)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("background refresh failed")
		return
	}

	s.mu.Lock()
	if s.version != baseline {
		s.mu.Unlock()
		logger.Ctx(ctx).Debug().Uint64("baseline", baseline).Msg("dropping stale refresh result")
		return
	}
	s.commitLocked(res.Lines)
	view := s.viewLocked()
	s.mu.Unlock()

	s.persist(ctx, view)
}

// requestRecompute refetches the automatic rules for the current products. Requests
// arriving while one is pending are coalesced, and refetches are spaced by the limiter.
func (s *CartService) requestRecompute() {
	s.mu.Lock()
	if s.closed || s.recomputePending {
		s.mu.Unlock()
		return
	}
	s.recomputePending = true
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.bgCtx, backgroundTimeout)
		defer cancel()

		if err := s.limiter.Wait(s.bgCtx); err != nil {
			s.mu.Lock()
			s.recomputePending = false
			s.mu.Unlock()
			return
		}

		s.mu.Lock()
		s.recomputePending = false
		ids := domain.ProductIDs(s.lines)
		s.mu.Unlock()

		rules, err := s.discounts.ListAutomaticDiscounts(ctx, ids)
		if err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("failed to refresh automatic discounts")
			return
		}

		s.mu.Lock()
		s.automatic = rules
		s.mu.Unlock()
		view := s.reallocate()
		s.persist(ctx, view)
	}()
}

func find(lines []domain.CartLine, productID int64) (int, bool) {
	for i, l := range lines {
		if l.ProductID == productID {
			return i, true
		}
	}
	return -1, false
}

func ignoreNotFound(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return err
}
