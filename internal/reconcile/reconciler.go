package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/notify"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/fjod/go_cart/storefront/internal/stock"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// RemoteCart is the authoritative cart kept by the backend.
type RemoteCart interface {
	GetCart(ctx context.Context) ([]domain.CartLine, error)
	AddItem(ctx context.Context, productID int64, quantity int) error
	AddItems(ctx context.Context, productIDs []int64) error
	UpdateQuantity(ctx context.Context, productID int64, quantity int) error
	RemoveItem(ctx context.Context, productID int64) error
}

type ProductLookup interface {
	Lookup(ctx context.Context, ids []int64) (map[int64]domain.ProductInfo, error)
}

type Auth interface {
	Authenticated(ctx context.Context) bool
}

type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) bool
}

var ErrPushIncomplete = errors.New("cart push incomplete")

const (
	loadKey = "cart"

	// loadTimeout bounds one shared reconciliation pass, retries included.
	loadTimeout = 2 * time.Minute
)

// Result is the outcome of one reconciliation pass.
type Result struct {
	Lines   []domain.CartLine
	Removed []stock.Item
	Clamped []stock.Item
	Pushed  bool
	Drifted bool
}

type Reconciler struct {
	local    repository.CartRepository
	remote   RemoteCart
	products ProductLookup
	auth     Auth
	notifier Notifier
	sleep    SleepFunc
	now      func() time.Time
	sfg      singleflight.Group // one load pass at a time
}

type Option func(*Reconciler)

func WithSleep(sleep SleepFunc) Option {
	return func(r *Reconciler) { r.sleep = sleep }
}

func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

func New(local repository.CartRepository, remote RemoteCart, products ProductLookup, auth Auth, notifier Notifier, opts ...Option) *Reconciler {
	r := &Reconciler{
		local:    local,
		remote:   remote,
		products: products,
		auth:     auth,
		notifier: notifier,
		sleep:    sleepContext,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load runs a full reconciliation pass. Concurrent callers share the pass in flight,
// which keeps the values of the first caller's ctx but not its cancellation, and is
// bounded by loadTimeout. A caller whose ctx ends stops waiting without failing the
// others. Read failures degrade to local data; only a failure to persist the result
// is returned.
func (r *Reconciler) Load(ctx context.Context) (*Result, error) {
	ch := r.sfg.DoChan(loadKey, func() (interface{}, error) {
		passCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		return r.load(passCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Result), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Reconciler) load(ctx context.Context) (*Result, error) {
	local := r.loadLocal(ctx)

	authenticated := r.auth.Authenticated(ctx)
	var remote []domain.CartLine
	remoteOK := false
	if authenticated {
		lines, err := r.remote.GetCart(ctx)
		if err != nil {
			r.log(ctx).Warn().Err(err).Msg("remote cart unavailable, using local cart")
		} else {
			remote, remoteOK = lines, true
		}
	}

	res := &Result{}
	merged := Merge(local, remote)

	if remoteOK && len(remote) == 0 && len(local) > 0 {
		res.Pushed = true
		if err := r.Push(ctx, merged); err != nil {
			r.log(ctx).Warn().Err(err).Msg("failed to push local cart")
			authenticated = authenticated && !errors.Is(err, domain.ErrAuthenticationRequired)
		}
	}

	enriched, err := r.Enrich(ctx, merged)
	if err != nil {
		r.log(ctx).Warn().Err(err).Msg("product info unavailable, keeping cart lines as-is")
	}
	res.Lines, res.Removed, res.Clamped = enriched.Lines, enriched.Removed, enriched.Clamped

	if authenticated {
		drifted, err := r.ReconcileDrift(ctx, res.Lines)
		if err != nil {
			r.log(ctx).Warn().Err(err).Msg("failed to resync remote cart")
		}
		res.Drifted = drifted
	}

	cart := &domain.Cart{Lines: res.Lines, UpdatedAt: r.now()}
	if err := r.local.Save(ctx, cart); err != nil {
		return nil, fmt.Errorf("failed to persist reconciled cart: %w", err)
	}
	return res, nil
}

func (r *Reconciler) loadLocal(ctx context.Context) []domain.CartLine {
	cart, err := r.local.Load(ctx)
	if errors.Is(err, repository.ErrCartNotFound) {
		return nil
	}
	if err != nil {
		r.log(ctx).Warn().Err(err).Msg("local cart unreadable, starting empty")
		return nil
	}
	return cart.Lines
}

// Push adds every line to the remote cart with one single-unit call per unit. A stock
// conflict stops pushing that product, an authentication failure aborts the push.
// When any product runs out of retries one sync_failed notification is emitted.
func (r *Reconciler) Push(ctx context.Context, lines []domain.CartLine) error {
	var failed []int64

	for _, l := range lines {
		productID := l.ProductID
	units:
		for added := 0; added < l.Quantity; added++ {
			err := r.retry(ctx, func(ctx context.Context) error {
				return r.remote.AddItem(ctx, productID, 1)
			})
			switch {
			case err == nil:
			case errors.Is(err, domain.ErrAuthenticationRequired):
				return fmt.Errorf("push aborted: %w", err)
			case ctx.Err() != nil:
				return ctx.Err()
			case errors.Is(err, domain.ErrStockExceeded):
				r.log(ctx).Info().Int64("product_id", productID).Int("added", added).Msg("remote stock reached while pushing")
				break units
			default:
				r.log(ctx).Warn().Err(err).Int64("product_id", productID).Msg("failed to push cart line")
				failed = append(failed, productID)
				break units
			}
		}
	}

	if len(failed) > 0 {
		r.notifier.Notify(ctx, notify.SyncFailed())
		return fmt.Errorf("%w: products %v", ErrPushIncomplete, failed)
	}
	return nil
}

// Enrich refreshes price, name and category from the product source and applies
// live stock. Free lines keep their zero price. On lookup failure the lines are
// returned unchanged together with the error.
func (r *Reconciler) Enrich(ctx context.Context, lines []domain.CartLine) (stock.Result, error) {
	if len(lines) == 0 {
		return stock.Result{Lines: []domain.CartLine{}}, nil
	}

	infos, err := r.products.Lookup(ctx, domain.ProductIDs(lines))
	if err != nil {
		return stock.Result{Lines: domain.CloneLines(lines)}, fmt.Errorf("product lookup failed: %w", err)
	}

	refreshed := make([]domain.CartLine, 0, len(lines))
	liveStock := make(map[int64]int, len(infos))
	for _, line := range lines {
		l := line.Clone()
		info, ok := infos[l.ProductID]
		if !ok {
			refreshed = append(refreshed, l)
			continue
		}
		if info.Name != "" {
			l.Name = info.Name
		}
		if info.CategoryIDs != nil {
			l.CategoryIDs = append([]string(nil), info.CategoryIDs...)
		}
		if l.IsFree() {
			l.OriginalUnitPrice = info.Price
		} else {
			l.UnitPrice = info.Price
			l.OriginalUnitPrice = info.Price
			l.DiscountSource = domain.SourceNone
			l.DiscountType = domain.KindNone
			l.DiscountAmount = 0
		}
		if info.StockQuantity != nil {
			liveStock[l.ProductID] = *info.StockQuantity
		}
		refreshed = append(refreshed, l)
	}

	res := stock.Validate(refreshed, liveStock)
	for _, item := range res.Removed {
		r.notifier.Notify(ctx, notify.OutOfStock(item.ProductID, item.Name))
	}
	for _, item := range res.Clamped {
		r.notifier.Notify(ctx, notify.QuantityClamped(item.ProductID, item.Name))
	}
	return res, nil
}

// ReconcileDrift compares the remote cart with lines and, when they differ, clears
// the remote cart and pushes lines again. It reports whether drift was found.
func (r *Reconciler) ReconcileDrift(ctx context.Context, lines []domain.CartLine) (bool, error) {
	remote, err := r.remote.GetCart(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to re-fetch remote cart: %w", err)
	}
	if !Diff(lines, remote) {
		return false, nil
	}

	r.log(ctx).Info().Int("local_lines", len(lines)).Int("remote_lines", len(remote)).Err(domain.ErrSyncDrift).Msg("resyncing remote cart")

	for _, rl := range remote {
		productID := rl.ProductID
		err := r.retry(ctx, func(ctx context.Context) error {
			err := r.remote.RemoveItem(ctx, productID)
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			return err
		})
		if errors.Is(err, domain.ErrAuthenticationRequired) {
			return true, fmt.Errorf("resync aborted: %w", err)
		}
		if err != nil {
			r.notifier.Notify(ctx, notify.SyncFailed())
			return true, fmt.Errorf("failed to clear remote line %d: %w", productID, err)
		}
	}

	return true, r.Push(ctx, lines)
}

func (r *Reconciler) log(ctx context.Context) *zerolog.Logger {
	l := logger.Ctx(ctx).With().Str("component", "reconciler").Logger()
	return &l
}

// Write runs one best-effort remote mutation under the retry policy. It is skipped
// for anonymous customers. Any failure other than a missing sign-in or an ended
// context leaves the remote cart behind the local one and emits one sync_failed
// notification.
func (r *Reconciler) Write(ctx context.Context, op func(ctx context.Context) error) error {
	if !r.auth.Authenticated(ctx) {
		return nil
	}
	err := r.retry(ctx, op)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrAuthenticationRequired),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
	default:
		r.notifier.Notify(ctx, notify.SyncFailed())
	}
	return err
}
