package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/kv"
	"github.com/fjod/go_cart/storefront/internal/logger"
)

const (
	// RecordTTL is how long a delivered notification suppresses repeats
	RecordTTL = 24 * time.Hour

	// SweepInterval is how often stale records are pruned
	SweepInterval = time.Hour

	tableKey = "cart_notifications"
)

// Sink delivers a notification to the customer.
type Sink interface {
	Deliver(ctx context.Context, n domain.Notification)
}

type SinkFunc func(ctx context.Context, n domain.Notification)

func (f SinkFunc) Deliver(ctx context.Context, n domain.Notification) { f(ctx, n) }

// Deduper delivers each (product, kind) notification at most once per RecordTTL.
// Records live in a session scoped store.
type Deduper struct {
	mu    sync.Mutex
	store kv.Store
	sink  Sink
	now   func() time.Time
	ttl   time.Duration
	sweep time.Duration
}

type Option func(*Deduper)

func WithClock(now func() time.Time) Option {
	return func(d *Deduper) { d.now = now }
}

func WithTTL(ttl time.Duration) Option {
	return func(d *Deduper) { d.ttl = ttl }
}

func WithSweepInterval(interval time.Duration) Option {
	return func(d *Deduper) { d.sweep = interval }
}

func NewDeduper(store kv.Store, sink Sink, opts ...Option) *Deduper {
	d := &Deduper{
		store: store,
		sink:  sink,
		now:   time.Now,
		ttl:   RecordTTL,
		sweep: SweepInterval,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Notify delivers n unless the same key was delivered within the TTL. It reports
// whether the notification was delivered. Store failures fall back to delivering.
func (d *Deduper) Notify(ctx context.Context, n domain.Notification) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := domain.NotificationKey(n.ProductID, n.Kind)
	records, err := d.load(ctx)
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("notification table unavailable")
		d.sink.Deliver(ctx, n)
		return true
	}

	if _, seen := records[key]; seen {
		return false
	}

	records[key] = d.now()
	if err := d.save(ctx, records); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("failed to record notification")
	}
	d.sink.Deliver(ctx, n)
	return true
}

// Sweep drops records older than the TTL.
func (d *Deduper) Sweep(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	records, err := d.load(ctx)
	if err != nil {
		return err
	}
	return d.save(ctx, records)
}

// Run sweeps on every interval until ctx is done.
func (d *Deduper) Run(ctx context.Context) {
	ticker := time.NewTicker(d.sweep)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := d.Sweep(ctx); err != nil {
				logger.Ctx(ctx).Warn().Err(err).Msg("notification sweep failed")
			}
		case <-ctx.Done():
			return
		}
	}
}

// Records returns the live records, mostly for inspection.
func (d *Deduper) Records(ctx context.Context) ([]domain.NotificationRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	records, err := d.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.NotificationRecord, 0, len(records))
	for k, ts := range records {
		out = append(out, domain.NotificationRecord{Key: k, Timestamp: ts})
	}
	return out, nil
}

// load reads the table and prunes expired records.
func (d *Deduper) load(ctx context.Context) (map[string]time.Time, error) {
	records := make(map[string]time.Time)

	data, err := d.store.Get(ctx, tableKey)
	if errors.Is(err, kv.ErrKeyNotFound) {
		return records, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read notification table: %w", err)
	}

	var stored []domain.NotificationRecord
	if err := json.Unmarshal(data, &stored); err != nil {
		// a corrupted table is dropped rather than blocking notifications
		logger.Ctx(ctx).Warn().Err(err).Msg("discarding unreadable notification table")
		return records, nil
	}

	cutoff := d.now().Add(-d.ttl)
	for _, r := range stored {
		if r.Timestamp.After(cutoff) {
			records[r.Key] = r.Timestamp
		}
	}
	return records, nil
}

func (d *Deduper) save(ctx context.Context, records map[string]time.Time) error {
	stored := make([]domain.NotificationRecord, 0, len(records))
	for k, ts := range records {
		stored = append(stored, domain.NotificationRecord{Key: k, Timestamp: ts})
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal notification table failed: %w", err)
	}
	if err := d.store.Set(ctx, tableKey, data); err != nil {
		return fmt.Errorf("failed to write notification table: %w", err)
	}
	return nil
}
