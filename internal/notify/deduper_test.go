package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/kv"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (s *recordingSink) Deliver(_ context.Context, n domain.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setupDeduper(t *testing.T) (*Deduper, *recordingSink, *fakeClock) {
	store := kv.NewMemoryStore(0)
	t.Cleanup(func() { store.Close() })
	sink := &recordingSink{}
	clock := &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewDeduper(store, sink, WithClock(clock.Now)), sink, clock
}

func TestNotify_DeliversOncePerWindow(t *testing.T) {
	d, sink, clock := setupDeduper(t)
	ctx := context.Background()

	assert.True(t, d.Notify(ctx, OutOfStock(1, "CPU")))
	assert.False(t, d.Notify(ctx, OutOfStock(1, "CPU")))

	clock.Advance(23 * time.Hour)
	assert.False(t, d.Notify(ctx, OutOfStock(1, "CPU")))
	assert.Equal(t, 1, sink.count())

	clock.Advance(2 * time.Hour)
	assert.True(t, d.Notify(ctx, OutOfStock(1, "CPU")))
	assert.Equal(t, 2, sink.count())
}

func TestNotify_KeyIncludesKind(t *testing.T) {
	d, sink, _ := setupDeduper(t)
	ctx := context.Background()

	assert.True(t, d.Notify(ctx, OutOfStock(1, "CPU")))
	assert.True(t, d.Notify(ctx, QuantityClamped(1, "CPU")))
	assert.True(t, d.Notify(ctx, QuantityClamped(2, "GPU")))
	assert.Equal(t, 3, sink.count())
}

func TestSweep_PrunesExpired(t *testing.T) {
	d, _, clock := setupDeduper(t)
	ctx := context.Background()

	d.Notify(ctx, OutOfStock(1, "CPU"))
	clock.Advance(12 * time.Hour)
	d.Notify(ctx, OutOfStock(2, "RAM"))
	clock.Advance(13 * time.Hour)

	require.NoError(t, d.Sweep(ctx))
	records, err := d.Records(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.NotificationKey(2, domain.NotifyOutOfStock), records[0].Key)
}

func TestNotify_StoreFailureStillDelivers(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	sink := &recordingSink{}
	d := NewDeduper(kv.NewRedisStore(client, "session", RecordTTL), sink)
	mr.Close()

	assert.True(t, d.Notify(context.Background(), SyncFailed()))
	assert.Equal(t, 1, sink.count())
}

func TestNotify_SharedRedisTableAcrossDedupers(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	store := kv.NewRedisStore(client, "session", RecordTTL)
	ctx := context.Background()

	first := NewDeduper(store, &recordingSink{})
	second := NewDeduper(store, &recordingSink{})

	assert.True(t, first.Notify(ctx, QuantityClamped(9, "SSD")))
	assert.False(t, second.Notify(ctx, QuantityClamped(9, "SSD")))
}

func TestRun_StopsOnCancel(t *testing.T) {
	d, _, _ := setupDeduper(t)
	d.sweep = 5 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	require.Eventually(t, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}
