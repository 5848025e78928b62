package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/google/uuid"
)

const maxAttempts = 3

// backoff holds the waits before the second and third attempt of one remote write.
var backoff = []time.Duration{time.Second, 2 * time.Second}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// retry runs op, one logical remote write, up to maxAttempts times: the first attempt
// at once, then after 1s and after 2s. The next step of the 1-2-4s schedule would
// precede a fourth attempt, which is never made. Every attempt carries the same
// idempotency key. Only errors classified as retryable are attempted again; anything
// else is returned at once.
func (r *Reconciler) retry(ctx context.Context, op func(context.Context) error) error {
	ctx = domain.WithIdempotencyKey(ctx, uuid.NewString())

	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			wait := backoff[min(attempt-1, len(backoff)-1)]
			if serr := r.sleep(ctx, wait); serr != nil {
				return serr
			}
		}
		err = op(ctx)
		if err == nil || !domain.IsRetryable(err) {
			return err
		}
		r.log(ctx).Debug().Err(err).Int("attempt", attempt+1).Msg("remote write failed")
	}
	return fmt.Errorf("gave up after %d attempts: %w", maxAttempts, err)
}
