package notify

import (
	"context"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

const defaultInboxSize = 50

// Inbox is a Sink that keeps delivered notifications until the presentation layer
// drains them. The oldest entries are dropped once it is full.
type Inbox struct {
	mu    sync.Mutex
	items []domain.Notification
	size  int
}

func NewInbox(size int) *Inbox {
	if size <= 0 {
		size = defaultInboxSize
	}
	return &Inbox{size: size}
}

func (i *Inbox) Deliver(_ context.Context, n domain.Notification) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.items = append(i.items, n)
	if over := len(i.items) - i.size; over > 0 {
		i.items = append([]domain.Notification(nil), i.items[over:]...)
	}
}

// Drain returns and forgets the pending notifications.
func (i *Inbox) Drain() []domain.Notification {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := i.items
	i.items = nil
	if out == nil {
		out = []domain.Notification{}
	}
	return out
}
