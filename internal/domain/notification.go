package domain

import (
	"fmt"
	"time"
)

type NotificationKind string

const (
	NotifyOutOfStock      NotificationKind = "out_of_stock"
	NotifyQuantityClamped NotificationKind = "quantity_clamped"
	NotifySyncFailed      NotificationKind = "sync_failed"
)

type NotificationRecord struct {
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
}

func NotificationKey(productID int64, kind NotificationKind) string {
	return fmt.Sprintf("%d:%s", productID, kind)
}

// Notification is a user-facing warning emitted by the engine.
type Notification struct {
	ProductID int64            `json:"product_id,omitempty"`
	Kind      NotificationKind `json:"kind"`
	Message   string           `json:"message"`
}
