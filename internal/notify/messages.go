package notify

import (
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

func OutOfStock(productID int64, name string) domain.Notification {
	return domain.Notification{
		ProductID: productID,
		Kind:      domain.NotifyOutOfStock,
		Message:   fmt.Sprintf("%s is out of stock and was removed from your cart", name),
	}
}

func QuantityClamped(productID int64, name string) domain.Notification {
	return domain.Notification{
		ProductID: productID,
		Kind:      domain.NotifyQuantityClamped,
		Message:   fmt.Sprintf("Only limited stock is left for %s, the quantity was reduced", name),
	}
}

// SyncFailed is not tied to a product; one is emitted per failed push.
func SyncFailed() domain.Notification {
	return domain.Notification{
		Kind:    domain.NotifySyncFailed,
		Message: "Your cart could not be synchronized, changes are kept on this device",
	}
}
