package inventory

import "time"

// LowStockEvent is emitted when a product's stock falls to or below the watch threshold.
type LowStockEvent struct {
	ProductID  string
	Name       string
	Available  int
	Threshold  int
	OccurredAt time.Time
}

func (LowStockEvent) EventName() string { return "inventory.low_stock" }

func (e LowStockEvent) EventKey() string { return e.ProductID }

func NewLowStockEvent(productID, name string, available, threshold int) LowStockEvent {
	return LowStockEvent{
		ProductID:  productID,
		Name:       name,
		Available:  available,
		Threshold:  threshold,
		OccurredAt: time.Now().UTC(),
	}
}
