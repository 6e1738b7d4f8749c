package orderflow

import "github.com/meja-pos/api/internal/enum"

// AggregateOrderStatus promotes an order to finished once every item is
// finished. In every other case the staff-set status is returned as is: the
// aggregate never downgrades and never infers preparing or ready from items.
// An order without items is never promoted.
func AggregateOrderStatus(current string, itemStatuses []string) string {
	if len(itemStatuses) == 0 {
		return current
	}
	for _, s := range itemStatuses {
		if s != enum.ItemStatusFinished {
			return current
		}
	}
	return enum.OrderStatusFinished
}

// IsTerminalOrderStatus reports whether the order lifecycle has ended.
func IsTerminalOrderStatus(s string) bool {
	switch s {
	case enum.OrderStatusFinished, enum.OrderStatusClosed, enum.OrderStatusCancelled:
		return true
	}
	return false
}

// IsLockedOrderStatus reports whether items and status may no longer change.
// A finished order can still be closed with a payment.
func IsLockedOrderStatus(s string) bool {
	return s == enum.OrderStatusClosed || s == enum.OrderStatusCancelled
}
