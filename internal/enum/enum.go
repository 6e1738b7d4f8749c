package enum

// ── Group A: State machines ──

const (
	OrderStatusPending   = "pending"
	OrderStatusOrdering  = "ordering"
	OrderStatusPreparing = "preparing"
	OrderStatusReady     = "ready"
	OrderStatusDelivered = "delivered"
	OrderStatusServed    = "served"
	OrderStatusFinished  = "finished"
	OrderStatusClosed    = "closed"
	OrderStatusCancelled = "cancelled"
)

const (
	ItemStatusPending   = "pending"
	ItemStatusPreparing = "preparing"
	ItemStatusReady     = "ready"
	ItemStatusDelivered = "delivered"
	ItemStatusFinished  = "finished"
)

const (
	TableStatusAvailable = "available"
	TableStatusOccupied  = "occupied"
	TableStatusOrdering  = "ordering"
	TableStatusPreparing = "preparing"
	TableStatusReady     = "ready"
	TableStatusServed    = "served"
)

// ── Group B: Staff ──

const (
	RoleOwner   = "owner"
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleChef    = "chef"
	RoleWaiter  = "waiter"
	RoleBarman  = "barman"
)

// ── Group C: Order shape ──

const (
	OrderTypeTable    = "table"
	OrderTypeCounter  = "counter"
	OrderTypeTakeaway = "takeaway"
)

const (
	PaymentMethodCash     = "cash"
	PaymentMethodCard     = "card"
	PaymentMethodTransfer = "transfer"
)

// IsOrderStatus reports whether s is one of the order statuses above.
func IsOrderStatus(s string) bool {
	switch s {
	case OrderStatusPending, OrderStatusOrdering, OrderStatusPreparing,
		OrderStatusReady, OrderStatusDelivered, OrderStatusServed,
		OrderStatusFinished, OrderStatusClosed, OrderStatusCancelled:
		return true
	}
	return false
}

func IsOrderType(s string) bool {
	switch s {
	case OrderTypeTable, OrderTypeCounter, OrderTypeTakeaway:
		return true
	}
	return false
}

func IsPaymentMethod(s string) bool {
	switch s {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodTransfer:
		return true
	}
	return false
}
