package orderflow

import (
	"errors"

	"github.com/meja-pos/api/internal/enum"
	"github.com/meja-pos/api/internal/model"
)

var (
	ErrTableNotFound        = errors.New("table not found in table map")
	ErrTableLinkedElsewhere = errors.New("table is linked to another active order")
)

// TableStatusFor maps an order status onto the occupancy status of its table.
// An empty status means there is no order.
func TableStatusFor(orderStatus string) string {
	switch orderStatus {
	case enum.OrderStatusPending:
		return enum.TableStatusOrdering
	case enum.OrderStatusPreparing:
		return enum.TableStatusPreparing
	case enum.OrderStatusReady:
		return enum.TableStatusReady
	case enum.OrderStatusDelivered:
		return enum.TableStatusServed
	}
	return enum.TableStatusAvailable
}

// SyncResult describes the outcome of SyncTable.
type SyncResult struct {
	// Tables is the full table list to persist. It shares no backing array
	// with the input.
	Tables []model.Table
	// Table is the updated entry.
	Table model.Table
	// Changed is false when the table already matched; the caller still
	// persists Tables to bump the map's timestamp.
	Changed bool
}

// SyncTable applies an order status to the table tableID within tables.
//
// The table goes to TableStatusFor(orderStatus). When that is available the
// active order reference is cleared; otherwise the order is linked if the
// table has none. A table already linked to a different order is left alone
// for terminal statuses and rejected for active ones, so at most one
// non-terminal order holds a table.
func SyncTable(tables []model.Table, tableID, orderID, orderStatus string) (SyncResult, error) {
	idx := -1
	for i, t := range tables {
		if t.ID == tableID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return SyncResult{}, ErrTableNotFound
	}

	out := append([]model.Table(nil), tables...)
	cur := out[idx]
	target := TableStatusFor(orderStatus)

	if cur.ActiveOrderID != "" && orderID != "" && cur.ActiveOrderID != orderID {
		if target == enum.TableStatusAvailable {
			return SyncResult{Tables: out, Table: cur}, nil
		}
		return SyncResult{}, ErrTableLinkedElsewhere
	}

	next := cur
	next.Status = target
	if target == enum.TableStatusAvailable {
		next.ActiveOrderID = ""
	} else if next.ActiveOrderID == "" {
		next.ActiveOrderID = orderID
	}

	if next == cur {
		return SyncResult{Tables: out, Table: cur}, nil
	}
	out[idx] = next
	return SyncResult{Tables: out, Table: next, Changed: true}, nil
}
