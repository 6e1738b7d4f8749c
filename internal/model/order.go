package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is an aggregate of items tied to a table, counter or takeaway slot.
// JSON field names follow the persisted document shape.
type Order struct {
	ID           string          `json:"id"`
	RestaurantID string          `json:"restaurantId"`
	Type         string          `json:"orderType"`
	Status       string          `json:"status"`
	Items        []OrderItem     `json:"items"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	Discount     decimal.Decimal `json:"discount"`
	Tax          decimal.Decimal `json:"tax"`
	Total        decimal.Decimal `json:"total"`
	Table        *TableRef       `json:"table,omitempty"`
	CreatedBy    Creator         `json:"createdBy"`
	Notes        string          `json:"notes,omitempty"`
	Payment      *Payment        `json:"payment,omitempty"`

	// NeedsReconciliation is set when the order changed but its table could
	// not be brought in line after retries.
	NeedsReconciliation bool `json:"needsReconciliation,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Version   int64     `json:"version"`
}

// OrderItem is one line item. Items only exist inside an order.
type OrderItem struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Status   string          `json:"status"`
	Notes    string          `json:"notes,omitempty"`
	Dietary  []string        `json:"dietaryRestrictions,omitempty"`
}

// TableRef points an order at a table inside a table map.
type TableRef struct {
	TableID string `json:"tableId"`
	MapID   string `json:"mapId"`
	Number  int    `json:"tableNumber"`
}

// Creator is the staff member who submitted the order.
type Creator struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

type Payment struct {
	Method     string          `json:"method"`
	Amount     decimal.Decimal `json:"amount"`
	Tip        decimal.Decimal `json:"tip"`
	Change     decimal.Decimal `json:"change"`
	PaidAt     time.Time       `json:"paidAt"`
	ReceivedBy string          `json:"receivedBy"`
}

// ItemStatuses returns the status of every item, in item order.
func (o *Order) ItemStatuses() []string {
	statuses := make([]string, len(o.Items))
	for i, it := range o.Items {
		statuses[i] = it.Status
	}
	return statuses
}

// FindItem returns the index of the item with the given id, or -1.
func (o *Order) FindItem(id string) int {
	for i, it := range o.Items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// LineTotal is price * quantity.
func (it OrderItem) LineTotal() decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = make([]OrderItem, len(o.Items))
	for i, it := range o.Items {
		c.Items[i] = it
		if it.Dietary != nil {
			c.Items[i].Dietary = append([]string(nil), it.Dietary...)
		}
	}
	if o.Table != nil {
		t := *o.Table
		c.Table = &t
	}
	if o.Payment != nil {
		p := *o.Payment
		c.Payment = &p
	}
	return &c
}
