package service

import (
	"context"
	"fmt"

	"github.com/meja-pos/api/internal/enum"
	"github.com/meja-pos/api/internal/model"
	"github.com/meja-pos/api/internal/orderflow"
	"github.com/meja-pos/api/internal/store"
)

const defaultListLimit = 200

// OrderView is an order as one role is allowed to see it. Items outside the
// role's sections are dropped and counted in HiddenItems.
type OrderView struct {
	Order       model.Order
	Scope       orderflow.Scope
	HiddenItems int
	// ItemActions maps visible item IDs to the label of their next step.
	ItemActions map[string]string
}

// ListFilter narrows ListOrders.
type ListFilter struct {
	Status              string
	TableID             string
	NeedsReconciliation bool
	Limit               int
}

// ViewOrder returns one order partitioned for role. Unknown roles see no items.
func (s *OrderService) ViewOrder(ctx context.Context, loc OrderLocation, role string) (*OrderView, error) {
	if err := loc.validate(); err != nil {
		return nil, err
	}
	o, err := s.getOrder(ctx, loc)
	if err != nil {
		return nil, err
	}
	v := NewOrderView(*o, role)
	return &v, nil
}

// ListOrders returns the restaurant's orders, newest first, partitioned for
// role. Orders with no visible items are still listed so staff can see the
// table is busy.
func (s *OrderService) ListOrders(ctx context.Context, restaurantID string, f ListFilter, role string) ([]OrderView, error) {
	if restaurantID == "" {
		return nil, ErrMissingLocation
	}
	if f.Status != "" && !enum.IsOrderStatus(f.Status) {
		return nil, ErrInvalidStatus
	}
	limit := f.Limit
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}
	orders, err := s.store.ListOrders(ctx, store.OrderFilter{
		RestaurantID:        restaurantID,
		Status:              f.Status,
		TableID:             f.TableID,
		NeedsReconciliation: f.NeedsReconciliation,
		Limit:               limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	views := make([]OrderView, len(orders))
	for i, o := range orders {
		views[i] = NewOrderView(o, role)
	}
	return views, nil
}

// NewOrderView partitions o for role.
func NewOrderView(o model.Order, role string) OrderView {
	vis := orderflow.VisibilityFor(orderflow.ParseRole(role))
	items, hidden := orderflow.VisibleItems(vis, o.Items)
	o.Items = items
	actions := make(map[string]string, len(items))
	for _, it := range items {
		if label := orderflow.ItemActionLabel(it.Status); label != "" {
			actions[it.ID] = label
		}
	}
	return OrderView{
		Order:       o,
		Scope:       vis.Scope(),
		HiddenItems: hidden,
		ItemActions: actions,
	}
}
