// Package memory is an in-process document store used by tests and local runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/meja-pos/api/internal/model"
	"github.com/meja-pos/api/internal/store"
)

type key struct {
	restaurantID string
	id           string
}

// Store keeps orders and table maps in maps guarded by one mutex. Saves use
// the same version check as the database stores.
type Store struct {
	mu        sync.RWMutex
	orders    map[key]*model.Order
	tableMaps map[key]*model.TableMap
}

func New() *Store {
	return &Store{
		orders:    make(map[key]*model.Order),
		tableMaps: make(map[key]*model.TableMap),
	}
}

func (s *Store) GetOrder(ctx context.Context, restaurantID, orderID string) (*model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[key{restaurantID, orderID}]
	if !ok {
		return nil, store.ErrNotFound
	}
	return o.Clone(), nil
}

// SaveOrder inserts when Version is 0 and the order is new, otherwise it
// requires Version to match the stored one. On success o.Version is bumped.
func (s *Store) SaveOrder(ctx context.Context, o *model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{o.RestaurantID, o.ID}
	if cur, ok := s.orders[k]; ok {
		if cur.Version != o.Version {
			return store.ErrConflict
		}
	} else if o.Version != 0 {
		return store.ErrNotFound
	}
	o.Version++
	s.orders[k] = o.Clone()
	return nil
}

func (s *Store) DeleteOrder(ctx context.Context, restaurantID, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{restaurantID, orderID}
	if _, ok := s.orders[k]; !ok {
		return store.ErrNotFound
	}
	delete(s.orders, k)
	return nil
}

// ListOrders returns matching orders, newest first.
func (s *Store) ListOrders(ctx context.Context, f store.OrderFilter) ([]model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Order
	for k, o := range s.orders {
		if k.restaurantID != f.RestaurantID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		if f.TableID != "" && (o.Table == nil || o.Table.TableID != f.TableID) {
			continue
		}
		if f.NeedsReconciliation && !o.NeedsReconciliation {
			continue
		}
		out = append(out, *o.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) GetTableMap(ctx context.Context, restaurantID, mapID string) (*model.TableMap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.tableMaps[key{restaurantID, mapID}]
	if !ok {
		return nil, store.ErrNotFound
	}
	return m.Clone(), nil
}

// SaveTableMap follows the same version rules as SaveOrder.
func (s *Store) SaveTableMap(ctx context.Context, m *model.TableMap) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{m.RestaurantID, m.ID}
	if cur, ok := s.tableMaps[k]; ok {
		if cur.Version != m.Version {
			return store.ErrConflict
		}
	} else if m.Version != 0 {
		return store.ErrNotFound
	}
	m.Version++
	s.tableMaps[k] = m.Clone()
	return nil
}
