// Package pgstore keeps order and table-map documents as JSONB rows in
// PostgreSQL. Status, table and reconciliation fields are mirrored into
// columns so ListOrders can filter without scanning documents.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/meja-pos/api/internal/model"
	"github.com/meja-pos/api/internal/store"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	db DBTX
}

func New(db DBTX) *Store {
	return &Store{db: db}
}

const getOrder = `SELECT doc, version FROM orders WHERE restaurant_id = $1 AND id = $2`

func (s *Store) GetOrder(ctx context.Context, restaurantID, orderID string) (*model.Order, error) {
	var raw []byte
	var version int64
	err := s.db.QueryRow(ctx, getOrder, restaurantID, orderID).Scan(&raw, &version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	o, err := decodeOrder(raw)
	if err != nil {
		return nil, fmt.Errorf("decode order %s: %w", orderID, err)
	}
	o.Version = version
	return o, nil
}

const insertOrder = `
INSERT INTO orders (restaurant_id, id, status, table_id, needs_reconciliation, doc, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $8)`

const updateOrder = `
UPDATE orders
SET status = $3, table_id = $4, needs_reconciliation = $5, doc = $6, version = version + 1, updated_at = $7
WHERE restaurant_id = $1 AND id = $2 AND version = $8`

// SaveOrder inserts a new order (Version 0) or updates one whose stored
// version still equals o.Version.
func (s *Store) SaveOrder(ctx context.Context, o *model.Order) error {
	doc, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encode order: %w", err)
	}
	var tableID *string
	if o.Table != nil && o.Table.TableID != "" {
		tableID = &o.Table.TableID
	}

	if o.Version == 0 {
		_, err := s.db.Exec(ctx, insertOrder,
			o.RestaurantID, o.ID, o.Status, tableID, o.NeedsReconciliation, doc, o.CreatedAt, o.UpdatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return store.ErrConflict
			}
			return fmt.Errorf("insert order: %w", err)
		}
		o.Version = 1
		return nil
	}

	tag, err := s.db.Exec(ctx, updateOrder,
		o.RestaurantID, o.ID, o.Status, tableID, o.NeedsReconciliation, doc, o.UpdatedAt, o.Version)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either gone or moved on; tell them apart for the caller.
		if _, err := s.GetOrder(ctx, o.RestaurantID, o.ID); errors.Is(err, store.ErrNotFound) {
			return store.ErrNotFound
		}
		return store.ErrConflict
	}
	o.Version++
	return nil
}

func (s *Store) DeleteOrder(ctx context.Context, restaurantID, orderID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM orders WHERE restaurant_id = $1 AND id = $2`, restaurantID, orderID)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

const listOrders = `
SELECT doc, version FROM orders
WHERE restaurant_id = $1
  AND ($2::text = '' OR status = $2)
  AND ($3::text = '' OR table_id = $3)
  AND (NOT $4::bool OR needs_reconciliation)
ORDER BY created_at DESC, id
LIMIT $5`

func (s *Store) ListOrders(ctx context.Context, f store.OrderFilter) ([]model.Order, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.Query(ctx, listOrders, f.RestaurantID, f.Status, f.TableID, f.NeedsReconciliation, limit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []model.Order
	for rows.Next() {
		var raw []byte
		var version int64
		if err := rows.Scan(&raw, &version); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o, err := decodeOrder(raw)
		if err != nil {
			return nil, fmt.Errorf("decode order: %w", err)
		}
		o.Version = version
		out = append(out, *o)
	}
	return out, rows.Err()
}

const getTableMap = `SELECT name, doc, version, updated_at FROM table_maps WHERE restaurant_id = $1 AND id = $2`

func (s *Store) GetTableMap(ctx context.Context, restaurantID, mapID string) (*model.TableMap, error) {
	m := &model.TableMap{ID: mapID, RestaurantID: restaurantID}
	var raw []byte
	err := s.db.QueryRow(ctx, getTableMap, restaurantID, mapID).Scan(&m.Name, &raw, &m.Version, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get table map: %w", err)
	}
	if err := json.Unmarshal(raw, &m.Layout); err != nil {
		return nil, fmt.Errorf("decode layout %s: %w", mapID, err)
	}
	return m, nil
}

const insertTableMap = `
INSERT INTO table_maps (restaurant_id, id, name, doc, version, updated_at)
VALUES ($1, $2, $3, $4, 1, $5)`

const updateTableMap = `
UPDATE table_maps
SET name = $3, doc = $4, version = version + 1, updated_at = $5
WHERE restaurant_id = $1 AND id = $2 AND version = $6`

func (s *Store) SaveTableMap(ctx context.Context, m *model.TableMap) error {
	doc, err := json.Marshal(m.Layout)
	if err != nil {
		return fmt.Errorf("encode layout: %w", err)
	}
	updatedAt := m.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	if m.Version == 0 {
		if _, err := s.db.Exec(ctx, insertTableMap, m.RestaurantID, m.ID, m.Name, doc, updatedAt); err != nil {
			if isUniqueViolation(err) {
				return store.ErrConflict
			}
			return fmt.Errorf("insert table map: %w", err)
		}
		m.Version = 1
		return nil
	}

	tag, err := s.db.Exec(ctx, updateTableMap, m.RestaurantID, m.ID, m.Name, doc, updatedAt, m.Version)
	if err != nil {
		return fmt.Errorf("update table map: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrConflict
	}
	m.Version++
	return nil
}

// isUniqueViolation checks for pgconn error code 23505.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
