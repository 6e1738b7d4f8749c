// Package mongostore keeps orders and table maps as MongoDB documents.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/meja-pos/api/internal/model"
	"github.com/meja-pos/api/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	ordersCollection    = "orders"
	tableMapsCollection = "table_maps"
)

type Store struct {
	orders    *mongo.Collection
	tableMaps *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{
		orders:    db.Collection(ordersCollection),
		tableMaps: db.Collection(tableMapsCollection),
	}
}

// Connect dials uri and pings the server.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the indexes ListOrders relies on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.orders.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "restaurantId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "restaurantId", Value: 1}, {Key: "tableId", Value: 1}}},
		{Keys: bson.D{{Key: "restaurantId", Value: 1}, {Key: "needsReconciliation", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create order indexes: %w", err)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, restaurantID, orderID string) (*model.Order, error) {
	var d orderDoc
	err := s.orders.FindOne(ctx, bson.M{"_id": orderID, "restaurantId": restaurantID}).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("find order: %w", err)
	}
	return fromOrderDoc(d)
}

func (s *Store) SaveOrder(ctx context.Context, o *model.Order) error {
	d, err := toOrderDoc(o)
	if err != nil {
		return err
	}

	if o.Version == 0 {
		d.Version = 1
		if _, err := s.orders.InsertOne(ctx, d); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return store.ErrConflict
			}
			return fmt.Errorf("insert order: %w", err)
		}
		o.Version = 1
		return nil
	}

	d.Version = o.Version + 1
	res, err := s.orders.ReplaceOne(ctx,
		bson.M{"_id": o.ID, "restaurantId": o.RestaurantID, "version": o.Version}, d)
	if err != nil {
		return fmt.Errorf("replace order: %w", err)
	}
	if res.MatchedCount == 0 {
		n, err := s.orders.CountDocuments(ctx, bson.M{"_id": o.ID, "restaurantId": o.RestaurantID})
		if err == nil && n == 0 {
			return store.ErrNotFound
		}
		return store.ErrConflict
	}
	o.Version++
	return nil
}

func (s *Store) DeleteOrder(ctx context.Context, restaurantID, orderID string) error {
	res, err := s.orders.DeleteOne(ctx, bson.M{"_id": orderID, "restaurantId": restaurantID})
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListOrders(ctx context.Context, f store.OrderFilter) ([]model.Order, error) {
	filter := orderFilter(f)
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}

	cur, err := s.orders.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find orders: %w", err)
	}
	defer cur.Close(ctx)

	var out []model.Order
	for cur.Next(ctx) {
		var d orderDoc
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("decode order: %w", err)
		}
		o, err := fromOrderDoc(d)
		if err != nil {
			return nil, fmt.Errorf("order %s: %w", d.ID, err)
		}
		out = append(out, *o)
	}
	return out, cur.Err()
}

func orderFilter(f store.OrderFilter) bson.M {
	filter := bson.M{"restaurantId": f.RestaurantID}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.TableID != "" {
		filter["tableId"] = f.TableID
	}
	if f.NeedsReconciliation {
		filter["needsReconciliation"] = true
	}
	return filter
}

func (s *Store) GetTableMap(ctx context.Context, restaurantID, mapID string) (*model.TableMap, error) {
	var d tableMapDoc
	err := s.tableMaps.FindOne(ctx, bson.M{"_id": mapID, "restaurantId": restaurantID}).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("find table map: %w", err)
	}
	return fromTableMapDoc(d), nil
}

// SaveTableMap writes an existing map as a field-path merge of layout.tables
// and updatedAt, guarded by version.
func (s *Store) SaveTableMap(ctx context.Context, m *model.TableMap) error {
	d := toTableMapDoc(m)

	if m.Version == 0 {
		d.Version = 1
		if _, err := s.tableMaps.InsertOne(ctx, d); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return store.ErrConflict
			}
			return fmt.Errorf("insert table map: %w", err)
		}
		m.Version = 1
		return nil
	}

	res, err := s.tableMaps.UpdateOne(ctx,
		bson.M{"_id": m.ID, "restaurantId": m.RestaurantID, "version": m.Version},
		bson.M{
			"$set": bson.M{
				"name":          d.Name,
				"layout.tables": d.Layout.Tables,
				"updatedAt":     d.UpdatedAt,
			},
			"$inc": bson.M{"version": 1},
		})
	if err != nil {
		return fmt.Errorf("update table map: %w", err)
	}
	if res.MatchedCount == 0 {
		return store.ErrConflict
	}
	m.Version++
	return nil
}
