// Package bootstrap opens the backends selected by configuration.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meja-pos/api/internal/config"
	"github.com/meja-pos/api/internal/service"
	"github.com/meja-pos/api/internal/store/memory"
	"github.com/meja-pos/api/internal/store/mongostore"
	"github.com/meja-pos/api/internal/store/pgstore"
	"github.com/sirupsen/logrus"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Backend is an opened document store. Close releases its connections.
type Backend struct {
	service.Store
	Close func()
}

// OpenStore connects to the store named by cfg.StoreDriver.
func OpenStore(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*Backend, error) {
	switch cfg.StoreDriver {
	case DriverMemory, "":
		log.Warn("using in-memory store; data is lost on restart")
		return &Backend{Store: memory.New(), Close: func() {}}, nil

	case DriverPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		log.Info("connected to postgres")
		return &Backend{Store: pgstore.New(pool), Close: pool.Close}, nil

	case DriverMongo:
		client, err := mongostore.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		st := mongostore.New(client.Database(cfg.MongoDatabase))
		if err := st.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		log.WithField("database", cfg.MongoDatabase).Info("connected to mongo")
		return &Backend{Store: st, Close: func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.WithError(err).Warn("disconnect mongo")
			}
		}}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
