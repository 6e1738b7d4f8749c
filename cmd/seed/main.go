package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/meja-pos/api/internal/auth"
	"github.com/meja-pos/api/internal/bootstrap"
	"github.com/meja-pos/api/internal/config"
	"github.com/meja-pos/api/internal/enum"
	"github.com/meja-pos/api/internal/logging"
	"github.com/meja-pos/api/internal/model"
	"github.com/meja-pos/api/internal/service"
	"github.com/meja-pos/api/internal/store"
	"github.com/sirupsen/logrus"
)

func main() {
	// CLI flags
	restaurantID := flag.String("restaurant", "demo", "Restaurant ID to seed")
	mapID := flag.String("map", "main", "Table map ID")
	mapName := flag.String("name", "Main hall", "Table map display name")
	tables := flag.Int("tables", 8, "Number of tables in the map")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "Lifetime of the printed dev tokens")
	flag.Parse()

	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	if cfg.StoreDriver == bootstrap.DriverMemory {
		log.Warn("STORE_DRIVER is memory; the seeded map will not outlive this process")
	}

	ctx := context.Background()
	backend, err := bootstrap.OpenStore(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("open store")
	}
	defer backend.Close()

	if err := seedTableMap(ctx, backend, log, *restaurantID, *mapID, *mapName, *tables); err != nil {
		log.WithError(err).Fatal("seed table map")
	}

	// Dev tokens, one per role
	roles := []string{enum.RoleOwner, enum.RoleAdmin, enum.RoleManager, enum.RoleWaiter, enum.RoleChef, enum.RoleBarman}
	for _, role := range roles {
		tok, err := auth.GenerateToken(cfg.JWTSecret, auth.Staff{
			UserID:       "seed-" + role,
			RestaurantID: *restaurantID,
			Name:         "Seed " + role,
			Role:         role,
		}, *tokenTTL)
		if err != nil {
			log.WithError(err).Fatal("generate token")
		}
		fmt.Printf("%-8s %s\n", role, tok)
	}

	log.Info("seed completed successfully")
}

// seedTableMap creates the table map if it doesn't exist.
func seedTableMap(ctx context.Context, st service.Store, log logrus.FieldLogger, restaurantID, mapID, name string, n int) error {
	existing, err := st.GetTableMap(ctx, restaurantID, mapID)
	if err == nil {
		log.WithField("tables", len(existing.Layout.Tables)).Infof("table map %q already exists, skipping", mapID)
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("check table map: %w", err)
	}

	m := &model.TableMap{
		ID:           mapID,
		RestaurantID: restaurantID,
		Name:         name,
		UpdatedAt:    time.Now().UTC(),
	}
	// Lay tables out on a four-wide grid.
	for i := 0; i < n; i++ {
		m.Layout.Tables = append(m.Layout.Tables, model.Table{
			ID:     uuid.NewString(),
			Number: i + 1,
			Seats:  4,
			Shape:  "square",
			Width:  80,
			Height: 80,
			X:      float64(i%4) * 120,
			Y:      float64(i/4) * 120,
			Status: enum.TableStatusAvailable,
		})
	}
	if err := st.SaveTableMap(ctx, m); err != nil {
		return fmt.Errorf("insert table map: %w", err)
	}

	log.Infof("created table map %q with %d tables", mapID, n)
	return nil
}
