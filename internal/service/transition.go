package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/meja-pos/api/internal/enum"
	"github.com/meja-pos/api/internal/model"
	"github.com/meja-pos/api/internal/orderflow"
	"github.com/meja-pos/api/internal/store"
	"github.com/sirupsen/logrus"
)

// ReconcileReport summarises a Reconcile run.
type ReconcileReport struct {
	Attempted int      `json:"attempted"`
	Fixed     int      `json:"fixed"`
	Failed    []string `json:"failed"`
}

// commit persists o and, when its status moved, re-derives its table.
// The order write is authoritative: a failed table write is retried, then
// recorded on the order as NeedsReconciliation instead of failing the call.
func (s *OrderService) commit(ctx context.Context, o *model.Order, prevStatus string) (*TransitionResult, error) {
	o.UpdatedAt = s.now()
	if err := s.store.SaveOrder(ctx, o); err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			return nil, ErrConcurrentUpdate
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("save order: %w", err)
	}

	res := &TransitionResult{Order: o}
	if o.Table != nil && o.Status != prevStatus {
		table, err := s.syncTableWithRetry(ctx, o, o.Status)
		if err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"order_id":     o.ID,
				"table_id":     o.Table.TableID,
				"order_status": o.Status,
			}).Warn("table sync failed, flagging order for reconciliation")
			s.flagReconciliation(ctx, o)
			res.SyncWarning = syncWarning(err)
		} else {
			res.Table = table
		}
	}

	s.publish(o.RestaurantID, EventOrderUpdated, o)
	if o.Status == enum.OrderStatusFinished && prevStatus != enum.OrderStatusFinished {
		s.notify(ctx, o, "Order finished", fmt.Sprintf("All items served%s", tableSuffix(o)))
	}
	return res, nil
}

// syncTableWithRetry applies orderflow.SyncTable to the order's table map.
// Write conflicts re-read the map and try again; structural problems such
// as a missing table are not retried.
func (s *OrderService) syncTableWithRetry(ctx context.Context, o *model.Order, status string) (*model.Table, error) {
	var (
		table *model.Table
		saved *model.TableMap
	)
	op := func() error {
		m, err := s.store.GetTableMap(ctx, o.RestaurantID, o.Table.MapID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return backoff.Permanent(ErrTableMapNotFound)
			}
			return err
		}
		res, err := orderflow.SyncTable(m.Layout.Tables, o.Table.TableID, o.ID, status)
		if err != nil {
			return backoff.Permanent(err)
		}
		m.Layout.Tables = res.Tables
		m.UpdatedAt = s.now()
		if err := s.store.SaveTableMap(ctx, m); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return backoff.Permanent(ErrTableMapNotFound)
			}
			return err
		}
		t := res.Table
		table = &t
		saved = m
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), s.syncRetries), ctx)
	notify := func(err error, wait time.Duration) {
		s.log.WithError(err).WithField("order_id", o.ID).Debugf("retrying table write in %s", wait)
	}
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, err
	}
	s.publish(o.RestaurantID, EventTableMapUpdated, saved)
	return table, nil
}

func (s *OrderService) flagReconciliation(ctx context.Context, o *model.Order) {
	if o.NeedsReconciliation {
		return
	}
	o.NeedsReconciliation = true
	if err := s.store.SaveOrder(ctx, o); err != nil {
		o.NeedsReconciliation = false
		s.log.WithError(err).WithField("order_id", o.ID).Error("could not flag order for reconciliation")
	}
}

func syncWarning(err error) string {
	return "order saved but table was not updated: " + err.Error()
}

// SyncTable re-derives the table of one order on demand. Unlike the
// automatic path, failures are returned to the caller.
func (s *OrderService) SyncTable(ctx context.Context, loc OrderLocation) (*TransitionResult, error) {
	if err := loc.validate(); err != nil {
		return nil, err
	}
	o, err := s.getOrder(ctx, loc)
	if err != nil {
		return nil, err
	}
	if o.Table == nil {
		return nil, ErrNoTable
	}
	table, err := s.syncTableWithRetry(ctx, o, o.Status)
	if err != nil {
		return nil, err
	}
	if o.NeedsReconciliation {
		o.NeedsReconciliation = false
		o.UpdatedAt = s.now()
		if err := s.store.SaveOrder(ctx, o); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return nil, ErrConcurrentUpdate
			}
			return nil, fmt.Errorf("clear reconciliation flag: %w", err)
		}
		s.publish(o.RestaurantID, EventOrderUpdated, o)
	}
	return &TransitionResult{Order: o, Table: table}, nil
}

// Reconcile retries the table sync of every flagged order of a restaurant.
func (s *OrderService) Reconcile(ctx context.Context, restaurantID string) (*ReconcileReport, error) {
	if restaurantID == "" {
		return nil, ErrMissingLocation
	}
	orders, err := s.store.ListOrders(ctx, store.OrderFilter{
		RestaurantID:        restaurantID,
		NeedsReconciliation: true,
	})
	if err != nil {
		return nil, fmt.Errorf("list flagged orders: %w", err)
	}

	report := &ReconcileReport{Failed: []string{}}
	for _, o := range orders {
		report.Attempted++
		_, err := s.SyncTable(ctx, OrderLocation{RestaurantID: restaurantID, OrderID: o.ID})
		if err != nil {
			s.log.WithError(err).WithField("order_id", o.ID).Warn("reconcile failed")
			report.Failed = append(report.Failed, o.ID)
			continue
		}
		report.Fixed++
	}
	s.log.WithFields(logrus.Fields{
		"restaurant_id": restaurantID,
		"attempted":     report.Attempted,
		"fixed":         report.Fixed,
	}).Info("reconcile finished")
	return report, nil
}
