package notify

import (
	"context"
	"errors"

	"github.com/meja-pos/api/internal/model"
	"github.com/sirupsen/logrus"
)

// Notifier is implemented by every sink in this package.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

// Multi fans a notification out to every sink and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n model.Notification) error {
	var errs []error
	for _, s := range m {
		if err := s.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log writes notifications to a logger. Used when no broker is configured.
type Log struct {
	Logger logrus.FieldLogger
}

func (l Log) Notify(ctx context.Context, n model.Notification) error {
	l.Logger.WithFields(logrus.Fields{
		"restaurant_id": n.RestaurantID,
		"url":           n.URL,
	}).Infof("notification: %s: %s", n.Title, n.Message)
	return nil
}
