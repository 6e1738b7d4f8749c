// Package notify delivers staff notifications outside the request path.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/meja-pos/api/internal/model"
	amqp "github.com/rabbitmq/amqp091-go"
)

// confirmation is the broker's answer to one publish. Satisfied by
// *amqp.DeferredConfirmation.
type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

// channel is the part of *amqp.Channel the publisher needs. A nil
// confirmation means confirms are off.
type channel interface {
	Publish(ctx context.Context, exchange, key string, msg amqp.Publishing) (confirmation, error)
	Close() error
}

// amqpChannel ties each publish to its own delivery tag, so a confirm that
// arrives after its caller gave up is never read by the next publish.
type amqpChannel struct {
	ch *amqp.Channel
}

func (c amqpChannel) Publish(ctx context.Context, exchange, key string, msg amqp.Publishing) (confirmation, error) {
	dc, err := c.ch.PublishWithDeferredConfirmWithContext(ctx, exchange, key, false, false, msg)
	if err != nil || dc == nil {
		return nil, err
	}
	return dc, nil
}

func (c amqpChannel) Close() error {
	return c.ch.Close()
}

// AMQPNotifier publishes notifications as persistent JSON messages on a
// fanout exchange. Push, e-mail and chat relays bind their own queues.
type AMQPNotifier struct {
	conn     *amqp.Connection
	ch       channel
	exchange string
	now      func() time.Time
}

// DialAMQP connects to url, declares the durable fanout exchange and turns
// on publisher confirms.
func DialAMQP(url, exchange string) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("enable confirms: %w", err)
	}

	return &AMQPNotifier{conn: conn, ch: amqpChannel{ch: ch}, exchange: exchange, now: time.Now}, nil
}

// Notify publishes n and waits for the broker confirm of that message.
func (a *AMQPNotifier) Notify(ctx context.Context, n model.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	conf, err := a.ch.Publish(ctx, a.exchange, n.RestaurantID, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Timestamp:    a.now(),
		Headers:      amqp.Table{"restaurant_id": n.RestaurantID},
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	if conf == nil {
		return nil
	}
	acked, err := conf.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("await confirm: %w", err)
	}
	if !acked {
		return errors.New("notification nacked by broker")
	}
	return nil
}

// Ping reports whether the broker connection is still open.
func (a *AMQPNotifier) Ping() error {
	if a.conn == nil || a.conn.IsClosed() {
		return errors.New("amqp connection is closed")
	}
	return nil
}

func (a *AMQPNotifier) Close() error {
	var err error
	if a.ch != nil {
		err = a.ch.Close()
	}
	if a.conn != nil {
		err = errors.Join(err, a.conn.Close())
	}
	return err
}
