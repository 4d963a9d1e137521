// Package consumer adapts the RabbitMQ ingress to the coordinator. It is an
// external collaborator of the core: it drains the queue, decodes each
// delivery and translates the handler outcome into an ack or a nack without
// requeue.
package consumer

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/zeromicro/go-zero/core/logx"

	"trademaker/pkg/exchange"
)

// Handler processes one decoded tick. A nil return acknowledges the
// delivery; any error rejects it without requeue.
type Handler func(ctx context.Context, tick *exchange.Tick) error

// Conf names the broker topology the consumer binds to.
type Conf struct {
	URL         string
	Exchange    string
	QueueName   string
	RoutingKey  string
	QueueLength int
}

// Consumer owns one AMQP connection and channel bound to a durable direct
// exchange with a length-capped queue.
type Consumer struct {
	cfg  Conf
	conn *amqp.Connection
	ch   *amqp.Channel
}

// New constructs an unconnected consumer.
func New(cfg Conf) *Consumer {
	return &Consumer{cfg: cfg}
}

// Connect establishes the connection and declares the exchange, the queue
// (with x-max-length and reject-publish overflow, so newer messages are
// dropped when the queue is saturated) and the binding.
func (c *Consumer) Connect() error {
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("consumer: dial %s: %w", c.cfg.URL, err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("consumer: open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(c.cfg.Exchange, "direct", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("consumer: declare exchange %s: %w", c.cfg.Exchange, err)
	}
	args := amqp.Table{}
	if c.cfg.QueueLength > 0 {
		args["x-max-length"] = int32(c.cfg.QueueLength)
		args["x-overflow"] = "reject-publish"
	}
	if _, err := ch.QueueDeclare(c.cfg.QueueName, true, false, false, false, args); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("consumer: declare queue %s: %w", c.cfg.QueueName, err)
	}
	if err := ch.QueueBind(c.cfg.QueueName, c.cfg.RoutingKey, c.cfg.Exchange, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return fmt.Errorf("consumer: bind queue %s: %w", c.cfg.QueueName, err)
	}

	c.conn = conn
	c.ch = ch
	logx.Infof("consumer: queue %s bound to exchange %s with routing key %s",
		c.cfg.QueueName, c.cfg.Exchange, c.cfg.RoutingKey)
	return nil
}

// Consume drains the queue until the context is cancelled or the channel
// closes. Deliveries are processed strictly in arrival order; the next
// delivery is not touched until the handler returns.
func (c *Consumer) Consume(ctx context.Context, handler Handler) error {
	if c.ch == nil {
		return errors.New("consumer: not connected")
	}
	deliveries, err := c.ch.Consume(c.cfg.QueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consumer: start consuming %s: %w", c.cfg.QueueName, err)
	}
	logx.Infof("consumer: consuming from queue %s", c.cfg.QueueName)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("consumer: delivery channel closed")
			}
			ack, fatal := Dispatch(ctx, delivery.Body, handler)
			if ack {
				if err := delivery.Ack(false); err != nil {
					return fmt.Errorf("consumer: ack: %w", err)
				}
			} else if err := delivery.Nack(false, false); err != nil {
				return fmt.Errorf("consumer: nack: %w", err)
			}
			if fatal != nil {
				return fatal
			}
		}
	}
}

// Dispatch decodes one delivery and runs the handler. ack reports whether
// the delivery should be acknowledged; fatal is non-nil only for failures
// that must stop the drain loop (snapshot I/O). Malformed payloads and
// ordinary handler failures are logged and rejected.
func Dispatch(ctx context.Context, payload []byte, handler Handler) (ack bool, fatal error) {
	tick, err := exchange.ParseTick(payload)
	if err != nil {
		logx.WithContext(ctx).Errorf("consumer: skip delivery: %v", err)
		return false, nil
	}
	if err := handler(ctx, tick); err != nil {
		logx.WithContext(ctx).Errorf("consumer: handler failed venue=%s symbol=%s err=%v",
			tick.Exchange, tick.InstrumentID, err)
		if errors.Is(err, exchange.ErrSnapshotIO) {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// Close tears down the channel and connection.
func (c *Consumer) Close() {
	if c.ch != nil {
		_ = c.ch.Close()
		c.ch = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	logx.Info("consumer: connection closed")
}
