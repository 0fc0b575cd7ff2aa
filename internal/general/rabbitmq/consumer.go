package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// handlerTimeout bounds a single delivery handler.
const handlerTimeout = 30 * time.Second

// ErrPoison marks a delivery that can never be processed; it is dropped instead of requeued.
var ErrPoison = errors.New("rabbitmq: poison message")

func (client *Client) newConsumerChannel(prefetch int) (*amqp.Channel, error) {
	client.mu.RLock()
	conn := client.conn
	client.mu.RUnlock()

	if conn == nil || conn.IsClosed() {
		return nil, ErrNotConnected
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: open channel: %w", err)
	}
	if prefetch < 1 {
		prefetch = 1
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("rabbitmq: set QoS (prefetch=%d): %w", prefetch, err)
	}
	return ch, nil
}

// Consume delivers messages from queue to handler with manual acks until ctx ends or the
// channel closes. A handler error wrapping ErrPoison drops the message; any other error
// requeues it once (redelivered messages that fail again are dropped).
func (client *Client) Consume(
	ctx context.Context,
	queue string,
	consumerTag string,
	prefetch int,
	handler func(context.Context, amqp.Delivery) error,
) error {
	ch, err := client.newConsumerChannel(prefetch)
	if err != nil {
		return err
	}
	defer ch.Close()

	deliveries, err := ch.Consume(queue, consumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmq: consume(%s): %w", queue, err)
	}
	chClosed := ch.NotifyClose(make(chan *amqp.Error, 1))

	for {
		select {
		case <-ctx.Done():
			if consumerTag != "" {
				_ = ch.Cancel(consumerTag, false)
			}
			return nil

		case cerr := <-chClosed:
			if cerr != nil {
				return fmt.Errorf("rabbitmq: channel closed while consuming %s: %w", queue, cerr)
			}
			return nil

		case d, ok := <-deliveries:
			if !ok {
				return nil
			}

			hCtx, cancel := context.WithTimeout(ctx, handlerTimeout)
			err := handler(hCtx, d)
			cancel()

			switch settle(err, d.Redelivered) {
			case settleAck:
				_ = d.Ack(false)
			case settleDrop:
				_ = d.Nack(false, false)
			case settleRequeue:
				_ = d.Nack(false, true)
			}
		}
	}
}

// disposition is how a handled delivery is settled with the broker.
type disposition int

const (
	settleAck disposition = iota
	settleDrop
	settleRequeue
)

// settle maps a handler result to a disposition. A message gets one requeue; a second
// failure after redelivery drops it.
func settle(err error, redelivered bool) disposition {
	switch {
	case err == nil:
		return settleAck
	case errors.Is(err, ErrPoison) || redelivered:
		return settleDrop
	default:
		return settleRequeue
	}
}

const (
	initialConsumeBackoff = time.Second
	// a Consume run at least this long counts as healthy and resets the backoff
	healthyConsumeRun = maxBackoff
)

// nextBackoff returns the wait before restarting Consume, given the previous wait and
// how long the last run stayed up.
func nextBackoff(prev, ran time.Duration) time.Duration {
	if prev <= 0 || ran >= healthyConsumeRun {
		return initialConsumeBackoff
	}
	return min(prev*2, maxBackoff)
}

// ConsumeLoop keeps Consume running across reconnects until ctx ends.
func (client *Client) ConsumeLoop(
	ctx context.Context,
	queue string,
	consumerTag string,
	prefetch int,
	handler func(context.Context, amqp.Delivery) error,
) {
	var backoff time.Duration
	for ctx.Err() == nil {
		started := time.Now()
		err := client.Consume(ctx, queue, consumerTag, prefetch, handler)
		if ctx.Err() != nil {
			return
		}
		backoff = nextBackoff(backoff, time.Since(started))
		if err != nil {
			client.logger.Warn(client.logCtx, "rabbitmq_consume_restart", "Consumer stopped; restarting", err,
				map[string]any{"queue": queue, "backoff_ms": backoff.Milliseconds()})
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}
