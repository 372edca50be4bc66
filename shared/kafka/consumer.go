package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
)

// PaymentConfirmed is the payload the checkout service publishes once an
// order's payment clears.
type PaymentConfirmed struct {
	OrderID string `json:"order_id"`
}

// PaymentHandlerFunc applies a confirmed payment. A returned error leaves the
// message uncommitted so it is redelivered after a restart or rebalance,
// unless the handler marks it with Permanent.
type PaymentHandlerFunc func(ctx context.Context, orderID string) error

// PermanentError marks a handler failure that redelivery cannot fix. The
// consumer logs it and commits the message.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so the consumer skips the message instead of retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

type PaymentConsumer struct {
	group  sarama.ConsumerGroup
	topic  string
	handle PaymentHandlerFunc
	logger *slog.Logger
}

func NewPaymentConsumer(brokers []string, groupID, topic string, handle PaymentHandlerFunc, logger *slog.Logger) (*PaymentConsumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Consumer.Return.Errors = true
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}

	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("start kafka consumer group: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentConsumer{group: group, topic: topic, handle: handle, logger: logger}, nil
}

// Run consumes until ctx is cancelled.
func (c *PaymentConsumer) Run(ctx context.Context) {
	go func() {
		for err := range c.group.Errors() {
			c.logger.Error("kafka consumer error", "topic", c.topic, "error", err)
		}
	}()
	for {
		if err := c.group.Consume(ctx, []string{c.topic}, c); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return
			}
			c.logger.Error("kafka consume failed", "topic", c.topic, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (c *PaymentConsumer) Close() error {
	return c.group.Close()
}

func (c *PaymentConsumer) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (c *PaymentConsumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (c *PaymentConsumer) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := c.process(sess.Context(), msg.Value); err != nil {
				c.logger.Error("failed to apply payment event",
					"partition", msg.Partition, "offset", msg.Offset, "error", err)
				return err
			}
			sess.MarkMessage(msg, "")
		case <-sess.Context().Done():
			return nil
		}
	}
}

// process applies one message. Undecodable payloads and permanent handler
// failures are logged and skipped.
func (c *PaymentConsumer) process(ctx context.Context, value []byte) error {
	var ev PaymentConfirmed
	if err := json.Unmarshal(value, &ev); err != nil || ev.OrderID == "" {
		c.logger.Warn("skipping malformed payment event", "payload", string(value))
		return nil
	}
	err := c.handle(ctx, ev.OrderID)
	var perm *PermanentError
	if errors.As(err, &perm) {
		c.logger.Warn("skipping payment event", "order_id", ev.OrderID, "error", perm.Err)
		return nil
	}
	return err
}
