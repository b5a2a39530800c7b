package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wholesale_catalog/internal/checkout"
	"wholesale_catalog/internal/model"
	"wholesale_catalog/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// Notification is what the notifier derives from an order event.
type Notification struct {
	OrderID uint
	Message string
	Link    string
}

// Consumer reads order events from Kafka and hands each one, rendered as the
// WhatsApp summary, to Notify.
type Consumer struct {
	r *kafka.Reader

	storeName string
	number    string
	// Notify defaults to a structured log line.
	Notify func(ctx context.Context, n Notification) error

	maxAttempts int
	backoff     time.Duration
}

func NewConsumer(brokers []string, topic, groupID, storeName, whatsappNumber string) *Consumer {
	return &Consumer{
		r: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1e3,
			MaxBytes: 1e6,
		}),
		storeName:   storeName,
		number:      whatsappNumber,
		Notify:      logNotification,
		maxAttempts: 5,
		backoff:     time.Second,
	}
}

func (c *Consumer) Close() error { return c.r.Close() }

// Run consumes until ctx is cancelled. Offsets are committed only after
// Notify succeeds. A notification that still fails after the retries stops
// Run without committing, so the message is redelivered from the group's
// committed offset on the next start.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error(ctx, "order consumer fetch failed", "error", err)
			return err
		}

		n, err := c.render(m.Value)
		if err != nil {
			logger.Warn(ctx, "order consumer skipping bad message", "offset", m.Offset, "error", err)
		} else if err := c.deliver(ctx, n); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error(ctx, "order notification failed, stopping before commit",
				"order_id", n.OrderID, "offset", m.Offset, "error", err)
			return err
		}
		if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			logger.Warn(ctx, "order consumer commit failed", "offset", m.Offset, "error", err)
		}
	}
}

// deliver calls Notify up to maxAttempts times, doubling the pause between
// attempts.
func (c *Consumer) deliver(ctx context.Context, n Notification) error {
	attempts := c.maxAttempts
	if attempts < 1 {
		attempts = 1
	}
	wait := c.backoff
	var err error
	for i := 1; i <= attempts; i++ {
		if err = c.Notify(ctx, n); err == nil {
			return nil
		}
		if i == attempts {
			break
		}
		logger.Warn(ctx, "order notification failed, retrying", "order_id", n.OrderID, "attempt", i, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	return fmt.Errorf("notify order %d after %d attempts: %w", n.OrderID, attempts, err)
}

func (c *Consumer) render(value []byte) (Notification, error) {
	var ev OrderEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		return Notification{}, fmt.Errorf("unmarshal: %w", err)
	}
	if err := ev.Validate(); err != nil {
		return Notification{}, err
	}
	return BuildNotification(ev, c.storeName, c.number), nil
}

// BuildNotification renders ev as the checkout message. Line items that do
// not decode leave the message with the header and total only.
func BuildNotification(ev OrderEvent, storeName, number string) Notification {
	var items []model.LineItem
	_ = json.Unmarshal([]byte(ev.Productos), &items)
	text := checkout.BuildMessage(storeName, items, ev.Total)
	return Notification{
		OrderID: ev.OrderID,
		Message: text,
		Link:    checkout.WhatsAppURL(number, text),
	}
}

func logNotification(ctx context.Context, n Notification) error {
	logger.Info(ctx, "new wholesale order", "order_id", n.OrderID, "message", n.Message, "link", n.Link)
	return nil
}
