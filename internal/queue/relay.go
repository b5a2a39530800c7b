package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"wholesale_catalog/pkg/logger"

	rd "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// Publisher is the Kafka side of the relay.
type Publisher interface {
	Publish(ctx context.Context, ev OrderEvent) error
}

// Relay forwards order events from the Redis stream to Kafka. An entry is
// ACKed only after Kafka accepted it; on failure it stays pending and is
// retried on the next pass.
type Relay struct {
	rdb       *rd.Client
	publisher Publisher

	stream   string
	group    string
	consumer string
}

func NewRelay(rdb *rd.Client, publisher Publisher, stream, group, consumer string) *Relay {
	return &Relay{
		rdb:       rdb,
		publisher: publisher,
		stream:    stream,
		group:     group,
		consumer:  consumer,
	}
}

func (r *Relay) Run(ctx context.Context) {
	if err := r.ensureGroup(ctx); err != nil {
		logger.Error(ctx, "relay ensure group failed", "stream", r.stream, "group", r.group, "error", err)
		return
	}
	logger.Info(ctx, "order event relay started", "stream", r.stream, "group", r.group)

	for {
		if ctx.Err() != nil {
			return
		}

		// Drain this consumer's pending entries before reading new ones.
		msgs, err := r.readGroup(ctx, "0", 0)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			logger.Warn(ctx, "relay read pending failed", "error", err)
			time.Sleep(300 * time.Millisecond)
			continue
		}
		if len(msgs) == 0 {
			msgs, err = r.readGroup(ctx, ">", 2*time.Second)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, context.Canceled) {
					return
				}
				logger.Warn(ctx, "relay read new failed", "error", err)
				time.Sleep(300 * time.Millisecond)
				continue
			}
		}

		for _, xm := range msgs {
			if err := r.processOne(ctx, xm); err != nil {
				logger.Warn(ctx, "relay publish failed, will retry", "entry_id", xm.ID, "error", err)
				time.Sleep(200 * time.Millisecond)
				break
			}
		}
	}
}

func (r *Relay) ensureGroup(ctx context.Context) error {
	err := r.rdb.XGroupCreateMkStream(ctx, r.stream, r.group, "0").Err()
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "BUSYGROUP") {
		return nil
	}
	return err
}

func (r *Relay) readGroup(ctx context.Context, streamID string, block time.Duration) ([]rd.XMessage, error) {
	streams, err := r.rdb.XReadGroup(ctx, &rd.XReadGroupArgs{
		Group:    r.group,
		Consumer: r.consumer,
		Streams:  []string{r.stream, streamID},
		Count:    16,
		Block:    block,
		NoAck:    false,
	}).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]rd.XMessage, 0, 16)
	for _, s := range streams {
		out = append(out, s.Messages...)
	}
	return out, nil
}

func (r *Relay) processOne(ctx context.Context, xm rd.XMessage) error {
	ev, err := parseOrderEvent(xm.Values)
	if err != nil {
		// A malformed entry would block the stream forever; drop it.
		logger.Warn(ctx, "relay dropping malformed entry", "entry_id", xm.ID, "error", err)
		if ackErr := r.ackAndDelete(ctx, xm.ID); ackErr != nil {
			return fmt.Errorf("parse failed: %v, ack failed: %w", err, ackErr)
		}
		return nil
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.publisher.Publish(pubCtx, ev); err != nil {
		return err
	}
	return r.ackAndDelete(ctx, xm.ID)
}

func (r *Relay) ackAndDelete(ctx context.Context, id string) error {
	pipe := r.rdb.TxPipeline()
	pipe.XAck(ctx, r.stream, r.group, id)
	pipe.XDel(ctx, r.stream, id)
	_, err := pipe.Exec(ctx)
	return err
}

func parseOrderEvent(values map[string]any) (OrderEvent, error) {
	idStr, err := getStreamString(values, "order_id")
	if err != nil {
		return OrderEvent{}, err
	}
	nombre, err := getStreamString(values, "nombre")
	if err != nil {
		return OrderEvent{}, err
	}
	totalStr, err := getStreamString(values, "total")
	if err != nil {
		return OrderEvent{}, err
	}
	productos, err := getStreamString(values, "productos")
	if err != nil {
		return OrderEvent{}, err
	}
	// optional fields
	telefono, _ := getStreamString(values, "telefono")
	metodo, _ := getStreamString(values, "metodo_entrega")
	createdStr, _ := getStreamString(values, "created_at")

	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		return OrderEvent{}, fmt.Errorf("invalid order_id %q", idStr)
	}
	total, err := decimal.NewFromString(totalStr)
	if err != nil {
		return OrderEvent{}, fmt.Errorf("invalid total %q", totalStr)
	}
	var created time.Time
	if createdStr != "" {
		if created, err = time.Parse(time.RFC3339Nano, createdStr); err != nil {
			return OrderEvent{}, fmt.Errorf("invalid created_at %q", createdStr)
		}
	}

	ev := OrderEvent{
		OrderID:       uint(id),
		Nombre:        nombre,
		Telefono:      telefono,
		MetodoEntrega: metodo,
		Total:         total,
		Productos:     productos,
		CreatedAt:     created,
	}
	if err := ev.Validate(); err != nil {
		return OrderEvent{}, err
	}
	return ev, nil
}

func getStreamString(values map[string]any, key string) (string, error) {
	v, ok := values[key]
	if !ok {
		return "", fmt.Errorf("missing field %s", key)
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	case int:
		return strconv.Itoa(x), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("unsupported field type %s: %T", key, v)
	}
}
