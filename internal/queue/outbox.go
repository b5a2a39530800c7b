package queue

import (
	"context"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// outboxMaxLen caps the stream so an absent relay cannot grow it unbounded.
const outboxMaxLen = 100000

// Outbox appends order events to a Redis stream. The Relay moves them on to
// Kafka, so a broker outage never fails a checkout.
type Outbox struct {
	rdb    *rd.Client
	stream string
}

func NewOutbox(rdb *rd.Client, stream string) *Outbox {
	return &Outbox{rdb: rdb, stream: stream}
}

// Append adds ev to the stream and returns the entry id.
func (o *Outbox) Append(ctx context.Context, ev OrderEvent) (string, error) {
	if err := ev.Validate(); err != nil {
		return "", err
	}
	return o.rdb.XAdd(ctx, &rd.XAddArgs{
		Stream: o.stream,
		MaxLen: outboxMaxLen,
		Approx: true,
		Values: streamValues(ev),
	}).Result()
}

func streamValues(ev OrderEvent) map[string]any {
	return map[string]any{
		"order_id":       ev.Key(),
		"nombre":         ev.Nombre,
		"telefono":       ev.Telefono,
		"metodo_entrega": ev.MetodoEntrega,
		"total":          ev.Total.String(),
		"productos":      ev.Productos,
		"created_at":     ev.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
