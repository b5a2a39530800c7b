package queue

import (
	"fmt"
	"strconv"
	"time"

	"wholesale_catalog/internal/model"

	"github.com/shopspring/decimal"
)

// OrderEvent is published once an order has been stored.
type OrderEvent struct {
	OrderID       uint            `json:"order_id"`
	Nombre        string          `json:"nombre"`
	Telefono      string          `json:"telefono"`
	MetodoEntrega string          `json:"metodo_entrega"`
	Total         decimal.Decimal `json:"total"`
	Productos     string          `json:"productos"`
	CreatedAt     time.Time       `json:"created_at"`
}

// NewOrderEvent projects a stored order onto the event.
func NewOrderEvent(o *model.Order) OrderEvent {
	return OrderEvent{
		OrderID:       o.ID,
		Nombre:        o.ClienteNombre,
		Telefono:      o.ClienteTelefono,
		MetodoEntrega: o.MetodoEntrega,
		Total:         o.Total,
		Productos:     o.Productos,
		CreatedAt:     o.Fecha,
	}
}

// Key is the Kafka partition key: events of one order stay ordered.
func (e OrderEvent) Key() string {
	return strconv.FormatUint(uint64(e.OrderID), 10)
}

// Validate rejects events a consumer could not act on.
func (e OrderEvent) Validate() error {
	if e.OrderID == 0 {
		return fmt.Errorf("order_id is required")
	}
	if e.Nombre == "" {
		return fmt.Errorf("nombre is required")
	}
	if e.Total.IsNegative() {
		return fmt.Errorf("total must be >= 0")
	}
	return nil
}
