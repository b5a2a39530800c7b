package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle of a wholesale order.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pendiente"
	OrderProcessing OrderStatus = "procesando"
	OrderCompleted  OrderStatus = "completado"
	OrderCancelled  OrderStatus = "cancelado"
)

// OrderStatuses lists the accepted values in display order.
var OrderStatuses = []OrderStatus{OrderPending, OrderProcessing, OrderCompleted, OrderCancelled}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderProcessing, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

// Order is a checkout submission. Productos holds the serialized line items
// as sent by the cart; the repository never looks inside.
type Order struct {
	ID    uint      `gorm:"column:id;primaryKey" json:"id"`
	Fecha time.Time `gorm:"column:fecha" json:"fecha"`

	ClienteNombre    string `gorm:"column:cliente_nombre" json:"nombre"`
	ClienteCUIT      string `gorm:"column:cliente_cuit" json:"cuit"`
	ClienteTelefono  string `gorm:"column:cliente_telefono" json:"telefono"`
	ClienteEmail     string `gorm:"column:cliente_email" json:"email"`
	ClienteDireccion string `gorm:"column:cliente_direccion" json:"direccion"`
	MetodoEntrega    string `gorm:"column:metodo_entrega" json:"metodo_entrega"`

	// Shipping sub-address, only filled for delivery orders.
	EnvioDireccion          string `gorm:"column:envio_direccion" json:"envio_direccion"`
	EnvioLocalidad          string `gorm:"column:envio_localidad" json:"envio_localidad"`
	EnvioProvincia          string `gorm:"column:envio_provincia" json:"envio_provincia"`
	EnvioCP                 string `gorm:"column:envio_cp" json:"envio_cp"`
	EnvioNombreDestinatario string `gorm:"column:envio_nombre_destinatario" json:"envio_nombre_destinatario"`
	EnvioReferencias        string `gorm:"column:envio_referencias" json:"envio_referencias"`

	Productos string          `gorm:"column:productos" json:"productos"`
	Total     decimal.Decimal `gorm:"column:total" json:"total"`
	Estado    OrderStatus     `gorm:"column:estado" json:"estado"`
}

func (Order) TableName() string { return "pedido" }

// LineItem is one cart entry as rendered in the checkout message.
type LineItem struct {
	Codigo   string          `json:"codigo"`
	Titulo   string          `json:"titulo"`
	Cantidad int             `json:"cantidad"`
	Precio   decimal.Decimal `json:"precio"`
}
