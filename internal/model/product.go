package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog row. Codigo is the human code (A0001) and doubles as the
// image filename stem; ID is assigned by the engine.
type Product struct {
	ID          uint            `gorm:"column:id;primaryKey" json:"id"`
	Codigo      string          `gorm:"column:codigo" json:"codigo"`
	Titulo      string          `gorm:"column:titulo" json:"titulo"`
	Descripcion string          `gorm:"column:descripcion" json:"descripcion"`
	Precio      decimal.Decimal `gorm:"column:precio" json:"precio"`
	Minimo      int             `gorm:"column:minimo" json:"minimo"`
	Multiplo    int             `gorm:"column:multiplo" json:"multiplo"`
	Stock       int             `gorm:"column:stock" json:"stock"`
	Imagen      string          `gorm:"column:imagen" json:"imagen"`
	Categoria   string          `gorm:"column:categoria" json:"categoria"`
	Activo      bool            `gorm:"column:activo" json:"activo"`
}

func (Product) TableName() string { return "producto" }

// Visible reports whether the product belongs on the public catalog.
func (p Product) Visible() bool { return p.Stock > 0 && p.Activo }

// ApplyDefaults fills the values a missing field takes when legacy rows are
// read or the lenient bulk loader runs: one unit minimum and multiple,
// normalized category. Validated writes use Normalize instead, so an explicit
// zero is rejected rather than rewritten.
func (p *Product) ApplyDefaults() {
	if p.Minimo == 0 {
		p.Minimo = 1
	}
	if p.Multiplo == 0 {
		p.Multiplo = 1
	}
	p.Normalize()
}

// Normalize canonicalizes the free-text fields without touching quantities.
func (p *Product) Normalize() {
	p.Categoria = NormalizeCategory(p.Categoria)
}

// NewProductMarker flags a product for the New Arrivals admin view until dismissed.
type NewProductMarker struct {
	ID            uint      `gorm:"column:id;primaryKey" json:"id"`
	ProductoID    uint      `gorm:"column:producto_id" json:"producto_id"`
	FechaAgregado time.Time `gorm:"column:fecha_agregado" json:"fecha_agregado"`
}

func (NewProductMarker) TableName() string { return "producto_nuevo" }

// NewProduct is a product row joined with its marker date.
type NewProduct struct {
	Product
	FechaAgregado time.Time `gorm:"column:fecha_agregado" json:"fecha_agregado"`
}

// ImageRef names an image file and the code it should be exported as.
type ImageRef struct {
	Codigo string `gorm:"column:codigo"`
	Imagen string `gorm:"column:imagen"`
}

// CatalogStats are the dashboard counters.
type CatalogStats struct {
	TotalProductos    int64 `json:"total_productos"`
	ProductosConStock int64 `json:"productos_con_stock"`
	ProductosSinStock int64 `json:"productos_sin_stock"`
	StockTotal        int64 `json:"stock_total"`
}
