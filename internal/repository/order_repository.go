package repository

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"wholesale_catalog/internal/model"
	"wholesale_catalog/internal/store"

	"gorm.io/gorm"
)

type OrderRepository struct {
	db *gorm.DB

	// schemaMu guards schemaChecked, which is set once the pedido layout has
	// been verified on the first insert of the process.
	schemaMu      sync.Mutex
	schemaChecked bool
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func validateOrder(o *model.Order) error {
	o.ClienteNombre = strings.TrimSpace(o.ClienteNombre)
	if o.ClienteNombre == "" {
		return invalid("nombre", "el nombre del cliente es obligatorio")
	}
	if strings.TrimSpace(o.Productos) == "" {
		return invalid("productos", "el pedido no tiene productos")
	}
	if o.Total.IsNegative() {
		return invalid("total", "el total no puede ser negativo")
	}
	if o.Estado == "" {
		o.Estado = model.OrderPending
	}
	if !o.Estado.Valid() {
		return invalid("estado", "estado inválido")
	}
	return nil
}

// Create stores a checkout submission. The first call upgrades an old-layout
// pedido table (destructively) before inserting.
func (r *OrderRepository) Create(ctx context.Context, o *model.Order) error {
	if err := validateOrder(o); err != nil {
		return err
	}
	if o.Fecha.IsZero() {
		o.Fecha = time.Now()
	}
	if err := r.ensureSchema(ctx); err != nil {
		return err
	}
	o.ID = 0
	if err := r.db.WithContext(ctx).Create(o).Error; err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (r *OrderRepository) ensureSchema(ctx context.Context) error {
	r.schemaMu.Lock()
	defer r.schemaMu.Unlock()
	if r.schemaChecked {
		return nil
	}
	if err := store.EnsureOrderSchema(ctx, r.db); err != nil {
		return fmt.Errorf("ensure order schema: %w", err)
	}
	r.schemaChecked = true
	return nil
}

// List returns every order, newest first.
func (r *OrderRepository) List(ctx context.Context) ([]model.Order, error) {
	var list []model.Order
	if err := r.db.WithContext(ctx).Order("fecha DESC").Order("id DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return list, nil
}

// GetByID returns the order or ErrNotFound.
func (r *OrderRepository) GetByID(ctx context.Context, id uint) (*model.Order, error) {
	var o model.Order
	if err := r.db.WithContext(ctx).First(&o, id).Error; err != nil {
		return nil, notFoundOr(err)
	}
	return &o, nil
}

// UpdateStatus moves an order to status. Values outside the enum are a
// ValidationError; an unknown id is ErrNotFound.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id uint, status model.OrderStatus) error {
	if !status.Valid() {
		return invalid("estado", "estado inválido")
	}
	res := r.db.WithContext(ctx).Model(&model.Order{}).Where("id = ?", id).Update("estado", status)
	if res.Error != nil {
		return fmt.Errorf("update order %d status: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAll clears the order table and returns how many rows went away.
func (r *OrderRepository) DeleteAll(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Exec("DELETE FROM pedido")
	if res.Error != nil {
		return 0, fmt.Errorf("delete orders: %w", res.Error)
	}
	return res.RowsAffected, nil
}
