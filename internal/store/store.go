// Package store opens the SQLite catalog database and keeps its schema current.
package store

import (
	"context"
	"fmt"
	"time"

	"wholesale_catalog/internal/model"
	"wholesale_catalog/pkg/logger"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const createProductTable = `
CREATE TABLE IF NOT EXISTS producto (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	codigo TEXT NOT NULL,
	titulo TEXT NOT NULL,
	descripcion TEXT,
	precio REAL NOT NULL DEFAULT 0,
	minimo INTEGER NOT NULL DEFAULT 1,
	multiplo INTEGER NOT NULL DEFAULT 1,
	stock INTEGER NOT NULL DEFAULT 0,
	imagen TEXT,
	categoria TEXT,
	activo INTEGER NOT NULL DEFAULT 1
)`

const createMarkerTable = `
CREATE TABLE IF NOT EXISTS producto_nuevo (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	producto_id INTEGER NOT NULL,
	fecha_agregado TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (producto_id) REFERENCES producto(id)
)`

// CreateOrderTable is the current pedido layout. Older databases lack the
// envio_* columns; see EnsureOrderSchema.
const CreateOrderTable = `
CREATE TABLE IF NOT EXISTS pedido (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	fecha TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	cliente_nombre TEXT NOT NULL,
	cliente_cuit TEXT,
	cliente_telefono TEXT,
	cliente_email TEXT,
	cliente_direccion TEXT,
	metodo_entrega TEXT,
	envio_direccion TEXT,
	envio_localidad TEXT,
	envio_provincia TEXT,
	envio_cp TEXT,
	envio_nombre_destinatario TEXT,
	envio_referencias TEXT,
	productos TEXT NOT NULL,
	total REAL NOT NULL,
	estado TEXT DEFAULT 'pendiente'
)`

// OrderShippingColumn is the newest pedido column; its absence means the table
// predates the shipping fields.
const OrderShippingColumn = "envio_direccion"

// additive column migrations for databases created by older versions.
var productColumns = []struct{ name, ddl string }{
	{"categoria", "ALTER TABLE producto ADD COLUMN categoria TEXT"},
	{"activo", "ALTER TABLE producto ADD COLUMN activo INTEGER NOT NULL DEFAULT 1"},
}

// Open connects to the SQLite file. A single open connection keeps writers
// serialized inside the process.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)
	if err := db.Exec("PRAGMA busy_timeout = 5000").Error; err != nil {
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	return db, nil
}

// Migrate creates missing tables and adds missing columns. It is idempotent.
func Migrate(ctx context.Context, db *gorm.DB) error {
	tx := db.WithContext(ctx)
	for _, ddl := range []string{createProductTable, createMarkerTable, CreateOrderTable} {
		if err := tx.Exec(ddl).Error; err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}

	m := tx.Migrator()
	for _, col := range productColumns {
		if m.HasColumn(&model.Product{}, col.name) {
			continue
		}
		if err := tx.Exec(col.ddl).Error; err != nil {
			return fmt.Errorf("add column producto.%s: %w", col.name, err)
		}
		logger.Info(ctx, "added column", "table", "producto", "column", col.name)
	}

	// Legacy data may carry duplicate codes; the index is then skipped and code
	// generation relies on the in-process serialization alone.
	if err := tx.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_producto_codigo ON producto(codigo)").Error; err != nil {
		logger.Warn(ctx, "unique index on producto.codigo not created", "error", err)
	}
	if err := tx.Exec("CREATE INDEX IF NOT EXISTS idx_producto_nuevo_producto ON producto_nuevo(producto_id)").Error; err != nil {
		return fmt.Errorf("create marker index: %w", err)
	}
	return nil
}

// EnsureOrderSchema recreates pedido when it predates the shipping columns.
// The upgrade is destructive: historical orders in an old-layout table are dropped.
// The layout check and the rebuild share one transaction, so a table that
// already has the columns is never dropped.
func EnsureOrderSchema(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m := tx.Migrator()
		if m.HasTable(&model.Order{}) && m.HasColumn(&model.Order{}, OrderShippingColumn) {
			return nil
		}
		logger.Info(ctx, "recreating pedido table with shipping columns")
		if err := tx.Exec("DROP TABLE IF EXISTS pedido").Error; err != nil {
			return err
		}
		return tx.Exec(CreateOrderTable).Error
	})
}
