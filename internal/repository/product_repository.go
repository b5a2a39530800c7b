package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wholesale_catalog/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// maxCodeAttempts bounds retries when a generated code collides with one
// written concurrently by another process.
const maxCodeAttempts = 3

// ImageStorer saves the uploaded image under the product code and returns the
// stored filename. It runs inside the create/update transaction, after the
// code is known.
type ImageStorer func(codigo string) (string, error)

type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// productColumns is the single row mapping used for full-row updates.
func productColumns(p model.Product) map[string]any {
	return map[string]any{
		"codigo":      p.Codigo,
		"titulo":      p.Titulo,
		"descripcion": p.Descripcion,
		"precio":      p.Precio,
		"minimo":      p.Minimo,
		"multiplo":    p.Multiplo,
		"stock":       p.Stock,
		"imagen":      p.Imagen,
		"categoria":   p.Categoria,
		"activo":      p.Activo,
	}
}

func validateProduct(p *model.Product) error {
	p.Titulo = strings.TrimSpace(p.Titulo)
	p.Codigo = strings.TrimSpace(p.Codigo)
	if p.Titulo == "" {
		return invalid("titulo", "el título es obligatorio")
	}
	if p.Precio.IsNegative() {
		return invalid("precio", "el precio no puede ser negativo")
	}
	if p.Minimo < 1 {
		return invalid("minimo", "el mínimo debe ser al menos 1")
	}
	if p.Multiplo < 1 {
		return invalid("multiplo", "el múltiplo debe ser al menos 1")
	}
	if p.Stock < 0 {
		return invalid("stock", "el stock no puede ser negativo")
	}
	return nil
}

// ListActive returns the public catalog: stock > 0 and active.
func (r *ProductRepository) ListActive(ctx context.Context) ([]model.Product, error) {
	var list []model.Product
	err := r.db.WithContext(ctx).
		Where("stock > 0 AND activo = ?", true).
		Order("id").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("list active products: %w", err)
	}
	return list, nil
}

// ListForCart returns every active product regardless of stock, so a cart
// can refresh prices and notice items that ran out.
func (r *ProductRepository) ListForCart(ctx context.Context) ([]model.Product, error) {
	var list []model.Product
	if err := r.db.WithContext(ctx).Where("activo = ?", true).Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list cart products: %w", err)
	}
	return list, nil
}

// ListAll returns every product, newest id first.
func (r *ProductRepository) ListAll(ctx context.Context) ([]model.Product, error) {
	var list []model.Product
	if err := r.db.WithContext(ctx).Order("id DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return list, nil
}

// ListPriceSheet returns products with stock ordered for printing. The active
// flag is ignored.
func (r *ProductRepository) ListPriceSheet(ctx context.Context) ([]model.Product, error) {
	var list []model.Product
	err := r.db.WithContext(ctx).
		Where("stock > 0").
		Order("categoria, titulo").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("list price sheet: %w", err)
	}
	return list, nil
}

// ListForExport returns every product in spreadsheet order.
func (r *ProductRepository) ListForExport(ctx context.Context) ([]model.Product, error) {
	var list []model.Product
	if err := r.db.WithContext(ctx).Order("categoria, titulo").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list products for export: %w", err)
	}
	return list, nil
}

// Categories returns the distinct non-empty categories in use.
func (r *ProductRepository) Categories(ctx context.Context) ([]string, error) {
	var cats []string
	err := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("categoria IS NOT NULL AND categoria != ''").
		Distinct("categoria").
		Order("categoria").
		Pluck("categoria", &cats).Error
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

// Stats returns the dashboard counters.
func (r *ProductRepository) Stats(ctx context.Context) (model.CatalogStats, error) {
	var s model.CatalogStats
	db := r.db.WithContext(ctx)
	if err := db.Model(&model.Product{}).Count(&s.TotalProductos).Error; err != nil {
		return s, fmt.Errorf("count products: %w", err)
	}
	if err := db.Model(&model.Product{}).Where("stock > 0").Count(&s.ProductosConStock).Error; err != nil {
		return s, fmt.Errorf("count products with stock: %w", err)
	}
	if err := db.Model(&model.Product{}).Where("stock = 0").Count(&s.ProductosSinStock).Error; err != nil {
		return s, fmt.Errorf("count products without stock: %w", err)
	}
	if err := db.Model(&model.Product{}).Select("COALESCE(SUM(stock), 0)").Scan(&s.StockTotal).Error; err != nil {
		return s, fmt.Errorf("sum stock: %w", err)
	}
	return s, nil
}

// GetByID returns the product or ErrNotFound.
func (r *ProductRepository) GetByID(ctx context.Context, id uint) (*model.Product, error) {
	var p model.Product
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, notFoundOr(err)
	}
	return &p, nil
}

// NextCode previews the code the next create would receive.
func (r *ProductRepository) NextCode(ctx context.Context) string {
	return nextCode(ctx, r.db.WithContext(ctx))
}

// Create validates p, assigns a generated code when p has none, stores the
// image through storeImage (optional) and inserts the product together with
// its New Arrivals marker in one transaction.
func (r *ProductRepository) Create(ctx context.Context, p model.Product, storeImage ImageStorer) (*model.Product, error) {
	p.ID = 0
	p.Normalize()
	if err := validateProduct(&p); err != nil {
		return nil, err
	}

	generated := p.Codigo == ""
	attempts := 1
	if generated {
		attempts = maxCodeAttempts
	}

	var err error
	for i := 0; i < attempts; i++ {
		row := p
		err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if generated {
				row.Codigo = nextCode(ctx, tx)
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			if storeImage != nil {
				name, err := storeImage(row.Codigo)
				if err != nil {
					return fmt.Errorf("store image: %w", err)
				}
				if name != "" {
					row.Imagen = name
					if err := tx.Model(&model.Product{}).Where("id = ?", row.ID).Update("imagen", name).Error; err != nil {
						return err
					}
				}
			}
			marker := model.NewProductMarker{ProductoID: row.ID, FechaAgregado: time.Now()}
			return tx.Create(&marker).Error
		})
		if err == nil {
			return &row, nil
		}
		if !generated || !errorsLikeUnique(err) {
			break
		}
	}
	if errorsLikeUnique(err) {
		if generated {
			return nil, fmt.Errorf("create product: no free code after %d attempts: %w", attempts, err)
		}
		return nil, invalid("codigo", fmt.Sprintf("el código %q ya existe", p.Codigo))
	}
	return nil, fmt.Errorf("create product: %w", err)
}

// Update replaces every mutable field of product id. An empty code keeps the
// current one; the image changes only when storeImage yields a filename. The
// previous row is returned so the caller can drop a superseded image file.
func (r *ProductRepository) Update(ctx context.Context, id uint, p *model.Product, storeImage ImageStorer) (*model.Product, error) {
	p.Normalize()
	if err := validateProduct(p); err != nil {
		return nil, err
	}

	var prev model.Product
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&prev, id).Error; err != nil {
			return notFoundOr(err)
		}
		p.ID = id
		if p.Codigo == "" {
			p.Codigo = prev.Codigo
		}
		p.Imagen = prev.Imagen
		if storeImage != nil {
			name, err := storeImage(p.Codigo)
			if err != nil {
				return fmt.Errorf("store image: %w", err)
			}
			if name != "" {
				p.Imagen = name
			}
		}
		return tx.Model(&model.Product{}).Where("id = ?", id).Updates(productColumns(*p)).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		if errorsLikeUnique(err) {
			return nil, invalid("codigo", fmt.Sprintf("el código %q ya existe", p.Codigo))
		}
		return nil, fmt.Errorf("update product %d: %w", id, err)
	}
	return &prev, nil
}

// UpdatePrice sets the price of one product.
func (r *ProductRepository) UpdatePrice(ctx context.Context, id uint, price decimal.Decimal) error {
	if price.IsNegative() {
		return invalid("precio", "el precio no puede ser negativo")
	}
	res := r.db.WithContext(ctx).Model(&model.Product{}).Where("id = ?", id).Update("precio", price)
	if res.Error != nil {
		return fmt.Errorf("update price %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ToggleActive sets the administrative visibility flag.
func (r *ProductRepository) ToggleActive(ctx context.Context, id uint, active bool) error {
	res := r.db.WithContext(ctx).Model(&model.Product{}).Where("id = ?", id).Update("activo", active)
	if res.Error != nil {
		return fmt.Errorf("toggle active %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the product and its New Arrivals markers in one transaction
// and returns the deleted row; removing the image file is up to the caller.
func (r *ProductRepository) Delete(ctx context.Context, id uint) (*model.Product, error) {
	var prev model.Product
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&prev, id).Error; err != nil {
			return notFoundOr(err)
		}
		if err := tx.Where("producto_id = ?", id).Delete(&model.NewProductMarker{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Product{}, id).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("delete product %d: %w", id, err)
	}
	return &prev, nil
}

// ListNew returns marked products, most recently marked first. The inner join
// hides markers whose product no longer exists.
func (r *ProductRepository) ListNew(ctx context.Context) ([]model.NewProduct, error) {
	var list []model.NewProduct
	err := r.db.WithContext(ctx).
		Table("producto AS p").
		Select("p.*, pn.fecha_agregado").
		Joins("INNER JOIN producto_nuevo pn ON p.id = pn.producto_id").
		Order("pn.fecha_agregado DESC").
		Scan(&list).Error
	if err != nil {
		return nil, fmt.Errorf("list new products: %w", err)
	}
	return list, nil
}

// NewImages returns code and image of every marked product that has one.
func (r *ProductRepository) NewImages(ctx context.Context) ([]model.ImageRef, error) {
	var refs []model.ImageRef
	err := r.db.WithContext(ctx).
		Table("producto AS p").
		Select("p.codigo, p.imagen").
		Joins("INNER JOIN producto_nuevo pn ON p.id = pn.producto_id").
		Where("p.imagen IS NOT NULL AND p.imagen != ''").
		Scan(&refs).Error
	if err != nil {
		return nil, fmt.Errorf("list new product images: %w", err)
	}
	return refs, nil
}

// DismissNew removes a product from the New Arrivals list.
func (r *ProductRepository) DismissNew(ctx context.Context, productID uint) error {
	res := r.db.WithContext(ctx).Where("producto_id = ?", productID).Delete(&model.NewProductMarker{})
	if res.Error != nil {
		return fmt.Errorf("dismiss new product %d: %w", productID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceAll wipes the catalog (and its markers) and loads products in one
// transaction. Used by the bulk-load utility.
func (r *ProductRepository) ReplaceAll(ctx context.Context, products []model.Product) (int, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM producto_nuevo").Error; err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM producto").Error; err != nil {
			return err
		}
		if len(products) == 0 {
			return nil
		}
		rows := make([]model.Product, len(products))
		for i, p := range products {
			p.ID = 0
			p.ApplyDefaults()
			rows[i] = p
		}
		return tx.CreateInBatches(rows, 200).Error
	})
	if err != nil {
		return 0, fmt.Errorf("replace catalog: %w", err)
	}
	return len(products), nil
}
