package repository

import (
	"context"
	"errors"
	"fmt"

	"wholesale_catalog/internal/model"
	"wholesale_catalog/pkg/logger"

	"gorm.io/gorm"
)

const importSavepoint = "import_row"

// ImportRow is one parsed spreadsheet row. ID is zero when the cell was blank.
// Err carries a parse failure; such rows are reported, never applied.
type ImportRow struct {
	Line    int
	ID      uint
	Product model.Product
	Err     error
}

// RowError records why a spreadsheet row was not applied.
type RowError struct {
	Fila  int    `json:"fila"`
	Error string `json:"error"`
}

// ImportResult summarizes a spreadsheet import.
type ImportResult struct {
	Updated int        `json:"productos_actualizados"`
	Created int        `json:"productos_creados"`
	Errors  []RowError `json:"errores"`
}

func (r ImportResult) Failed() int { return len(r.Errors) }

// ImportRows upserts rows in a single transaction. Each row runs under its own
// savepoint so a failing row is rolled back alone and the rest still commit.
// Resolution: existing id -> update; unknown id -> insert with that id;
// no id -> match by codigo, update on hit, insert on miss.
func (r *ProductRepository) ImportRows(ctx context.Context, rows []ImportRow) (ImportResult, error) {
	res := ImportResult{Errors: []RowError{}}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, row := range rows {
			if row.Err != nil {
				res.Errors = append(res.Errors, RowError{Fila: row.Line, Error: row.Err.Error()})
				continue
			}
			if err := tx.SavePoint(importSavepoint).Error; err != nil {
				return fmt.Errorf("savepoint: %w", err)
			}
			created, err := applyImportRow(ctx, tx, row)
			if err != nil {
				if rbErr := tx.RollbackTo(importSavepoint).Error; rbErr != nil {
					logger.Error(ctx, "import row rollback failed", "fila", row.Line, "error", rbErr)
					return fmt.Errorf("rollback row %d: %w", row.Line, rbErr)
				}
				res.Errors = append(res.Errors, RowError{Fila: row.Line, Error: rowMessage(err)})
			}
			// gorm has no release helper; sqlite keeps the savepoint open after
			// ROLLBACK TO until it is released.
			if relErr := tx.Exec("RELEASE " + importSavepoint).Error; relErr != nil {
				return fmt.Errorf("release savepoint: %w", relErr)
			}
			if err != nil {
				continue
			}
			if created {
				res.Created++
			} else {
				res.Updated++
			}
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, fmt.Errorf("import products: %w", err)
	}
	if len(res.Errors) > 0 {
		logger.Warn(ctx, "spreadsheet import finished with row errors",
			"updated", res.Updated, "created", res.Created, "failed", len(res.Errors), "errors", res.Errors)
	}
	return res, nil
}

func applyImportRow(ctx context.Context, tx *gorm.DB, row ImportRow) (bool, error) {
	p := row.Product
	p.Normalize()
	if err := validateProduct(&p); err != nil {
		return false, err
	}

	var existing model.Product
	var err error
	if row.ID != 0 {
		err = tx.Select("id", "codigo").Where("id = ?", row.ID).Take(&existing).Error
	} else if p.Codigo != "" {
		err = tx.Select("id", "codigo").Where("codigo = ?", p.Codigo).Take(&existing).Error
	} else {
		err = gorm.ErrRecordNotFound
	}

	switch {
	case err == nil:
		if p.Codigo == "" {
			p.Codigo = existing.Codigo
		}
		cols := productColumns(p)
		delete(cols, "imagen") // the sheet carries no image column
		return false, tx.Model(&model.Product{}).Where("id = ?", existing.ID).Updates(cols).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		p.ID = row.ID
		p.Imagen = ""
		if p.Codigo == "" {
			p.Codigo = nextCode(ctx, tx)
		}
		return true, tx.Create(&p).Error
	default:
		return false, err
	}
}

func rowMessage(err error) string {
	if errorsLikeUnique(err) {
		return "código duplicado"
	}
	return err.Error()
}
