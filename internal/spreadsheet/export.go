// Package spreadsheet moves the catalog in and out of .xlsx workbooks.
package spreadsheet

import (
	"fmt"
	"io"
	"time"

	"wholesale_catalog/internal/model"

	"github.com/xuri/excelize/v2"
)

const (
	SheetName   = "Productos"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Headers is the fixed column layout shared by export and import.
var Headers = []string{"ID", "Código", "Título", "Descripción", "Precio", "Mínimo", "Múltiplo", "Stock", "Categoría", "Activo"}

var columnWidths = []float64{8, 15, 40, 50, 12, 10, 10, 10, 20, 10}

// FileName is the download name for an export taken at t.
func FileName(t time.Time) string {
	return fmt.Sprintf("productos_%s.xlsx", t.Format("20060102_150405"))
}

// Export writes products as a single-sheet workbook, one row per product
// in the given order.
func Export(w io.Writer, products []model.Product) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]any, len(Headers))
	for i, h := range Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := styleHeader(f); err != nil {
		return err
	}

	for i, p := range products {
		p.ApplyDefaults()
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			p.ID,
			p.Codigo,
			p.Titulo,
			p.Descripcion,
			p.Precio.InexactFloat64(),
			p.Minimo,
			p.Multiplo,
			p.Stock,
			p.Categoria,
			activeLabel(p.Activo),
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func styleHeader(f *excelize.File) error {
	style, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF", Size: 12},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"6A1B9A"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	last, err := excelize.ColumnNumberToName(len(Headers))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", last+"1", style); err != nil {
		return fmt.Errorf("apply header style: %w", err)
	}
	for i, width := range columnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			return fmt.Errorf("column width %s: %w", col, err)
		}
	}
	return nil
}

func activeLabel(active bool) string {
	if active {
		return "Sí"
	}
	return "No"
}
