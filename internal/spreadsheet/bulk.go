package spreadsheet

import (
	"fmt"
	"io"
	"strings"

	"wholesale_catalog/internal/model"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// BulkResult is what the bulk-load reader extracted from a workbook.
type BulkResult struct {
	Products []model.Product
	// Skipped holds sheet row numbers dropped for lacking code or title.
	Skipped []int
}

// ReadBulk reads the free-form catalog workbook used for the initial load.
// Columns are located by lowercase header name, so order and extra columns do
// not matter; only codigo and titulo are required. Unparseable numbers fall
// back to their defaults instead of failing the row.
func ReadBulk(r io.Reader) (BulkResult, error) {
	var res BulkResult

	f, err := excelize.OpenReader(r)
	if err != nil {
		return res, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return res, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return res, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return res, fmt.Errorf("sheet %s is empty", sheets[0])
	}

	cols := map[string]int{}
	for i, h := range rows[0] {
		name := strings.ToLower(strings.TrimSpace(h))
		if _, dup := cols[name]; name != "" && !dup {
			cols[name] = i
		}
	}
	for _, required := range []string{"codigo", "titulo"} {
		if _, ok := cols[required]; !ok {
			return res, fmt.Errorf("missing column %q", required)
		}
	}

	get := func(cells []string, name string) string {
		i, ok := cols[name]
		if !ok {
			return ""
		}
		return cellAt(cells, i)
	}

	for i, cells := range rows[1:] {
		line := i + 2
		p := model.Product{
			Codigo:      get(cells, "codigo"),
			Titulo:      get(cells, "titulo"),
			Descripcion: get(cells, "descripcion"),
			Imagen:      get(cells, "imagen"),
			Categoria:   get(cells, "categoria"),
			Activo:      true,
		}
		if p.Codigo == "" || p.Titulo == "" {
			if !blankRow(cells) {
				res.Skipped = append(res.Skipped, line)
			}
			continue
		}
		p.Precio = lenientDecimal(get(cells, "precio"))
		p.Minimo = max(1, lenientInt(get(cells, "minimo"), 1))
		p.Multiplo = max(1, lenientInt(get(cells, "multiplo"), 1))
		p.Stock = max(0, lenientInt(get(cells, "stock"), 0))
		p.ApplyDefaults()
		res.Products = append(res.Products, p)
	}
	return res, nil
}

func lenientDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func lenientInt(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := parseInt(s)
	if err != nil {
		return def
	}
	return n
}
