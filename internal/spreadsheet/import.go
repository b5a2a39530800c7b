package spreadsheet

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"wholesale_catalog/internal/model"
	"wholesale_catalog/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// ErrBadHeader rejects a workbook whose first row is not exactly Headers.
var ErrBadHeader = errors.New("el formato del archivo no es correcto")

const (
	colID = iota
	colCodigo
	colTitulo
	colDescripcion
	colPrecio
	colMinimo
	colMultiplo
	colStock
	colCategoria
	colActivo
)

// ParseImport reads the first sheet of an .xlsx workbook laid out as Export
// writes it. A header mismatch fails the whole file; a bad cell only marks
// its row (ImportRow.Err) so the rest of the file still applies. Line is the
// 1-based sheet row number.
func ParseImport(r io.Reader) ([]repository.ImportRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, badHeader()
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 || !headerMatches(rows[0]) {
		return nil, badHeader()
	}

	out := make([]repository.ImportRow, 0, len(rows)-1)
	for i, cells := range rows[1:] {
		if blankRow(cells) {
			continue
		}
		row := repository.ImportRow{Line: i + 2}
		row.ID, row.Product, row.Err = parseRow(cells)
		out = append(out, row)
	}
	return out, nil
}

func badHeader() error {
	return fmt.Errorf("%w. Se esperan las columnas: %s", ErrBadHeader, strings.Join(Headers, ", "))
}

func headerMatches(row []string) bool {
	if len(row) != len(Headers) {
		return false
	}
	for i, h := range Headers {
		if strings.TrimSpace(row[i]) != h {
			return false
		}
	}
	return true
}

func parseRow(cells []string) (uint, model.Product, error) {
	var p model.Product

	var id uint
	if s := cellAt(cells, colID); s != "" {
		n, err := parseInt(s)
		if err != nil || n <= 0 {
			return 0, p, fmt.Errorf("ID inválido: %q", s)
		}
		id = uint(n)
	}

	p.Codigo = cellAt(cells, colCodigo)
	p.Titulo = cellAt(cells, colTitulo)
	p.Descripcion = cellAt(cells, colDescripcion)
	p.Categoria = cellAt(cells, colCategoria)
	p.Activo = parseActive(cellAt(cells, colActivo))

	p.Precio = decimal.Zero
	if s := cellAt(cells, colPrecio); s != "" {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return 0, p, fmt.Errorf("precio inválido: %q", s)
		}
		p.Precio = d
	}

	var err error
	if p.Minimo, err = intCell(cells, colMinimo, "mínimo", 1); err != nil {
		return 0, p, err
	}
	if p.Multiplo, err = intCell(cells, colMultiplo, "múltiplo", 1); err != nil {
		return 0, p, err
	}
	if p.Stock, err = intCell(cells, colStock, "stock", 0); err != nil {
		return 0, p, err
	}
	return id, p, nil
}

func intCell(cells []string, col int, name string, def int) (int, error) {
	s := cellAt(cells, col)
	if s == "" {
		return def, nil
	}
	n, err := parseInt(s)
	if err != nil {
		return 0, fmt.Errorf("%s inválido: %q", name, s)
	}
	return n, nil
}

// parseInt accepts integers and numeric cells rendered with a fraction
// ("3.0"); a fractional part is truncated.
func parseInt(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return int(f), nil
}

func parseActive(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "si", "sí", "1", "true":
		return true
	}
	return false
}

func cellAt(cells []string, i int) string {
	if i >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[i])
}

func blankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
