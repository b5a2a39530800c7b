// Package checkout turns a cart into the WhatsApp hand-off message.
package checkout

import (
	"fmt"
	"net/url"
	"strings"

	"wholesale_catalog/internal/model"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// MinimumError is returned when a cart total does not reach the threshold.
type MinimumError struct {
	Minimum decimal.Decimal
}

func (e *MinimumError) Error() string {
	p := message.NewPrinter(language.MustParse("es-AR"))
	return p.Sprintf("El pedido debe superar los $%d", e.Minimum.IntPart())
}

// CheckMinimum rejects totals below minimum.
func CheckMinimum(total, minimum decimal.Decimal) error {
	if total.LessThan(minimum) {
		return &MinimumError{Minimum: minimum}
	}
	return nil
}

// BuildMessage renders the plain-text order: a header, one line per item and
// the total. Prices keep their natural decimal form (500, 12.5).
func BuildMessage(storeName string, items []model.LineItem, total decimal.Decimal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Pedido mayorista %s:", storeName)
	for _, it := range items {
		fmt.Fprintf(&b, "\n%s - %s - Cantidad: %d - Precio unitario: $%s",
			it.Codigo, it.Titulo, it.Cantidad, it.Precio.String())
	}
	fmt.Fprintf(&b, "\nTOTAL: $%s", total.String())
	return b.String()
}

// WhatsAppURL builds the wa.me deep link carrying text. Spaces are sent as
// %20; a literal plus is already escaped as %2B by QueryEscape.
func WhatsAppURL(number, text string) string {
	encoded := strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
	return "https://wa.me/" + url.PathEscape(number) + "?text=" + encoded
}
