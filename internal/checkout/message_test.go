package checkout

import (
	"net/url"
	"strings"
	"testing"

	"wholesale_catalog/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessage(t *testing.T) {
	items := []model.LineItem{
		{Codigo: "A0001", Titulo: "Kit X", Cantidad: 2, Precio: decimal.NewFromInt(500)},
	}
	msg := BuildMessage("RM KITS", items, decimal.NewFromInt(1000))

	lines := strings.Split(msg, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Pedido mayorista RM KITS:", lines[0])
	assert.Equal(t, "A0001 - Kit X - Cantidad: 2 - Precio unitario: $500", lines[1])
	assert.Equal(t, "TOTAL: $1000", lines[2])
}

func TestBuildMessageDecimalPrices(t *testing.T) {
	items := []model.LineItem{
		{Codigo: "A0002", Titulo: "Lápices", Cantidad: 12, Precio: decimal.RequireFromString("12.50")},
		{Codigo: "A0003", Titulo: "Globos", Cantidad: 1, Precio: decimal.NewFromInt(99)},
	}
	msg := BuildMessage("RM KITS", items, decimal.RequireFromString("249"))
	assert.Contains(t, msg, "A0002 - Lápices - Cantidad: 12 - Precio unitario: $12.5\n")
	assert.True(t, strings.HasSuffix(msg, "\nTOTAL: $249"))
}

func TestWhatsAppURL(t *testing.T) {
	text := "Pedido mayorista RM KITS:\nA0001 - Kit & Co - Cantidad: 2 - Precio unitario: $500"
	link := WhatsAppURL("5491158573906", text)

	assert.True(t, strings.HasPrefix(link, "https://wa.me/5491158573906?text="))
	assert.NotContains(t, link, "+")
	assert.Contains(t, link, "%20")

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, text, u.Query().Get("text"))
}

func TestCheckMinimum(t *testing.T) {
	minimum := decimal.NewFromInt(200000)

	assert.NoError(t, CheckMinimum(decimal.NewFromInt(200000), minimum))
	assert.NoError(t, CheckMinimum(decimal.NewFromInt(350000), minimum))

	err := CheckMinimum(decimal.RequireFromString("199999.99"), minimum)
	var me *MinimumError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "El pedido debe superar los $200.000", err.Error())
}
