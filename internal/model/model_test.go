package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCategory(t *testing.T) {
	cases := map[string]string{
		"":                       "",
		"   ":                    "",
		"Juguetería":             CategoryToys,
		"COTILLÓN y fiestas":     CategoryToys,
		"jugueteria/cotillon":    CategoryToys,
		" Librería ":             CategoryStationer,
		"articulos de libreria":  CategoryStationer,
		"Bazar":                  "bazar",
		"  Decoración Navideña ": "decoracion navidena",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeCategory(in), in)
	}
}

func TestApplyDefaults(t *testing.T) {
	p := Product{Categoria: "Librería"}
	p.ApplyDefaults()
	assert.Equal(t, 1, p.Minimo)
	assert.Equal(t, 1, p.Multiplo)
	assert.Equal(t, CategoryStationer, p.Categoria)

	p = Product{Minimo: 6, Multiplo: 3}
	p.ApplyDefaults()
	assert.Equal(t, 6, p.Minimo)
	assert.Equal(t, 3, p.Multiplo)
}

func TestVisible(t *testing.T) {
	assert.True(t, Product{Stock: 1, Activo: true}.Visible())
	assert.False(t, Product{Stock: 0, Activo: true}.Visible())
	assert.False(t, Product{Stock: 5, Activo: false}.Visible())
}

func TestOrderStatusValid(t *testing.T) {
	for _, s := range OrderStatuses {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, OrderStatus("perdido").Valid())
	assert.False(t, OrderStatus("").Valid())
}
