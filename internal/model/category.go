package model

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	CategoryToys      = "jugueteria/cotillon"
	CategoryStationer = "libreria"
)

// NormalizeCategory lowercases and strips accents, then folds the two known
// synonym groups onto their canonical token. Anything else passes through.
func NormalizeCategory(s string) string {
	txt := strings.ToLower(strings.TrimSpace(s))
	if txt == "" {
		return ""
	}
	txt = stripAccents(txt)

	switch {
	case strings.Contains(txt, "jugueteria"), strings.Contains(txt, "cotillon"):
		return CategoryToys
	case strings.Contains(txt, "libreria"):
		return CategoryStationer
	}
	return txt
}

func stripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
