package service

import (
	"github.com/develoddy/api-sequelize-sub002/internal/catalog/entity"
	"github.com/shopspring/decimal"
)

// fieldRule compares one column between the stored row and the row the
// provider currently describes.
type fieldRule[T any] struct {
	Column string
	Equal  func(cur, want *T) bool
	Value  func(want *T) interface{}
}

// diffFields returns the columns whose value differs, keyed for a partial update.
func diffFields[T any](rules []fieldRule[T], cur, want *T) map[string]interface{} {
	changed := make(map[string]interface{})
	for _, r := range rules {
		if !r.Equal(cur, want) {
			changed[r.Column] = r.Value(want)
		}
	}
	return changed
}

func equalUintPtr(a, b *uint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalDecimal(a, b decimal.Decimal) bool {
	return a.Equal(b)
}

var productRules = []fieldRule[entity.Product]{
	{"title", func(c, w *entity.Product) bool { return c.Title == w.Title }, func(w *entity.Product) interface{} { return w.Title }},
	{"sku", func(c, w *entity.Product) bool { return c.SKU == w.SKU }, func(w *entity.Product) interface{} { return w.SKU }},
	{"is_ignored", func(c, w *entity.Product) bool { return c.IsIgnored == w.IsIgnored }, func(w *entity.Product) interface{} { return w.IsIgnored }},
	{"price", func(c, w *entity.Product) bool { return equalDecimal(c.Price, w.Price) }, func(w *entity.Product) interface{} { return w.Price }},
	{"currency", func(c, w *entity.Product) bool { return c.Currency == w.Currency }, func(w *entity.Product) interface{} { return w.Currency }},
	{"portada", func(c, w *entity.Product) bool { return c.Portada == w.Portada }, func(w *entity.Product) interface{} { return w.Portada }},
	{"category_id", func(c, w *entity.Product) bool { return equalUintPtr(c.CategoryID, w.CategoryID) }, func(w *entity.Product) interface{} { return w.CategoryID }},
	{"type_inventario", func(c, w *entity.Product) bool { return c.TypeInventario == w.TypeInventario }, func(w *entity.Product) interface{} { return w.TypeInventario }},
}

var variantRules = []fieldRule[entity.Variedad]{
	{"valor", func(c, w *entity.Variedad) bool { return c.Valor == w.Valor }, func(w *entity.Variedad) interface{} { return w.Valor }},
	{"color", func(c, w *entity.Variedad) bool { return c.Color == w.Color }, func(w *entity.Variedad) interface{} { return w.Color }},
	{"printful_variant_id", func(c, w *entity.Variedad) bool { return c.PrintfulVariantID == w.PrintfulVariantID }, func(w *entity.Variedad) interface{} { return w.PrintfulVariantID }},
	{"variant_id", func(c, w *entity.Variedad) bool { return c.VariantID == w.VariantID }, func(w *entity.Variedad) interface{} { return w.VariantID }},
	{"external_id", func(c, w *entity.Variedad) bool { return c.ExternalID == w.ExternalID }, func(w *entity.Variedad) interface{} { return w.ExternalID }},
	{"retail_price", func(c, w *entity.Variedad) bool { return equalDecimal(c.RetailPrice, w.RetailPrice) }, func(w *entity.Variedad) interface{} { return w.RetailPrice }},
	{"currency", func(c, w *entity.Variedad) bool { return c.Currency == w.Currency }, func(w *entity.Variedad) interface{} { return w.Currency }},
	{"name", func(c, w *entity.Variedad) bool { return c.Name == w.Name }, func(w *entity.Variedad) interface{} { return w.Name }},
}

// stockVariantRules is the narrower set the stock sync maintains.
var stockVariantRules = []fieldRule[entity.Variedad]{
	{"retail_price", func(c, w *entity.Variedad) bool { return equalDecimal(c.RetailPrice, w.RetailPrice) }, func(w *entity.Variedad) interface{} { return w.RetailPrice }},
	{"currency", func(c, w *entity.Variedad) bool { return c.Currency == w.Currency }, func(w *entity.Variedad) interface{} { return w.Currency }},
	{"sku", func(c, w *entity.Variedad) bool { return c.SKU == w.SKU }, func(w *entity.Variedad) interface{} { return w.SKU }},
	{"name", func(c, w *entity.Variedad) bool { return c.Name == w.Name }, func(w *entity.Variedad) interface{} { return w.Name }},
	{"availability_status", func(c, w *entity.Variedad) bool { return c.AvailabilityStatus == w.AvailabilityStatus }, func(w *entity.Variedad) interface{} { return w.AvailabilityStatus }},
}
