package transform

import (
	"fmt"

	"github.com/exportengine/engine/internal/model"
)

// Dictionaries resolves the small lookup tables the orders dataset's
// synthesized fields need (spec §6 "dictionaries": statuses, couriers,
// warehouses). A nil Dictionaries falls back to echoing the raw identifier.
type Dictionaries interface {
	StatusName(statusID any) string
	CourierName(courierID any) string
	WarehouseName(warehouseID any) string
}

// SynthesizeOrdersFields fills the orders dataset's computed fields that no
// enricher produces (spec §4.6 "synthesized computed fields"): status and
// courier/warehouse display names, products_count/products_quantity, and
// the brutto/netto value rollups derived from each order's line items and a
// VAT rate. It is a no-op for any dataset other than "orders", and never
// overwrites a key a prior phase already populated.
func SynthesizeOrdersFields(records []model.Record, dataset model.Dataset, dicts Dictionaries, vatRate float64) {
	if dataset.ID != "orders" {
		return
	}
	if dicts == nil {
		dicts = passthroughDictionaries{}
	}

	for _, rec := range records {
		setIfAbsent(rec, "order_status_name", dicts.StatusName(rec["status_id"]))
		setIfAbsent(rec, "courier_name", dicts.CourierName(rec["courier_id"]))
		setIfAbsent(rec, "warehouse_name", dicts.WarehouseName(rec["warehouse_id"]))

		items := lineItems(rec)
		count := len(items)
		quantity := 0.0
		productsNetto := 0.0
		for _, item := range items {
			qty := toFloatOrZero(item["quantity"])
			if qty == 0 {
				qty = 1
			}
			quantity += qty
			productsNetto += toFloatOrZero(item["price_netto"]) * qty
		}
		productsBrutto := productsNetto * (1 + vatRate)

		deliveryNetto := toFloatOrZero(rec["delivery_price_netto"])
		if deliveryNetto == 0 {
			deliveryNetto = toFloatOrZero(rec["delivery_price_brutto"]) / (1 + vatRate)
		}

		setIfAbsent(rec, "products_count", count)
		setIfAbsent(rec, "products_quantity", round2(quantity))
		setIfAbsent(rec, "products_value_netto", round2(productsNetto))
		setIfAbsent(rec, "products_value_brutto", round2(productsBrutto))
		setIfAbsent(rec, "delivery_price_netto", round2(deliveryNetto))
		setIfAbsent(rec, "order_value_netto", round2(productsNetto+deliveryNetto))
		setIfAbsent(rec, "order_value_brutto", round2(productsBrutto+deliveryNetto*(1+vatRate)))

		setIfAbsent(rec, "payment_status", paymentStatus(rec))
	}
}

// paymentStatus derives a payment_status label from payment_done and any
// total the payment enricher attached (spec §4.6).
func paymentStatus(rec model.Record) string {
	if done, ok := rec["payment_done"].(bool); ok && done {
		return "paid"
	}
	sum := toFloatOrZero(rec["payment_sum"])
	total := toFloatOrZero(rec["order_value_brutto"])
	switch {
	case sum <= 0:
		return "unpaid"
	case total > 0 && sum >= total:
		return "paid"
	default:
		return "partial"
	}
}

func lineItems(rec model.Record) []map[string]any {
	items, ok := rec["products"].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(items))
	for _, row := range items {
		if m, ok := row.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func toFloatOrZero(v any) float64 {
	f, ok := toFloat(v)
	if !ok {
		return 0
	}
	return f
}

func round2(v float64) string {
	return formatNumber(v, 2)
}

// setIfAbsent writes value to rec[key] only if the key is currently absent
// or nil, matching the enrich package's key-stability helper.
func setIfAbsent(rec model.Record, key string, value any) {
	if existing, ok := rec[key]; ok && existing != nil {
		return
	}
	rec[key] = value
}

// passthroughDictionaries echoes the raw identifier when no real
// dictionary lookup is wired.
type passthroughDictionaries struct{}

func (passthroughDictionaries) StatusName(id any) string    { return fmt.Sprintf("%v", id) }
func (passthroughDictionaries) CourierName(id any) string   { return fmt.Sprintf("%v", id) }
func (passthroughDictionaries) WarehouseName(id any) string { return fmt.Sprintf("%v", id) }
