package enrich

import (
	"context"
	"fmt"

	"github.com/exportengine/engine/internal/model"
	"gonum.org/v1/gonum/floats"
)

// inventoryBatchSize bounds how many product identifiers are requested per
// upstream call (spec §4.4: "batches of up to 1 000").
const inventoryBatchSize = 1000

// inventoryProduct is the subset of upstream product master data the margin
// calculation needs.
type inventoryProduct struct {
	AverageCost float64
}

// InventoryEnricher computes per-record unit margin and margin percentage
// from each order's line items against the inventory's average cost (spec
// §4.4).
type InventoryEnricher struct {
	caller Caller
}

// NewInventoryEnricher constructs the inventory enricher.
func NewInventoryEnricher(caller Caller) *InventoryEnricher {
	return &InventoryEnricher{caller: caller}
}

func (e *InventoryEnricher) Tag() string { return "inventory" }

func (e *InventoryEnricher) Enrich(ctx context.Context, records []model.Record) ([]model.Record, Stat) {
	productIDs := collectProductIDs(records)

	var costs map[string]inventoryProduct
	stat := run("inventory", func() (int, error) {
		var calls int
		costs = make(map[string]inventoryProduct, len(productIDs))
		for start := 0; start < len(productIDs); start += inventoryBatchSize {
			end := start + inventoryBatchSize
			if end > len(productIDs) {
				end = len(productIDs)
			}
			calls++
			resp, err := e.caller.Call(ctx, "getProductsData", map[string]any{"productIds": productIDs[start:end]})
			if err != nil {
				return calls, err
			}
			for _, row := range asSlice(resp["result"]) {
				m, ok := row.(map[string]any)
				if !ok {
					continue
				}
				id := fmt.Sprintf("%v", m["product_id"])
				costs[id] = inventoryProduct{AverageCost: asFloat(m["average_cost"])}
			}
		}
		return calls, nil
	})

	for _, rec := range records {
		items := lineItems(rec)
		if len(items) == 0 {
			setIfAbsent(rec, "unit_margin", "")
			setIfAbsent(rec, "margin_percent", "")
			continue
		}

		var totalMargin, totalPercent, weight float64
		for _, item := range items {
			id := fmt.Sprintf("%v", item["product_id"])
			qty := asFloat(item["quantity"])
			if qty == 0 {
				qty = 1
			}
			price := asFloat(item["price_netto"])
			cost, ok := costs[id]
			if !ok {
				continue
			}
			margin := price - cost.AverageCost
			totalMargin += margin * qty
			if price != 0 {
				totalPercent += (margin / price) * 100 * qty
			}
			weight += qty
		}
		if weight == 0 {
			setIfAbsent(rec, "unit_margin", "")
			setIfAbsent(rec, "margin_percent", "")
			continue
		}
		setIfAbsent(rec, "unit_margin", round2(totalMargin/weight))
		setIfAbsent(rec, "margin_percent", round2(totalPercent/weight))
	}

	return records, stat
}

// collectProductIDs gathers the distinct product identifiers referenced by
// every record's line items.
func collectProductIDs(records []model.Record) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, rec := range records {
		for _, item := range lineItems(rec) {
			id := fmt.Sprintf("%v", item["product_id"])
			if id == "" || id == "<nil>" || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

// lineItems returns the order's product line items from whichever raw
// upstream key carried them ("products" is the conventional name the
// commerce API uses for an order's line-item array).
func lineItems(rec model.Record) []map[string]any {
	var items []map[string]any
	for _, row := range asSlice(rec["products"]) {
		if m, ok := row.(map[string]any); ok {
			items = append(items, m)
		}
	}
	return items
}

// round2 rounds v to two decimal places using gonum's floats package,
// matching the teacher's rounding-for-financial-output convention.
func round2(v float64) float64 {
	return floats.Round(v, 2)
}
