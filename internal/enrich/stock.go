package enrich

import (
	"context"
	"fmt"

	"github.com/exportengine/engine/internal/model"
)

// catalogPageSize bounds per-page walks of the inventory catalog (spec
// §4.4: "up to 1 000 products/page").
const catalogPageSize = 1000

// StockEnricher walks the inventory catalog page by page until a short page
// is seen, exposing per-warehouse stock under stock_warehouse_<id> keys
// (spec §4.4).
type StockEnricher struct {
	caller Caller
}

// NewStockEnricher constructs the stock enricher.
func NewStockEnricher(caller Caller) *StockEnricher {
	return &StockEnricher{caller: caller}
}

func (e *StockEnricher) Tag() string { return "stock" }

func (e *StockEnricher) Enrich(ctx context.Context, records []model.Record) ([]model.Record, Stat) {
	var byProduct map[string]map[string]any
	stat := run("stock", func() (int, error) {
		var err error
		byProduct, err = walkCatalog(ctx, e.caller, "getProductsStock")
		return len(byProduct), err
	})

	for _, rec := range records {
		id := productKey(rec)
		row, ok := byProduct[id]
		if !ok {
			continue
		}
		for _, wh := range asSlice(row["warehouses"]) {
			m, ok := wh.(map[string]any)
			if !ok {
				continue
			}
			key := fmt.Sprintf("stock_warehouse_%v", m["warehouse_id"])
			setIfAbsent(rec, key, asFloat(m["quantity"]))
		}
	}

	return records, stat
}

// walkCatalog pages through method until a short (or empty) page is
// returned, bucketing every row by its product_id.
func walkCatalog(ctx context.Context, caller Caller, method string) (map[string]map[string]any, error) {
	byProduct := make(map[string]map[string]any)
	page := 1
	for {
		resp, err := caller.Call(ctx, method, map[string]any{"page": page, "limit": catalogPageSize})
		if err != nil {
			return byProduct, err
		}
		rows := asSlice(resp["result"])
		for _, row := range rows {
			if m, ok := row.(map[string]any); ok {
				byProduct[fmt.Sprintf("%v", m["product_id"])] = m
			}
		}
		if len(rows) < catalogPageSize {
			break
		}
		page++
	}
	return byProduct, nil
}

// productKey resolves the product identifier a record refers to: either a
// direct product_id (product-centric datasets) or the first line item's
// product_id (order-centric datasets).
func productKey(rec model.Record) string {
	if v, ok := rec["product_id"]; ok {
		return fmt.Sprintf("%v", v)
	}
	items := lineItems(rec)
	if len(items) == 0 {
		return ""
	}
	return fmt.Sprintf("%v", items[0]["product_id"])
}
