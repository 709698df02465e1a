package enrich

import (
	"context"
	"fmt"

	"github.com/exportengine/engine/internal/model"
)

// PriceEnricher walks the inventory catalog (analogous pagination to
// StockEnricher) exposing per-price-group prices (spec §4.4).
type PriceEnricher struct {
	caller Caller
}

// NewPriceEnricher constructs the price enricher.
func NewPriceEnricher(caller Caller) *PriceEnricher {
	return &PriceEnricher{caller: caller}
}

func (e *PriceEnricher) Tag() string { return "price" }

func (e *PriceEnricher) Enrich(ctx context.Context, records []model.Record) ([]model.Record, Stat) {
	var byProduct map[string]map[string]any
	stat := run("price", func() (int, error) {
		var err error
		byProduct, err = walkCatalog(ctx, e.caller, "getProductsPrices")
		return len(byProduct), err
	})

	for _, rec := range records {
		id := productKey(rec)
		row, ok := byProduct[id]
		if !ok {
			continue
		}
		for _, grp := range asSlice(row["price_groups"]) {
			m, ok := grp.(map[string]any)
			if !ok {
				continue
			}
			key := fmt.Sprintf("price_group_%v", m["price_group_id"])
			setIfAbsent(rec, key, round2(asFloat(m["price"])))
		}
	}

	return records, stat
}
