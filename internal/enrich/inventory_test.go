package enrich

import (
	"context"
	"testing"

	"github.com/exportengine/engine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInventoryEnricherComputesUnitMarginAndPercent(t *testing.T) {
	caller := newFakeCaller()
	caller.responses["getProductsData"] = map[string]any{"result": []any{
		map[string]any{"product_id": "P1", "average_cost": 60.0},
	}}

	e := NewInventoryEnricher(caller)
	records := []model.Record{
		{"products": []any{
			map[string]any{"product_id": "P1", "quantity": 2.0, "price_netto": 100.0},
		}},
	}

	out, stat := e.Enrich(context.Background(), records)
	require.Empty(t, stat.SoftError)
	assert.Equal(t, 40.0, out[0]["unit_margin"])
	assert.Equal(t, 40.0, out[0]["margin_percent"])
}

func TestInventoryEnricherBatchesProductIDs(t *testing.T) {
	caller := newFakeCaller()
	caller.responses["getProductsData"] = map[string]any{"result": []any{}}

	records := make([]model.Record, 0, inventoryBatchSize+10)
	for i := 0; i < inventoryBatchSize+10; i++ {
		records = append(records, model.Record{"products": []any{
			map[string]any{"product_id": i, "quantity": 1.0, "price_netto": 10.0},
		}})
	}

	e := NewInventoryEnricher(caller)
	_, stat := e.Enrich(context.Background(), records)
	require.Empty(t, stat.SoftError)
	assert.Equal(t, 2, stat.Calls) // 1010 unique ids / 1000-per-batch = 2 calls
}

func TestInventoryEnricherLeavesBlankWhenNoLineItems(t *testing.T) {
	e := NewInventoryEnricher(newFakeCaller())
	out, _ := e.Enrich(context.Background(), []model.Record{{}})
	assert.Equal(t, "", out[0]["unit_margin"])
}
