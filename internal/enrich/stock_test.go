package enrich

import (
	"context"
	"testing"

	"github.com/exportengine/engine/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestStockEnricherExposesPerWarehouseKeys(t *testing.T) {
	caller := newFakeCaller()
	caller.responses["getProductsStock"] = map[string]any{"result": []any{
		map[string]any{"product_id": "P1", "warehouses": []any{
			map[string]any{"warehouse_id": float64(1), "quantity": float64(5)},
			map[string]any{"warehouse_id": float64(2), "quantity": float64(0)},
		}},
	}}

	e := NewStockEnricher(caller)
	records := []model.Record{{"product_id": "P1"}}
	out, stat := e.Enrich(context.Background(), records)

	assert.Empty(t, stat.SoftError)
	assert.Equal(t, 5.0, out[0]["stock_warehouse_1"])
	assert.Equal(t, 0.0, out[0]["stock_warehouse_2"])
}

func TestStockEnricherFallsBackToFirstLineItemProduct(t *testing.T) {
	caller := newFakeCaller()
	caller.responses["getProductsStock"] = map[string]any{"result": []any{
		map[string]any{"product_id": "P9", "warehouses": []any{
			map[string]any{"warehouse_id": float64(1), "quantity": float64(3)},
		}},
	}}

	e := NewStockEnricher(caller)
	records := []model.Record{{"products": []any{map[string]any{"product_id": "P9"}}}}
	out, _ := e.Enrich(context.Background(), records)

	assert.Equal(t, 3.0, out[0]["stock_warehouse_1"])
}
