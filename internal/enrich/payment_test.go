package enrich

import (
	"context"
	"testing"

	"github.com/exportengine/engine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentEnricherYieldsLastSumAndCount(t *testing.T) {
	caller := newFakeCaller()
	caller.responses["getPaymentHistory"] = map[string]any{"result": []any{
		map[string]any{"date": "2024-01-01", "amount": 40.0},
		map[string]any{"date": "2024-01-05", "amount": 60.0},
	}}

	e := NewPaymentEnricher(caller)
	records := []model.Record{{"order_id": float64(1)}}
	out, stat := e.Enrich(context.Background(), records)

	require.Empty(t, stat.SoftError)
	assert.Equal(t, "2024-01-05", out[0]["last_payment_date"])
	assert.Equal(t, 60.0, out[0]["last_payment_amount"])
	assert.Equal(t, 100.0, out[0]["payment_sum"])
	assert.Equal(t, 2, out[0]["payment_count"])
}

func TestCreditEnricherFloorsAvailableCreditAtZero(t *testing.T) {
	caller := newFakeCaller()
	caller.responses["getCreditInfo"] = map[string]any{
		"current_debt": 500.0, "overdue_debt": 50.0, "credit_limit": 200.0,
	}

	e := NewCreditEnricher(caller)
	records := []model.Record{{"contractor_id": float64(1)}}
	out, stat := e.Enrich(context.Background(), records)

	require.Empty(t, stat.SoftError)
	assert.Equal(t, 500.0, out[0]["credit_current_debt"])
	assert.Equal(t, 0.0, out[0]["credit_available"])
}
