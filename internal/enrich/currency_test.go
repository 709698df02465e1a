package enrich

import (
	"context"
	"testing"

	"github.com/exportengine/engine/internal/catalog"
	"github.com/exportengine/engine/internal/fxrate"
	"github.com/exportengine/engine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRateProvider struct {
	rate fxrate.Rate
	err  error
	n    int
}

func (f *fakeRateProvider) GetRate(ctx context.Context, source, target, date string) (fxrate.Rate, error) {
	f.n++
	return f.rate, f.err
}

func TestCurrencyEnricherNoOpWhenSourceEqualsTarget(t *testing.T) {
	provider := &fakeRateProvider{rate: fxrate.Rate{Rate: 1, EffectiveDate: "2024-01-01"}}
	e := NewCurrencyEnricher(provider, catalog.OrdersDataset(), model.CurrencyConversion{Enabled: true, TargetCurrency: "EUR"})

	records := []model.Record{{"currency": "EUR", "order_value_brutto": 100.0, "date_add": "2024-01-01T10:00:00Z"}}
	out, _ := e.Enrich(context.Background(), records)

	assert.Equal(t, 0, provider.n)
	_, ok := out[0]["converted_currency"]
	assert.False(t, ok)
}

func TestCurrencyEnricherConvertsMonetaryFieldsAndIsIdempotent(t *testing.T) {
	provider := &fakeRateProvider{rate: fxrate.Rate{Rate: 4.3, EffectiveDate: "2024-01-05"}}
	e := NewCurrencyEnricher(provider, catalog.OrdersDataset(), model.CurrencyConversion{
		Enabled: true, TargetCurrency: "PLN", RateSource: model.RateSourceOrderDate,
	})

	records := []model.Record{{"currency": "EUR", "order_value_brutto": 100.0, "date_add": "2024-01-06T10:00:00Z"}}
	out, _ := e.Enrich(context.Background(), records)

	require.Equal(t, "PLN", out[0]["converted_currency"])
	require.Equal(t, "2024-01-05", out[0]["converted_rate_date"])
	assert.Equal(t, 430.0, out[0]["converted_order_value_brutto"])

	// Spec §8: "Running the currency enricher twice on a record set is a
	// no-op after the first application".
	before := out[0]["converted_order_value_brutto"]
	out2, _ := e.Enrich(context.Background(), out)
	assert.Equal(t, before, out2[0]["converted_order_value_brutto"])
}

func TestCurrencyEnricherDegradesToRateOneOnFailure(t *testing.T) {
	provider := &fakeRateProvider{err: &fxrate.RateUnavailable{Currency: "EUR", Date: "2024-01-06"}}
	e := NewCurrencyEnricher(provider, catalog.OrdersDataset(), model.CurrencyConversion{
		Enabled: true, TargetCurrency: "PLN", RateSource: model.RateSourceOrderDate,
	})

	records := []model.Record{{"currency": "EUR", "order_value_brutto": 100.0, "date_add": "2024-01-06T10:00:00Z"}}
	out, stat := e.Enrich(context.Background(), records)

	assert.NotEmpty(t, stat.SoftError)
	assert.Equal(t, 100.0, out[0]["converted_order_value_brutto"])
}
