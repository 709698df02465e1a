package fxrate

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider lets tests script RateForDate/LatestRate responses per
// currency+date without standing up an HTTP server.
type fakeProvider struct {
	rates      map[string]float64 // "currency:date" -> rate
	latest     map[string]float64 // currency -> rate
	latestDate string
	calls      map[string]int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		rates:  make(map[string]float64),
		latest: make(map[string]float64),
		calls:  make(map[string]int),
	}
}

func (f *fakeProvider) RateForDate(ctx context.Context, currency, date string) (float64, error) {
	f.calls[currency+":"+date]++
	rate, ok := f.rates[currency+":"+date]
	if !ok {
		return 0, ErrNoQuoteForDate
	}
	return rate, nil
}

func (f *fakeProvider) LatestRate(ctx context.Context, currency string) (float64, string, error) {
	rate, ok := f.latest[currency]
	if !ok {
		return 0, "", ErrNoQuoteForDate
	}
	return rate, f.latestDate, nil
}

func TestGetRateSameCurrencyIsIdentity(t *testing.T) {
	svc := New(newFakeProvider(), nil, "EUR", zerolog.Nop())
	rate, err := svc.GetRate(context.Background(), "USD", "USD", "2024-01-15")
	require.NoError(t, err)
	assert.Equal(t, Rate{Rate: 1, EffectiveDate: "2024-01-15"}, rate)
}

func TestGetRatePivotToTarget(t *testing.T) {
	p := newFakeProvider()
	p.rates["PLN:2024-01-15"] = 4.3
	svc := New(p, nil, "EUR", zerolog.Nop())

	rate, err := svc.GetRate(context.Background(), "EUR", "PLN", "2024-01-15")
	require.NoError(t, err)
	assert.InDelta(t, 1/4.3, rate.Rate, 1e-9)
}

func TestGetRateSourceToPivotUsesQuoteDirectly(t *testing.T) {
	p := newFakeProvider()
	p.rates["PLN:2024-01-15"] = 4.0
	svc := New(p, nil, "EUR", zerolog.Nop())

	rate, err := svc.GetRate(context.Background(), "PLN", "EUR", "2024-01-15")
	require.NoError(t, err)
	assert.InDelta(t, 4.0, rate.Rate, 1e-9)
}

func TestGetRateCrossRateThroughPivot(t *testing.T) {
	p := newFakeProvider()
	p.rates["USD:2024-01-15"] = 1.1
	p.rates["PLN:2024-01-15"] = 4.4
	svc := New(p, nil, "EUR", zerolog.Nop())

	rate, err := svc.GetRate(context.Background(), "USD", "PLN", "2024-01-15")
	require.NoError(t, err)
	assert.InDelta(t, 1.1/4.4, rate.Rate, 1e-9)
}

func TestGetRateWalksBackwardAcrossWeekend(t *testing.T) {
	// Scenario 5: anchor date is Saturday 2024-01-06; provider only has
	// Friday 2024-01-05.
	p := newFakeProvider()
	p.rates["PLN:2024-01-05"] = 4.3
	svc := New(p, nil, "EUR", zerolog.Nop())

	rate, err := svc.GetRate(context.Background(), "EUR", "PLN", "2024-01-06")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-05", rate.EffectiveDate)
	assert.InDelta(t, 1/4.3, rate.Rate, 1e-9)
}

func TestGetRateFallsBackToLatestAfterSevenDays(t *testing.T) {
	p := newFakeProvider()
	p.latest["PLN"] = 4.5
	p.latestDate = "2023-12-20"
	svc := New(p, nil, "EUR", zerolog.Nop())

	rate, err := svc.GetRate(context.Background(), "EUR", "PLN", "2024-01-06")
	require.NoError(t, err)
	assert.Equal(t, "2023-12-20", rate.EffectiveDate)
	assert.InDelta(t, 1/4.5, rate.Rate, 1e-9)
}

func TestGetRateFailsWithRateUnavailableWhenNothingWorks(t *testing.T) {
	svc := New(newFakeProvider(), nil, "EUR", zerolog.Nop())
	_, err := svc.GetRate(context.Background(), "EUR", "XXX", "2024-01-06")
	require.Error(t, err)
	var unavailable *RateUnavailable
	assert.ErrorAs(t, err, &unavailable)
}
