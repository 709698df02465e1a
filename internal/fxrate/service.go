// Package fxrate implements C2, the Exchange-Rate Service: fetch, cache,
// and compute cross-currency rates for a given date (spec §4.2).
package fxrate

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// RateUnavailable is returned when no rate at all can be produced for a
// currency, even after the 7-day backward walk and the "most recent" probe.
type RateUnavailable struct {
	Currency string
	Date     string
}

func (e *RateUnavailable) Error() string {
	return fmt.Sprintf("rate unavailable for %s on %s", e.Currency, e.Date)
}

// Provider is the exchange-rate HTTP provider the Service queries on cache
// miss. ErrNoQuoteForDate signals "no rate for this date" (weekend/holiday),
// which is not itself an error condition (spec §6).
type Provider interface {
	// RateForDate returns the pivot-relative rate for currency on date
	// (YYYY-MM-DD): the number of pivot units one unit of currency is worth.
	// It returns ErrNoQuoteForDate if the provider has no quote.
	RateForDate(ctx context.Context, currency, date string) (float64, error)
	// LatestRate returns the most recent available pivot-relative rate and
	// the date it is effective for.
	LatestRate(ctx context.Context, currency string) (rate float64, effectiveDate string, err error)
}

// ErrNoQuoteForDate signals the provider has no quote for the requested date.
var ErrNoQuoteForDate = fmt.Errorf("no quote for requested date")

const defaultTTL = 24 * time.Hour
const backwardWalkDays = 7

// Service is C2, caching rates keyed by (currency, date) and composing
// cross-rates through the pivot currency. Grounded on the teacher's
// exchangerate.Client cache-first/stale-fallback contract, adapted to
// (currency, date) keying and the 7-day backward-walk rule spec §4.2
// requires instead of the teacher's same-day-only lookup.
type Service struct {
	provider Provider
	cache    *cacheRepository
	pivot    string
	log      zerolog.Logger
}

// New creates a Service. db may be nil to disable persistence (cache is
// then purely provider-backed, always missing, still correct).
func New(provider Provider, db *sql.DB, pivotCurrency string, log zerolog.Logger) *Service {
	var cache *cacheRepository
	if db != nil {
		cache = newCacheRepository(db)
	}
	return &Service{
		provider: provider,
		cache:    cache,
		pivot:    pivotCurrency,
		log:      log.With().Str("component", "fxrate").Logger(),
	}
}

// Rate is the result of GetRate.
type Rate struct {
	Rate          float64
	EffectiveDate string
}

// GetRate computes the rate to convert 1 unit of source into target,
// effective at date (YYYY-MM-DD).
func (s *Service) GetRate(ctx context.Context, source, target, date string) (Rate, error) {
	if source == target {
		return Rate{Rate: 1, EffectiveDate: date}, nil
	}

	if source == s.pivot {
		toRate, err := s.pivotRate(ctx, target, date)
		if err != nil {
			return Rate{}, err
		}
		return Rate{Rate: 1 / toRate.Rate, EffectiveDate: toRate.EffectiveDate}, nil
	}

	if target == s.pivot {
		return s.pivotRate(ctx, source, date)
	}

	sourceRate, err := s.pivotRate(ctx, source, date)
	if err != nil {
		return Rate{}, err
	}
	targetRate, err := s.pivotRate(ctx, target, date)
	if err != nil {
		return Rate{}, err
	}

	return Rate{
		Rate:          sourceRate.Rate / targetRate.Rate,
		EffectiveDate: sourceRate.EffectiveDate,
	}, nil
}

// pivotRate returns the pivot-relative rate for currency at date, consulting
// the cache first, then the provider with a 7-day backward walk, then the
// provider's "most recent" endpoint, failing with RateUnavailable only when
// none of these produce a rate.
func (s *Service) pivotRate(ctx context.Context, currency, date string) (Rate, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetIfFresh(currency, date); err == nil && cached != nil {
			return Rate{Rate: cached.Rate, EffectiveDate: cached.EffectiveDate}, nil
		}
	}

	cursor := date
	for i := 0; i <= backwardWalkDays; i++ {
		rate, err := s.provider.RateForDate(ctx, currency, cursor)
		if err == nil {
			s.store(currency, date, rate, cursor)
			return Rate{Rate: rate, EffectiveDate: cursor}, nil
		}
		if err != ErrNoQuoteForDate {
			return Rate{}, err
		}
		cursor = previousDay(cursor)
	}

	rate, effectiveDate, err := s.provider.LatestRate(ctx, currency)
	if err != nil {
		return Rate{}, &RateUnavailable{Currency: currency, Date: date}
	}

	s.store(currency, date, rate, effectiveDate)
	return Rate{Rate: rate, EffectiveDate: effectiveDate}, nil
}

func (s *Service) store(currency, anchorDate string, rate float64, effectiveDate string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Store(currency, anchorDate, rate, effectiveDate, defaultTTL); err != nil {
		s.log.Warn().Err(err).Str("currency", currency).Str("date", anchorDate).Msg("failed to cache rate")
	}
}

func previousDay(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return t.AddDate(0, 0, -1).Format("2006-01-02")
}

// MaintenanceSweep deletes expired cache entries. Callers should invoke this
// at most hourly (spec §4.2).
func (s *Service) MaintenanceSweep() (int64, error) {
	if s.cache == nil {
		return 0, nil
	}
	return s.cache.DeleteExpired()
}
