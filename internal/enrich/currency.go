package enrich

import (
	"context"
	"fmt"
	"time"

	"github.com/exportengine/engine/internal/fxrate"
	"github.com/exportengine/engine/internal/model"
)

// RateProvider is the subset of fxrate.Service a CurrencyEnricher needs.
type RateProvider interface {
	GetRate(ctx context.Context, source, target, date string) (fxrate.Rate, error)
}

// CurrencyEnricher converts monetary fields to the configuration's target
// currency, keyed on the run's (source-currency, anchor-date) pairs (spec
// §4.4). Anchor date is derived per-record from the configuration's
// rateSource choice.
type CurrencyEnricher struct {
	rates      RateProvider
	dataset    model.Dataset
	conversion model.CurrencyConversion
}

// NewCurrencyEnricher constructs the currency enricher for one run's
// dataset and conversion settings.
func NewCurrencyEnricher(rates RateProvider, dataset model.Dataset, conversion model.CurrencyConversion) *CurrencyEnricher {
	return &CurrencyEnricher{rates: rates, dataset: dataset, conversion: conversion}
}

func (e *CurrencyEnricher) Tag() string { return "currency" }

func (e *CurrencyEnricher) Enrich(ctx context.Context, records []model.Record) ([]model.Record, Stat) {
	if !e.conversion.Enabled || e.conversion.TargetCurrency == "" {
		return records, Stat{Tag: e.Tag()}
	}

	monetary := monetaryFieldKeys(e.dataset)

	type pairKey struct{ currency, date string }
	rateCache := make(map[pairKey]fxrate.Rate)

	stat := run("currency", func() (int, error) {
		calls := 0
		var lastErr error
		for _, rec := range records {
			source, _ := rec["currency"].(string)
			if source == "" || source == e.conversion.TargetCurrency {
				continue
			}
			date := anchorDate(rec, e.conversion.RateSource)
			key := pairKey{source, date}
			if _, ok := rateCache[key]; ok {
				continue
			}
			calls++
			rate, err := e.rates.GetRate(ctx, source, e.conversion.TargetCurrency, date)
			if err != nil {
				lastErr = err
				rate = fxrate.Rate{Rate: 1, EffectiveDate: date}
			}
			rateCache[key] = rate
		}
		return calls, lastErr
	})

	for _, rec := range records {
		source, _ := rec["currency"].(string)
		if source == "" || source == e.conversion.TargetCurrency {
			continue
		}
		date := anchorDate(rec, e.conversion.RateSource)
		rate, ok := rateCache[pairKey{source, date}]
		if !ok {
			continue
		}

		setIfAbsent(rec, "converted_currency", e.conversion.TargetCurrency)
		setIfAbsent(rec, "converted_rate_date", rate.EffectiveDate)

		for _, field := range monetary {
			v, ok := rec[field]
			if !ok || v == nil {
				continue
			}
			amount := asFloat(v)
			setIfAbsent(rec, "converted_"+field, round2(amount*rate.Rate))
		}
	}

	return records, stat
}

// monetaryFieldKeys returns every field key in the dataset whose semantic
// type is currency.
func monetaryFieldKeys(d model.Dataset) []string {
	var keys []string
	for _, group := range d.Groups {
		for _, f := range group.Fields {
			if f.Type == model.FieldCurrency {
				keys = append(keys, f.Key)
			}
		}
	}
	return keys
}

// anchorDate resolves the date a rate lookup should use, per the
// configuration's rateSource choice.
func anchorDate(rec model.Record, source model.RateSource) string {
	switch source {
	case model.RateSourceToday:
		return time.Now().UTC().Format("2006-01-02")
	case model.RateSourceDocumentDate:
		if v, ok := rec["ds1_date"].(string); ok && v != "" {
			return v
		}
	case model.RateSourceShipDate:
		if v, ok := rec["ship_date"].(string); ok && v != "" {
			return v
		}
	case model.RateSourceOrderDate:
		if v, ok := rec["date_add"].(string); ok && v != "" {
			return dateOnly(v)
		}
	}
	return dateOnly(fmt.Sprintf("%v", rec["date_add"]))
}

// dateOnly trims a datetime string down to its leading YYYY-MM-DD portion.
func dateOnly(s string) string {
	if len(s) >= 10 {
		return s[:10]
	}
	return s
}
