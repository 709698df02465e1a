// Package pipeline implements C7: the per-run Orchestrator that sequences
// FETCH, ENRICH, and TRANSFORM and accumulates run statistics (spec §4.7).
package pipeline

import (
	"context"
	"time"

	"github.com/exportengine/engine/internal/catalog"
	"github.com/exportengine/engine/internal/enrich"
	"github.com/exportengine/engine/internal/fetch"
	"github.com/exportengine/engine/internal/model"
	"github.com/exportengine/engine/internal/transform"
	"github.com/rs/zerolog"
)

// Result is the Orchestrator's output: a tabular shape plus the
// statistics attached to the Run Record at termination.
type Result struct {
	Headers []string
	Rows    [][]string
	Stats   model.Stats
}

// Orchestrator runs exactly one export configuration's three phases.
type Orchestrator struct {
	fetchers  *fetch.Registry
	enrichers *enrich.Registry
	catalog   *catalog.Catalog
	dicts     transform.Dictionaries
	vatRate   float64
	log       zerolog.Logger
}

// New constructs an Orchestrator wired against the engine's fetcher and
// enricher registries and the immutable dataset catalog.
func New(fetchers *fetch.Registry, enrichers *enrich.Registry, cat *catalog.Catalog, dicts transform.Dictionaries, vatRate float64, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{fetchers: fetchers, enrichers: enrichers, catalog: cat, dicts: dicts, vatRate: vatRate, log: log}
}

// Execute runs FETCH -> ENRICH -> TRANSFORM for one configuration
// (spec §4.7). It returns promptly on context cancellation, producing no
// partial output.
func (o *Orchestrator) Execute(ctx context.Context, cfg model.ExportConfiguration, maxRecords int) (Result, error) {
	start := time.Now()
	stats := model.Stats{}

	dataset, ok := o.catalog.GetDataset(cfg.DatasetID)
	if !ok {
		return Result{}, &ConfigurationError{Reason: "unknown dataset: " + cfg.DatasetID}
	}

	columns := transform.DeriveColumns(dataset, cfg.SelectedFields, cfg.CustomHeaders, cfg.CustomFields)
	if len(columns) == 0 {
		return Result{Headers: []string{}, Rows: [][]string{}, Stats: stats}, nil
	}

	fetcher, ok := o.fetchers.Get(cfg.DatasetID)
	if !ok {
		return Result{}, &ConfigurationError{Reason: "no fetcher registered for dataset: " + cfg.DatasetID}
	}

	// FETCH
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	records, err := fetcher.Fetch(ctx, cfg.Filters, maxRecords)
	if err != nil {
		return Result{}, err
	}
	stats.FetchedRecords = len(records)

	// Empty early exit (spec §4.7 "empty early exit").
	if len(records) == 0 {
		headers, rows := transform.Transform(records, columns, transform.BuildOptions(cfg))
		stats.TransformedRows = len(rows)
		stats.TotalWallTime = time.Since(start)
		return Result{Headers: headers, Rows: rows, Stats: stats}, nil
	}

	// ENRICH
	tags := o.catalog.GetRequiredEnrichments(cfg.DatasetID, cfg.SelectedFields, cfg.Currency.Enabled)
	for _, tag := range tags {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		e, ok := o.enrichers.Get(tag)
		if !ok {
			o.log.Warn().Str("tag", tag).Msg("no enricher registered for required capability")
			continue
		}
		enriched, stat := e.Enrich(ctx, records)
		if stat.SoftError != "" {
			// Enricher failure policy: log, record the error in stats and
			// continue. The enricher's returned records are kept, including
			// the empty/fallback values it filled for records it could not
			// enrich.
			o.log.Warn().Str("tag", tag).Str("error", stat.SoftError).Msg("enricher reported a soft failure")
			stats.Errors = append(stats.Errors, tag+": "+stat.SoftError)
		}
		records = enriched
		stats.Enrichers = append(stats.Enrichers, model.EnricherStat{
			Tag: stat.Tag, Calls: stat.Calls, Duration: stat.Duration, SoftError: stat.SoftError,
		})
	}
	stats.EnrichedRecords = len(records)

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	// TRANSFORM
	transform.SynthesizeOrdersFields(records, dataset, o.dicts, o.vatRate)
	headers, rows := transform.Transform(records, columns, transform.BuildOptions(cfg))
	stats.TransformedRows = len(rows)
	stats.TotalWallTime = time.Since(start)

	return Result{Headers: headers, Rows: rows, Stats: stats}, nil
}

// ConfigurationError surfaces an unrecoverable configuration problem: an
// unknown dataset, or an absent fetcher registration (spec §7). A run
// fails before FETCH when this is returned.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string { return "configuration error: " + e.Reason }
