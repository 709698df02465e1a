// Package enrich implements C4: the enrichers that augment a fetched record
// set with related data from auxiliary upstream endpoints (spec §4.4).
package enrich

import (
	"context"
	"time"

	"github.com/exportengine/engine/internal/model"
)

// Stat reports one enricher's contribution to a run's statistics (spec §4.7).
type Stat struct {
	Tag       string
	Calls     int
	Duration  time.Duration
	SoftError string // non-empty if an upstream call failed; affected records still get empty/fallback values
}

// Enricher is the polymorphic interface every C4 capability implements.
// Enrich must not change a record's existing non-null values (spec §4.4
// "key stability") — it may only fill null/absent keys and add new ones.
type Enricher interface {
	Tag() string
	Enrich(ctx context.Context, records []model.Record) ([]model.Record, Stat)
}

// setIfAbsent writes value to rec[key] only if the key is currently absent
// or nil, preserving the key-stability contract every enricher must honor.
func setIfAbsent(rec model.Record, key string, value any) {
	if existing, ok := rec[key]; ok && existing != nil {
		return
	}
	rec[key] = value
}

// run wraps body with panic-free timing and converts a returned error into
// a Stat.SoftError, matching the orchestrator's soft-failure policy (spec
// §4.4 "partial failure": a single upstream error fills empty values and
// records an error; it does not abort the run).
func run(tag string, body func() (int, error)) Stat {
	start := time.Now()
	calls, err := body()
	stat := Stat{Tag: tag, Calls: calls, Duration: time.Since(start)}
	if err != nil {
		stat.SoftError = err.Error()
	}
	return stat
}

// Registry resolves enrichers by capability tag, in the order the Catalog
// returned from GetRequiredEnrichments.
type Registry struct {
	enrichers map[string]Enricher
}

// NewRegistry creates an empty enricher registry.
func NewRegistry() *Registry {
	return &Registry{enrichers: make(map[string]Enricher)}
}

// Register associates a capability tag with its enricher implementation.
func (r *Registry) Register(e Enricher) {
	r.enrichers[e.Tag()] = e
}

// Get resolves the enricher for tag.
func (r *Registry) Get(tag string) (Enricher, bool) {
	e, ok := r.enrichers[tag]
	return e, ok
}
