package fetch

import (
	"context"

	"github.com/exportengine/engine/internal/model"
)

// Stats reports how many upstream pages/records a fetcher consumed during
// its last Fetch call.
type Stats struct {
	Pages   int
	Records int
}

// Fetcher is the polymorphic interface C3 fetchers implement: produce the
// primary record stream for one dataset (spec §4.3).
type Fetcher interface {
	// Fetch returns the primary records for this dataset, applying filters
	// translated to the upstream parameter vocabulary.
	Fetch(ctx context.Context, filters map[string]any, maxRecords int) ([]model.Record, error)
	// Stats returns counters from the most recent Fetch call.
	Stats() Stats
}

// Registry resolves a Fetcher by dataset identifier; the Orchestrator
// resolves the fetcher for a run's configured dataset through this lookup.
type Registry struct {
	fetchers map[string]Fetcher
}

// NewRegistry creates an empty fetcher registry.
func NewRegistry() *Registry {
	return &Registry{fetchers: make(map[string]Fetcher)}
}

// Register associates a dataset identifier with its fetcher.
func (r *Registry) Register(datasetID string, f Fetcher) {
	r.fetchers[datasetID] = f
}

// Get resolves the fetcher for datasetID, or (nil, false) if unregistered —
// surfaced by the caller as a ConfigurationError (spec §7).
func (r *Registry) Get(datasetID string) (Fetcher, bool) {
	f, ok := r.fetchers[datasetID]
	return f, ok
}
