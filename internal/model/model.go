// Package model defines the core data shapes of the export engine: the
// Export Configuration, Dataset Definition, Capability Map, Normalized
// Record, Rate Entry, and Run Record described in the engine's specification.
package model

import "time"

// FieldType is the closed enumeration of semantic field types. The
// Transformer dispatches one formatter per tag; unrecognized tags fall
// through to Text.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldNumber   FieldType = "number"
	FieldCurrency FieldType = "currency"
	FieldDate     FieldType = "date"
	FieldDateTime FieldType = "datetime"
	FieldBoolean  FieldType = "boolean"
	FieldArray    FieldType = "array"
	FieldObject   FieldType = "object"
	FieldCustom   FieldType = "custom"
	FieldEmpty    FieldType = "empty"
)

// WriteMode controls how the spreadsheet writer applies rows to a destination.
type WriteMode string

const (
	WriteAppend    WriteMode = "append"
	WriteOverwrite WriteMode = "overwrite"
)

// Trigger identifies how a run was started.
type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerScheduled Trigger = "scheduled"
)

// RunState is the one-way (except pending->stale observation) lifecycle of
// a Run Record.
type RunState string

const (
	RunPending   RunState = "pending"
	RunRunning   RunState = "running"
	RunSucceeded RunState = "succeeded"
	RunFailed    RunState = "failed"
	RunStale     RunState = "stale"
)

// RateSource names the anchor-date policy for currency conversion.
type RateSource string

const (
	RateSourceDocumentDate RateSource = "document-date"
	RateSourceOrderDate    RateSource = "order-date"
	RateSourceShipDate     RateSource = "ship-date"
	RateSourceToday        RateSource = "today"
)

// CurrencyConversion holds a configuration's currency-conversion settings.
type CurrencyConversion struct {
	Enabled        bool
	TargetCurrency string
	RateSource     RateSource
}

// CustomField is a user-defined template column (key -> {label, template}).
type CustomField struct {
	Label    string
	Template string
}

// ExportConfiguration is the read-only input to the engine (spec §3). The
// engine never mutates it; persistence and lifecycle are external concerns.
type ExportConfiguration struct {
	ID              string
	TenantID        string
	DatasetID       string
	SelectedFields  []string
	Filters         map[string]any
	CustomHeaders   map[string]string
	CustomFields    map[string]CustomField
	Currency        CurrencyConversion
	ScheduleMinutes int // 0 = streaming intent, otherwise minutes between scheduled runs
	Destination     string
	WriteMode       WriteMode
	Description     string // opaque, audit-only, never interpreted
	CreatedBy       string // opaque, audit-only, never interpreted
	BooleanLabels   map[bool]string // override for boolean-column rendering; nil uses the Transformer default
}

// Field describes one column of a Dataset Definition.
type Field struct {
	Key        string
	Label      string
	Type       FieldType
	Computed   bool
	Enrichment string // capability tag that fills this field, if any
}

// FieldGroup is an ordered group of fields within a dataset (purely
// organizational — the Transformer flattens groups when deriving columns).
type FieldGroup struct {
	Name   string
	Fields []Field
}

// Dataset is a static catalog entry (spec §3 Dataset Definition).
type Dataset struct {
	ID     string
	Groups []FieldGroup
}

// FieldByKey returns the field definition for key, or false if not declared.
func (d Dataset) FieldByKey(key string) (Field, bool) {
	for _, g := range d.Groups {
		for _, f := range g.Fields {
			if f.Key == key {
				return f, true
			}
		}
	}
	return Field{}, false
}

// Record is a Normalized Record: a map from field key to scalar or scalar
// array value. Keys prefixed with "_" are private working state consumed
// only by enrichers further down the chain and never emitted by the
// Transformer.
type Record map[string]any

// Clone returns a shallow copy of the record (enrichers must not mutate a
// shared record in place across concurrent batches).
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// IsPrivate reports whether a key is a private working key never surfaced
// in Transformer output.
func IsPrivate(key string) bool {
	return len(key) > 0 && key[0] == '_'
}

// RateEntry is a cached exchange rate (spec §3), keyed by (currency, date).
type RateEntry struct {
	Currency      string
	AnchorDate    string // YYYY-MM-DD
	Rate          float64
	EffectiveDate string // YYYY-MM-DD, may differ from AnchorDate on non-trading days
	CreatedAt     time.Time
}

// RunRecord is the persisted outcome of one dispatch (spec §3).
type RunRecord struct {
	RunID         string
	ConfigID      string
	Trigger       Trigger
	State         RunState
	StartedAt     time.Time
	EndedAt       time.Time
	RowCount      int
	ErrorMessage  string
	Destination   string
	TriggeredBy   string // opaque caller identity, audit-only
	Stats         Stats
}

// DurationMs returns the run's wall-clock duration in milliseconds, zero
// if the run has not ended yet.
func (r RunRecord) DurationMs() int64 {
	if r.EndedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt).Milliseconds()
}

// EnricherStat records call count, duration and soft error for one enricher
// invoked during a run.
type EnricherStat struct {
	Tag       string
	Calls     int
	Duration  time.Duration
	SoftError string // non-empty if an upstream call failed; the enricher's output was still kept
}

// Stats is the per-run statistics the Orchestrator accumulates and attaches
// to the Run Record (spec §4.7).
type Stats struct {
	FetchedRecords   int
	EnrichedRecords  int
	TransformedRows  int
	Enrichers        []EnricherStat
	Errors           []string
	TotalWallTime    time.Duration
}
