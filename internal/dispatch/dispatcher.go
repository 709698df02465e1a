// Package dispatch implements C8: the Run Dispatcher & Scheduler —
// idempotent run dispatch keyed on a client-supplied runId, a per-config
// concurrency lock, a stale-run sweeper, and a cron-driven scheduling tick
// (spec §4.8).
package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/exportengine/engine/internal/model"
	"github.com/exportengine/engine/internal/pipeline"
	"github.com/exportengine/engine/internal/writer"
	"github.com/rs/zerolog"
)

// DefaultStaleThreshold is the default duration a run may sit in pending or
// running before it is exposed as stale (spec §4.8).
const DefaultStaleThreshold = 15 * time.Minute

// DefaultWallClockCeiling is the default per-run cancellation ceiling
// (spec §5 "cancellation and timeouts").
const DefaultWallClockCeiling = 10 * time.Minute

// ConfigProvider loads the read-only Export Configuration for a configId.
// The engine never mutates configurations; persistence and lifecycle for
// this data are an external concern (spec §3).
type ConfigProvider interface {
	GetConfig(configID string) (model.ExportConfiguration, bool)
	ListConfigs() []model.ExportConfiguration
}

// ErrUnknownConfig is returned when the configId has no registered
// configuration.
var ErrUnknownConfig = errors.New("unknown export configuration")

// TimeoutExceeded is returned when a run breaches the dispatcher's
// per-run wall-clock ceiling (spec §7).
type TimeoutExceeded struct{ ConfigID string }

func (e *TimeoutExceeded) Error() string { return "run timed out for config " + e.ConfigID }

// EventPublisher receives run lifecycle notifications (spec §10, the
// operational websocket stream). Dispatch works perfectly well with a nil
// publisher; Publish is only called when one is configured.
type EventPublisher interface {
	Publish(runID, configID, state, message string)
}

// Outcome is what runExport returns to its caller (spec §4.8).
type Outcome struct {
	RunID        string
	State        model.RunState
	Cached       bool
	InProgress   bool
	Stale        bool
	ErrorMessage string
	Result       *pipeline.Result
}

// Dispatcher is the single point through which runExport must be called for
// a given configId; fanning out across workers without routing through the
// same instance (or a shared lock keyed on configId) violates the "one run
// per config" invariant (spec §4.8 "scope of this spec").
type Dispatcher struct {
	configs         ConfigProvider
	runs            RunStore
	orchestratorFor func(cfg model.ExportConfiguration) *pipeline.Orchestrator
	writer          writer.Writer
	staleThreshold  time.Duration
	wallClock       time.Duration
	log             zerolog.Logger
	events          EventPublisher

	mu       sync.Mutex
	inFlight map[string]string // configID -> runID of its live run
}

// New constructs a Dispatcher. orchestratorFor lets callers supply a
// per-run Orchestrator (so each run gets a fresh tenant-scoped upstream
// client, per spec "instantiates the Orchestrator with the tenant's
// token").
func New(configs ConfigProvider, runs RunStore, orchestratorFor func(model.ExportConfiguration) *pipeline.Orchestrator, w writer.Writer, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		configs:         configs,
		runs:            runs,
		orchestratorFor: orchestratorFor,
		writer:          w,
		staleThreshold:  DefaultStaleThreshold,
		wallClock:       DefaultWallClockCeiling,
		log:             log,
		inFlight:        make(map[string]string),
	}
}

// WithStaleThreshold overrides the default staleness threshold (tests use
// this to avoid waiting 15 real minutes).
func (d *Dispatcher) WithStaleThreshold(threshold time.Duration) *Dispatcher {
	d.staleThreshold = threshold
	return d
}

// WithWallClock overrides the default per-run wall-clock ceiling.
func (d *Dispatcher) WithWallClock(ceiling time.Duration) *Dispatcher {
	d.wallClock = ceiling
	return d
}

// WithEventPublisher attaches a run lifecycle event publisher.
func (d *Dispatcher) WithEventPublisher(events EventPublisher) *Dispatcher {
	d.events = events
	return d
}

func (d *Dispatcher) publish(runID, configID, state, message string) {
	if d.events != nil {
		d.events.Publish(runID, configID, state, message)
	}
}

// RunExport is the C8 entry point (spec §4.8). It is idempotent on runID
// and enforces at most one running execution per configID.
func (d *Dispatcher) RunExport(ctx context.Context, configID, runID string, trigger model.Trigger) (Outcome, error) {
	// Idempotency: an existing Run Record for this runID short-circuits
	// execution entirely.
	if existing, err := d.runs.Get(runID); err == nil {
		return d.outcomeFromExisting(existing), nil
	} else if !errors.Is(err, ErrRunNotFound) {
		return Outcome{}, err
	}

	cfg, ok := d.configs.GetConfig(configID)
	if !ok {
		return Outcome{}, ErrUnknownConfig
	}

	if !d.tryLock(configID, runID) {
		d.mu.Lock()
		liveRunID := d.inFlight[configID]
		d.mu.Unlock()
		return Outcome{RunID: liveRunID, InProgress: true}, nil
	}
	defer d.unlock(configID)

	rec := model.RunRecord{
		RunID: runID, ConfigID: configID, Trigger: trigger,
		State: model.RunRunning, StartedAt: time.Now(), Destination: cfg.Destination,
	}
	if err := d.runs.Insert(rec); err != nil {
		return Outcome{}, err
	}
	d.publish(runID, configID, string(model.RunRunning), "")

	runCtx, cancel := context.WithTimeout(ctx, d.wallClock)
	defer cancel()

	orchestrator := d.orchestratorFor(cfg)
	result, err := orchestrator.Execute(runCtx, cfg, 0)
	if err != nil {
		return d.fail(rec, classifyExecutionError(err, configID))
	}

	rowsWritten, err := d.writer.Write(runCtx, cfg.Destination, result.Headers, result.Rows, cfg.WriteMode)
	if err != nil {
		return d.fail(rec, &writer.WriterError{Err: err})
	}

	rec.State = model.RunSucceeded
	rec.EndedAt = time.Now()
	rec.RowCount = rowsWritten
	rec.Stats = result.Stats
	if err := d.runs.Update(rec); err != nil {
		return Outcome{}, err
	}
	d.publish(runID, configID, string(model.RunSucceeded), "")

	return Outcome{RunID: runID, State: model.RunSucceeded, Result: &result}, nil
}

func (d *Dispatcher) fail(rec model.RunRecord, err error) (Outcome, error) {
	rec.State = model.RunFailed
	rec.EndedAt = time.Now()
	rec.ErrorMessage = err.Error()
	if updateErr := d.runs.Update(rec); updateErr != nil {
		d.log.Error().Err(updateErr).Str("runId", rec.RunID).Msg("failed to persist failed run state")
	}
	d.publish(rec.RunID, rec.ConfigID, string(model.RunFailed), rec.ErrorMessage)
	return Outcome{RunID: rec.RunID, State: model.RunFailed, ErrorMessage: rec.ErrorMessage}, nil
}

func classifyExecutionError(err error, configID string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutExceeded{ConfigID: configID}
	}
	return err
}

// tryLock enforces "at most one run may be in running state per
// configuration identifier" (spec §4.8).
func (d *Dispatcher) tryLock(configID, runID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, busy := d.inFlight[configID]; busy {
		return false
	}
	d.inFlight[configID] = runID
	return true
}

func (d *Dispatcher) unlock(configID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.inFlight, configID)
}

// outcomeFromExisting maps a previously recorded Run Record onto the
// idempotent-dispatch outcome shape (spec §4.8 "idempotency"). Staleness is
// judged against this dispatcher's configured threshold so cached reads and
// the sweeper agree on what "stale" means.
func (d *Dispatcher) outcomeFromExisting(rec model.RunRecord) Outcome {
	o := Outcome{RunID: rec.RunID, State: rec.State, ErrorMessage: rec.ErrorMessage}
	switch rec.State {
	case model.RunPending, model.RunRunning:
		o.InProgress = true
		if time.Since(rec.StartedAt) > d.staleThreshold {
			o.Stale = true
		}
	default:
		o.Cached = true
	}
	return o
}
