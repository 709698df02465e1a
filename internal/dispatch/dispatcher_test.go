package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/exportengine/engine/internal/model"
	"github.com/exportengine/engine/internal/pipeline"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunStore is an in-memory RunStore for dispatcher/scheduler tests.
type fakeRunStore struct {
	mu   sync.Mutex
	recs map[string]model.RunRecord
}

func newFakeRunStore() *fakeRunStore {
	return &fakeRunStore{recs: make(map[string]model.RunRecord)}
}

func (s *fakeRunStore) Get(runID string) (model.RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[runID]
	if !ok {
		return model.RunRecord{}, ErrRunNotFound
	}
	return rec, nil
}

func (s *fakeRunStore) LatestSucceeded(configID string) (model.RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best model.RunRecord
	found := false
	for _, rec := range s.recs {
		if rec.ConfigID != configID || rec.State != model.RunSucceeded {
			continue
		}
		if !found || rec.StartedAt.After(best.StartedAt) {
			best, found = rec, true
		}
	}
	if !found {
		return model.RunRecord{}, ErrRunNotFound
	}
	return best, nil
}

func (s *fakeRunStore) LatestRunning(configID string) (model.RunRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.recs {
		if rec.ConfigID == configID && (rec.State == model.RunPending || rec.State == model.RunRunning) {
			return rec, true, nil
		}
	}
	return model.RunRecord{}, false, nil
}

func (s *fakeRunStore) Insert(rec model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[rec.RunID] = rec
	return nil
}

func (s *fakeRunStore) Update(rec model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.recs[rec.RunID]
	existing.State = rec.State
	existing.EndedAt = rec.EndedAt
	existing.RowCount = rec.RowCount
	existing.ErrorMessage = rec.ErrorMessage
	existing.Stats = rec.Stats
	s.recs[rec.RunID] = existing
	return nil
}

func (s *fakeRunStore) StuckRuns(olderThan time.Time) ([]model.RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.RunRecord
	for _, rec := range s.recs {
		if (rec.State == model.RunPending || rec.State == model.RunRunning) && rec.StartedAt.Before(olderThan) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// fakeConfigProvider serves a fixed set of configurations.
type fakeConfigProvider struct {
	byID map[string]model.ExportConfiguration
}

func newFakeConfigProvider(cfgs ...model.ExportConfiguration) *fakeConfigProvider {
	byID := make(map[string]model.ExportConfiguration, len(cfgs))
	for _, c := range cfgs {
		byID[c.ID] = c
	}
	return &fakeConfigProvider{byID: byID}
}

func (p *fakeConfigProvider) GetConfig(configID string) (model.ExportConfiguration, bool) {
	cfg, ok := p.byID[configID]
	return cfg, ok
}

func (p *fakeConfigProvider) ListConfigs() []model.ExportConfiguration {
	out := make([]model.ExportConfiguration, 0, len(p.byID))
	for _, cfg := range p.byID {
		out = append(out, cfg)
	}
	return out
}

// fakeWriter records every write it receives.
type fakeWriter struct {
	mu    sync.Mutex
	fail  error
	calls int
}

func (w *fakeWriter) Write(ctx context.Context, destination string, headers []string, rows [][]string, mode model.WriteMode) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.fail != nil {
		return 0, w.fail
	}
	return len(rows), nil
}

func testLogger() zerolog.Logger { return zerolog.Nop() }

const testConfigID = "cfg-1"

func testConfig() model.ExportConfiguration {
	return model.ExportConfiguration{
		ID:             testConfigID,
		TenantID:       "tenant-1",
		DatasetID:      "orders",
		SelectedFields: []string{"order_id"},
		Destination:    "exports/orders.csv",
		WriteMode:      model.WriteOverwrite,
	}
}

func TestRunExportIsIdempotentOnRepeatRunID(t *testing.T) {
	runs := newFakeRunStore()
	configs := newFakeConfigProvider(testConfig())
	w := &fakeWriter{}

	d := New(configs, runs, func(model.ExportConfiguration) *pipeline.Orchestrator {
		return pipeline.New(nil, nil, nil, nil, 0, testLogger())
	}, w, testLogger())

	// Seed a previously succeeded run under the runID we're about to reuse.
	require.NoError(t, runs.Insert(model.RunRecord{
		RunID: "run-1", ConfigID: testConfigID, State: model.RunSucceeded,
		StartedAt: time.Now().Add(-time.Minute), EndedAt: time.Now(), RowCount: 5,
	}))

	outcome, err := d.RunExport(context.Background(), testConfigID, "run-1", model.TriggerManual)
	require.NoError(t, err)
	assert.True(t, outcome.Cached)
	assert.Equal(t, model.RunSucceeded, outcome.State)
	assert.Equal(t, 0, w.calls, "idempotent replay must not re-invoke the writer")
}

func TestRunExportRejectsConcurrentDispatchForSameConfig(t *testing.T) {
	runs := newFakeRunStore()
	configs := newFakeConfigProvider(testConfig())
	w := &fakeWriter{}

	d := New(configs, runs, func(model.ExportConfiguration) *pipeline.Orchestrator {
		return pipeline.New(nil, nil, nil, nil, 0, testLogger())
	}, w, testLogger())

	// Manually occupy the in-flight slot the way a long-running first
	// dispatch would, then verify a second distinct runID for the same
	// config is rejected as in-progress rather than double-dispatched.
	require.True(t, d.tryLock(testConfigID, "run-a"))
	defer d.unlock(testConfigID)

	outcome, err := d.RunExport(context.Background(), testConfigID, "run-b", model.TriggerManual)
	require.NoError(t, err)
	assert.True(t, outcome.InProgress)
	assert.Equal(t, "run-a", outcome.RunID)
}

func TestRunExportUnknownConfigReturnsError(t *testing.T) {
	runs := newFakeRunStore()
	configs := newFakeConfigProvider()
	w := &fakeWriter{}
	d := New(configs, runs, func(model.ExportConfiguration) *pipeline.Orchestrator {
		return pipeline.New(nil, nil, nil, nil, 0, testLogger())
	}, w, testLogger())

	_, err := d.RunExport(context.Background(), "missing", "run-x", model.TriggerManual)
	assert.ErrorIs(t, err, ErrUnknownConfig)
}

func TestOutcomeFromExistingMarksPendingAsStaleAfterThreshold(t *testing.T) {
	rec := model.RunRecord{
		RunID: "run-z", ConfigID: testConfigID, State: model.RunPending,
		StartedAt: time.Now().Add(-20 * time.Minute),
	}
	d := New(newFakeConfigProvider(), newFakeRunStore(), nil, nil, testLogger()).WithStaleThreshold(15 * time.Minute)
	outcome := d.outcomeFromExisting(rec)
	assert.True(t, outcome.InProgress)
	assert.True(t, outcome.Stale)
}

func TestOutcomeFromExistingFreshRunningIsNotStale(t *testing.T) {
	rec := model.RunRecord{
		RunID: "run-y", ConfigID: testConfigID, State: model.RunRunning,
		StartedAt: time.Now(),
	}
	d := New(newFakeConfigProvider(), newFakeRunStore(), nil, nil, testLogger()).WithStaleThreshold(15 * time.Minute)
	outcome := d.outcomeFromExisting(rec)
	assert.True(t, outcome.InProgress)
	assert.False(t, outcome.Stale)
}

func TestOutcomeFromExistingRespectsConfiguredThreshold(t *testing.T) {
	rec := model.RunRecord{
		RunID: "run-w", ConfigID: testConfigID, State: model.RunRunning,
		StartedAt: time.Now().Add(-2 * time.Minute),
	}
	d := New(newFakeConfigProvider(), newFakeRunStore(), nil, nil, testLogger()).WithStaleThreshold(time.Minute)
	outcome := d.outcomeFromExisting(rec)
	assert.True(t, outcome.Stale)
}

func TestClassifyExecutionErrorMapsDeadlineExceeded(t *testing.T) {
	err := classifyExecutionError(context.DeadlineExceeded, "cfg-9")
	var timeoutErr *TimeoutExceeded
	require.True(t, errors.As(err, &timeoutErr))
	assert.Equal(t, "cfg-9", timeoutErr.ConfigID)
}
