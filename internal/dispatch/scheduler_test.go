package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/exportengine/engine/internal/model"
	"github.com/exportengine/engine/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scheduledConfig(id string, minutes int) model.ExportConfiguration {
	cfg := testConfig()
	cfg.ID = id
	cfg.ScheduleMinutes = minutes
	return cfg
}

func newTestDispatcher(configs *fakeConfigProvider, runs *fakeRunStore, w *fakeWriter) *Dispatcher {
	return New(configs, runs, func(model.ExportConfiguration) *pipeline.Orchestrator {
		return pipeline.New(nil, nil, nil, nil, 0, testLogger())
	}, w, testLogger())
}

func TestDispatchTickSkipsStreamingConfigs(t *testing.T) {
	configs := newFakeConfigProvider(scheduledConfig("cfg-stream", 0))
	runs := newFakeRunStore()
	w := &fakeWriter{}
	job := NewDispatchTickJob(configs, runs, newTestDispatcher(configs, runs, w), testLogger())

	err := job.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, w.calls)
}

func TestDispatchTickDispatchesNeverRunConfig(t *testing.T) {
	configs := newFakeConfigProvider(scheduledConfig("cfg-due", 30))
	runs := newFakeRunStore()
	w := &fakeWriter{}
	d := newTestDispatcher(configs, runs, w)
	job := NewDispatchTickJob(configs, runs, d, testLogger())

	due, err := job.isDue(configs.byID["cfg-due"], time.Now())
	require.NoError(t, err)
	assert.True(t, due, "a configuration with no prior run is always due")
}

func TestDispatchTickSkipsConfigWithFreshSucceededRun(t *testing.T) {
	cfg := scheduledConfig("cfg-fresh", 30)
	configs := newFakeConfigProvider(cfg)
	runs := newFakeRunStore()
	require.NoError(t, runs.Insert(model.RunRecord{
		RunID: "prior", ConfigID: cfg.ID, State: model.RunSucceeded,
		StartedAt: time.Now().Add(-10 * time.Minute), EndedAt: time.Now().Add(-5 * time.Minute),
	}))
	w := &fakeWriter{}
	job := NewDispatchTickJob(configs, runs, newTestDispatcher(configs, runs, w), testLogger())

	due, err := job.isDue(cfg, time.Now())
	require.NoError(t, err)
	assert.False(t, due, "last succeeded run was 5 minutes ago against a 30 minute interval")
}

func TestDispatchTickDispatchesConfigWithSucceededRunPastInterval(t *testing.T) {
	cfg := scheduledConfig("cfg-stale-ok", 30)
	configs := newFakeConfigProvider(cfg)
	runs := newFakeRunStore()
	require.NoError(t, runs.Insert(model.RunRecord{
		RunID: "prior", ConfigID: cfg.ID, State: model.RunSucceeded,
		StartedAt: time.Now().Add(-60 * time.Minute), EndedAt: time.Now().Add(-45 * time.Minute),
	}))

	due, err := (&DispatchTickJob{configs: configs, runs: runs, clock: time.Now}).isDue(cfg, time.Now())
	require.NoError(t, err)
	assert.True(t, due, "45 minutes since the last succeeded run exceeds the 30 minute interval")
}

func TestDispatchTickSkipsConfigAlreadyRunning(t *testing.T) {
	cfg := scheduledConfig("cfg-running", 30)
	configs := newFakeConfigProvider(cfg)
	runs := newFakeRunStore()
	require.NoError(t, runs.Insert(model.RunRecord{
		RunID: "in-flight", ConfigID: cfg.ID, State: model.RunRunning,
		StartedAt: time.Now(),
	}))

	due, err := (&DispatchTickJob{configs: configs, runs: runs, clock: time.Now}).isDue(cfg, time.Now())
	require.NoError(t, err)
	assert.False(t, due, "a configuration already running must not be dispatched again")
}
