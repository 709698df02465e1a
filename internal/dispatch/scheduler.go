package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/exportengine/engine/internal/model"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is a unit of scheduled work, mirroring the teacher's scheduler.Job
// interface so background jobs log and fail uniformly.
type Job interface {
	Run() error
	Name() string
}

// Scheduler drives a periodic cron tick that dispatches configurations
// whose scheduleMinutes is greater than zero once their interval has
// elapsed since the last succeeded run (spec §4.8 "scheduled triggers").
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
}

// NewScheduler constructs a Scheduler; jobs are registered with AddJob
// before Start.
func NewScheduler(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		log:  log.With().Str("component", "scheduler").Logger(),
	}
}

// Start begins running registered jobs on their schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop waits for in-flight jobs to finish and halts the cron loop.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("scheduler stopped")
}

// AddJob registers job on the given cron schedule (six-field, seconds
// first).
func (s *Scheduler) AddJob(schedule string, job Job) error {
	_, err := s.cron.AddFunc(schedule, func() {
		if err := job.Run(); err != nil {
			s.log.Error().Err(err).Str("job", job.Name()).Msg("scheduled job failed")
		}
	})
	if err != nil {
		return err
	}
	s.log.Info().Str("schedule", schedule).Str("job", job.Name()).Msg("job registered")
	return nil
}

// DispatchTickJob is the single recurring job driving scheduled exports: on
// each tick it inspects every configuration with scheduleMinutes > 0 and
// dispatches those whose last succeeded run is stale enough to be due
// (spec §4.8 "a periodic tick inspects configurations with a nonzero
// schedule interval").
type DispatchTickJob struct {
	configs    ConfigProvider
	runs       RunStore
	dispatcher *Dispatcher
	clock      func() time.Time
	log        zerolog.Logger
}

// NewDispatchTickJob constructs the recurring scheduled-export tick.
func NewDispatchTickJob(configs ConfigProvider, runs RunStore, dispatcher *Dispatcher, log zerolog.Logger) *DispatchTickJob {
	return &DispatchTickJob{
		configs:    configs,
		runs:       runs,
		dispatcher: dispatcher,
		clock:      time.Now,
		log:        log.With().Str("component", "dispatch_tick").Logger(),
	}
}

// Name satisfies Job.
func (j *DispatchTickJob) Name() string { return "scheduled-export-tick" }

// Run satisfies Job: it dispatches every due configuration and returns the
// first dispatch error encountered, after attempting the rest (a single
// misconfigured tenant must not block the others).
func (j *DispatchTickJob) Run() error {
	return j.Tick(context.Background())
}

// Tick evaluates every registered configuration for schedule due-ness and
// dispatches the due ones. Exposed separately from Run so tests can drive
// it with an explicit context and inspect errors per configuration.
func (j *DispatchTickJob) Tick(ctx context.Context) error {
	now := j.clock()
	var firstErr error
	for _, cfg := range j.configs.ListConfigs() {
		if cfg.ScheduleMinutes <= 0 {
			continue
		}
		due, err := j.isDue(cfg, now)
		if err != nil {
			j.log.Error().Err(err).Str("configId", cfg.ID).Msg("failed to evaluate schedule due-ness")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if !due {
			continue
		}

		runID := uuid.NewString()
		if _, err := j.dispatcher.RunExport(ctx, cfg.ID, runID, model.TriggerScheduled); err != nil {
			j.log.Error().Err(err).Str("configId", cfg.ID).Str("runId", runID).Msg("scheduled dispatch failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// isDue reports whether cfg's schedule interval has elapsed since its last
// succeeded run (or whether it has never run at all).
func (j *DispatchTickJob) isDue(cfg model.ExportConfiguration, now time.Time) (bool, error) {
	if _, running, err := j.runs.LatestRunning(cfg.ID); err != nil {
		return false, err
	} else if running {
		return false, nil
	}

	last, err := j.runs.LatestSucceeded(cfg.ID)
	if err != nil {
		if errors.Is(err, ErrRunNotFound) {
			return true, nil
		}
		return false, err
	}
	return now.Sub(last.EndedAt) >= time.Duration(cfg.ScheduleMinutes)*time.Minute, nil
}
