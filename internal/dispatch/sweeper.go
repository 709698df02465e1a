package dispatch

import (
	"context"
	"time"

	"github.com/exportengine/engine/internal/model"
	"github.com/rs/zerolog"
)

// StuckRun is the failure reason recorded when the sweeper reclaims a run
// that sat in pending or running past the stale threshold without any
// observed progress (spec §7 "stuck runs").
type StuckRun struct {
	RunID     string
	ConfigID  string
	StartedAt time.Time
}

func (e *StuckRun) Error() string {
	return "run " + e.RunID + " for config " + e.ConfigID + " exceeded the stale threshold and was reclaimed"
}

// Sweeper periodically reclaims Run Records that have been sitting in
// pending or running past the stale threshold, on the assumption that the
// process that owned them died without updating their state (spec §4.8
// "stale runs", modeled on the teacher's periodic reconciliation sweep).
type Sweeper struct {
	runs      RunStore
	threshold time.Duration
	log       zerolog.Logger
}

// NewSweeper constructs a Sweeper against runs, reclaiming anything older
// than threshold.
func NewSweeper(runs RunStore, threshold time.Duration, log zerolog.Logger) *Sweeper {
	return &Sweeper{runs: runs, threshold: threshold, log: log.With().Str("component", "sweeper").Logger()}
}

// Sweep finds every pending/running run started before now-threshold and
// transitions it to failed with a StuckRun error. It returns the number of
// runs reclaimed. A failure to persist one run's transition is logged and
// does not stop the sweep of the remaining runs.
func (s *Sweeper) Sweep(now time.Time) (int, error) {
	stuck, err := s.runs.StuckRuns(now.Add(-s.threshold))
	if err != nil {
		return 0, err
	}

	reclaimed := 0
	for _, rec := range stuck {
		reason := &StuckRun{RunID: rec.RunID, ConfigID: rec.ConfigID, StartedAt: rec.StartedAt}
		rec.State = model.RunFailed
		rec.EndedAt = now
		rec.ErrorMessage = reason.Error()
		if err := s.runs.Update(rec); err != nil {
			s.log.Error().Err(err).Str("runId", rec.RunID).Msg("failed to reclaim stuck run")
			continue
		}
		s.log.Warn().Str("runId", rec.RunID).Str("configId", rec.ConfigID).Msg("reclaimed stuck run")
		reclaimed++
	}
	return reclaimed, nil
}

// Run ticks Sweep on interval until ctx is done, matching the teacher's
// ticker-driven background loop (trader-go scheduler / work.Processor).
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(time.Now()); err != nil {
				s.log.Error().Err(err).Msg("sweep failed")
			}
		}
	}
}
