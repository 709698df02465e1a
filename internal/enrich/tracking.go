package enrich

import (
	"context"
	"fmt"

	"github.com/exportengine/engine/internal/model"
)

// trackingResult is one shipment's courier status history, reduced to the
// newest event and the total event count.
type trackingResult struct {
	latestStatus string
	latestAt     string
	eventCount   int
}

// TrackingEnricher issues one upstream call per shipment tracking number
// (previously flattened by PackagesEnricher into pkg1_*/pkg2_* columns),
// picks the newest status event and counts total events (spec §4.4). It
// declares a catalog dependency on "packages" (internal/catalog/datasets.go)
// since it reads the columns that enricher produces.
type TrackingEnricher struct {
	caller      Caller
	concurrency int
}

// NewTrackingEnricher constructs the tracking enricher.
func NewTrackingEnricher(caller Caller) *TrackingEnricher {
	return &TrackingEnricher{caller: caller, concurrency: defaultBatchConcurrency}
}

func (e *TrackingEnricher) Tag() string { return "tracking" }

func (e *TrackingEnricher) Enrich(ctx context.Context, records []model.Record) ([]model.Record, Stat) {
	numbers := shipmentTrackingNumbers(records)

	var results map[string]any
	var errs []error
	stat := run("tracking", func() (int, error) {
		results, errs = fanOut(numbers, e.concurrency, func(key string) (any, error) {
			return e.fetchOne(ctx, key)
		})
		if len(errs) > 0 {
			return len(numbers), errs[0]
		}
		return len(numbers), nil
	})

	for _, rec := range records {
		var best *trackingResult
		total := 0
		for _, num := range recordTrackingNumbers(rec) {
			v, ok := results[num]
			if !ok {
				continue
			}
			tr := v.(trackingResult)
			total += tr.eventCount
			if best == nil || tr.latestAt > best.latestAt {
				best = &tr
			}
		}
		if best == nil {
			setIfAbsent(rec, "tracking_status", "")
			setIfAbsent(rec, "tracking_event_count", 0)
			continue
		}
		setIfAbsent(rec, "tracking_status", best.latestStatus)
		setIfAbsent(rec, "tracking_event_count", total)
	}

	return records, stat
}

func (e *TrackingEnricher) fetchOne(ctx context.Context, trackingNumber string) (trackingResult, error) {
	resp, err := e.caller.Call(ctx, "getCourierStatusHistory", map[string]any{"trackingNumber": trackingNumber})
	if err != nil {
		return trackingResult{}, err
	}
	events := asSlice(resp["result"])
	tr := trackingResult{eventCount: len(events)}
	for _, ev := range events {
		m, ok := ev.(map[string]any)
		if !ok {
			continue
		}
		at := asString(m["occurred_at"])
		if at >= tr.latestAt {
			tr.latestAt = at
			tr.latestStatus = asString(m["status"])
		}
	}
	return tr, nil
}

// shipmentTrackingNumbers collects the distinct, non-empty pkg*_tracking_number
// values across every record.
func shipmentTrackingNumbers(records []model.Record) []string {
	seen := make(map[string]bool)
	var numbers []string
	for _, rec := range records {
		for _, num := range recordTrackingNumbers(rec) {
			if num == "" || seen[num] {
				continue
			}
			seen[num] = true
			numbers = append(numbers, num)
		}
	}
	return numbers
}

func recordTrackingNumbers(rec model.Record) []string {
	var numbers []string
	for i := 1; i <= maxPackagesPerParent; i++ {
		key := fmt.Sprintf("pkg%d_tracking_number", i)
		if v, ok := rec[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				numbers = append(numbers, s)
			}
		}
	}
	return numbers
}
