package enrich

import (
	"context"

	"github.com/exportengine/engine/internal/model"
)

// labelResult holds one shipment's label and pickup-protocol availability.
type labelResult struct {
	labelAvailable    bool
	labelURL          string
	protocolAvailable bool
	protocolURL       string
}

// LabelEnricher issues two upstream calls per shipment (label, pickup
// protocol), tolerating either as absent, and exposes four boolean/URL
// columns (spec §4.4). Depends on "packages" for the same reason
// TrackingEnricher does.
type LabelEnricher struct {
	caller      Caller
	concurrency int
}

// NewLabelEnricher constructs the label enricher.
func NewLabelEnricher(caller Caller) *LabelEnricher {
	return &LabelEnricher{caller: caller, concurrency: defaultBatchConcurrency}
}

func (e *LabelEnricher) Tag() string { return "label" }

func (e *LabelEnricher) Enrich(ctx context.Context, records []model.Record) ([]model.Record, Stat) {
	numbers := shipmentTrackingNumbers(records)

	var results map[string]any
	stat := run("label", func() (int, error) {
		results, _ = fanOut(numbers, e.concurrency, func(key string) (any, error) {
			return e.fetchOne(ctx, key), nil
		})
		return len(numbers) * 2, nil
	})

	for _, rec := range records {
		var label, available bool
		var labelURL, protocolURL string
		for _, num := range recordTrackingNumbers(rec) {
			v, ok := results[num]
			if !ok {
				continue
			}
			lr := v.(labelResult)
			if lr.labelAvailable {
				label = true
				labelURL = lr.labelURL
			}
			if lr.protocolAvailable {
				available = true
				protocolURL = lr.protocolURL
			}
		}
		setIfAbsent(rec, "label_available", label)
		setIfAbsent(rec, "label_url", labelURL)
		setIfAbsent(rec, "pickup_protocol_available", available)
		setIfAbsent(rec, "pickup_protocol_url", protocolURL)
	}

	return records, stat
}

func (e *LabelEnricher) fetchOne(ctx context.Context, trackingNumber string) labelResult {
	var result labelResult

	if resp, err := e.caller.Call(ctx, "getLabel", map[string]any{"trackingNumber": trackingNumber}); err == nil {
		if url := asString(resp["url"]); url != "" {
			result.labelAvailable = true
			result.labelURL = url
		}
	}

	if resp, err := e.caller.Call(ctx, "getPickupProtocol", map[string]any{"trackingNumber": trackingNumber}); err == nil {
		if url := asString(resp["url"]); url != "" {
			result.protocolAvailable = true
			result.protocolURL = url
		}
	}

	return result
}
