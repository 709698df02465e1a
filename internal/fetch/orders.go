package fetch

import (
	"context"
	"fmt"
	"strconv"

	"github.com/exportengine/engine/internal/model"
)

// Caller is the subset of upstream.Client a fetcher needs. Declared here
// (rather than importing the concrete type) so fetchers can be tested
// against a fake without standing up HTTP infrastructure.
type Caller interface {
	Call(ctx context.Context, method string, params any) (map[string]any, error)
}

const ordersPageSize = 100

// OrdersFetcher fetches the "orders" dataset via numeric-page pagination,
// the pagination discipline this dataset's upstream method declares
// (spec §4.3).
type OrdersFetcher struct {
	caller Caller
	stats  Stats
}

// NewOrdersFetcher constructs a fetcher for the orders dataset.
func NewOrdersFetcher(caller Caller) *OrdersFetcher {
	return &OrdersFetcher{caller: caller}
}

func (f *OrdersFetcher) Fetch(ctx context.Context, filters map[string]any, maxRecords int) ([]model.Record, error) {
	f.stats = Stats{}

	records, err := fetchAllPages(ctx, func(ctx context.Context, continuation string) (Page, error) {
		page := 1
		if continuation != "" {
			p, err := strconv.Atoi(continuation)
			if err != nil {
				return Page{}, fmt.Errorf("invalid continuation token: %w", err)
			}
			page = p
		}

		params := translateOrderFilters(filters)
		params["page"] = page
		params["limit"] = ordersPageSize

		resp, err := f.caller.Call(ctx, "getOrders", params)
		if err != nil {
			return Page{}, err
		}

		rows := asSlice(resp["result"])
		f.stats.Pages++

		records := make([]model.Record, 0, len(rows))
		for _, row := range rows {
			if rec, ok := row.(map[string]any); ok {
				records = append(records, normalizeOrderRow(rec))
			}
		}

		next := ""
		if len(rows) == ordersPageSize {
			next = strconv.Itoa(page + 1)
		}

		return Page{Records: records, Continuation: next}, nil
	}, maxRecords)

	f.stats.Records = len(records)
	return records, err
}

func (f *OrdersFetcher) Stats() Stats {
	return f.stats
}

// translateOrderFilters maps the configuration's filter shape to the
// upstream parameter vocabulary for getOrders; unknown keys are ignored
// (spec §4.3).
func translateOrderFilters(filters map[string]any) map[string]any {
	params := make(map[string]any)
	if v, ok := filters["dateFrom"]; ok {
		params["date_from"] = v
	}
	if v, ok := filters["dateTo"]; ok {
		params["date_to"] = v
	}
	if v, ok := filters["status"]; ok {
		params["status_id"] = v
	}
	if v, ok := filters["source"]; ok {
		params["source_id"] = v
	}
	return params
}

// normalizeOrderRow copies an upstream order row into a Record; upstream
// field names are used as the record's field keys unchanged.
func normalizeOrderRow(row map[string]any) model.Record {
	rec := model.Record{}
	for k, v := range row {
		rec[k] = v
	}
	return rec
}

func asSlice(v any) []any {
	if v == nil {
		return nil
	}
	if s, ok := v.([]any); ok {
		return s
	}
	return nil
}
