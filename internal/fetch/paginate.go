// Package fetch implements C3: one fetcher per dataset, handling pagination
// and normalization of the primary record stream (spec §4.3).
package fetch

import (
	"context"
	"fmt"

	"github.com/exportengine/engine/internal/model"
)

// Page is one page of fetched records plus an opaque continuation token.
// A nil/empty Continuation signals the final page.
type Page struct {
	Records      []model.Record
	Continuation string
}

// PageFunc fetches one page given the previous continuation token (empty
// string for the first page).
type PageFunc func(ctx context.Context, continuation string) (Page, error)

// DefaultRecordCeiling is the operational default record ceiling applied
// when a caller doesn't declare one (spec §4.3: "operational default:
// 10 000").
const DefaultRecordCeiling = 10000

// fetchAllPages drives a PageFunc until it returns no continuation, the
// record ceiling is reached, or ctx is canceled (spec §4.3). maxRecords <= 0
// falls back to DefaultRecordCeiling rather than pulling unbounded.
func fetchAllPages(ctx context.Context, pageFn PageFunc, maxRecords int) ([]model.Record, error) {
	if maxRecords <= 0 {
		maxRecords = DefaultRecordCeiling
	}

	var all []model.Record
	continuation := ""

	for {
		if err := ctx.Err(); err != nil {
			return all, err
		}

		page, err := pageFn(ctx, continuation)
		if err != nil {
			return all, fmt.Errorf("fetch page failed: %w", err)
		}

		all = append(all, page.Records...)

		if maxRecords > 0 && len(all) >= maxRecords {
			return all[:maxRecords], nil
		}

		if page.Continuation == "" {
			return all, nil
		}
		continuation = page.Continuation
	}
}
