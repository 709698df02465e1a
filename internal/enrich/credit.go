package enrich

import (
	"context"
	"fmt"

	"github.com/exportengine/engine/internal/model"
)

// creditResult is one contractor's reduced credit-limit snapshot.
type creditResult struct {
	currentDebt float64
	overdueDebt float64
	limit       float64
}

// CreditEnricher issues one call per contractor, yielding current/overdue
// debt and available credit (limit minus current debt, floored at zero)
// (spec §4.4).
type CreditEnricher struct {
	caller      Caller
	concurrency int
}

// NewCreditEnricher constructs the credit enricher.
func NewCreditEnricher(caller Caller) *CreditEnricher {
	return &CreditEnricher{caller: caller, concurrency: defaultBatchConcurrency}
}

func (e *CreditEnricher) Tag() string { return "credit" }

func (e *CreditEnricher) Enrich(ctx context.Context, records []model.Record) ([]model.Record, Stat) {
	contractors := uniqueKeys(records, "contractor_id")

	var results map[string]any
	var errs []error
	stat := run("credit", func() (int, error) {
		results, errs = fanOut(contractors, e.concurrency, func(key string) (any, error) {
			return e.fetchOne(ctx, key)
		})
		if len(errs) > 0 {
			return len(contractors), errs[0]
		}
		return len(contractors), nil
	})

	for _, rec := range records {
		id := fmt.Sprintf("%v", rec["contractor_id"])
		v, ok := results[id]
		if !ok {
			setIfAbsent(rec, "credit_current_debt", "")
			setIfAbsent(rec, "credit_overdue_debt", "")
			setIfAbsent(rec, "credit_available", "")
			continue
		}
		cr := v.(creditResult)
		available := cr.limit - cr.currentDebt
		if available < 0 {
			available = 0
		}
		setIfAbsent(rec, "credit_current_debt", round2(cr.currentDebt))
		setIfAbsent(rec, "credit_overdue_debt", round2(cr.overdueDebt))
		setIfAbsent(rec, "credit_available", round2(available))
	}

	return records, stat
}

func (e *CreditEnricher) fetchOne(ctx context.Context, contractorID string) (creditResult, error) {
	resp, err := e.caller.Call(ctx, "getCreditInfo", map[string]any{"contractorId": contractorID})
	if err != nil {
		return creditResult{}, err
	}
	return creditResult{
		currentDebt: asFloat(resp["current_debt"]),
		overdueDebt: asFloat(resp["overdue_debt"]),
		limit:       asFloat(resp["credit_limit"]),
	}, nil
}
