package enrich

import (
	"context"
	"fmt"

	"github.com/exportengine/engine/internal/model"
)

// paymentResult is one parent order's reduced payment history.
type paymentResult struct {
	lastDate   string
	lastAmount float64
	sum        float64
	count      int
}

// PaymentEnricher issues per-parent payment-history calls in bounded-parallel
// batches, yielding last-payment date/amount, sum, and count (spec §4.4).
type PaymentEnricher struct {
	caller      Caller
	concurrency int
}

// NewPaymentEnricher constructs the payment enricher.
func NewPaymentEnricher(caller Caller) *PaymentEnricher {
	return &PaymentEnricher{caller: caller, concurrency: defaultBatchConcurrency}
}

func (e *PaymentEnricher) Tag() string { return "payment" }

func (e *PaymentEnricher) Enrich(ctx context.Context, records []model.Record) ([]model.Record, Stat) {
	parents := uniqueKeys(records, "order_id")

	var results map[string]any
	var errs []error
	stat := run("payment", func() (int, error) {
		results, errs = fanOut(parents, e.concurrency, func(key string) (any, error) {
			return e.fetchOne(ctx, key)
		})
		if len(errs) > 0 {
			return len(parents), errs[0]
		}
		return len(parents), nil
	})

	for _, rec := range records {
		id := fmt.Sprintf("%v", rec["order_id"])
		v, ok := results[id]
		if !ok {
			setIfAbsent(rec, "last_payment_date", "")
			setIfAbsent(rec, "last_payment_amount", "")
			setIfAbsent(rec, "payment_sum", 0.0)
			setIfAbsent(rec, "payment_count", 0)
			continue
		}
		pr := v.(paymentResult)
		setIfAbsent(rec, "last_payment_date", pr.lastDate)
		setIfAbsent(rec, "last_payment_amount", round2(pr.lastAmount))
		setIfAbsent(rec, "payment_sum", round2(pr.sum))
		setIfAbsent(rec, "payment_count", pr.count)
	}

	return records, stat
}

func (e *PaymentEnricher) fetchOne(ctx context.Context, orderID string) (paymentResult, error) {
	resp, err := e.caller.Call(ctx, "getPaymentHistory", map[string]any{"orderId": orderID})
	if err != nil {
		return paymentResult{}, err
	}

	var pr paymentResult
	for _, row := range asSlice(resp["result"]) {
		m, ok := row.(map[string]any)
		if !ok {
			continue
		}
		amount := asFloat(m["amount"])
		date := asString(m["date"])
		pr.sum += amount
		pr.count++
		if date >= pr.lastDate {
			pr.lastDate = date
			pr.lastAmount = amount
		}
	}
	return pr, nil
}
