package enrich

import (
	"context"
	"fmt"
	"sort"

	"github.com/exportengine/engine/internal/model"
)

// DocumentsEnricher maps fiscal documents onto ds1_*/ds2_* columns: the
// newest document to ds1, the next most recent (typically a correction) to
// ds2 (spec §4.4).
type DocumentsEnricher struct {
	caller        Caller
	parentIDField string
}

// NewDocumentsEnricher constructs the sales-document enricher.
func NewDocumentsEnricher(caller Caller) *DocumentsEnricher {
	return &DocumentsEnricher{caller: caller, parentIDField: "order_id"}
}

func (e *DocumentsEnricher) Tag() string { return "documents" }

func (e *DocumentsEnricher) Enrich(ctx context.Context, records []model.Record) ([]model.Record, Stat) {
	var byParent map[string][]map[string]any
	stat := run("documents", func() (int, error) {
		resp, err := e.caller.Call(ctx, "getDocuments", map[string]any{})
		if err != nil {
			return 1, err
		}
		byParent = bucketByParent(asSlice(resp["result"]), "order_id")
		return 1, nil
	})

	for _, rec := range records {
		parentID := fmt.Sprintf("%v", rec[e.parentIDField])
		docs := byParent[parentID]
		sort.SliceStable(docs, func(i, j int) bool {
			return asString(docs[i]["date"]) > asString(docs[j]["date"])
		})
		for i, prefix := range []string{"ds1", "ds2"} {
			numKey := prefix + "_number"
			dateKey := prefix + "_date"
			if i >= len(docs) {
				setIfAbsent(rec, numKey, "")
				setIfAbsent(rec, dateKey, "")
				continue
			}
			setIfAbsent(rec, numKey, asString(docs[i]["number"]))
			setIfAbsent(rec, dateKey, asString(docs[i]["date"]))
		}
	}

	return records, stat
}
