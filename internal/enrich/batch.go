package enrich

import (
	"fmt"
	"sync"

	"github.com/exportengine/engine/internal/model"
)

// defaultBatchConcurrency is the bounded fan-out ceiling for per-key
// upstream lookups (spec §5: "batch size typically <= 20 concurrent
// requests").
const defaultBatchConcurrency = 20

// uniqueKeys collects the distinct, non-empty string form of field across
// records, preserving first-seen order for determinism.
func uniqueKeys(records []model.Record, field string) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, rec := range records {
		v, ok := rec[field]
		if !ok || v == nil {
			continue
		}
		s := fmt.Sprintf("%v", v)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		keys = append(keys, s)
	}
	return keys
}

// fanOut calls fn once per key with bounded concurrency and collects the
// results into a map. A single key's error does not stop the others; it is
// surfaced via the errs slice.
func fanOut(keys []string, concurrency int, fn func(key string) (any, error)) (map[string]any, []error) {
	if concurrency <= 0 {
		concurrency = defaultBatchConcurrency
	}

	results := make(map[string]any, len(keys))
	var errs []error
	var mu sync.Mutex
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, key := range keys {
		wg.Add(1)
		sem <- struct{}{}
		go func(key string) {
			defer wg.Done()
			defer func() { <-sem }()

			val, err := fn(key)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			results[key] = val
		}(key)
	}

	wg.Wait()
	return results, errs
}
