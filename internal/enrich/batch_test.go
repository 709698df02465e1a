package enrich

import (
	"errors"
	"sort"
	"sync/atomic"
	"testing"

	"github.com/exportengine/engine/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestUniqueKeysPreservesFirstSeenOrderAndDropsEmpty(t *testing.T) {
	records := []model.Record{
		{"order_id": "1"}, {"order_id": "2"}, {"order_id": "1"}, {"order_id": ""}, {},
	}
	assert.Equal(t, []string{"1", "2"}, uniqueKeys(records, "order_id"))
}

func TestFanOutBoundsConcurrencyAndCollectsResults(t *testing.T) {
	var inFlight int32
	var maxSeen int32

	keys := []string{"a", "b", "c", "d", "e", "f"}
	results, errs := fanOut(keys, 2, func(key string) (any, error) {
		n := atomic.AddInt32(&inFlight, 1)
		defer atomic.AddInt32(&inFlight, -1)
		for {
			cur := atomic.LoadInt32(&maxSeen)
			if n <= cur || atomic.CompareAndSwapInt32(&maxSeen, cur, n) {
				break
			}
		}
		return key + "-done", nil
	})

	assert.Empty(t, errs)
	assert.LessOrEqual(t, maxSeen, int32(2))
	assert.Len(t, results, len(keys))
	for _, k := range keys {
		assert.Equal(t, k+"-done", results[k])
	}
}

func TestFanOutCollectsErrorsWithoutStoppingOtherKeys(t *testing.T) {
	results, errs := fanOut([]string{"ok", "bad"}, 2, func(key string) (any, error) {
		if key == "bad" {
			return nil, errors.New("boom")
		}
		return "fine", nil
	})

	assert.Equal(t, "fine", results["ok"])
	assert.Len(t, errs, 1)

	var msgs []string
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	sort.Strings(msgs)
	assert.Equal(t, []string{"boom"}, msgs)
}
