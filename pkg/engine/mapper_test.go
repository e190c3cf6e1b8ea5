package engine_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/E-837/ad-ops-command-center-sub002/pkg/engine"
	"github.com/stretchr/testify/assert"
)

func TestMap_PreservesInputOrder(t *testing.T) {
	items := []int{0, 1, 2, 3, 4, 5, 6, 7}

	// Later items finish first, the output must still follow input order.
	results := engine.Map(context.Background(), items, 8, func(ctx context.Context, idx int, item int) (string, error) {
		time.Sleep(time.Duration(len(items)-idx) * 5 * time.Millisecond)
		return fmt.Sprintf("item-%d", item), nil
	})

	assert.Len(t, results, len(items))
	for i, r := range results {
		assert.NoError(t, r.Err)
		assert.Equal(t, i, r.Index)
		assert.Equal(t, fmt.Sprintf("item-%d", i), r.Value)
	}
}

func TestMap_BoundsConcurrency(t *testing.T) {
	tests := []struct {
		name        string
		items       int
		concurrency int
		maxInFlight int64
	}{
		{name: "capped below item count", items: 20, concurrency: 3, maxInFlight: 3},
		{name: "sequential when zero", items: 5, concurrency: 0, maxInFlight: 1},
		{name: "sequential when negative", items: 5, concurrency: -2, maxInFlight: 1},
		{name: "capped at item count", items: 2, concurrency: 10, maxInFlight: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var inFlight, maxSeen atomic.Int64
			items := make([]int, tt.items)

			results := engine.Map(context.Background(), items, tt.concurrency, func(ctx context.Context, idx int, item int) (int, error) {
				cur := inFlight.Add(1)
				for {
					seen := maxSeen.Load()
					if cur <= seen || maxSeen.CompareAndSwap(seen, cur) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				inFlight.Add(-1)
				return idx, nil
			})

			assert.Len(t, results, tt.items)
			assert.LessOrEqual(t, maxSeen.Load(), tt.maxInFlight)
		})
	}
}

func TestMap_IsolatesFailures(t *testing.T) {
	items := []int{0, 1, 2, 3}
	var invocations atomic.Int64

	results := engine.Map(context.Background(), items, 2, func(ctx context.Context, idx int, item int) (int, error) {
		invocations.Add(1)
		if idx == 1 {
			return 0, fmt.Errorf("item %d is broken", idx)
		}
		if idx == 2 {
			panic("worker blew up")
		}
		return item * 10, nil
	})

	// One failure never aborts the batch.
	assert.Equal(t, int64(4), invocations.Load())
	assert.NoError(t, results[0].Err)
	assert.Equal(t, 0, results[0].Value)
	assert.EqualError(t, results[1].Err, "item 1 is broken")
	assert.Error(t, results[2].Err)
	assert.Contains(t, results[2].Err.Error(), "worker panic")
	assert.NoError(t, results[3].Err)
	assert.Equal(t, 30, results[3].Value)
}

func TestMap_EmptyInput(t *testing.T) {
	results := engine.Map(context.Background(), nil, 4, func(ctx context.Context, idx int, item struct{}) (int, error) {
		t.Fatal("worker must not run for empty input")
		return 0, nil
	})
	assert.Empty(t, results)
}

func TestMapFailed(t *testing.T) {
	clean := []engine.MapResult[int]{{Value: 1}, {Value: 2}}
	assert.False(t, engine.Failed(clean))

	dirty := []engine.MapResult[int]{{Value: 1}, {Err: fmt.Errorf("boom")}}
	assert.True(t, engine.Failed(dirty))
}
