package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asitkr/event-loop-visualizer/internal/ir"
)

func TestClock_StartsAtOne(t *testing.T) {
	c := NewClock()
	assert.Zero(t, c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())
}

func TestClock_ConcurrentNextIsUnique(t *testing.T) {
	c := NewClock()
	const workers, perWorker = 50, 200

	var (
		mu   sync.Mutex
		seen = make(map[int64]struct{}, workers*perWorker)
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				v := c.Next()
				mu.Lock()
				seen[v] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
	assert.Equal(t, int64(workers*perWorker), c.Current())
}

// Item IDs keep counting across runs of one engine, so an ID seen in an old
// snapshot never names an item of a later run.
func TestClock_ItemIDsSurviveRerun(t *testing.T) {
	e, rec := newTestEngine(t)
	program := `console.log("a");
console.log("b");`

	runToEnd(t, e, program)
	first := stagedIDs(rec.snapshots())
	n := len(rec.snapshots())

	runToEnd(t, e, program)
	second := stagedIDs(rec.snapshots()[n:])

	require.Len(t, first, 2)
	require.Len(t, second, 2)
	assert.Greater(t, second[0], first[1])
}

// stagedIDs returns the IDs of items in the order they reached the call stack.
func stagedIDs(snaps []ir.Snapshot) []int64 {
	var ids []int64
	for _, s := range snaps {
		for _, it := range s.CallStack {
			if len(ids) == 0 || ids[len(ids)-1] != it.ID {
				ids = append(ids, it.ID)
			}
		}
	}
	return ids
}
