package reward

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_RecordAndStats(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, "action_001", 1.0))
	require.NoError(t, store.Record(ctx, "action_001", 0.0))

	stats, err := store.Stats(ctx, "action_001")
	require.NoError(t, err)
	assert.Equal(t, 1.0, stats.Sum)
	assert.Equal(t, int64(2), stats.Count)
	assert.Equal(t, 0.5, stats.Mean())
}

func TestMemoryStore_UnknownAction(t *testing.T) {
	store := NewMemoryStore(nil)

	stats, err := store.Stats(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Count)
	assert.Equal(t, 0.0, stats.Mean())
}

func TestMemoryStore_NegativeRewards(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, "a", -1.0))
	require.NoError(t, store.Record(ctx, "a", -1.0))

	stats, err := store.Stats(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, -1.0, stats.Mean())
}

func TestMemoryStore_ConcurrentRecords(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()

	const workers = 8
	const perWorker = 100

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				_ = store.Record(ctx, "shared", 1.0)
			}
		}()
	}
	wg.Wait()

	stats, err := store.Stats(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, int64(workers*perWorker), stats.Count)
	assert.Equal(t, float64(workers*perWorker), stats.Sum)
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	store := NewMemoryStore(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, store.Record(ctx, "a", 1.0))
	_, err := store.Stats(ctx, "a")
	assert.Error(t, err)
}

func TestStats_Add(t *testing.T) {
	merged := Stats{ActionID: "a", Sum: 2.0, Count: 3}.Add(Stats{Sum: 1.0, Count: 1})
	assert.Equal(t, "a", merged.ActionID)
	assert.Equal(t, 3.0, merged.Sum)
	assert.Equal(t, int64(4), merged.Count)
}
