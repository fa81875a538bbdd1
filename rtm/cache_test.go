package rtm_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/apex-wang/AUIKit/rtm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheCheckAndUpdate(t *testing.T) {
	ctx := context.Background()
	c := rtm.NewMemoryCache(4)

	changed, err := c.CheckAndUpdate(ctx, "room1", "song", "[]")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = c.CheckAndUpdate(ctx, "room1", "song", "[]")
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = c.CheckAndUpdate(ctx, "room2", "song", "[]")
	require.NoError(t, err)
	assert.True(t, changed, "targets are independent")

	v, ok := c.Lookup("room1", "song")
	assert.True(t, ok)
	assert.Equal(t, "[]", v)
}

func TestMemoryCacheClear(t *testing.T) {
	ctx := context.Background()
	c := rtm.NewMemoryCache(0)

	_, _ = c.CheckAndUpdate(ctx, "room1", "song", "[1]")
	_, _ = c.CheckAndUpdate(ctx, "room2", "song", "[1]")
	require.NoError(t, c.Clear(ctx, "room1"))
	require.NoError(t, c.Clear(ctx, "missing"))

	_, ok := c.Lookup("room1", "song")
	assert.False(t, ok)
	_, ok = c.Lookup("room2", "song")
	assert.True(t, ok)
}

func TestMemoryCacheConcurrentWritersSeeOneChange(t *testing.T) {
	ctx := context.Background()
	c := rtm.NewMemoryCache(8)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		changes int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			changed, err := c.CheckAndUpdate(ctx, "room1", "song", "same")
			if err == nil && changed {
				mu.Lock()
				changes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, changes)

	for i := 0; i < 16; i++ {
		changed, err := c.CheckAndUpdate(ctx, fmt.Sprintf("room-%d", i), "song", "same")
		require.NoError(t, err)
		assert.True(t, changed)
	}
}
