package database

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAttemptCounter(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryAttemptCounter()

	n, err := c.Incr(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, _ = c.Incr(ctx, "k")
	assert.Equal(t, int64(2), n)
	n, _ = c.Incr(ctx, "other")
	assert.Equal(t, int64(1), n)

	require.NoError(t, c.Reset(ctx, "k"))
	n, _ = c.Incr(ctx, "k")
	assert.Equal(t, int64(1), n)
}

func TestMemoryAttemptCounterConcurrent(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryAttemptCounter()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Incr(ctx, "k")
		}()
	}
	wg.Wait()

	n, _ := c.Incr(ctx, "k")
	assert.Equal(t, int64(51), n)
}

func TestInitRedisUnreachable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := InitRedis(ctx, "127.0.0.1:1", "", 0)
	assert.Error(t, err)
}
