package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFor(t *testing.T) {
	cfg := DefaultConfig()

	var counter int64
	n := 1000

	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	assert.Equal(t, int64(n), counter)
}

func TestFor_EachIndexOnce(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 3, MinChunkSize: 1}

	seen := make([]int32, 10)
	For(len(seen), func(i int) {
		atomic.AddInt32(&seen[i], 1)
	}, cfg)

	for i, v := range seen {
		assert.Equal(t, int32(1), v, "index %d", i)
	}
}

func TestFor_Sequential(t *testing.T) {
	cfg := Config{Enabled: false}

	var order []int
	For(5, func(i int) {
		order = append(order, i)
	}, cfg)

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestShards(t *testing.T) {
	var counter int64
	err := Shards(context.Background(), 8, func(_ context.Context, shard int) error {
		atomic.AddInt64(&counter, int64(shard))
		return nil
	}, Config{Enabled: true, NumWorkers: 2})

	require.NoError(t, err)
	assert.Equal(t, int64(28), counter)
}

func TestShards_FirstErrorCancels(t *testing.T) {
	boom := errors.New("boom")

	var ran int64
	err := Shards(context.Background(), 50, func(ctx context.Context, shard int) error {
		atomic.AddInt64(&ran, 1)
		if shard == 0 {
			return boom
		}
		<-ctx.Done()
		return ctx.Err()
	}, Config{Enabled: false})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, int64(1), ran, "sequential shards stop after the first failure")
}

func TestShards_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Shards(ctx, 3, func(context.Context, int) error {
		t.Error("no shard should run")
		return nil
	}, DefaultConfig())

	require.ErrorIs(t, err, context.Canceled)
}
