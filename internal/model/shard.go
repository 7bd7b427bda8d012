package model

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/born-ml/lazylinear/internal/instance"
	"github.com/born-ml/lazylinear/internal/parallel"
)

// ShardConfig configures TrainSharded.
type ShardConfig struct {
	Parallel parallel.Config // shard fan-out
	Average  bool            // merge with scale 1/shards instead of 1
	Logger   *zap.Logger     // default: no-op
}

// TrainSharded trains one model per shard, concurrently, and merges them
// in shard order into a fresh model.
//
// newModel must return independent models; it is called once per shard and
// once for the result. Cancelling ctx stops training between instances.
func TrainSharded(ctx context.Context, shards [][]*instance.Instance, newModel func() (*LinearModel, error), cfg ShardConfig) (*LinearModel, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	models := make([]*LinearModel, len(shards))
	err := parallel.Shards(ctx, len(shards), func(ctx context.Context, shard int) error {
		m, err := newModel()
		if err != nil {
			return fmt.Errorf("shard %d: %w", shard, err)
		}

		start := time.Now()
		logger.Debug("shard started", zap.Int("shard", shard), zap.Int("instances", len(shards[shard])))
		for _, inst := range shards[shard] {
			if err := ctx.Err(); err != nil {
				return err
			}
			m.Update(inst)
		}
		logger.Debug("shard finished",
			zap.Int("shard", shard),
			zap.Int64("epoch", m.Epoch()),
			zap.Duration("took", time.Since(start)))

		models[shard] = m
		return nil
	}, cfg.Parallel)
	if err != nil {
		return nil, err
	}

	out, err := newModel()
	if err != nil {
		return nil, err
	}
	scale := 1.0
	if cfg.Average && len(models) > 0 {
		scale = 1 / float64(len(models))
	}
	for _, m := range models {
		if err := out.Merge(m, scale); err != nil {
			return nil, err
		}
	}
	logger.Info("sharded training finished",
		zap.Int("shards", len(shards)),
		zap.Int64("epoch", out.Epoch()),
		zap.Int("coordinates", out.Params().StoredLen()))
	return out, nil
}

// SplitShards deals insts round-robin into n shards.
func SplitShards(insts []*instance.Instance, n int) [][]*instance.Instance {
	n = max(n, 1)
	shards := make([][]*instance.Instance, n)
	for i, inst := range insts {
		shards[i%n] = append(shards[i%n], inst)
	}
	return shards
}
