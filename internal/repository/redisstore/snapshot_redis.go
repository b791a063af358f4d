// internal/repository/redisstore/snapshot_redis.go
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"

	"p2p-lending/internal/domain"
	"p2p-lending/internal/repository"
	"p2p-lending/internal/util"
)

// DefaultKey is the Redis key holding the snapshot document.
const DefaultKey = "lending:snapshot"

// Backoff between optimistic retries when another writer commits between WATCH and EXEC.
const (
	baseRetryDelay = 2 * time.Millisecond
	maxRetryDelay  = 100 * time.Millisecond
)

// ErrContention is returned when ctx ends before an update wins the optimistic race.
var ErrContention = fmt.Errorf("snapshot update contention: %w", util.ErrUpstreamFailure)

// stringGetter is satisfied by both the client and a WATCH transaction.
type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// SnapshotRepository implements repository.SnapshotBackend on a single Redis key.
// Updates WATCH the key and commit with MULTI/EXEC, so a concurrent write from any process
// aborts and retries the whole read-modify-write.
type SnapshotRepository struct {
	client redis.UniversalClient
	key    string
}

// NewSnapshotRepository creates a backend storing the snapshot under key.
func NewSnapshotRepository(client redis.UniversalClient, key string) *SnapshotRepository {
	if key == "" {
		key = DefaultKey
	}
	return &SnapshotRepository{client: client, key: key}
}

// Read returns the stored snapshot, or util.ErrNotFound when the key is absent.
func (r *SnapshotRepository) Read(ctx context.Context) (*domain.Snapshot, error) {
	return r.read(ctx, r.client)
}

func (r *SnapshotRepository) read(ctx context.Context, c stringGetter) (*domain.Snapshot, error) {
	data, err := c.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get snapshot key %s: %w", r.key, err)
	}
	return repository.DecodeSnapshot(data)
}

// Update applies fn under WATCH and writes the result in a MULTI/EXEC block.
func (r *SnapshotRepository) Update(ctx context.Context, fn repository.UpdateFunc) error {
	txf := func(tx *redis.Tx) error {
		current, err := r.read(ctx, tx)
		if err != nil && !errors.Is(err, util.ErrNotFound) {
			return err
		}

		next, err := fn(current)
		if err != nil {
			return err
		}

		data, err := repository.EncodeSnapshot(next)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.key, data, 0)
			return nil
		})
		return err
	}

	for attempt := 1; ; attempt++ {
		err := r.client.Watch(ctx, txf, r.key)
		switch {
		case err == nil:
			return nil
		case attempt > 1 && ctx.Err() != nil:
			return r.contention(ctx, attempt)
		case !errors.Is(err, redis.TxFailedErr):
			return err
		}

		timer := time.NewTimer(retryDelay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return r.contention(ctx, attempt)
		case <-timer.C:
		}
	}
}

func (r *SnapshotRepository) contention(ctx context.Context, attempts int) error {
	return fmt.Errorf("update snapshot key %s after %d attempts: %w: %w", r.key, attempts, ErrContention, ctx.Err())
}

// retryDelay grows exponentially up to maxRetryDelay and is jittered over its upper half.
func retryDelay(attempt int) time.Duration {
	d := maxRetryDelay
	if attempt < 16 {
		d = min(baseRetryDelay<<attempt, maxRetryDelay)
	}
	half := d / 2
	return half + rand.N(half+1)
}

// Close closes the Redis client.
func (r *SnapshotRepository) Close() error {
	return r.client.Close()
}
