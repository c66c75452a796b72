// Package locking serializes ledger mutations per item across server instances.
package locking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrNotObtained is returned when another holder keeps the lock past the retry window.
var ErrNotObtained = errors.New("lock not obtained")

// Locker hands out named locks. Release must be called exactly once.
type Locker interface {
	Obtain(ctx context.Context, key string) (release func(), err error)
}

// ItemKey is the lock name guarding one item's ledger.
func ItemKey(itemID int64) string {
	return fmt.Sprintf("ledger:item:%d", itemID)
}

type redisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	retry  redislock.RetryStrategy
}

// NewRedisLocker builds a Locker on redislock. Obtain retries with linear
// backoff for up to ttl before giving up.
func NewRedisLocker(rdb *redis.Client, ttl time.Duration) Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	backoff := 100 * time.Millisecond
	return &redisLocker{
		client: redislock.New(rdb),
		ttl:    ttl,
		retry:  redislock.LimitRetry(redislock.LinearBackoff(backoff), int(ttl/backoff)),
	}
}

func (l *redisLocker) Obtain(ctx context.Context, key string) (func(), error) {
	lock, err := l.client.Obtain(ctx, key, l.ttl, &redislock.Options{RetryStrategy: l.retry})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrNotObtained, key)
	}
	if err != nil {
		return nil, fmt.Errorf("obtaining lock %s: %w", key, err)
	}
	return func() {
		// a context that outlived the request still has to free the key
		_ = lock.Release(context.Background())
	}, nil
}

// localLocker serializes within one process. It is used when Redis is not configured.
type localLocker struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewLocalLocker returns an in-process Locker.
func NewLocalLocker() Locker {
	return &localLocker{locks: make(map[string]chan struct{})}
}

func (l *localLocker) Obtain(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	ch, ok := l.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[key] = ch
	}
	l.mu.Unlock()

	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %v", ErrNotObtained, key, ctx.Err())
	}
}

// Connect pings Redis and returns a client, or nil when addr is empty.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return rdb, nil
}
