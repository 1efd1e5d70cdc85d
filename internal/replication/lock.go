package replication

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

var ErrCycleInProgress = errors.New("sync cycle already running for replica")

// Locker serializes sync cycles per replica id. Release must be called exactly
// once when ok is true.
type Locker interface {
	TryLock(ctx context.Context, replicaID string) (release func(), ok bool, err error)
}

type localLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewLocalLocker() Locker {
	return &localLocker{held: map[string]bool{}}
}

func (l *localLocker) TryLock(ctx context.Context, replicaID string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[replicaID] {
		return nil, false, nil
	}
	l.held[replicaID] = true
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, replicaID)
			l.mu.Unlock()
		})
	}, true, nil
}

const lockKeyPrefix = "alohomora:sync:lock:"

var releaseScript = goredis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

type redisLocker struct {
	rdb goredis.UniversalClient
	ttl time.Duration
}

// NewRedisLocker holds the lock for at most ttl; a crashed holder is released
// by expiry.
func NewRedisLocker(rdb goredis.UniversalClient, ttl time.Duration) Locker {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &redisLocker{rdb: rdb, ttl: ttl}
}

func (l *redisLocker) TryLock(ctx context.Context, replicaID string) (func(), bool, error) {
	key := lockKeyPrefix + replicaID
	owner := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, key, owner, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis setnx lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = releaseScript.Run(ctx, l.rdb, []string{key}, owner).Err()
		})
	}, true, nil
}

// chainLocker takes every lock in order and releases them in reverse.
type chainLocker []Locker

func ChainLockers(lockers ...Locker) Locker {
	out := make(chainLocker, 0, len(lockers))
	for _, l := range lockers {
		if l != nil {
			out = append(out, l)
		}
	}
	return out
}

func (c chainLocker) TryLock(ctx context.Context, replicaID string) (func(), bool, error) {
	releases := make([]func(), 0, len(c))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, l := range c {
		release, ok, err := l.TryLock(ctx, replicaID)
		if err != nil || !ok {
			releaseAll()
			return nil, false, err
		}
		releases = append(releases, release)
	}
	return releaseAll, true, nil
}
