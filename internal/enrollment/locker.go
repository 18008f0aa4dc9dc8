package enrollment

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"trialgate/internal/platform/redis"
	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
)

// TrialLocker serializes the capacity-check-then-insert window per trial so
// concurrent enrollments cannot overshoot the target. Assignment itself is
// per-participant random and needs no coordination.
type TrialLocker interface {
	Acquire(ctx context.Context, trialID id.TrialID) (release func(), err error)
}

// MemoryLocker is the single-process locker used in dev mode and tests.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[id.TrialID]*sync.Mutex
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[id.TrialID]*sync.Mutex)}
}

func (l *MemoryLocker) Acquire(_ context.Context, trialID id.TrialID) (func(), error) {
	l.mu.Lock()
	lock, ok := l.locks[trialID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[trialID] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock, nil
}

const (
	redisLockTTL   = 5 * time.Second
	redisLockRetry = 50 * time.Millisecond
)

// releaseScript deletes the lock only if this holder still owns it, so a
// slow holder whose TTL expired cannot release a successor's lock.
var releaseScript = goredis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// RedisLocker coordinates enrollment across instances with a TTL lock. The
// TTL caps how long a crashed holder can block a trial's enrollments.
type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) Acquire(ctx context.Context, trialID id.TrialID) (func(), error) {
	key := "enrollment:lock:" + trialID.String()
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, token, redisLockTTL).Result()
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to acquire enrollment lock")
		}
		if ok {
			release := func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
			}
			return release, nil
		}

		select {
		case <-ctx.Done():
			return nil, dErrors.New(dErrors.CodeTimeout, "timed out waiting for enrollment lock")
		case <-time.After(redisLockRetry):
		}
	}
}
