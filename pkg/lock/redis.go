package lock

import (
	"context"
	"poolsched/pkg/logger"
	"poolsched/pkg/metrics"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

const (
	redisKeyPrefix     = "poolsched:lock:"
	redisRetryInterval = 25 * time.Millisecond
)

// releaseScript deletes the key only if it still carries our token, so an
// expired lock re-taken by another holder is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisLocker struct {
	rdb     redis.UniversalClient
	ttl     time.Duration
	timeout time.Duration
	log     *logger.Logger
}

// NewRedisLocker returns a Locker shared by every process talking to rdb.
// Each key is held with SET NX PX for at most ttl.
func NewRedisLocker(rdb redis.UniversalClient, ttl, timeout time.Duration, log *logger.Logger) Locker {
	return &redisLocker{
		rdb:     rdb,
		ttl:     ttl,
		timeout: timeout,
		log:     log,
	}
}

func (l *redisLocker) Acquire(ctx context.Context, keys ...string) (Release, error) {
	start := time.Now()
	defer metrics.ObserveLockWait(BackendRedis, start)

	ctx, cancel := withTimeout(ctx, l.timeout)
	defer cancel()

	token := uuid.NewString()
	limiter := rate.NewLimiter(rate.Every(redisRetryInterval), 1)

	keys = normalize(keys)
	held := make([]string, 0, len(keys))
	for _, key := range keys {
		for {
			ok, err := l.rdb.SetNX(ctx, redisKeyPrefix+key, token, l.ttl).Result()
			if err != nil {
				l.release(held, token)
				return nil, acquireError(key, err)
			}
			if ok {
				held = append(held, key)
				break
			}
			if err := limiter.Wait(ctx); err != nil {
				l.release(held, token)
				return nil, acquireError(key, context.DeadlineExceeded)
			}
		}
	}

	return once(func() { l.release(held, token) }), nil
}

func (l *redisLocker) release(keys []string, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for i := len(keys) - 1; i >= 0; i-- {
		if err := releaseScript.Run(ctx, l.rdb, []string{redisKeyPrefix + keys[i]}, token).Err(); err != nil {
			l.log.Warn("Failed to release redis lock", "key", keys[i], "error", err)
		}
	}
}
