package lock

import (
	"context"
	"errors"
	"fmt"
	apperrors "poolsched/pkg/errors"
	"sort"
	"sync"
	"time"
)

const (
	BackendLocal = "local"
	BackendRedis = "redis"
	BackendMongo = "mongo"
)

// Release unlocks every key taken by one Acquire call. It is safe to call
// more than once.
type Release func()

// Locker serializes writers on string keys. Acquire blocks until every key
// is held, the context is done, or the locker's timeout expires.
type Locker interface {
	Acquire(ctx context.Context, keys ...string) (Release, error)
}

func LaneKey(id string) string        { return "lane:" + id }
func LockerKey(id string) string      { return "locker:" + id }
func UserKey(id string) string        { return "user:" + id }
func ReservationKey(id string) string { return "reservation:" + id }

// normalize sorts and dedupes keys so that two callers sharing keys always
// take them in the same order.
func normalize(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// acquireError maps a context failure to a Timeout AppError and passes
// everything else through as Internal.
func acquireError(key string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.Timeout(fmt.Sprintf("Timed out waiting for lock %q", key))
	}
	return apperrors.Internal(fmt.Sprintf("Failed to acquire lock %q", key), err)
}

func once(fn func()) Release {
	var o sync.Once
	return func() { o.Do(fn) }
}
