package lock

import (
	"context"
	"poolsched/pkg/metrics"
	"sync"
	"time"
)

type localEntry struct {
	ch   chan struct{}
	refs int
}

type localLocker struct {
	mu      sync.Mutex
	entries map[string]*localEntry
	timeout time.Duration
}

// NewLocalLocker returns an in-process Locker. Entries are reference counted
// and dropped when no caller holds or waits on them.
func NewLocalLocker(timeout time.Duration) Locker {
	return &localLocker{
		entries: make(map[string]*localEntry),
		timeout: timeout,
	}
}

func (l *localLocker) Acquire(ctx context.Context, keys ...string) (Release, error) {
	start := time.Now()
	defer metrics.ObserveLockWait(BackendLocal, start)

	ctx, cancel := withTimeout(ctx, l.timeout)
	defer cancel()

	keys = normalize(keys)
	held := make([]string, 0, len(keys))
	for _, key := range keys {
		e := l.ref(key)
		select {
		case e.ch <- struct{}{}:
			held = append(held, key)
		case <-ctx.Done():
			l.unref(key)
			l.release(held)
			return nil, acquireError(key, ctx.Err())
		}
	}

	return once(func() { l.release(held) }), nil
}

func (l *localLocker) ref(key string) *localEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		e = &localEntry{ch: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	return e
}

func (l *localLocker) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.entries[key]
	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

func (l *localLocker) release(keys []string) {
	for i := len(keys) - 1; i >= 0; i-- {
		l.mu.Lock()
		e := l.entries[keys[i]]
		l.mu.Unlock()
		<-e.ch
		l.unref(keys[i])
	}
}
