// Package lock provides in-process, per-key exclusive locks with deadlock-free multi-key acquisition.
//
// Keys are deduplicated and always acquired in ascending order, so two callers locking the same pair
// of accounts in opposite roles (source/destination) can never wait on each other.
package lock

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

var (
	ErrNoKeys      = errors.New("lock: at least one key is required")
	ErrWaitTimeout = errors.New("lock: timed out waiting for key")
)

type Locker struct {
	mu          sync.Mutex
	locks       map[string]*keyLock
	waitTimeout time.Duration
}

type Option func(*Locker)

// WithWaitTimeout bounds how long Acquire waits for all keys. Zero means wait until ctx is done.
func WithWaitTimeout(d time.Duration) Option {
	return func(l *Locker) {
		l.waitTimeout = d
	}
}

// keyLock is shared by every caller holding or waiting for the same key. refs counts both.
type keyLock struct {
	sem  *semaphore.Weighted
	refs int
}

func New(opts ...Option) *Locker {
	l := &Locker{locks: make(map[string]*keyLock)}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// WithLocks runs fn while holding every key. The locks are released on every exit path of fn,
// including a panic.
func (l *Locker) WithLocks(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	release, err := l.Acquire(ctx, keys...)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}

// Acquire blocks until all keys are held, ctx is done or the wait timeout expires.
// On failure nothing stays held. The returned release func is idempotent.
func (l *Locker) Acquire(ctx context.Context, keys ...string) (func(), error) {
	ordered := Ordered(keys)
	if len(ordered) == 0 {
		return nil, ErrNoKeys
	}

	waitCtx := ctx
	if l.waitTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.waitTimeout)
		defer cancel()
	}

	held := make([]string, 0, len(ordered))
	for _, key := range ordered {
		if err := l.lock(waitCtx, key); err != nil {
			l.unlockAll(held)
			if ctx.Err() == nil {
				return nil, ErrWaitTimeout
			}
			return nil, err
		}
		held = append(held, key)
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.unlockAll(held) })
	}, nil
}

// Ordered returns the distinct non-empty keys in ascending order.
func Ordered(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (l *Locker) lock(ctx context.Context, key string) error {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{sem: semaphore.NewWeighted(1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	if err := kl.sem.Acquire(ctx, 1); err != nil {
		l.mu.Lock()
		l.dropRef(key, kl)
		l.mu.Unlock()
		return err
	}
	return nil
}

func (l *Locker) unlockAll(keys []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(keys) - 1; i >= 0; i-- {
		kl := l.locks[keys[i]]
		kl.sem.Release(1)
		l.dropRef(keys[i], kl)
	}
}

// dropRef must be called with l.mu held.
func (l *Locker) dropRef(key string, kl *keyLock) {
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}

func (l *Locker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
