// Package lock provides short-lived, best-effort mutual exclusion keyed by
// string. It only narrows the window for duplicate work; correctness of state
// transitions must not depend on it.
package lock

import (
	"context"
	"sync"
	"time"
)

// Locker acquires a lock without waiting. When acquired is false the caller
// must not call release.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), acquired bool, err error)
}

// LocalLocker is an in-process Locker. Entries expire after their ttl so a
// holder that never releases cannot block a key forever.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]localEntry
	next uint64
	now  func() time.Time
}

type localEntry struct {
	token    uint64
	deadline time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		held: make(map[string]localEntry),
		now:  time.Now,
	}
}

func (l *LocalLocker) TryLock(_ context.Context, key string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, ok := l.held[key]; ok && now.Before(e.deadline) {
		return nil, false, nil
	}

	l.next++
	token := l.next
	l.held[key] = localEntry{token: token, deadline: now.Add(ttl)}

	release := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if e, ok := l.held[key]; ok && e.token == token {
			delete(l.held, key)
		}
	}
	return release, true, nil
}
