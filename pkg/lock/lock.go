// Package lock provides keyed critical sections. Bookings take one per studio
// schedule before checking for conflicts and committing, and one per
// reservation before crediting a payment.
package lock

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	apperrors "studiobook/pkg/errors"
)

// ErrBusy is wrapped by every Acquire that gave up waiting.
var ErrBusy = errors.New("lock is held by another request")

// pollInterval is how often the distributed lockers retry a held key.
const pollInterval = 25 * time.Millisecond

// Release frees a held lock. Calling it more than once is harmless.
type Release func(ctx context.Context) error

// Locker grants exclusive ownership of a key until released or until ttl
// elapses. Acquire blocks until the key is free or ctx is done.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error)
}

func busy(key string, cause error) error {
	return apperrors.Wrap(errors.Join(ErrBusy, cause), apperrors.CodeConflict,
		"This schedule is being modified by another request. Please try again.", http.StatusConflict).
		WithDetails(map[string]any{"lock": key})
}

// Memory is a process-local Locker. ttl is ignored; holders must release.
type Memory struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewMemory() *Memory {
	return &Memory{slots: make(map[string]*slot)}
}

func (m *Memory) Acquire(ctx context.Context, key string, _ time.Duration) (Release, error) {
	m.mu.Lock()
	s, ok := m.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		m.slots[key] = s
	}
	s.refs++
	m.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		m.unref(key, s)
		return nil, busy(key, ctx.Err())
	}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			<-s.ch
			m.unref(key, s)
		})
		return nil
	}, nil
}

func (m *Memory) unref(key string, s *slot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(m.slots, key)
	}
}

// WithTimeout bounds how long Acquire may wait for a busy key.
func WithTimeout(l Locker, wait time.Duration) Locker {
	return timeoutLocker{inner: l, wait: wait}
}

type timeoutLocker struct {
	inner Locker
	wait  time.Duration
}

func (t timeoutLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error) {
	ctx, cancel := context.WithTimeout(ctx, t.wait)
	defer cancel()
	return t.inner.Acquire(ctx, key, ttl)
}
