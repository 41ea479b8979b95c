package mutex

import (
	"context"
	"sync"
	"time"
)

// LocalMutex is an in-process Locker for single-instance deployments.
// Each key gets a one-slot semaphore; tokens are accepted but unused
// since there is no lease to expire out from under a holder.
type LocalMutex struct {
	mu      sync.Mutex
	slots   map[string]chan struct{}
	timeout time.Duration
}

func NewLocalMutex() *LocalMutex {
	return &LocalMutex{
		slots:   make(map[string]chan struct{}),
		timeout: DefaultTimeout,
	}
}

func (m *LocalMutex) slot(key string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[key]
	if !ok {
		s = make(chan struct{}, 1)
		m.slots[key] = s
	}
	return s
}

func (m *LocalMutex) Acquire(ctx context.Context, key string) (string, error) {
	select {
	case m.slot(key) <- struct{}{}:
		return "local", nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(m.timeout):
		return "", ErrLockTimeout
	}
}

func (m *LocalMutex) Release(ctx context.Context, key string, token string) error {
	select {
	case <-m.slot(key):
	default:
	}
	return nil
}
