package mutex

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultLease bounds how long a crashed holder can wedge a party.
	// It is deliberately shorter than DefaultTimeout so a caller that
	// timed out never still believes it holds the lock.
	DefaultLease   = 5 * time.Second
	DefaultTimeout = 10 * time.Second
	DefaultPoll    = 50 * time.Millisecond
)

// releaseScript deletes the lock key only while it still carries our
// token. A plain GET+DEL would race a lease expiry followed by another
// holder's acquire.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
else
  return 0
end
`)

// RedisMutex implements Locker with SET NX PX plus a compare-and-delete
// release. Acquisition polls at a fixed backoff until the timeout.
type RedisMutex struct {
	client  *redis.Client
	lease   time.Duration
	timeout time.Duration
	poll    time.Duration
}

// Options override the default lease/timeout/poll. Zero fields keep
// the defaults.
type Options struct {
	Lease   time.Duration
	Timeout time.Duration
	Poll    time.Duration
}

func NewRedisMutex(client *redis.Client, opts Options) *RedisMutex {
	m := &RedisMutex{
		client:  client,
		lease:   DefaultLease,
		timeout: DefaultTimeout,
		poll:    DefaultPoll,
	}
	if opts.Lease > 0 {
		m.lease = opts.Lease
	}
	if opts.Timeout > 0 {
		m.timeout = opts.Timeout
	}
	if opts.Poll > 0 {
		m.poll = opts.Poll
	}
	return m
}

func lockKey(key string) string {
	return "lock" + key
}

func (m *RedisMutex) Acquire(ctx context.Context, key string) (string, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(m.timeout)

	for {
		ok, err := m.client.SetNX(ctx, lockKey(key), token, m.lease).Result()
		if err != nil {
			return "", err
		}
		if ok {
			return token, nil
		}
		if time.Now().Add(m.poll).After(deadline) {
			return "", ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(m.poll):
		}
	}
}

func (m *RedisMutex) Release(ctx context.Context, key string, token string) error {
	return releaseScript.Run(ctx, m.client, []string{lockKey(key)}, token).Err()
}
