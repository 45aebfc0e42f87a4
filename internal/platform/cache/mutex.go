package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another process holds the lease.
var ErrLockHeld = errors.New("platform/cache: lock held")

// Mutex is a best-effort cross-process lease backed by redis SETNX.
type Mutex struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	token  string
}

// NewMutex builds a Mutex for the given key.
func NewMutex(client *redis.Client, key string, ttl time.Duration) *Mutex {
	return &Mutex{client: client, key: key, ttl: ttl}
}

// Lock acquires the lease or returns ErrLockHeld.
func (m *Mutex) Lock(ctx context.Context) error {
	if m.client == nil {
		// Single-process deployments run without redis; the in-process
		// serialisation in the caller still applies.
		return nil
	}
	token := uuid.NewString()
	ok, err := m.client.SetNX(ctx, m.key, token, m.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrLockHeld
	}
	m.token = token
	return nil
}

var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// Unlock releases the lease if this Mutex still owns it.
func (m *Mutex) Unlock(ctx context.Context) error {
	if m.client == nil || m.token == "" {
		return nil
	}
	return unlockScript.Run(ctx, m.client, []string{m.key}, m.token).Err()
}
