package cache

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	appledger "github.com/primebond/ledger/internal/application/ledger"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if it still carries our token, so a
// holder whose TTL expired cannot release a lock taken over by someone else.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisTickLock is a SET NX PX lock shared by all scheduler instances
type RedisTickLock struct {
	client redis.UniversalClient
}

// NewRedisTickLock creates a tick lock on client
func NewRedisTickLock(client redis.UniversalClient) *RedisTickLock {
	return &RedisTickLock{client: client}
}

// TryLock acquires key for ttl. ok is false when another holder owns it.
func (l *RedisTickLock) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	token, err := lockToken()
	if err != nil {
		return nil, false, err
	}
	acquired, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !acquired {
		return nil, false, nil
	}
	unlock := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("release lock %s: %w", key, err)
		}
		return nil
	}
	return unlock, true, nil
}

func lockToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate lock token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// InMemoryTickLock serializes ticks inside one process
type InMemoryTickLock struct {
	mu    sync.Mutex
	held  map[string]time.Time
	nowFn func() time.Time
}

// NewInMemoryTickLock creates a process-local tick lock
func NewInMemoryTickLock() *InMemoryTickLock {
	return &InMemoryTickLock{held: make(map[string]time.Time), nowFn: time.Now}
}

// TryLock acquires key unless a holder's TTL has not yet expired
func (l *InMemoryTickLock) TryLock(_ context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFn()
	if until, ok := l.held[key]; ok && now.Before(until) {
		return nil, false, nil
	}
	expires := now.Add(ttl)
	l.held[key] = expires
	unlock := func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.held[key].Equal(expires) {
			delete(l.held, key)
		}
		return nil
	}
	return unlock, true, nil
}

var (
	_ appledger.TickLocker = (*RedisTickLock)(nil)
	_ appledger.TickLocker = (*InMemoryTickLock)(nil)
)
