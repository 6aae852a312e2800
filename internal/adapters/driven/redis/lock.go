package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/xiaohuanlin/algoassistant-sync/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DistributedLock = (*Lock)(nil)

const lockPrefix = "algoassistant:lock:"

// ErrLockNotHeld is returned by Extend when this instance does not hold the lock
var ErrLockNotHeld = errors.New("lock not held")

// Lock implements DistributedLock using Redis SET NX with TTL.
// Every successful Acquire stores a fresh token, so a holder whose lock
// expired and was taken by someone else (even in the same process) can no
// longer release or extend it.
type Lock struct {
	client  *redis.Client
	ownerID string

	mu     sync.Mutex
	tokens map[string]string
}

// NewLock creates a new Redis-backed distributed lock.
func NewLock(client *redis.Client) *Lock {
	hostname, _ := os.Hostname()
	return &Lock{
		client:  client,
		ownerID: fmt.Sprintf("%s:%d", hostname, os.Getpid()),
		tokens:  make(map[string]string),
	}
}

// Acquire attempts to take the named lock for ttl.
// Returns false if it is already held, including by this instance.
func (l *Lock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	token := l.ownerID + ":" + uuid.NewString()
	ok, err := l.client.SetNX(ctx, lockPrefix+name, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !ok {
		return false, nil
	}

	l.mu.Lock()
	l.tokens[name] = token
	l.mu.Unlock()
	return true, nil
}

// releaseScript deletes the key only if it still carries our token
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Release releases the named lock if this instance still owns it.
// Safe to call when the lock is not held or has expired.
func (l *Lock) Release(ctx context.Context, name string) error {
	l.mu.Lock()
	token, ok := l.tokens[name]
	delete(l.tokens, name)
	l.mu.Unlock()
	if !ok {
		return nil
	}

	_, err := releaseScript.Run(ctx, l.client, []string{lockPrefix + name}, token).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}

// extendScript resets the TTL only if the key still carries our token
var extendScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	else
		return 0
	end
`)

// Extend resets the TTL of a lock this instance holds
func (l *Lock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	l.mu.Lock()
	token, ok := l.tokens[name]
	l.mu.Unlock()
	if !ok {
		return fmt.Errorf("extend lock %s: %w", name, ErrLockNotHeld)
	}

	result, err := extendScript.Run(ctx, l.client, []string{lockPrefix + name}, token, ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("extend lock %s: %w", name, err)
	}
	if result == 0 {
		l.mu.Lock()
		if l.tokens[name] == token {
			delete(l.tokens, name)
		}
		l.mu.Unlock()
		return fmt.Errorf("extend lock %s: %w", name, ErrLockNotHeld)
	}
	return nil
}

// Ping checks if the Redis backend is healthy.
func (l *Lock) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// OwnerID identifies this process in lock values
func (l *Lock) OwnerID() string {
	return l.ownerID
}
