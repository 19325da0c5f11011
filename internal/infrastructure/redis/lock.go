package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/commercekit/paygate/internal/domain/errors"
	"github.com/commercekit/paygate/internal/domain/transaction"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	// Lua script for safe lock release (only owner can release)
	releaseLockScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)

	// Lua script for lock extension
	extendLockScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		else
			return 0
		end
	`)
)

// DistributedLock represents a distributed lock using Redis
type DistributedLock struct {
	client   *redis.Client
	key      string
	value    string
	ttl      time.Duration
	acquired bool
}

// NewDistributedLock creates a new distributed lock
func NewDistributedLock(client *redis.Client, key string, ttl time.Duration) *DistributedLock {
	return &DistributedLock{
		client:   client,
		key:      fmt.Sprintf("lock:%s", key),
		value:    uuid.New().String(),
		ttl:      ttl,
		acquired: false,
	}
}

// Acquire attempts to acquire the lock
func (l *DistributedLock) Acquire(ctx context.Context) (bool, error) {
	// Use SET NX EX to atomically set the lock if it doesn't exist
	success, err := l.client.SetNX(ctx, l.key, l.value, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}

	l.acquired = success
	return success, nil
}

// AcquireWithRetry attempts to acquire the lock with retries
func (l *DistributedLock) AcquireWithRetry(ctx context.Context, maxRetries int, retryDelay time.Duration) error {
	for i := 0; i < maxRetries; i++ {
		acquired, err := l.Acquire(ctx)
		if err != nil {
			return err
		}
		if acquired {
			return nil
		}

		// Wait before retrying
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay):
			continue
		}
	}

	return errors.New("failed to acquire lock after retries")
}

// Extend extends the lock TTL
func (l *DistributedLock) Extend(ctx context.Context, additionalTTL time.Duration) error {
	if !l.acquired {
		return errors.New("lock not acquired")
	}

	result, err := extendLockScript.Run(
		ctx,
		l.client,
		[]string{l.key},
		l.value,
		additionalTTL.Milliseconds(),
	).Result()
	if err != nil {
		return fmt.Errorf("failed to extend lock: %w", err)
	}

	val, ok := result.(int64)
	if !ok || val == 0 {
		return errors.New("lock not held or expired")
	}

	return nil
}

// Release releases the lock
func (l *DistributedLock) Release(ctx context.Context) error {
	if !l.acquired {
		return nil
	}

	result, err := releaseLockScript.Run(
		ctx,
		l.client,
		[]string{l.key},
		l.value,
	).Result()
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}

	val, ok := result.(int64)
	if !ok || val == 0 {
		return errors.New("lock not held or already released")
	}

	l.acquired = false
	return nil
}

// IsAcquired returns whether the lock is acquired
func (l *DistributedLock) IsAcquired() bool {
	return l.acquired
}

// StepLockManager serializes payment lifecycle steps per order. Each step
// takes the key "lock:order:{orderID}:step:{step}"; a second request for the
// same step while the first is in flight is rejected, not queued.
type StepLockManager struct {
	client       *redis.Client
	ttl          time.Duration
	onContention func(step transaction.Type)
}

// NewStepLockManager creates a step lock manager. ttl bounds how long a
// crashed request can block its step.
func NewStepLockManager(client *redis.Client, ttl time.Duration) *StepLockManager {
	return &StepLockManager{client: client, ttl: ttl}
}

// OnContention registers a hook invoked whenever a step is rejected because
// its lock is already held.
func (m *StepLockManager) OnContention(fn func(step transaction.Type)) {
	m.onContention = fn
}

// WithStepLock runs fn while holding the order's step lock, returning
// errors.ErrStepInProgress when another request holds it.
func (m *StepLockManager) WithStepLock(ctx context.Context, orderID string, step transaction.Type, fn func(ctx context.Context) error) error {
	lock := NewDistributedLock(m.client, fmt.Sprintf("order:%s:step:%s", orderID, step), m.ttl)

	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domainErrors.ErrLockAcquisitionFailed, err)
	}
	if !acquired {
		if m.onContention != nil {
			m.onContention(step)
		}
		return domainErrors.ErrStepInProgress
	}
	defer lock.Release(context.WithoutCancel(ctx))

	return fn(ctx)
}
