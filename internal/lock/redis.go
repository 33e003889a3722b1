package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if we still own it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisConfig struct {
	Prefix string
	TTL    time.Duration
	// Wait caps how long Lock keeps retrying a held key. Zero waits until
	// the caller's context is done.
	Wait time.Duration
	// RetryDelay and MaxRetryDelay bound the jittered exponential backoff
	// between attempts.
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

// RedisLocker shares per-item locks between service instances.
type RedisLocker struct {
	client *redis.Client
	cfg    RedisConfig
}

func NewRedisLocker(client *redis.Client, cfg RedisConfig) *RedisLocker {
	if cfg.Prefix == "" {
		cfg.Prefix = "lock:inventory:"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Second
	}
	if cfg.Wait < 0 {
		cfg.Wait = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Millisecond
	}
	if cfg.MaxRetryDelay < cfg.RetryDelay {
		cfg.MaxRetryDelay = 20 * cfg.RetryDelay
	}
	return &RedisLocker{client: client, cfg: cfg}
}

func (l *RedisLocker) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.cfg.RetryDelay
	b.MaxInterval = l.cfg.MaxRetryDelay
	b.Multiplier = 1.5
	b.RandomizationFactor = 0.5
	return b
}

// Lock waits for key until it is free, the wait budget is spent
// (ErrNotAcquired) or ctx is done (ctx.Err()).
func (l *RedisLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	lockKey := l.cfg.Prefix + key
	lockValue := uuid.New().String()

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		ok, err := l.client.SetNX(ctx, lockKey, lockValue, l.cfg.TTL).Result()
		if err != nil {
			return struct{}{}, backoff.Permanent(fmt.Errorf("acquire lock %s: %w", lockKey, err))
		}
		if !ok {
			return struct{}{}, ErrNotAcquired
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(l.backOff()),
		backoff.WithMaxElapsedTime(l.cfg.Wait),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	return func() {
		// Release with a fresh context so a cancelled request still frees the key.
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client, []string{lockKey}, lockValue).Err()
	}, nil
}
