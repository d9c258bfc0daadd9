package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const loginFailPrefix = "login:fail:"

// LoginThrottle counts failed logins per identifier in a window that starts
// at the first failure. Once the count reaches the limit the identifier is
// locked until the key expires.
type LoginThrottle struct {
	client      *redis.Client
	maxAttempts int
	window      time.Duration
}

func NewLoginThrottle(client *redis.Client, maxAttempts int, window time.Duration) *LoginThrottle {
	return &LoginThrottle{client: client, maxAttempts: maxAttempts, window: window}
}

func (t *LoginThrottle) key(identifier string) string {
	return loginFailPrefix + strings.ToLower(strings.TrimSpace(identifier))
}

func (t *LoginThrottle) Locked(ctx context.Context, identifier string) (bool, error) {
	if t == nil || t.client == nil || t.maxAttempts <= 0 {
		return false, nil
	}
	n, err := t.client.Get(ctx, t.key(identifier)).Int()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read login failures: %w", err)
	}
	return n >= t.maxAttempts, nil
}

func (t *LoginThrottle) Fail(ctx context.Context, identifier string) error {
	if t == nil || t.client == nil || t.maxAttempts <= 0 {
		return nil
	}
	key := t.key(identifier)
	n, err := t.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("record login failure: %w", err)
	}
	if n == 1 {
		if err := t.client.Expire(ctx, key, t.window).Err(); err != nil {
			return fmt.Errorf("expire login failures: %w", err)
		}
	}
	return nil
}

func (t *LoginThrottle) Reset(ctx context.Context, identifier string) error {
	if t == nil || t.client == nil {
		return nil
	}
	return t.client.Del(ctx, t.key(identifier)).Err()
}
