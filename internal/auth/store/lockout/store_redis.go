package lockout

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"intranet/internal/auth/models"
)

const lockoutKeyPrefix = "lockout:"

// RedisLockoutStore keeps one hash per identifier. The key expires at the end
// of the failure window or of the lock, whichever was set last.
type RedisLockoutStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisLockoutStore {
	return &RedisLockoutStore{client: client}
}

func (s *RedisLockoutStore) Get(ctx context.Context, identifier string) (*models.Lockout, error) {
	fields, err := s.client.HGetAll(ctx, lockoutKeyPrefix+identifier).Result()
	if err != nil {
		return nil, fmt.Errorf("get lockout: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return decode(identifier, fields), nil
}

func (s *RedisLockoutStore) RecordFailure(ctx context.Context, identifier string, now time.Time, window time.Duration) (*models.Lockout, error) {
	k := lockoutKeyPrefix + identifier
	pipe := s.client.TxPipeline()
	pipe.HSetNX(ctx, k, "first_failure", now.UnixMilli())
	pipe.HIncrBy(ctx, k, "failures", 1)
	pipe.ExpireNX(ctx, k, window)
	all := pipe.HGetAll(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("record login failure: %w", err)
	}
	return decode(identifier, all.Val()), nil
}

func (s *RedisLockoutStore) Lock(ctx context.Context, identifier string, until time.Time) error {
	k := lockoutKeyPrefix + identifier
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, k, "locked_until", until.UnixMilli())
	pipe.PExpireAt(ctx, k, until)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("lock account: %w", err)
	}
	return nil
}

func (s *RedisLockoutStore) Clear(ctx context.Context, identifier string) error {
	if err := s.client.Del(ctx, lockoutKeyPrefix+identifier).Err(); err != nil {
		return fmt.Errorf("clear lockout: %w", err)
	}
	return nil
}

func decode(identifier string, fields map[string]string) *models.Lockout {
	rec := &models.Lockout{Identifier: identifier}
	rec.FailureCount, _ = strconv.Atoi(fields["failures"])
	if ms, err := strconv.ParseInt(fields["first_failure"], 10, 64); err == nil {
		rec.FirstFailure = time.UnixMilli(ms).UTC()
	}
	if ms, err := strconv.ParseInt(fields["locked_until"], 10, 64); err == nil {
		until := time.UnixMilli(ms).UTC()
		rec.LockedUntil = &until
	}
	return rec
}
