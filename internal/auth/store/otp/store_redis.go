package otp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"intranet/internal/auth/models"
	"intranet/pkg/platform/sentinel"
)

const (
	otpKeyPrefix   = "otp:code:"
	sendsKeyPrefix = "otp:sends:"
)

// incrementAttempts bumps the counter only while the code exists, so a
// concurrent Delete or expiry cannot leave behind a hash without a TTL.
var incrementAttempts = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return -1
end
return redis.call("HINCRBY", KEYS[1], "attempts", 1)
`)

// RedisOTPStore keeps pending codes as hashes expiring with the code.
// Send history uses a fixed window counter.
type RedisOTPStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisOTPStore {
	return &RedisOTPStore{client: client}
}

func (s *RedisOTPStore) Save(ctx context.Context, otp *models.OTP) error {
	k := otpKeyPrefix + key(otp.Email, otp.Purpose)
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, k)
	pipe.HSet(ctx, k,
		"code_hash", otp.CodeHash,
		"attempts", otp.Attempts,
		"expires_at", otp.ExpiresAt.UnixMilli(),
		"created_at", otp.CreatedAt.UnixMilli(),
	)
	pipe.PExpireAt(ctx, k, otp.ExpiresAt)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save otp: %w", err)
	}
	return nil
}

func (s *RedisOTPStore) Find(ctx context.Context, email string, purpose models.OTPPurpose) (*models.OTP, error) {
	fields, err := s.client.HGetAll(ctx, otpKeyPrefix+key(email, purpose)).Result()
	if err != nil {
		return nil, fmt.Errorf("find otp: %w", err)
	}
	if len(fields) == 0 {
		return nil, sentinel.ErrNotFound
	}
	attempts, _ := strconv.Atoi(fields["attempts"])
	expires, _ := strconv.ParseInt(fields["expires_at"], 10, 64)
	created, _ := strconv.ParseInt(fields["created_at"], 10, 64)
	return &models.OTP{
		Email:     email,
		Purpose:   purpose,
		CodeHash:  fields["code_hash"],
		Attempts:  attempts,
		ExpiresAt: time.UnixMilli(expires).UTC(),
		CreatedAt: time.UnixMilli(created).UTC(),
	}, nil
}

func (s *RedisOTPStore) IncrementAttempts(ctx context.Context, email string, purpose models.OTPPurpose) (int, error) {
	k := otpKeyPrefix + key(email, purpose)
	n, err := incrementAttempts.Run(ctx, s.client, []string{k}).Int()
	if err != nil {
		return 0, fmt.Errorf("increment otp attempts: %w", err)
	}
	if n < 0 {
		return 0, sentinel.ErrNotFound
	}
	return n, nil
}

func (s *RedisOTPStore) Delete(ctx context.Context, email string, purpose models.OTPPurpose) error {
	if err := s.client.Del(ctx, otpKeyPrefix+key(email, purpose)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("delete otp: %w", err)
	}
	return nil
}

func (s *RedisOTPStore) RecordSend(ctx context.Context, email string, _ time.Time, window time.Duration) (int, error) {
	k := sendsKeyPrefix + email
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.ExpireNX(ctx, k, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("record otp send: %w", err)
	}
	return int(incr.Val()), nil
}
