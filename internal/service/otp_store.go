package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrOTPNotFound is returned when no code exists for the contact, either
// because none was requested or because it expired.
var ErrOTPNotFound = errors.New("otp not found")

type otpStore interface {
	Set(ctx context.Context, contact, code string, ttl time.Duration) error
	Get(ctx context.Context, contact string) (string, error)
	Del(ctx context.Context, contact string) error
}

// RedisOTPStore keeps one-time codes in Redis with a TTL, so expiry needs no
// sweeper and codes survive process restarts.
type RedisOTPStore struct {
	client *redis.Client
}

// NewRedisOTPStore constructs the store.
func NewRedisOTPStore(client *redis.Client) *RedisOTPStore {
	return &RedisOTPStore{client: client}
}

func otpKey(contact string) string {
	return "guest_otp:" + contact
}

// Set stores the code, replacing any previous one for the contact.
func (s *RedisOTPStore) Set(ctx context.Context, contact, code string, ttl time.Duration) error {
	if err := s.client.Set(ctx, otpKey(contact), code, ttl).Err(); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}
	return nil
}

// Get fetches the live code for a contact.
func (s *RedisOTPStore) Get(ctx context.Context, contact string) (string, error) {
	code, err := s.client.Get(ctx, otpKey(contact)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrOTPNotFound
		}
		return "", fmt.Errorf("load otp: %w", err)
	}
	return code, nil
}

// Del removes the code after a successful verification.
func (s *RedisOTPStore) Del(ctx context.Context, contact string) error {
	if err := s.client.Del(ctx, otpKey(contact)).Err(); err != nil {
		return fmt.Errorf("delete otp: %w", err)
	}
	return nil
}
