package invitation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/AchilleasB/inrem/pulse-service/internal/clock"
	"github.com/AchilleasB/inrem/pulse-service/internal/config"
	"github.com/AchilleasB/inrem/pulse-service/internal/core/domain"
	"github.com/AchilleasB/inrem/pulse-service/internal/core/ports"
)

const (
	keyPrefix = "invitation:"
	expiryKey = "invitation:expiry"

	// Codes outlive their expiry by this long so a late accept can still be
	// told the code expired rather than that it never existed.
	DefaultRetention = time.Hour
)

// RedisClient is the subset of *redis.Client the store needs.
type RedisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZRangeByScore(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.StringSliceCmd
	ZRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
}

// RedisStore keeps codes as JSON under invitation:<CODE>, with a sorted set
// scored by expiry so sweeps do not need KEYS. Every operation runs behind
// the Redis circuit breaker.
type RedisStore struct {
	client    RedisClient
	clock     clock.Clock
	retention time.Duration
	cb        *gobreaker.CircuitBreaker
}

var _ ports.InvitationStore = (*RedisStore)(nil)

func NewRedisStore(client RedisClient, clk clock.Clock, retention time.Duration) *RedisStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &RedisStore{
		client:    client,
		clock:     clk,
		retention: retention,
		cb:        config.NewCircuitBreaker(config.BreakerRedis),
	}
}

func (s *RedisStore) exec(fn func() error) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

func (s *RedisStore) Put(ctx context.Context, inv domain.Invitation) (bool, error) {
	payload, err := json.Marshal(inv)
	if err != nil {
		return false, fmt.Errorf("marshal invitation: %w", err)
	}

	ttl := inv.ExpiresAt.Sub(s.clock.Now()) + s.retention
	if ttl < s.retention {
		ttl = s.retention
	}

	var stored bool
	err = s.exec(func() error {
		ok, err := s.client.SetNX(ctx, keyPrefix+inv.Code, payload, ttl).Result()
		if err != nil {
			return fmt.Errorf("redis setnx: %w", err)
		}
		if !ok {
			return nil
		}

		// An unindexed code would never be swept, so undo the write.
		score := float64(inv.ExpiresAt.Unix())
		if err := s.client.ZAdd(ctx, expiryKey, redis.Z{Score: score, Member: inv.Code}).Err(); err != nil {
			indexErr := fmt.Errorf("redis index code: %w", err)
			if delErr := s.client.Del(ctx, keyPrefix+inv.Code).Err(); delErr != nil {
				return errors.Join(indexErr, fmt.Errorf("redis undo setnx: %w", delErr))
			}
			return indexErr
		}
		stored = true
		return nil
	})
	return stored, err
}

func (s *RedisStore) Get(ctx context.Context, code string) (*domain.Invitation, error) {
	var (
		raw     string
		missing bool
	)
	err := s.exec(func() error {
		var err error
		raw, err = s.client.Get(ctx, keyPrefix+code).Result()
		if errors.Is(err, redis.Nil) {
			missing = true
			return nil
		}
		if err != nil {
			return fmt.Errorf("redis get: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if missing {
		return nil, domain.ErrInvalidCode
	}

	var inv domain.Invitation
	if err := json.Unmarshal([]byte(raw), &inv); err != nil {
		return nil, fmt.Errorf("unmarshal invitation: %w", err)
	}
	return &inv, nil
}

func (s *RedisStore) Delete(ctx context.Context, code string) error {
	return s.exec(func() error {
		if err := s.client.Del(ctx, keyPrefix+code).Err(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
		if err := s.client.ZRem(ctx, expiryKey, code).Err(); err != nil {
			return fmt.Errorf("redis unindex code: %w", err)
		}
		return nil
	})
}

func (s *RedisStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	var swept int
	err := s.exec(func() error {
		// Expired means strictly past expiry; the exclusive bound keeps a
		// code that expires this very second.
		codes, err := s.client.ZRangeByScore(ctx, expiryKey, &redis.ZRangeBy{
			Min: "-inf",
			Max: "(" + strconv.FormatInt(now.Unix(), 10),
		}).Result()
		if err != nil {
			return fmt.Errorf("redis scan expired: %w", err)
		}
		if len(codes) == 0 {
			return nil
		}

		keys := make([]string, len(codes))
		members := make([]interface{}, len(codes))
		for i, c := range codes {
			keys[i] = keyPrefix + c
			members[i] = c
		}
		if err := s.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("redis del expired: %w", err)
		}
		if err := s.client.ZRem(ctx, expiryKey, members...).Err(); err != nil {
			return fmt.Errorf("redis unindex expired: %w", err)
		}
		swept = len(codes)
		return nil
	})
	return swept, err
}
