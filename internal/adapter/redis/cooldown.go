package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pscheid92/linkorbit/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const cooldownKeyPrefix = "cooldown:react:"

// CooldownStore keeps one expiring key per user.
type CooldownStore struct {
	rdb *goredis.Client
}

var _ domain.CooldownStore = (*CooldownStore)(nil)

func NewCooldownStore(rdb *goredis.Client) *CooldownStore {
	return &CooldownStore{rdb: rdb}
}

// Acquire sets the user's key only if it is absent. When it is present the
// key's remaining TTL is the wait. A key that expires between the two calls
// is retried once.
func (s *CooldownStore) Acquire(ctx context.Context, userID string, window time.Duration) (time.Duration, error) {
	key := cooldownKey(userID)

	for range 2 {
		_, err := s.rdb.SetArgs(ctx, key, "1", goredis.SetArgs{Mode: "NX", TTL: window}).Result()
		if err == nil {
			return 0, nil
		}
		if !errors.Is(err, goredis.Nil) {
			return 0, fmt.Errorf("failed to set cooldown: %w", err)
		}

		ttl, err := s.rdb.PTTL(ctx, key).Result()
		if err != nil {
			return 0, fmt.Errorf("failed to read cooldown: %w", err)
		}
		if ttl > 0 {
			return ttl, nil
		}
	}

	// The key keeps vanishing under us; treat the user as still cooling down.
	return window, nil
}

func (s *CooldownStore) Release(ctx context.Context, userID string) error {
	if err := s.rdb.Del(ctx, cooldownKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to release cooldown: %w", err)
	}
	return nil
}

func cooldownKey(userID string) string {
	return cooldownKeyPrefix + userID
}
