package federation

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// StateStore issues and redeems the anti-replay state parameter carried
// through the authorization redirect. A state is valid for one callback
// within its TTL; redeeming it a second time fails.
type StateStore interface {
	Issue(ctx context.Context) (string, error)
	Consume(ctx context.Context, state string) (bool, error)
}

// RedisStateStore keeps pending states in Redis so callbacks can land on
// any instance behind a load balancer.
type RedisStateStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStateStore(rdb *redis.Client, ttl time.Duration) *RedisStateStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisStateStore{rdb: rdb, ttl: ttl}
}

func stateKey(s string) string { return "federation:state:" + s }

func (s *RedisStateStore) Issue(ctx context.Context) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	state := base64.RawURLEncoding.EncodeToString(b)
	if err := s.rdb.Set(ctx, stateKey(state), "1", s.ttl).Err(); err != nil {
		return "", err
	}
	return state, nil
}

// Consume redeems a state exactly once. GETDEL makes the check-and-remove
// atomic, so two callbacks racing on the same state cannot both pass.
func (s *RedisStateStore) Consume(ctx context.Context, state string) (bool, error) {
	if state == "" {
		return false, nil
	}
	_, err := s.rdb.GetDel(ctx, stateKey(state)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
