package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps connectivity failures of the Redis store.
var ErrRedisUnavailable = errors.New("credentials: redis unavailable")

const (
	fieldAccess  = "access_token"
	fieldRefresh = "refresh_token"
)

// RedisStore keeps the credential in a Redis hash, so several processes
// (a CLI and a long-running shell, say) share one signed-in session.
type RedisStore struct {
	rdb redis.UniversalClient
	key string
	ttl time.Duration
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL expires the stored credential after ttl. Zero keeps it forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) { s.ttl = ttl }
}

// NewRedisStore stores the credential of origin under globalassist:credentials:<origin>.
func NewRedisStore(rdb redis.UniversalClient, origin string, opts ...RedisOption) (*RedisStore, error) {
	if rdb == nil {
		return nil, errors.New("credentials: redis client required")
	}
	if origin == "" {
		return nil, errors.New("credentials: origin required")
	}
	s := &RedisStore{rdb: rdb, key: "globalassist:credentials:" + origin}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Key returns the Redis key used by the store.
func (s *RedisStore) Key() string { return s.key }

func (s *RedisStore) Load(ctx context.Context) (Credential, error) {
	values, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	cred := Credential{AccessToken: values[fieldAccess], RefreshToken: values[fieldRefresh]}
	if cred.IsZero() {
		return Credential{}, ErrNotFound
	}
	return cred, nil
}

func (s *RedisStore) Save(ctx context.Context, cred Credential) error {
	if err := validate(cred); err != nil {
		return err
	}
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		fields := map[string]any{fieldAccess: cred.AccessToken}
		if cred.RefreshToken != "" {
			fields[fieldRefresh] = cred.RefreshToken
		}
		pipe.HSet(ctx, s.key, fields)
		if s.ttl > 0 {
			pipe.Expire(ctx, s.key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
