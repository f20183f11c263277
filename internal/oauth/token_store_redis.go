package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"adbridge/pkg/logging"
)

// DefaultRedisKeyPrefix namespaces token keys in a shared Redis.
const DefaultRedisKeyPrefix = "adbridge:token:"

// RedisTokenStore is a TokenStore backed by Redis. Keys expire together
// with the record, so expired tokens disappear without a sweeper.
//
// Redis executes each command atomically, which gives the read-your-writes
// and last-writer-wins guarantees TokenStore requires.
type RedisTokenStore struct {
	client redis.UniversalClient
	prefix string
}

var _ TokenStore = (*RedisTokenStore)(nil)

// redisRecord is the persisted form. TokenRecord hides the access token
// from serialisation, so the credential is copied out explicitly here.
type redisRecord struct {
	AccessToken string    `json:"access_token"`
	ObtainedAt  time.Time `json:"obtained_at"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
	LongLived   bool      `json:"long_lived,omitempty"`
}

// NewRedisTokenStore wraps client. An empty prefix uses DefaultRedisKeyPrefix.
func NewRedisTokenStore(client redis.UniversalClient, prefix string) *RedisTokenStore {
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	return &RedisTokenStore{client: client, prefix: prefix}
}

// NewRedisTokenStoreFromURL parses a redis:// URL and pings the server.
func NewRedisTokenStoreFromURL(ctx context.Context, rawURL, prefix string) (*RedisTokenStore, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisTokenStore(client, prefix), nil
}

func (s *RedisTokenStore) key(id ChatID) string {
	return s.prefix + id.String()
}

// Get implements TokenStore.
func (s *RedisTokenStore) Get(ctx context.Context, id ChatID) (*TokenRecord, error) {
	payload, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("load token: %w", err)
	}

	var stored redisRecord
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}

	return &TokenRecord{
		AccessToken: NewRedactedToken(stored.AccessToken),
		ObtainedAt:  stored.ObtainedAt,
		ExpiresAt:   stored.ExpiresAt,
		LongLived:   stored.LongLived,
	}, nil
}

// Set implements TokenStore. A record that is already expired is not
// written; any previous record is removed instead.
func (s *RedisTokenStore) Set(ctx context.Context, id ChatID, rec TokenRecord) error {
	var ttl time.Duration
	if !rec.ExpiresAt.IsZero() {
		ttl = time.Until(rec.ExpiresAt)
		if ttl <= 0 {
			return s.Invalidate(ctx, id)
		}
	}

	payload, err := json.Marshal(redisRecord{
		AccessToken: rec.AccessToken.Value(),
		ObtainedAt:  rec.ObtainedAt,
		ExpiresAt:   rec.ExpiresAt,
		LongLived:   rec.LongLived,
	})
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}

	if err := s.client.Set(ctx, s.key(id), payload, ttl).Err(); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}

	logging.Debug("TokenStore", "Stored token in redis for chat=%s (ttl: %v)", id, ttl)
	return nil
}

// Invalidate implements TokenStore.
func (s *RedisTokenStore) Invalidate(ctx context.Context, id ChatID) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (s *RedisTokenStore) Close() error {
	return s.client.Close()
}
