package oauth

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord(token string, ttl time.Duration) TokenRecord {
	now := time.Now()
	rec := TokenRecord{
		AccessToken: NewRedactedToken(token),
		ObtainedAt:  now,
	}
	if ttl != 0 {
		rec.ExpiresAt = now.Add(ttl)
	}
	return rec
}

// storeFactories lets the contract tests run against every implementation.
func storeFactories(t *testing.T) map[string]func(t *testing.T) TokenStore {
	return map[string]func(t *testing.T) TokenStore{
		"memory": func(t *testing.T) TokenStore {
			s := NewMemoryTokenStore(time.Hour)
			t.Cleanup(s.Stop)
			return s
		},
		"redis": func(t *testing.T) TokenStore {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			s := NewRedisTokenStore(client, "")
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
}

func TestTokenStore_Contract(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("get absent returns nil", func(t *testing.T) {
				s := factory(t)
				rec, err := s.Get(ctx, 42)
				require.NoError(t, err)
				assert.Nil(t, rec)
			})

			t.Run("set then get", func(t *testing.T) {
				s := factory(t)
				require.NoError(t, s.Set(ctx, 42, testRecord("token-a", time.Hour)))

				rec, err := s.Get(ctx, 42)
				require.NoError(t, err)
				require.NotNil(t, rec)
				assert.Equal(t, "token-a", rec.AccessToken.Value())
				assert.False(t, rec.IsExpired(0))
			})

			t.Run("set replaces previous record", func(t *testing.T) {
				s := factory(t)
				require.NoError(t, s.Set(ctx, 42, testRecord("old", time.Hour)))
				require.NoError(t, s.Set(ctx, 42, testRecord("new", time.Hour)))

				rec, err := s.Get(ctx, 42)
				require.NoError(t, err)
				require.NotNil(t, rec)
				assert.Equal(t, "new", rec.AccessToken.Value())
			})

			t.Run("records are keyed per identity", func(t *testing.T) {
				s := factory(t)
				require.NoError(t, s.Set(ctx, 1, testRecord("one", 0)))
				require.NoError(t, s.Set(ctx, -100, testRecord("group", 0)))

				one, err := s.Get(ctx, 1)
				require.NoError(t, err)
				group, err := s.Get(ctx, -100)
				require.NoError(t, err)
				assert.Equal(t, "one", one.AccessToken.Value())
				assert.Equal(t, "group", group.AccessToken.Value())
			})

			t.Run("invalidate removes record", func(t *testing.T) {
				s := factory(t)
				require.NoError(t, s.Set(ctx, 42, testRecord("token", time.Hour)))
				require.NoError(t, s.Invalidate(ctx, 42))

				rec, err := s.Get(ctx, 42)
				require.NoError(t, err)
				assert.Nil(t, rec)
			})

			t.Run("invalidate absent is not an error", func(t *testing.T) {
				s := factory(t)
				assert.NoError(t, s.Invalidate(ctx, 7))
			})
		})
	}
}

func TestTokenStore_ReadYourWritesAcrossGoroutines(t *testing.T) {
	for name, factory := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			ctx := context.Background()

			const writers = 32
			var wg sync.WaitGroup
			errs := make(chan error, writers)

			for i := 1; i <= writers; i++ {
				wg.Add(1)
				go func(id ChatID) {
					defer wg.Done()
					want := fmt.Sprintf("token-%d", id)
					if err := s.Set(ctx, id, testRecord(want, time.Hour)); err != nil {
						errs <- err
						return
					}
					// Read from a different goroutine than the writer.
					got := make(chan *TokenRecord, 1)
					go func() {
						rec, _ := s.Get(ctx, id)
						got <- rec
					}()
					rec := <-got
					if rec == nil || rec.AccessToken.Value() != want {
						errs <- fmt.Errorf("chat %d: expected %q after set, got %v", id, want, rec)
					}
				}(ChatID(i))
			}

			wg.Wait()
			close(errs)
			for err := range errs {
				t.Error(err)
			}
		})
	}
}

func TestTokenStore_SameIdentityLastWriterWins(t *testing.T) {
	s := NewMemoryTokenStore(time.Hour)
	defer s.Stop()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Set(ctx, 42, testRecord(fmt.Sprintf("token-%d", i), time.Hour))
		}(i)
	}
	wg.Wait()

	// Whichever write completed last is visible; the final explicit write
	// must win over all of them.
	require.NoError(t, s.Set(ctx, 42, testRecord("final", time.Hour)))
	rec, err := s.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "final", rec.AccessToken.Value())
	assert.Equal(t, 1, s.Count())
}

func TestMemoryTokenStore_GetReturnsCopy(t *testing.T) {
	s := NewMemoryTokenStore(time.Hour)
	defer s.Stop()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, 42, testRecord("token", time.Hour)))

	rec, err := s.Get(ctx, 42)
	require.NoError(t, err)
	rec.LongLived = true

	again, err := s.Get(ctx, 42)
	require.NoError(t, err)
	assert.False(t, again.LongLived)
}

func TestMemoryTokenStore_Sweep(t *testing.T) {
	s := NewMemoryTokenStore(time.Hour)
	defer s.Stop()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, 1, testRecord("expired", -time.Minute)))
	require.NoError(t, s.Set(ctx, 2, testRecord("valid", time.Hour)))
	require.NoError(t, s.Set(ctx, 3, testRecord("no-expiry", 0)))

	// Expired records stay visible until swept so callers can detect expiry.
	rec, err := s.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.IsExpired(0))

	s.sweep()

	assert.Equal(t, 2, s.Count())
	rec, err = s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestMemoryTokenStore_StopIsIdempotent(t *testing.T) {
	s := NewMemoryTokenStore(0)
	assert.Equal(t, defaultSweepInterval, s.sweepInterval)
	s.Stop()
	s.Stop()
}

func TestRedisTokenStore_KeyExpiresWithRecord(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisTokenStore(client, "test:")
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, 42, testRecord("token", time.Hour)))
	assert.True(t, mr.Exists("test:42"))
	assert.InDelta(t, time.Hour.Seconds(), mr.TTL("test:42").Seconds(), 5)

	mr.FastForward(2 * time.Hour)

	rec, err := s.Get(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRedisTokenStore_ExpiredSetInvalidates(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisTokenStore(client, "")
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, 42, testRecord("valid", time.Hour)))
	require.NoError(t, s.Set(ctx, 42, testRecord("expired", -time.Minute)))

	assert.False(t, mr.Exists(DefaultRedisKeyPrefix+"42"))
}

func TestRedisTokenStore_NoExpiryHasNoTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisTokenStore(client, "")
	defer s.Close()

	require.NoError(t, s.Set(context.Background(), 42, testRecord("token", 0)))
	assert.Equal(t, time.Duration(0), mr.TTL(DefaultRedisKeyPrefix+"42"))
}

func TestRedisTokenStore_CorruptPayload(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisTokenStore(client, "")
	defer s.Close()

	require.NoError(t, mr.Set(DefaultRedisKeyPrefix+"42", "not-json"))

	_, err := s.Get(context.Background(), 42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode token")
}

func TestNewRedisTokenStoreFromURL(t *testing.T) {
	mr := miniredis.RunT(t)

	s, err := NewRedisTokenStoreFromURL(context.Background(), "redis://"+mr.Addr()+"/0", "")
	require.NoError(t, err)
	defer s.Close()

	_, err = NewRedisTokenStoreFromURL(context.Background(), "://bad", "")
	assert.Error(t, err)
}

func TestRedisTokenStore_DoesNotPersistRedactedPlaceholder(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisTokenStore(client, "")
	defer s.Close()

	require.NoError(t, s.Set(context.Background(), 42, testRecord("secret-value", time.Hour)))

	raw, err := mr.Get(DefaultRedisKeyPrefix + "42")
	require.NoError(t, err)
	assert.Contains(t, raw, "secret-value")
	assert.NotContains(t, raw, "[REDACTED]")
}
