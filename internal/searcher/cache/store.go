package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	pkgredis "github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/corpus-search/pkg/resilience"
)

// DefaultLocalSize bounds the in-process store when no size is configured.
const DefaultLocalSize = 1024

// Store is the backing key/value store of a QueryCache. Get reports a miss
// as (nil, false, nil).
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	// Flush removes every entry written by the cache and returns how many
	// were removed.
	Flush(ctx context.Context) (int64, error)
	Name() string
}

// RedisStore keeps entries in Redis under keyPrefix with a fixed TTL.
type RedisStore struct {
	client *pkgredis.Client
	ttl    time.Duration
}

func NewRedisStore(client *pkgredis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return s.client.GetBytes(ctx, key)
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	return s.client.SetBytes(ctx, key, value, s.ttl)
}

func (s *RedisStore) Flush(ctx context.Context) (int64, error) {
	return s.client.DeleteByPrefix(ctx, keyPrefix)
}

func (s *RedisStore) Name() string { return "redis" }

// LocalStore is a bounded in-process LRU used when Redis is not configured.
type LocalStore struct {
	lru *lru.Cache[string, []byte]
}

func NewLocalStore(size int) *LocalStore {
	if size <= 0 {
		size = DefaultLocalSize
	}
	c, _ := lru.New[string, []byte](size)
	return &LocalStore{lru: c}
}

func (s *LocalStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.lru.Get(key)
	return v, ok, nil
}

func (s *LocalStore) Set(_ context.Context, key string, value []byte) error {
	s.lru.Add(key, value)
	return nil
}

func (s *LocalStore) Flush(_ context.Context) (int64, error) {
	n := int64(s.lru.Len())
	s.lru.Purge()
	return n, nil
}

func (s *LocalStore) Name() string { return "local" }

// Len is the number of entries currently held.
func (s *LocalStore) Len() int { return s.lru.Len() }

// GuardedStore bounds every Get and Set on a remote store by timeout and
// skips them while the breaker is open.
type GuardedStore struct {
	inner   Store
	breaker *resilience.CircuitBreaker
	timeout time.Duration
}

func NewGuardedStore(inner Store, breaker *resilience.CircuitBreaker, timeout time.Duration) *GuardedStore {
	return &GuardedStore{inner: inner, breaker: breaker, timeout: timeout}
}

func (s *GuardedStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		data []byte
		ok   bool
	)
	err := s.call(ctx, func(ctx context.Context) error {
		var err error
		data, ok, err = s.inner.Get(ctx, key)
		return err
	})
	return data, ok, err
}

func (s *GuardedStore) Set(ctx context.Context, key string, value []byte) error {
	return s.call(ctx, func(ctx context.Context) error {
		return s.inner.Set(ctx, key, value)
	})
}

// Flush is not guarded by the breaker.
func (s *GuardedStore) Flush(ctx context.Context) (int64, error) {
	return s.inner.Flush(ctx)
}

func (s *GuardedStore) Name() string { return s.inner.Name() }

func (s *GuardedStore) call(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.breaker.Execute(func() error {
		if s.timeout <= 0 {
			return fn(ctx)
		}
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		return fn(ctx)
	})
}
