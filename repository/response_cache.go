package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/txix-open/isp-kit/json"
	"paygate-service/cache"
	"paygate-service/domain"
)

type ResponseCache struct {
	cli redis.UniversalClient
}

func NewResponseCache(cli redis.UniversalClient) ResponseCache {
	return ResponseCache{
		cli: cli,
	}
}

func (r ResponseCache) Get(ctx context.Context, key string) (*cache.Entry, error) {
	data, err := r.cli.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrCacheEntryNotFound
	}
	if err != nil {
		return nil, errors.WithMessage(err, "redis get")
	}

	entry := cache.Entry{}
	err = json.Unmarshal(data, &entry)
	if err != nil {
		return nil, errors.WithMessage(err, "json unmarshal cache entry")
	}

	return &entry, nil
}

// Set stores an entry. Zero ttl means the entry never expires;
// expiration is managed by the store, entries are never deleted here.
func (r ResponseCache) Set(ctx context.Context, key string, entry cache.Entry, ttl time.Duration) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return errors.WithMessage(err, "json marshal cache entry")
	}

	err = r.cli.Set(ctx, r.key(key), data, ttl).Err()
	if err != nil {
		return errors.WithMessage(err, "redis set")
	}

	return nil
}

func (r ResponseCache) key(key string) string {
	return "response_cache:" + key
}
