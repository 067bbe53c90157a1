package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/txix-open/isp-kit/json"
)

type RateLimit struct {
	cli redis.UniversalClient
}

func NewRateLimit(cli redis.UniversalClient) RateLimit {
	return RateLimit{
		cli: cli,
	}
}

func (r RateLimit) Get(ctx context.Context, identityKey string) ([]time.Time, error) {
	data, err := r.cli.Get(ctx, r.key(identityKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WithMessage(err, "redis get")
	}

	stamps := make([]int64, 0)
	err = json.Unmarshal(data, &stamps)
	if err != nil {
		return nil, errors.WithMessage(err, "json unmarshal window")
	}

	window := make([]time.Time, 0, len(stamps))
	for _, stamp := range stamps {
		window = append(window, time.UnixMilli(stamp))
	}
	return window, nil
}

// Put overwrites the window. The key expires together with the oldest
// possible surviving timestamp, so abandoned identities clean themselves up.
func (r RateLimit) Put(ctx context.Context, identityKey string, window []time.Time, ttl time.Duration) error {
	stamps := make([]int64, 0, len(window))
	for _, stamp := range window {
		stamps = append(stamps, stamp.UnixMilli())
	}

	data, err := json.Marshal(stamps)
	if err != nil {
		return errors.WithMessage(err, "json marshal window")
	}

	err = r.cli.Set(ctx, r.key(identityKey), data, ttl).Err()
	if err != nil {
		return errors.WithMessage(err, "redis set")
	}

	return nil
}

func (r RateLimit) key(identityKey string) string {
	return "rate_limit:" + identityKey
}
