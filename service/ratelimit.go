package service

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"paygate-service/domain"
)

const lockStripes = 64

type RateLimitStore interface {
	Get(ctx context.Context, identityKey string) ([]time.Time, error)
	Put(ctx context.Context, identityKey string, window []time.Time, ttl time.Duration) error
}

// RateLimit keeps a trailing window of request timestamps per identity.
// Check-and-append is serialized per identity with striped locks, so two
// concurrent requests in one process cannot both take the last slot.
// Across processes the store's single-key operations stay best-effort.
type RateLimit struct {
	store  RateLimitStore
	max    int
	window time.Duration
	locks  [lockStripes]sync.Mutex
}

func NewRateLimit(store RateLimitStore, maxRequests int, window time.Duration) *RateLimit {
	return &RateLimit{
		store:  store,
		max:    maxRequests,
		window: window,
	}
}

func (s *RateLimit) Check(ctx context.Context, identityKey string) (*domain.RateLimitResult, error) {
	lock := s.lock(identityKey)
	lock.Lock()
	defer lock.Unlock()

	window, err := s.store.Get(ctx, identityKey)
	if err != nil {
		return nil, errors.WithMessage(err, "rate limit store get")
	}

	now := time.Now()
	cutoff := now.Add(-s.window)
	alive := make([]time.Time, 0, len(window)+1)
	for _, stamp := range window {
		if stamp.After(cutoff) {
			alive = append(alive, stamp)
		}
	}

	if len(alive) >= s.max {
		err = s.store.Put(ctx, identityKey, alive, s.window)
		if err != nil {
			return nil, errors.WithMessage(err, "rate limit store put")
		}
		// reset is anchored to the oldest surviving request, not to now
		return &domain.RateLimitResult{
			Allowed:   false,
			Remaining: 0,
			ResetAt:   alive[0].Add(s.window),
		}, nil
	}

	alive = append(alive, now)
	err = s.store.Put(ctx, identityKey, alive, s.window)
	if err != nil {
		return nil, errors.WithMessage(err, "rate limit store put")
	}

	return &domain.RateLimitResult{
		Allowed:   true,
		Remaining: s.max - len(alive),
		ResetAt:   now.Add(s.window),
	}, nil
}

func (s *RateLimit) lock(identityKey string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(identityKey))
	return &s.locks[h.Sum32()%lockStripes]
}
