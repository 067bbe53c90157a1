package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"paygate-service/service"
)

type rateLimitStoreMock struct {
	windows map[string][]time.Time
}

func newRateLimitStoreMock() *rateLimitStoreMock {
	return &rateLimitStoreMock{windows: map[string][]time.Time{}}
}

func (m *rateLimitStoreMock) Get(ctx context.Context, identityKey string) ([]time.Time, error) {
	return m.windows[identityKey], nil
}

func (m *rateLimitStoreMock) Put(ctx context.Context, identityKey string, window []time.Time, ttl time.Duration) error {
	m.windows[identityKey] = window
	return nil
}

func TestCheckAllowsUpToMax(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	store := newRateLimitStoreMock()
	limiter := service.NewRateLimit(store, 3, time.Hour)
	ctx := context.Background()

	for i := range 3 {
		result, err := limiter.Check(ctx, "caller")
		require.NoError(err)
		require.True(result.Allowed)
		require.EqualValues(2-i, result.Remaining)
	}

	result, err := limiter.Check(ctx, "caller")
	require.NoError(err)
	require.False(result.Allowed)
	require.EqualValues(0, result.Remaining)
}

func TestCheckDeniedUntilOldestLeavesWindow(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	store := newRateLimitStoreMock()
	limiter := service.NewRateLimit(store, 2, time.Hour)
	ctx := context.Background()

	oldest := time.Now().Add(-30 * time.Minute)
	store.windows["caller"] = []time.Time{oldest, time.Now().Add(-10 * time.Minute)}

	result, err := limiter.Check(ctx, "caller")
	require.NoError(err)
	require.False(result.Allowed)
	require.WithinDuration(oldest.Add(time.Hour), result.ResetAt, time.Second)
}

func TestCheckPrunesExpiredTimestamps(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	store := newRateLimitStoreMock()
	limiter := service.NewRateLimit(store, 2, time.Hour)
	ctx := context.Background()

	store.windows["caller"] = []time.Time{
		time.Now().Add(-2 * time.Hour),
		time.Now().Add(-90 * time.Minute),
		time.Now().Add(-10 * time.Minute),
	}

	result, err := limiter.Check(ctx, "caller")
	require.NoError(err)
	require.True(result.Allowed)
	require.EqualValues(0, result.Remaining)
	require.Len(store.windows["caller"], 2)
}

func TestCheckIsolatesIdentities(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	store := newRateLimitStoreMock()
	limiter := service.NewRateLimit(store, 1, time.Hour)
	ctx := context.Background()

	first, err := limiter.Check(ctx, "first")
	require.NoError(err)
	require.True(first.Allowed)

	second, err := limiter.Check(ctx, "second")
	require.NoError(err)
	require.True(second.Allowed)

	denied, err := limiter.Check(ctx, "first")
	require.NoError(err)
	require.False(denied.Allowed)
}

func TestCheckDenialPersistsPrunedWindow(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	store := newRateLimitStoreMock()
	limiter := service.NewRateLimit(store, 1, time.Hour)
	ctx := context.Background()

	store.windows["caller"] = []time.Time{
		time.Now().Add(-2 * time.Hour),
		time.Now().Add(-5 * time.Minute),
	}

	result, err := limiter.Check(ctx, "caller")
	require.NoError(err)
	require.False(result.Allowed)
	require.Len(store.windows["caller"], 1)
}
