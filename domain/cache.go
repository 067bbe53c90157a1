package domain

import (
	"github.com/pkg/errors"
)

var (
	ErrCacheEntryNotFound = errors.New("cache entry not found")
)

const (
	CacheStatusHeader = "X-Cache"
	CacheHit          = "HIT"
	CacheMiss         = "MISS"
)
