package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"paygate-service/domain"
)

// Key addresses one cached response: configuration version, resolved format
// and the canonical path+query. Query pairs are sorted by key then value,
// so parameter order never produces distinct keys.
type Key struct {
	Version int
	Format  domain.Format
	Path    string
	Query   url.Values
}

func NewKey(version int, format domain.Format, path string, query url.Values) Key {
	return Key{
		Version: version,
		Format:  format,
		Path:    path,
		Query:   query,
	}
}

func (k Key) String() string {
	base := fmt.Sprintf("%d:%s:%s", k.Version, k.Format, k.Path)
	query := canonicalQuery(k.Query)
	if query == "" {
		return base
	}
	return base + "?" + query
}

func canonicalQuery(query url.Values) string {
	if len(query) == 0 {
		return ""
	}

	type pair struct {
		key   string
		value string
	}
	pairs := make([]pair, 0, len(query))
	for key, values := range query {
		for _, value := range values {
			pairs = append(pairs, pair{key: key, value: value})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].key != pairs[j].key {
			return pairs[i].key < pairs[j].key
		}
		return pairs[i].value < pairs[j].value
	})

	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, fmt.Sprintf("%s=%s", p.key, p.value))
	}
	return strings.Join(parts, "&")
}
