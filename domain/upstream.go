package domain

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	PriceOverrideHeader = "X-Price"
)

// AppRequest is the normalized request passed to the application handler.
// Path carries no format suffix, so /x.html, /x.md and /x address the same
// logical resource.
type AppRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
	Caller *Caller
}

type AppResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *AppResponse) Success() bool {
	return r.StatusCode >= http.StatusOK && r.StatusCode < http.StatusMultipleChoices
}

// PriceOverride reads the per-response price from the dedicated header.
// A missing or non-numeric value means the configured default applies.
func (r *AppResponse) PriceOverride() (int64, bool) {
	value := strings.TrimSpace(r.Header.Get(PriceOverrideHeader))
	if value == "" {
		return 0, false
	}
	price, err := strconv.ParseInt(value, 10, 64)
	if err != nil || price < 0 {
		return 0, false
	}
	return price, true
}

// NonCacheable reports whether the handler explicitly marked the response
// as not to be stored.
func (r *AppResponse) NonCacheable() bool {
	cacheControl := strings.ToLower(r.Header.Get("Cache-Control"))
	return strings.Contains(cacheControl, "private") || strings.Contains(cacheControl, "no-store")
}
