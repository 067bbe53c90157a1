// Package proxy invokes the externally supplied application handler over HTTP.
package proxy

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/txix-open/isp-kit/requestid"
	"paygate-service/domain"
	"paygate-service/httperrors"
)

const (
	callerIdHeader      = "x-caller-id"
	callerRefHeader     = "x-caller-external-ref"
	callerBalanceHeader = "x-caller-balance"
	refreshCheckHeader  = "x-refresh-check"
	cachedAtHeader      = "x-cached-at"
)

type HttpHostManager interface {
	Next() (string, error)
}

type Upstream struct {
	hostManager HttpHostManager
	cli         *http.Client
	timeout     time.Duration
}

func NewUpstream(hostManager HttpHostManager, timeout time.Duration) Upstream {
	return Upstream{
		hostManager: hostManager,
		cli:         &http.Client{},
		timeout:     timeout,
	}
}

// Invoke forwards the normalized request to the next upstream host and
// captures the full response, so the pipeline can charge, cache and render
// before anything is written to the caller.
func (p Upstream) Invoke(ctx context.Context, req domain.AppRequest) (*domain.AppResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	httpReq, host, err := p.newRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := p.cli.Do(httpReq)
	if err != nil {
		return nil, httperrors.New(
			http.StatusServiceUnavailable,
			"upstream is not available",
			errors.WithMessagef(err, "http request to %s", host),
		)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WithMessage(err, "read upstream response body")
	}

	return &domain.AppResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// ShouldRefresh probes the upstream for staleness of a cached entry.
// Any success-class answer means "refresh", anything else means "keep".
func (p Upstream) ShouldRefresh(ctx context.Context, req domain.AppRequest, cachedAt time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	probe := req
	probe.Method = http.MethodGet
	probe.Body = nil

	httpReq, host, err := p.newRequest(ctx, probe)
	if err != nil {
		return false, err
	}
	httpReq.Header.Set(refreshCheckHeader, "true")
	httpReq.Header.Set(cachedAtHeader, cachedAt.Format(time.RFC3339))

	resp, err := p.cli.Do(httpReq)
	if err != nil {
		return false, errors.WithMessagef(err, "refresh probe to %s", host)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices, nil
}

func (p Upstream) newRequest(ctx context.Context, req domain.AppRequest) (*http.Request, string, error) {
	host, err := p.hostManager.Next()
	if err != nil {
		return nil, "", errors.WithMessage(err, "next host")
	}

	// upstream hosts are addressed over plain http inside the cluster
	target := url.URL{
		Scheme:   "http",
		Host:     host,
		Path:     req.Path,
		RawQuery: req.Query.Encode(),
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target.String(), body)
	if err != nil {
		return nil, "", errors.WithMessage(err, "new http request")
	}

	for name, values := range req.Header {
		for _, value := range values {
			httpReq.Header.Add(name, value)
		}
	}
	httpReq.Header.Set("x-request-id", requestid.FromContext(ctx))
	setCallerHeaders(httpReq.Header, req.Caller)

	return httpReq, host, nil
}

func setCallerHeaders(header http.Header, caller *domain.Caller) {
	if caller == nil {
		header.Del(callerIdHeader)
		header.Del(callerRefHeader)
		header.Del(callerBalanceHeader)
		return
	}
	header.Set(callerIdHeader, caller.Id)
	header.Set(callerRefHeader, caller.ExternalRef)
	header.Set(callerBalanceHeader, strconv.FormatInt(caller.Balance, 10))
}
