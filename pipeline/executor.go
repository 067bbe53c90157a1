// Package pipeline holds the terminal stage of the request chain: handler
// invocation, charging and dual-format cache population.
package pipeline

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"paygate-service/cache"
	"paygate-service/domain"
	"paygate-service/render"
	"paygate-service/request"
)

type AppHandler interface {
	Invoke(ctx context.Context, req domain.AppRequest) (*domain.AppResponse, error)
	ShouldRefresh(ctx context.Context, req domain.AppRequest, cachedAt time.Time) (bool, error)
}

type Charger interface {
	Charge(ctx context.Context, caller *domain.Caller, amountMinorUnits int64)
}

type ResponseCache interface {
	Set(ctx context.Context, key string, entry cache.Entry, ttl time.Duration) error
}

type TaskQueue interface {
	Enqueue(name string, do func(ctx context.Context) error)
}

type Config struct {
	Version            int
	PricePerRequest    int64
	CacheTtl           time.Duration
	EnableRefreshCheck bool
}

type Result struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

type Executor struct {
	upstream   AppHandler
	billing    Charger
	cacheStore ResponseCache
	renderer   render.Renderer
	queue      TaskQueue
	cfg        Config
}

func NewExecutor(
	upstream AppHandler,
	billing Charger,
	cacheStore ResponseCache,
	renderer render.Renderer,
	queue TaskQueue,
	cfg Config,
) Executor {
	return Executor{
		upstream:   upstream,
		billing:    billing,
		cacheStore: cacheStore,
		renderer:   renderer,
		queue:      queue,
		cfg:        cfg,
	}
}

func (e Executor) Handle(ctx *request.Context) error {
	session, err := ctx.Session()
	if err != nil {
		return errors.WithMessage(err, "executor: get session")
	}

	body, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return errors.WithMessage(err, "executor: read request body")
	}

	result, err := e.Execute(ctx.Context(), domain.AppRequest{
		Method: ctx.Request().Method,
		Path:   ctx.Endpoint(),
		Query:  ctx.Query(),
		Header: ctx.Request().Header.Clone(),
		Body:   body,
		Caller: session.Caller,
	}, ctx.Format(), session)
	if err != nil {
		return err
	}

	writer := ctx.ResponseWriter()
	if result.ContentType != "" {
		writer.Header().Set("Content-Type", result.ContentType)
	}
	writer.Header().Set(domain.CacheStatusHeader, domain.CacheMiss)
	writer.WriteHeader(result.StatusCode)
	_, err = writer.Write(result.Body)
	if err != nil {
		return errors.WithMessage(err, "executor: write response")
	}
	return nil
}

// Execute invokes the application handler and applies the post-processing
// policy: charge on success, populate both cache representations, render to
// the requested format. It is also re-run by the background refresh task,
// detached from any client connection.
func (e Executor) Execute(
	ctx context.Context,
	req domain.AppRequest,
	format domain.Format,
	session *domain.Session,
) (*Result, error) {
	resp, err := e.upstream.Invoke(ctx, req)
	if err != nil {
		return nil, errors.WithMessage(err, "invoke upstream")
	}

	if !resp.Success() {
		return &Result{
			StatusCode:  resp.StatusCode,
			ContentType: resp.Header.Get("Content-Type"),
			Body:        resp.Body,
		}, nil
	}

	if session.PayingCaller() {
		price := e.cfg.PricePerRequest
		if override, ok := resp.PriceOverride(); ok {
			price = override
		}
		if price > 0 {
			// awaited before the response is finalized; detached from client
			// cancellation so the charge is never left half-applied
			e.billing.Charge(context.WithoutCancel(ctx), session.Caller, price)
		}
	}

	if req.Method == http.MethodGet && !resp.NonCacheable() {
		e.enqueueCachePopulation(req, resp.Body)
	}

	body := resp.Body
	if format == domain.FormatRendered {
		body, err = e.renderer.Render(resp.Body)
		if err != nil {
			return nil, errors.WithMessage(err, "render response")
		}
	}
	return &Result{
		StatusCode:  resp.StatusCode,
		ContentType: format.ContentType(),
		Body:        body,
	}, nil
}

// ScheduleRefresh asks the handler whether a cache hit is stale and, when it
// is, re-executes the full charged pipeline in the background. The caller of
// the hit always receives the cached value.
func (e Executor) ScheduleRefresh(req domain.AppRequest, session *domain.Session, cachedAt time.Time) {
	if !e.cfg.EnableRefreshCheck {
		return
	}
	e.queue.Enqueue("cache refresh", func(ctx context.Context) error {
		refresh, err := e.upstream.ShouldRefresh(ctx, req, cachedAt)
		if err != nil {
			return errors.WithMessage(err, "should refresh")
		}
		if !refresh {
			return nil
		}

		_, err = e.Execute(ctx, req, domain.FormatCanonical, session)
		return errors.WithMessage(err, "refresh execution")
	})
}

// enqueueCachePopulation writes both representations under their own keys,
// so a later request in either format hits the cache. The write never delays
// the response.
func (e Executor) enqueueCachePopulation(req domain.AppRequest, canonical []byte) {
	createdAt := time.Now()
	e.queue.Enqueue("cache population", func(ctx context.Context) error {
		canonicalKey := cache.NewKey(e.cfg.Version, domain.FormatCanonical, req.Path, req.Query).String()
		err := e.cacheStore.Set(ctx, canonicalKey, cache.NewEntry(canonical, createdAt), e.cfg.CacheTtl)
		if err != nil {
			return errors.WithMessage(err, "set canonical cache entry")
		}

		rendered, err := e.renderer.Render(canonical)
		if err != nil {
			return errors.WithMessage(err, "render cache entry")
		}
		renderedKey := cache.NewKey(e.cfg.Version, domain.FormatRendered, req.Path, req.Query).String()
		err = e.cacheStore.Set(ctx, renderedKey, cache.NewEntry(rendered, createdAt), e.cfg.CacheTtl)
		if err != nil {
			return errors.WithMessage(err, "set rendered cache entry")
		}

		return nil
	})
}
