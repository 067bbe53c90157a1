package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"paygate-service/cache"
	"paygate-service/domain"
	"paygate-service/request"
)

type CacheReader interface {
	Get(ctx context.Context, key string) (*cache.Entry, error)
}

type Refresher interface {
	ScheduleRefresh(req domain.AppRequest, session *domain.Session, cachedAt time.Time)
}

// CacheLookup serves GET requests from the response cache. A hit is always
// returned as-is; for a paying caller a background refresh of the entry may
// additionally be scheduled, detached from this request.
func CacheLookup(reader CacheReader, refresher Refresher, version int) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx *request.Context) error {
			if ctx.Request().Method != http.MethodGet {
				return next.Handle(ctx)
			}

			key := cache.NewKey(version, ctx.Format(), ctx.Endpoint(), ctx.Query()).String()
			entry, err := reader.Get(ctx.Context(), key)
			if errors.Is(err, domain.ErrCacheEntryNotFound) {
				return next.Handle(ctx)
			}
			if err != nil {
				return errors.WithMessage(err, "cache lookup: get")
			}

			session, err := ctx.Session()
			if err != nil {
				return errors.WithMessage(err, "cache lookup: get session")
			}
			if session.PayingCaller() && session.Balance() > 0 {
				refresher.ScheduleRefresh(refreshRequest(ctx, session), session, entry.CreatedAt)
			}

			writer := ctx.ResponseWriter()
			writer.Header().Set("Content-Type", ctx.Format().ContentType())
			writer.Header().Set(domain.CacheStatusHeader, domain.CacheHit)
			writer.WriteHeader(http.StatusOK)
			_, err = writer.Write(entry.Content)
			if err != nil {
				return errors.WithMessage(err, "cache lookup: write response")
			}
			return nil
		})
	}
}

func refreshRequest(ctx *request.Context, session *domain.Session) domain.AppRequest {
	return domain.AppRequest{
		Method: http.MethodGet,
		Path:   ctx.Endpoint(),
		Query:  ctx.Query(),
		Header: ctx.Request().Header.Clone(),
		Caller: session.Caller,
	}
}
