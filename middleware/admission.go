package middleware

import (
	"context"
	"net"
	"net/http"

	"github.com/pkg/errors"
	"paygate-service/domain"
	"paygate-service/httperrors"
	"paygate-service/request"
)

type RateLimiter interface {
	Check(ctx context.Context, identityKey string) (*domain.RateLimitResult, error)
}

// Admission gates handler invocation. Callers without a positive balance go
// through the free-tier rate limiter regardless of identity type; payers
// whose balance cannot cover one request are rejected outright.
func Admission(limiter RateLimiter, pricePerRequest int64, purchaseUrl string) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx *request.Context) error {
			session, err := ctx.Session()
			if err != nil {
				return errors.WithMessage(err, "admission: get session")
			}

			if session.Balance() > 0 {
				if session.Balance() < pricePerRequest {
					return httperrors.New(
						http.StatusPaymentRequired,
						"insufficient balance",
						errors.Errorf("admission: balance %d is below price %d", session.Balance(), pricePerRequest),
					).WithDetails(domain.PurchaseDetails{
						PurchaseUrl: purchaseUrl,
					})
				}
				return next.Handle(ctx)
			}

			result, err := limiter.Check(ctx.Context(), identityKey(session, ctx.Request()))
			if err != nil {
				return errors.WithMessage(err, "admission: rate limit check")
			}
			if !result.Allowed {
				return httperrors.New(
					http.StatusPaymentRequired,
					"free tier limit has been reached",
					errors.Errorf("admission: rate limit has been reached, resets at %s", result.ResetAt),
				).WithDetails(domain.RateLimitExceededDetails{
					Remaining:   result.Remaining,
					ResetAt:     result.ResetAt,
					PurchaseUrl: purchaseUrl,
				})
			}

			return next.Handle(ctx)
		})
	}
}

func identityKey(session *domain.Session, req *http.Request) string {
	if session.Authenticated && session.Caller != nil && session.Caller.ExternalRef != "" {
		return session.Caller.ExternalRef
	}

	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		host = req.RemoteAddr
	}
	return "anon:" + host
}
