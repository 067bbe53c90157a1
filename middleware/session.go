package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"paygate-service/domain"
	"paygate-service/httperrors"
	"paygate-service/request"
)

const (
	sessionTokenHeader = "x-session-token"
)

type SessionResolver interface {
	ResolveSession(ctx context.Context, req domain.ResolveSessionRequest) (*domain.ResolveSessionResponse, error)
}

// Session delegates to the external billing module. Infrastructure routes
// (payment webhooks, oauth callbacks) come back fully handled and are
// forwarded verbatim. Anonymous callers get an unauthenticated session;
// no session at all aborts the request before any handler invocation.
func Session(resolver SessionResolver) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx *request.Context) error {
			token := strings.TrimSpace(ctx.Request().Header.Get(sessionTokenHeader))

			resp, err := resolver.ResolveSession(ctx.Context(), domain.ResolveSessionRequest{
				Token:  token,
				Method: ctx.Request().Method,
				Path:   ctx.Endpoint(),
			})
			if err != nil {
				return errors.WithMessage(err, "session: resolve")
			}

			if resp.Handled && resp.Response != nil {
				return writeRawResponse(ctx.ResponseWriter(), resp.Response)
			}

			if resp.Session == nil {
				return httperrors.New(
					http.StatusBadRequest,
					"session could not be established",
					errors.New("session: no usable session returned"),
				)
			}

			ctx.SetSession(resp.Session)
			return next.Handle(ctx)
		})
	}
}

func writeRawResponse(writer http.ResponseWriter, resp *domain.RawResponse) error {
	if resp.ContentType != "" {
		writer.Header().Set("Content-Type", resp.ContentType)
	}
	writer.WriteHeader(resp.StatusCode)
	_, err := writer.Write(resp.Body)
	if err != nil {
		return errors.WithMessage(err, "session: write handled response")
	}
	return nil
}
