package middleware

import (
	"paygate-service/format"
	"paygate-service/request"
)

// Format resolves the response representation and strips the format suffix,
// so both representations address the same logical resource.
func Format() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx *request.Context) error {
			resolved := format.Resolve(ctx.Endpoint(), ctx.Request().Header.Get("Accept"))
			ctx.SetFormat(resolved)

			normalized, _ := format.Strip(ctx.Endpoint())
			ctx.SetEndpoint(normalized)

			return next.Handle(ctx)
		})
	}
}
