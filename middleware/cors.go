package middleware

import (
	"net/http"

	"paygate-service/request"
)

// Cors applies cross-origin headers to every response and short-circuits
// preflight requests with a fixed no-content response.
func Cors() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx *request.Context) error {
			header := ctx.ResponseWriter().Header()
			header.Set("Access-Control-Allow-Origin", "*")
			header.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			header.Set("Access-Control-Allow-Headers", "Content-Type, Accept, X-Session-Token, X-Request-Id")

			if ctx.Request().Method == http.MethodOptions {
				ctx.ResponseWriter().WriteHeader(http.StatusNoContent)
				return nil
			}

			return next.Handle(ctx)
		})
	}
}
