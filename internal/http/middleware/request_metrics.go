package middleware

import (
	"time"

	"github.com/valyala/fasthttp"

	httpctx "leakdiag/internal/http/ctx"
)

// RequestObserver records one finished request.
type RequestObserver interface {
	ObserveRequest(route, method string, status int, elapsed time.Duration)
}

// skipMetrics lists routes whose traffic is not worth recording.
var skipMetrics = map[string]bool{
	"/metrics":             true,
	"/healthz":             true,
	"/static/{filepath:*}": true,
}

// RequestMetrics reports every request to obs, labelled by the matched route
// pattern rather than the raw path so ids do not explode label cardinality.
func RequestMetrics(obs RequestObserver) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if obs == nil {
		return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
			return next
		}
	}

	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			start := time.Now()
			next(ctx)

			route := httpctx.RouteFromCtx(ctx)
			if skipMetrics[route] {
				return
			}
			obs.ObserveRequest(route, string(ctx.Method()), ctx.Response.StatusCode(), time.Since(start))
		}
	}
}
