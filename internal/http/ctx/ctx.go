// Package ctx stores per-request values on a fasthttp.RequestCtx.
package ctx

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	"leakdiag/internal/admin"
)

const (
	AdminSessionKey = "adminSession"
	AdminTokenKey   = "adminToken"
)

func SetAdminToken(ctx *fasthttp.RequestCtx, token string) {
	ctx.SetUserValue(AdminTokenKey, token)
}

func AdminTokenFromCtx(ctx *fasthttp.RequestCtx) (string, bool) {
	v := ctx.UserValue(AdminTokenKey)
	if v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func SetAdminSession(ctx *fasthttp.RequestCtx, sess admin.Session) {
	ctx.SetUserValue(AdminSessionKey, sess)
}

func AdminSessionFromCtx(ctx *fasthttp.RequestCtx) (admin.Session, bool) {
	v := ctx.UserValue(AdminSessionKey)
	if v == nil {
		return admin.Session{}, false
	}
	s, ok := v.(admin.Session)
	return s, ok
}

// RouteFromCtx returns the route pattern the router matched, or "unmatched".
// It needs router.SaveMatchedRoutePath and is only set once the router ran.
func RouteFromCtx(ctx *fasthttp.RequestCtx) string {
	if s, ok := ctx.UserValue(router.MatchedRoutePathParam).(string); ok && s != "" {
		return s
	}
	return "unmatched"
}
