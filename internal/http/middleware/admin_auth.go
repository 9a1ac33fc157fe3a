package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"

	"leakdiag/internal/admin"
	httpctx "leakdiag/internal/http/ctx"
)

// TokenVerifier checks an admin bearer token.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (admin.Session, error)
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. It returns "" when the header is missing or malformed.
func BearerToken(ctx *fasthttp.RequestCtx) string {
	auth := ctx.Request.Header.Peek("Authorization")
	const prefix = "Bearer "
	if len(auth) < len(prefix) || !bytes.EqualFold(auth[:len(prefix)], []byte(prefix)) {
		return ""
	}
	return strings.TrimSpace(string(auth[len(prefix):]))
}

// AdminAuth rejects requests without a live admin token and stores the
// verified session on the request context.
func AdminAuth(v TokenVerifier, log logrus.FieldLogger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			token := BearerToken(ctx)
			if token == "" {
				writeError(ctx, fasthttp.StatusUnauthorized, "Unauthorized")
				return
			}

			sess, err := v.Verify(ctx, token)
			if err != nil {
				if errors.Is(err, admin.ErrUnauthorized) {
					writeError(ctx, fasthttp.StatusUnauthorized, "Unauthorized")
					return
				}
				log.WithError(err).Error("admin token verification failed")
				writeError(ctx, fasthttp.StatusInternalServerError, "Failed to verify session")
				return
			}

			httpctx.SetAdminToken(ctx, token)
			httpctx.SetAdminSession(ctx, sess)
			next(ctx)
		}
	}
}

func writeError(ctx *fasthttp.RequestCtx, code int, msg string) {
	body, _ := json.Marshal(map[string]string{"error": msg})
	ctx.SetStatusCode(code)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}
