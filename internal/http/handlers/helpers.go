package handlers

import (
	"encoding/json"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

// RequestLogger returns fasthttp middleware that logs method, path, status
// and duration of every request.
func RequestLogger(log logrus.FieldLogger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			start := time.Now()
			next(ctx)

			status := ctx.Response.StatusCode()
			entry := log.WithFields(logrus.Fields{
				"method":      string(ctx.Method()),
				"path":        string(ctx.Path()),
				"status":      status,
				"duration_ms": time.Since(start).Milliseconds(),
				"ip":          ClientIP(ctx),
			})
			if status >= fasthttp.StatusInternalServerError {
				entry.Warn("request failed")
				return
			}
			entry.Debug("request")
		}
	}
}

// ClientIP returns the first X-Forwarded-For address, then X-Real-IP, then
// the socket peer.
func ClientIP(ctx *fasthttp.RequestCtx) string {
	if fwd := string(ctx.Request.Header.Peek("X-Forwarded-For")); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(string(ctx.Request.Header.Peek("X-Real-IP"))); xri != "" {
		return xri
	}
	if addr, ok := ctx.RemoteAddr().(*net.TCPAddr); ok {
		return addr.IP.String()
	}
	return ""
}

// parseSince reads "hours" (float) or "days" (int) from the query and returns
// the matching cutoff before now. Without either it goes back def.
func parseSince(ctx *fasthttp.RequestCtx, now time.Time, def time.Duration) time.Time {
	if h := string(ctx.QueryArgs().Peek("hours")); h != "" {
		if f, err := strconv.ParseFloat(h, 64); err == nil && f > 0 {
			return now.Add(-time.Duration(f * float64(time.Hour)))
		}
	}
	if d := string(ctx.QueryArgs().Peek("days")); d != "" {
		if n, err := strconv.Atoi(d); err == nil && n > 0 {
			return now.AddDate(0, 0, -n)
		}
	}
	return now.Add(-def)
}

func jsonResponse(ctx *fasthttp.RequestCtx, code int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		ctx.SetBodyString(`{"error":"failed to encode response"}`)
		ctx.SetContentType("application/json")
		return
	}
	ctx.SetStatusCode(code)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

func errResponse(ctx *fasthttp.RequestCtx, code int, msg string) {
	jsonResponse(ctx, code, map[string]any{"error": msg})
}
