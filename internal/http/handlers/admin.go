package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"

	"leakdiag/internal/admin"
	"leakdiag/internal/archive"
	"leakdiag/internal/db"
	httpctx "leakdiag/internal/http/ctx"
	"leakdiag/internal/http/middleware"
)

const defaultStatsWindow = 30 * 24 * time.Hour

// Authenticator is the admin gateway as the HTTP layer sees it.
type Authenticator interface {
	Login(ctx context.Context, password string) (admin.Token, error)
	Verify(ctx context.Context, token string) (admin.Session, error)
	Logout(ctx context.Context, token string) error
}

// SubmissionReader is the read side of the submission store.
type SubmissionReader interface {
	ListSubmissions(ctx context.Context, limit int) ([]db.Submission, error)
	GetSubmission(ctx context.Context, id string) (*db.Submission, error)
	SubmissionStats(ctx context.Context, since time.Time) (db.Stats, error)
}

// AdminLogin exchanges {"password": "..."} for a bearer token.
func AdminLogin(gw Authenticator, log logrus.FieldLogger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var req struct {
			Password string `json:"password"`
		}
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
			errResponse(ctx, fasthttp.StatusBadRequest, "Invalid request body")
			return
		}

		tok, err := gw.Login(ctx, req.Password)
		switch {
		case err == nil:
			log.Info("admin login")
			jsonResponse(ctx, fasthttp.StatusOK, tok)
		case errors.Is(err, admin.ErrInvalidPassword):
			log.WithField("ip", ClientIP(ctx)).Warn("admin login rejected")
			errResponse(ctx, fasthttp.StatusUnauthorized, "Invalid password")
		case errors.Is(err, admin.ErrNotConfigured):
			errResponse(ctx, fasthttp.StatusInternalServerError, "Admin password not configured")
		default:
			log.WithError(err).Error("admin login failed")
			errResponse(ctx, fasthttp.StatusInternalServerError, "Login failed")
		}
	}
}

// AdminVerify reports whether a token is still valid. The token comes from
// the JSON body {"token": "..."} or the Authorization header.
func AdminVerify(gw Authenticator, log logrus.FieldLogger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var req struct {
			Token string `json:"token"`
		}
		if body := ctx.PostBody(); len(body) > 0 {
			_ = json.Unmarshal(body, &req)
		}
		if req.Token == "" {
			req.Token = middleware.BearerToken(ctx)
		}

		if _, err := gw.Verify(ctx, req.Token); err != nil {
			if errors.Is(err, admin.ErrUnauthorized) {
				jsonResponse(ctx, fasthttp.StatusUnauthorized, map[string]bool{"valid": false})
				return
			}
			log.WithError(err).Error("admin verify failed")
			jsonResponse(ctx, fasthttp.StatusInternalServerError, map[string]bool{"valid": false})
			return
		}
		jsonResponse(ctx, fasthttp.StatusOK, map[string]bool{"valid": true})
	}
}

// AdminLogout revokes the caller's token. It runs behind AdminAuth.
func AdminLogout(gw Authenticator, log logrus.FieldLogger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		token, _ := httpctx.AdminTokenFromCtx(ctx)
		if err := gw.Logout(ctx, token); err != nil {
			log.WithError(err).Error("admin logout failed")
			errResponse(ctx, fasthttp.StatusInternalServerError, "Logout failed")
			return
		}
		jsonResponse(ctx, fasthttp.StatusOK, map[string]bool{"success": true})
	}
}

// AdminSubmissions lists submissions newest first, without report bodies.
func AdminSubmissions(store SubmissionReader, log logrus.FieldLogger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		limit := db.DefaultListLimit
		if s := string(ctx.QueryArgs().Peek("limit")); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n > 0 {
				limit = n
			}
		}

		rows, err := store.ListSubmissions(ctx, limit)
		if err != nil {
			log.WithError(err).Error("list submissions failed")
			errResponse(ctx, fasthttp.StatusInternalServerError, "Failed to fetch submissions")
			return
		}
		jsonResponse(ctx, fasthttp.StatusOK, map[string]any{"submissions": rows})
	}
}

// AdminSubmission returns one submission including its rendered report.
func AdminSubmission(store SubmissionReader, log logrus.FieldLogger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		sub, ok := loadSubmission(ctx, store, log)
		if !ok {
			return
		}
		jsonResponse(ctx, fasthttp.StatusOK, map[string]any{"submission": sub})
	}
}

// AdminReport serves a submission's full report as HTML, preferring the
// archived copy and falling back to the stored one.
func AdminReport(store SubmissionReader, reports archive.Storage, log logrus.FieldLogger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		sub, ok := loadSubmission(ctx, store, log)
		if !ok {
			return
		}

		body := []byte(sub.FullReportHTML)
		if reports != nil && sub.ReportKey != "" {
			data, err := reports.Get(ctx, sub.ReportKey)
			switch {
			case err == nil:
				body = data
			case errors.Is(err, archive.ErrNotFound):
				log.WithField("key", sub.ReportKey).Warn("archived report missing, serving stored copy")
			default:
				log.WithError(err).WithField("key", sub.ReportKey).Warn("archive read failed, serving stored copy")
			}
		}

		ctx.SetContentType("text/html; charset=utf-8")
		ctx.SetBody(body)
	}
}

// AdminStats summarises submissions per leak bucket. The window defaults to
// 30 days and accepts ?days= or ?hours=.
func AdminStats(store SubmissionReader, log logrus.FieldLogger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		since := parseSince(ctx, time.Now().UTC(), defaultStatsWindow)
		st, err := store.SubmissionStats(ctx, since)
		if err != nil {
			log.WithError(err).Error("submission stats failed")
			errResponse(ctx, fasthttp.StatusInternalServerError, "Failed to load stats")
			return
		}
		jsonResponse(ctx, fasthttp.StatusOK, st)
	}
}

func loadSubmission(ctx *fasthttp.RequestCtx, store SubmissionReader, log logrus.FieldLogger) (*db.Submission, bool) {
	id, _ := ctx.UserValue("id").(string)
	if id == "" {
		errResponse(ctx, fasthttp.StatusBadRequest, "Missing submission id")
		return nil, false
	}
	sub, err := store.GetSubmission(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		errResponse(ctx, fasthttp.StatusNotFound, "Submission not found")
		return nil, false
	}
	if err != nil {
		log.WithError(err).WithField("submission_id", id).Error("get submission failed")
		errResponse(ctx, fasthttp.StatusInternalServerError, "Failed to fetch submission")
		return nil, false
	}
	return sub, true
}
