package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"leakdiag/internal/admin"
	"leakdiag/internal/db"
	"leakdiag/internal/diagnostic"
	"leakdiag/internal/http/handlers"
	"leakdiag/internal/logger"
	"leakdiag/internal/submission"
)

var scoreNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func leakyOpts(format string) scoreOpts {
	return scoreOpts{
		sessions:    "10000",
		orders:      "100",
		cr:          "1.2",
		aov:         "70",
		abandoned:   "300",
		firstName:   "Dana",
		storeURL:    "gearstore.com",
		calendarURL: "#",
		outputFmt:   format,
	}
}

func TestRunScoreJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, runScore(&buf, leakyOpts("json"), scoreNow))

	var out struct {
		LeakScore  int     `json:"leakScore"`
		LeakBucket string  `json:"leakBucket"`
		RevenueEst float64 `json:"revenueEst"`
		Leaks      []struct {
			Title string `json:"title"`
		} `json:"leaks"`
		Teaser diagnostic.Teaser `json:"teaser"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, 43, out.LeakScore)
	assert.Equal(t, "meaningful", out.LeakBucket)
	assert.InDelta(t, 8400.0, out.RevenueEst, 0.001)
	assert.Len(t, out.Leaks, 3)
	assert.Len(t, out.Teaser.TopLeaks, 2)
}

func TestRunScoreTextAndTable(t *testing.T) {
	var text bytes.Buffer
	require.NoError(t, runScore(&text, leakyOpts("text"), scoreNow))
	assert.Contains(t, text.String(), "Low Conversion Rate")
	assert.Contains(t, text.String(), "8,400")

	var table bytes.Buffer
	require.NoError(t, runScore(&table, leakyOpts("table"), scoreNow))
	out := table.String()
	assert.Contains(t, out, "43/100")
	assert.Contains(t, out, "Meaningful Leakage Detected")
	assert.Contains(t, out, "Conversion Rate +0.5%")
	assert.Contains(t, out, "High Cart Abandonment")
}

func TestRunScoreRejectsBadInput(t *testing.T) {
	opts := leakyOpts("text")
	opts.cr = "25"
	opts.orders = "abc"

	err := runScore(&bytes.Buffer{}, opts, scoreNow)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conversionRate:")
	assert.Contains(t, err.Error(), "orders30d:")

	err = runScore(&bytes.Buffer{}, leakyOpts("yaml"), scoreNow)
	assert.ErrorContains(t, err, `unknown output format "yaml"`)
}

type noopSubmitter struct{}

func (noopSubmitter) Submit(context.Context, []byte, submission.Tracking) (*submission.Outcome, error) {
	return &submission.Outcome{SubmissionID: "id-1"}, nil
}

type denyGateway struct{}

func (denyGateway) Login(context.Context, string) (admin.Token, error) {
	return admin.Token{}, admin.ErrInvalidPassword
}

func (denyGateway) Verify(context.Context, string) (admin.Session, error) {
	return admin.Session{}, admin.ErrUnauthorized
}

func (denyGateway) Logout(context.Context, string) error { return nil }

type emptyReader struct{}

func (emptyReader) ListSubmissions(context.Context, int) ([]db.Submission, error) { return nil, nil }

func (emptyReader) GetSubmission(context.Context, string) (*db.Submission, error) {
	return nil, db.ErrNotFound
}

func (emptyReader) SubmissionStats(context.Context, time.Time) (db.Stats, error) {
	return db.Stats{}, nil
}

func TestHandlerRoutes(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := newHandler(app{
		submitter:   noopSubmitter{},
		gateway:     denyGateway{},
		submissions: emptyReader{},
		metrics:     handlers.NewMetrics(reg),
		gatherer:    reg,
		calendarURL: "#",
		log:         logger.Discard(),
	})

	tests := []struct {
		method string
		path   string
		body   string
		status int
	}{
		{"GET", "/healthz", "", fasthttp.StatusOK},
		{"GET", "/", "", fasthttp.StatusOK},
		{"GET", "/admin", "", fasthttp.StatusOK},
		{"GET", "/api/diagnostic", "", fasthttp.StatusOK},
		{"POST", "/api/diagnostic", `{}`, fasthttp.StatusOK},
		{"POST", "/api/admin/login", `{"password":"x"}`, fasthttp.StatusUnauthorized},
		{"POST", "/api/admin/verify", `{"token":"x"}`, fasthttp.StatusUnauthorized},
		{"GET", "/api/admin/submissions", "", fasthttp.StatusUnauthorized},
		{"GET", "/api/admin/submissions/abc", "", fasthttp.StatusUnauthorized},
		{"GET", "/api/admin/stats", "", fasthttp.StatusUnauthorized},
		{"POST", "/api/admin/logout", "", fasthttp.StatusUnauthorized},
		{"GET", "/metrics", "", fasthttp.StatusUnauthorized},
		{"GET", "/nope", "", fasthttp.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			ctx := &fasthttp.RequestCtx{}
			ctx.Request.Header.SetMethod(tt.method)
			ctx.Request.SetRequestURI(tt.path)
			ctx.Request.SetBodyString(tt.body)
			h(ctx)
			assert.Equal(t, tt.status, ctx.Response.StatusCode())
		})
	}

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, mf := range families {
		names = append(names, mf.GetName())
	}
	assert.Contains(t, names, "leakdiag_http_requests_total")
}
