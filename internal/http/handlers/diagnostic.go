package handlers

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"

	"leakdiag/internal/submission"
	"leakdiag/internal/validation"
)

const (
	submitSuccessMessage = "Your full report has been emailed to you."
	submitFailureMessage = "An error occurred processing your request. Please try again."
)

// Submitter runs one intake submission.
type Submitter interface {
	Submit(ctx context.Context, raw []byte, tr submission.Tracking) (*submission.Outcome, error)
}

// DiagnosticSubmit handles POST /api/diagnostic. Validation problems are a
// 400 with per-field details; anything else that stops the submission is a
// generic 500.
func DiagnosticSubmit(svc Submitter, log logrus.FieldLogger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		out, err := svc.Submit(ctx, ctx.PostBody(), trackingFrom(ctx))
		if err != nil {
			var verr *validation.Error
			if errors.As(err, &verr) {
				jsonResponse(ctx, fasthttp.StatusBadRequest, map[string]any{
					"success": false,
					"error":   "Validation failed",
					"details": verr.FieldErrors,
				})
				return
			}
			log.WithError(err).Error("diagnostic submission failed")
			jsonResponse(ctx, fasthttp.StatusInternalServerError, map[string]any{
				"success": false,
				"error":   submitFailureMessage,
			})
			return
		}

		jsonResponse(ctx, fasthttp.StatusOK, map[string]any{
			"success":      true,
			"submissionId": out.SubmissionID,
			"teaser":       out.Teaser,
			"message":      submitSuccessMessage,
		})
	}
}

// DiagnosticInfo handles GET /api/diagnostic with a description of the
// submission endpoint.
func DiagnosticInfo() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		jsonResponse(ctx, fasthttp.StatusOK, map[string]any{
			"endpoint":    "/api/diagnostic",
			"method":      "POST",
			"description": "Submit diagnostic form data for analysis",
			"requiredFields": []string{
				"firstName", "email", "storeUrl",
				"sessions30d", "orders30d", "conversionRate", "aov", "abandonedCarts30d",
			},
			"optionalFields": []string{"monthlyRevenueRange"},
			"revenueRanges":  validation.RevenueRanges,
		})
	}
}

func trackingFrom(ctx *fasthttp.RequestCtx) submission.Tracking {
	q := ctx.QueryArgs()
	return submission.Tracking{
		IPAddress:   ClientIP(ctx),
		UserAgent:   string(ctx.UserAgent()),
		UTMSource:   string(q.Peek("utm_source")),
		UTMMedium:   string(q.Peek("utm_medium")),
		UTMCampaign: string(q.Peek("utm_campaign")),
	}
}
