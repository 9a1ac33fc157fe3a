package handlers

import (
	"bytes"

	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"

	"leakdiag/internal/validation"
	ui "leakdiag/web"
)

type indexView struct {
	RevenueRanges []string
	CalendarURL   string
}

// IndexPage renders the public intake form.
func IndexPage(calendarURL string, log logrus.FieldLogger) fasthttp.RequestHandler {
	view := indexView{RevenueRanges: validation.RevenueRanges}
	if calendarURL != "#" {
		view.CalendarURL = calendarURL
	}
	return func(ctx *fasthttp.RequestCtx) {
		renderPage(ctx, "index.html", view, log)
	}
}

// AdminPage renders the admin dashboard shell. Data is fetched by the page
// through the bearer-gated admin API.
func AdminPage(log logrus.FieldLogger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		renderPage(ctx, "admin.html", nil, log)
	}
}

func renderPage(ctx *fasthttp.RequestCtx, name string, data any, log logrus.FieldLogger) {
	t := ui.Templates().Lookup(name)
	if t == nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		ctx.SetBodyString(name + " template not found")
		return
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		log.WithError(err).WithField("template", name).Error("render page failed")
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		ctx.SetBodyString("render error")
		return
	}
	ctx.SetContentType("text/html; charset=utf-8")
	ctx.SetBody(buf.Bytes())
}
