package diagnostic

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

//go:embed templates/report.html templates/report.txt
var reportFS embed.FS

// Recipient identifies who a full report is prepared for. Both fields are
// optional; empty values are left out of the header.
type Recipient struct {
	FirstName string
	StoreURL  string
}

// NoLeaksMessage is shown in place of the findings list when nothing triggered.
const NoLeaksMessage = "Great news! No major leaks detected."

var reportFuncs = map[string]any{
	"int":    FormatInt,
	"money":  FormatMoney,
	"fixed2": FormatFixed2,
	"rate":   FormatRate,
	"add1":   func(i int) int { return i + 1 },
	"rule":   func(n int) string { return strings.Repeat("=", n) },
}

var (
	htmlReport = htmltemplate.Must(htmltemplate.New("report.html").Funcs(reportFuncs).ParseFS(reportFS, "templates/report.html"))
	textReport = texttemplate.Must(texttemplate.New("report.txt").Funcs(reportFuncs).ParseFS(reportFS, "templates/report.txt"))
)

type reportView struct {
	Result
	FirstName   string
	StoreHost   string
	ScoreColor  htmltemplate.CSS
	CalendarURL string
	NoLeaks     string
}

func newReportView(r Result, to Recipient, calendarURL string) reportView {
	return reportView{
		Result:      r,
		FirstName:   to.FirstName,
		StoreHost:   StoreHost(to.StoreURL),
		ScoreColor:  htmltemplate.CSS(r.LeakBucket.Color()),
		CalendarURL: calendarURL,
		NoLeaks:     NoLeaksMessage,
	}
}

// RenderFullReport renders the complete HTML report for email and storage.
func RenderFullReport(r Result, to Recipient, calendarURL string) (string, error) {
	var buf bytes.Buffer
	if err := htmlReport.Execute(&buf, newReportView(r, to, calendarURL)); err != nil {
		return "", fmt.Errorf("render html report: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// RenderFullReportText renders the plain-text equivalent of RenderFullReport.
// It carries the same figures and checklists, without styling.
func RenderFullReportText(r Result, to Recipient, calendarURL string) (string, error) {
	var buf bytes.Buffer
	if err := textReport.Execute(&buf, newReportView(r, to, calendarURL)); err != nil {
		return "", fmt.Errorf("render text report: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}
