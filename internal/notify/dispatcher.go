// Package notify delivers the full report to the lead and a summary of each
// new submission to the site owner over SMTP.
package notify

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"net/url"
	"strings"
	texttemplate "text/template"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"leakdiag/internal/config"
	"leakdiag/internal/diagnostic"
	"leakdiag/internal/integration"
	"leakdiag/internal/validation"
)

// OwnerFromName is the sender name on owner notifications.
const OwnerFromName = "TGL Diagnostic Tool"

// Mailer sends a composed message.
type Mailer interface {
	Send(msg *gomail.Message) error
}

// SMTPMailer delivers through a gomail dialer, one connection per message.
type SMTPMailer struct {
	dialer *gomail.Dialer
}

// NewSMTPMailer returns a mailer for the configured SMTP relay.
func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	return &SMTPMailer{dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)}
}

func (m *SMTPMailer) Send(msg *gomail.Message) error {
	return m.dialer.DialAndSend(msg)
}

// Options carries the addresses and links the messages need.
type Options struct {
	FromEmail   string
	FromName    string
	OwnerEmail  string
	AppURL      string
	CalendarURL string
}

// OptionsFromConfig maps application config onto dispatcher options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		FromEmail:   cfg.Mail.FromEmail,
		FromName:    cfg.Mail.FromName,
		OwnerEmail:  cfg.Mail.OwnerEmail,
		AppURL:      cfg.AppURL,
		CalendarURL: cfg.CalendarURL,
	}
}

// Dispatcher renders and sends notification emails. A nil Mailer makes every
// send fail with a "not configured" outcome.
type Dispatcher struct {
	mailer Mailer
	opts   Options
	log    logrus.FieldLogger
}

// NewDispatcher returns a Dispatcher using mailer.
func NewDispatcher(mailer Mailer, opts Options, log logrus.FieldLogger) *Dispatcher {
	return &Dispatcher{mailer: mailer, opts: opts, log: log}
}

// SendReport emails the full report to the lead.
func (d *Dispatcher) SendReport(ctx context.Context, c validation.Contact, r diagnostic.Result) integration.Outcome {
	log := d.log.WithField("to", c.Email)
	if d.mailer == nil {
		log.Warn("smtp not configured, skipping lead email")
		return integration.Failure(fmt.Errorf("email %w", integration.ErrNotConfigured))
	}

	to := diagnostic.Recipient{FirstName: c.FirstName, StoreURL: c.StoreURL}
	html, err := diagnostic.RenderFullReport(r, to, d.opts.CalendarURL)
	if err != nil {
		return d.fail(log, "render lead report", err)
	}
	text, err := diagnostic.RenderFullReportText(r, to, d.opts.CalendarURL)
	if err != nil {
		return d.fail(log, "render lead report", err)
	}

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", d.opts.FromEmail, d.opts.FromName)
	msg.SetHeader("To", c.Email)
	msg.SetHeader("Subject", LeadSubject(c.FirstName))
	msg.SetBody("text/plain", text)
	msg.AddAlternative("text/html", html)

	if err := d.send(ctx, msg); err != nil {
		return d.fail(log, "send lead report", err)
	}
	log.Info("report sent")
	return integration.Success("")
}

// SendOwnerNotification emails the owner a summary of submission id with a
// link into the admin view.
func (d *Dispatcher) SendOwnerNotification(ctx context.Context, id string, c validation.Contact, r diagnostic.Result) integration.Outcome {
	log := d.log.WithField("submission_id", id)
	if d.mailer == nil {
		log.Warn("smtp not configured, skipping owner notification")
		return integration.Failure(fmt.Errorf("email %w", integration.ErrNotConfigured))
	}
	if d.opts.OwnerEmail == "" {
		log.Warn("owner notification email not configured")
		return integration.Outcome{Err: "Owner email not configured"}
	}

	html, text, err := renderOwner(d.ownerView(id, c, r))
	if err != nil {
		return d.fail(log, "render owner notification", err)
	}

	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", d.opts.FromEmail, OwnerFromName)
	msg.SetHeader("To", d.opts.OwnerEmail)
	msg.SetHeader("Subject", OwnerSubject(c, r.LeakScore))
	msg.SetBody("text/plain", text)
	msg.AddAlternative("text/html", html)

	if err := d.send(ctx, msg); err != nil {
		return d.fail(log, "send owner notification", err)
	}
	log.Info("owner notification sent")
	return integration.Success("")
}

// send runs the blocking SMTP exchange but returns early once ctx is done.
func (d *Dispatcher) send(ctx context.Context, msg *gomail.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- d.mailer.Send(msg) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) fail(log logrus.FieldLogger, what string, err error) integration.Outcome {
	log.WithError(err).Error(what + " failed")
	return integration.Failure(err)
}

// LeadSubject is the subject line of the lead's report email.
func LeadSubject(firstName string) string {
	return firstName + ", Your Revenue Leak Diagnostic Report"
}

// OwnerSubject is the subject line of the owner notification.
func OwnerSubject(c validation.Contact, score int) string {
	return fmt.Sprintf("New Lead: %s (%s) - Score: %d", c.FirstName, diagnostic.StoreHost(c.StoreURL), score)
}

//go:embed templates/owner.html templates/owner.txt
var templateFS embed.FS

var ownerFuncs = map[string]any{
	"int":    diagnostic.FormatInt,
	"money":  diagnostic.FormatMoney,
	"fixed2": diagnostic.FormatFixed2,
	"rate":   diagnostic.FormatRate,
}

var (
	ownerHTML = htmltemplate.Must(htmltemplate.New("owner.html").Funcs(ownerFuncs).ParseFS(templateFS, "templates/owner.html"))
	ownerText = texttemplate.Must(texttemplate.New("owner.txt").Funcs(ownerFuncs).ParseFS(templateFS, "templates/owner.txt"))
)

type ownerView struct {
	Contact     validation.Contact
	Result      diagnostic.Result
	StoreHost   string
	ScoreColor  htmltemplate.CSS
	AdminURL    string
	SubmittedAt string
}

func (d *Dispatcher) ownerView(id string, c validation.Contact, r diagnostic.Result) ownerView {
	return ownerView{
		Contact:     c,
		Result:      r,
		StoreHost:   diagnostic.StoreHost(c.StoreURL),
		ScoreColor:  htmltemplate.CSS(r.LeakBucket.AccentColor()),
		AdminURL:    AdminURL(d.opts.AppURL, id),
		SubmittedAt: r.AnalyzedAt.Format("Jan 2, 2006 3:04 PM MST"),
	}
}

// AdminURL links to a submission in the admin view.
func AdminURL(appURL, id string) string {
	return strings.TrimRight(appURL, "/") + "/admin?id=" + url.QueryEscape(id)
}

func renderOwner(v ownerView) (string, string, error) {
	var html, text bytes.Buffer
	if err := ownerHTML.Execute(&html, v); err != nil {
		return "", "", fmt.Errorf("owner html: %w", err)
	}
	if err := ownerText.Execute(&text, v); err != nil {
		return "", "", fmt.Errorf("owner text: %w", err)
	}
	return strings.TrimSpace(html.String()), strings.TrimSpace(text.String()), nil
}
