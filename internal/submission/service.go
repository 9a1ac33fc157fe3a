// Package submission runs one intake form through validation, scoring,
// persistence and the best-effort follow-up integrations.
package submission

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"leakdiag/internal/archive"
	"leakdiag/internal/db"
	"leakdiag/internal/diagnostic"
	"leakdiag/internal/integration"
	"leakdiag/internal/validation"
)

const (
	defaultTimeout = 15 * time.Second
	markTimeout    = 5 * time.Second
)

// Integration names used in logs and metrics.
const (
	IntegrationLeadEmail  = "lead_email"
	IntegrationOwnerEmail = "owner_email"
	IntegrationCRM        = "crm"
	IntegrationWebhook    = "webhook"
	IntegrationArchive    = "archive"
)

// Store persists submissions.
type Store interface {
	CreateSubmission(ctx context.Context, sub *db.Submission) error
	MarkIntegrations(ctx context.Context, id string, m db.IntegrationMarks, reportKey string) error
}

// Notifier sends the lead report and the owner summary.
type Notifier interface {
	SendReport(ctx context.Context, c validation.Contact, r diagnostic.Result) integration.Outcome
	SendOwnerNotification(ctx context.Context, id string, c validation.Contact, r diagnostic.Result) integration.Outcome
}

// CRM syncs the lead into the CRM and the optional legacy webhook.
type CRM interface {
	Sync(ctx context.Context, c validation.Contact, r diagnostic.Result) integration.Outcome
	PostWebhook(ctx context.Context, c validation.Contact, r diagnostic.Result) integration.Outcome
	WebhookConfigured() bool
}

// Observer receives counts for metrics.
type Observer interface {
	ObserveSubmission(bucket diagnostic.Bucket)
	ObserveIntegration(name string, ok bool)
}

type noopObserver struct{}

func (noopObserver) ObserveSubmission(diagnostic.Bucket) {}
func (noopObserver) ObserveIntegration(string, bool) {}

// Tracking is request metadata stored alongside a submission.
type Tracking struct {
	IPAddress   string
	UserAgent   string
	UTMSource   string
	UTMMedium   string
	UTMCampaign string
}

// Integrations records how each follow-up call went. Webhook and Archive are
// nil when not configured.
type Integrations struct {
	LeadEmail  integration.Outcome  `json:"leadEmail"`
	OwnerEmail integration.Outcome  `json:"ownerEmail"`
	CRM        integration.Outcome  `json:"crm"`
	Webhook    *integration.Outcome `json:"webhook,omitempty"`
	Archive    *integration.Outcome `json:"archive,omitempty"`
}

// Outcome is what a successful Submit returns to the caller.
type Outcome struct {
	SubmissionID string
	Teaser       diagnostic.Teaser
	Integrations Integrations
}

// Options tunes the service.
type Options struct {
	CalendarURL string
	// Timeout bounds the whole follow-up fan-out.
	Timeout time.Duration
}

// Service wires the pieces of a submission together.
type Service struct {
	store    Store
	notifier Notifier
	crm      CRM
	archive  archive.Storage
	observer Observer
	opts     Options
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewService returns a Service. archive and observer may be nil.
func NewService(store Store, notifier Notifier, crm CRM, storage archive.Storage, observer Observer, opts Options, log logrus.FieldLogger) *Service {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if observer == nil {
		observer = noopObserver{}
	}
	return &Service{
		store:    store,
		notifier: notifier,
		crm:      crm,
		archive:  storage,
		observer: observer,
		opts:     opts,
		log:      log,
		now:      time.Now,
	}
}

// Submit validates raw, scores it, stores the row, runs every follow-up
// integration to completion and records which of them succeeded. Validation
// failures come back as *validation.Error; a storage failure is returned as
// is. Integration failures never fail the submission.
func (s *Service) Submit(ctx context.Context, raw []byte, tr Tracking) (*Outcome, error) {
	form, err := validation.Parse(raw)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	result := diagnostic.Analyze(form.Metrics, now)
	teaser := diagnostic.GenerateTeaser(result)

	to := diagnostic.Recipient{FirstName: form.Contact.FirstName, StoreURL: form.Contact.StoreURL}
	reportHTML, err := diagnostic.RenderFullReport(result, to, s.opts.CalendarURL)
	if err != nil {
		return nil, err
	}
	teaserJSON, err := json.Marshal(teaser)
	if err != nil {
		return nil, fmt.Errorf("encode teaser: %w", err)
	}

	row := newRow(form, result, tr, teaserJSON, reportHTML)
	row.ID = uuid.NewString()
	row.CreatedAt = now
	if err := s.store.CreateSubmission(ctx, row); err != nil {
		return nil, err
	}
	s.observer.ObserveSubmission(result.LeakBucket)

	log := s.log.WithFields(logrus.Fields{
		"submission_id": row.ID,
		"leak_score":    result.LeakScore,
		"leak_bucket":   result.LeakBucket,
	})
	log.Info("submission stored")

	// The fan-out must outlive a client disconnect, so it runs on a
	// detached context bounded only by the service timeout.
	fanCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.Timeout)
	defer cancel()

	integrations, reportKey := s.fanOut(fanCtx, row, form.Contact, result, []byte(reportHTML))

	marks := db.IntegrationMarks{
		EmailSent:     integrations.LeadEmail.OK,
		OwnerNotified: integrations.OwnerEmail.OK,
		CRMSynced:     integrations.CRM.OK,
		At:            s.now().UTC(),
	}
	markCtx, cancelMark := context.WithTimeout(context.WithoutCancel(ctx), markTimeout)
	defer cancelMark()
	if err := s.store.MarkIntegrations(markCtx, row.ID, marks, reportKey); err != nil {
		log.WithError(err).Warn("failed to record integration timestamps")
	}

	log.WithFields(logrus.Fields{
		"lead_email":  integrations.LeadEmail.OK,
		"owner_email": integrations.OwnerEmail.OK,
		"crm":         integrations.CRM.OK,
	}).Info("integrations finished")

	return &Outcome{SubmissionID: row.ID, Teaser: teaser, Integrations: integrations}, nil
}

// fanOut runs every integration concurrently and waits for all of them. Each
// task writes only its own slot, and none returns an error, so one failure
// cannot cancel the others.
func (s *Service) fanOut(ctx context.Context, row *db.Submission, c validation.Contact, r diagnostic.Result, report []byte) (Integrations, string) {
	var (
		out       Integrations
		reportKey string
		g         errgroup.Group
	)

	g.Go(func() error {
		out.LeadEmail = s.notifier.SendReport(ctx, c, r)
		return nil
	})
	g.Go(func() error {
		out.OwnerEmail = s.notifier.SendOwnerNotification(ctx, row.ID, c, r)
		return nil
	})
	g.Go(func() error {
		out.CRM = s.crm.Sync(ctx, c, r)
		return nil
	})
	if s.crm.WebhookConfigured() {
		g.Go(func() error {
			res := s.crm.PostWebhook(ctx, c, r)
			out.Webhook = &res
			return nil
		})
	}
	if s.archive != nil {
		g.Go(func() error {
			key := archive.ReportKey(row.ID, row.CreatedAt)
			res := integration.Success("")
			if err := s.archive.Put(ctx, key, report); err != nil {
				s.log.WithError(err).WithField("key", key).Error("report archive failed")
				res = integration.Failure(err)
			} else {
				reportKey = key
			}
			out.Archive = &res
			return nil
		})
	}
	_ = g.Wait()

	s.observer.ObserveIntegration(IntegrationLeadEmail, out.LeadEmail.OK)
	s.observer.ObserveIntegration(IntegrationOwnerEmail, out.OwnerEmail.OK)
	s.observer.ObserveIntegration(IntegrationCRM, out.CRM.OK)
	if out.Webhook != nil {
		s.observer.ObserveIntegration(IntegrationWebhook, out.Webhook.OK)
	}
	if out.Archive != nil {
		s.observer.ObserveIntegration(IntegrationArchive, out.Archive.OK)
	}
	return out, reportKey
}

func newRow(form validation.Submission, r diagnostic.Result, tr Tracking, teaser []byte, reportHTML string) *db.Submission {
	m := form.Metrics
	return &db.Submission{
		FirstName:           form.Contact.FirstName,
		Email:               form.Contact.Email,
		StoreURL:            form.Contact.StoreURL,
		MonthlyRevenueRange: form.Contact.MonthlyRevenueRange,
		Sessions30d:         m.Sessions30d,
		Orders30d:           m.Orders30d,
		ConversionRate:      m.ConversionRate,
		AOV:                 m.AOV,
		AbandonedCarts30d:   m.AbandonedCarts30d,
		RevenueEst:          r.RevenueEst,
		RevenuePerSession:   r.RevenuePerSession,
		LeakScore:           r.LeakScore,
		LeakBucket:          string(r.LeakBucket),
		TopLeak1:            r.LeakTitle(0),
		TopLeak2:            r.LeakTitle(1),
		Teaser:              datatypes.JSON(teaser),
		FullReportHTML:      reportHTML,
		IPAddress:           tr.IPAddress,
		UserAgent:           tr.UserAgent,
		UTMSource:           tr.UTMSource,
		UTMMedium:           tr.UTMMedium,
		UTMCampaign:         tr.UTMCampaign,
	}
}
