// Package crm pushes each scored lead into the LeadConnector (GoHighLevel)
// CRM as a tagged contact plus a pipeline opportunity, and optionally posts a
// flat payload to a legacy webhook.
package crm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"

	"leakdiag/internal/config"
	"leakdiag/internal/diagnostic"
	"leakdiag/internal/integration"
	"leakdiag/internal/validation"
)

const (
	apiVersion     = "2021-07-28"
	defaultTimeout = 10 * time.Second
)

// Options configures the CRM client.
type Options struct {
	BaseURL         string
	APIKey          string
	LocationID      string
	PipelineID      string
	PipelineStageID string
	WebhookURL      string
	Timeout         time.Duration
}

// OptionsFromConfig maps application config onto client options.
func OptionsFromConfig(cfg config.CRMConfig) Options {
	return Options{
		BaseURL:         cfg.BaseURL,
		APIKey:          cfg.APIKey,
		LocationID:      cfg.LocationID,
		PipelineID:      cfg.PipelineID,
		PipelineStageID: cfg.PipelineStageID,
		WebhookURL:      cfg.WebhookURL,
		Timeout:         cfg.Timeout,
	}
}

// Client talks to the CRM REST API over fasthttp.
type Client struct {
	opts Options
	http *fasthttp.Client
	log  logrus.FieldLogger
	now  func() time.Time
}

// New returns a Client. It is usable even when unconfigured; calls then
// return a failed outcome without touching the network.
func New(opts Options, log logrus.FieldLogger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Client{
		opts: opts,
		http: &fasthttp.Client{
			Name:                "leakdiag",
			ReadTimeout:         opts.Timeout,
			WriteTimeout:        opts.Timeout,
			MaxIdleConnDuration: time.Minute,
		},
		log: log,
		now: time.Now,
	}
}

// Configured reports whether API credentials are present.
func (c *Client) Configured() bool {
	return c.opts.APIKey != "" && c.opts.LocationID != ""
}

// WebhookConfigured reports whether a legacy webhook URL is set.
func (c *Client) WebhookConfigured() bool {
	return c.opts.WebhookURL != ""
}

// APIError is a non-2xx response from the CRM.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("HTTP %d", e.Status)
}

// Sync upserts the lead as a contact and opens an opportunity for it. A
// contact that was saved while the opportunity failed still counts as a
// success, with the failure noted in the outcome.
func (c *Client) Sync(ctx context.Context, contact validation.Contact, r diagnostic.Result) integration.Outcome {
	log := c.log.WithField("email", contact.Email)
	if !c.Configured() {
		log.Info("crm credentials not configured, skipping")
		return integration.Failure(fmt.Errorf("crm %w", integration.ErrNotConfigured))
	}

	contactID, err := c.upsertContact(ctx, contact, r)
	if err != nil {
		log.WithError(err).Error("crm contact upsert failed")
		return integration.Failure(err)
	}
	log = log.WithField("contact_id", contactID)
	log.Info("crm contact upserted")

	oppID, err := c.createOpportunity(ctx, contactID, contact, r)
	if err != nil {
		log.WithError(err).Warn("crm opportunity failed")
		return integration.Success("Contact created but opportunity failed: " + err.Error())
	}
	log.WithField("opportunity_id", oppID).Info("crm opportunity created")
	return integration.Success("")
}

func (c *Client) upsertContact(ctx context.Context, contact validation.Contact, r diagnostic.Result) (string, error) {
	var resp struct {
		Contact struct {
			ID string `json:"id"`
		} `json:"contact"`
	}
	if err := c.post(ctx, c.opts.BaseURL+"/contacts/upsert", true, newContactPayload(c.opts.LocationID, contact, r), &resp); err != nil {
		return "", fmt.Errorf("upsert contact: %w", err)
	}
	if resp.Contact.ID == "" {
		return "", errors.New("upsert contact: response carried no contact id")
	}
	return resp.Contact.ID, nil
}

func (c *Client) createOpportunity(ctx context.Context, contactID string, contact validation.Contact, r diagnostic.Result) (string, error) {
	var resp struct {
		Opportunity struct {
			ID string `json:"id"`
		} `json:"opportunity"`
	}
	payload := newOpportunityPayload(c.opts, contactID, contact, r)
	if err := c.post(ctx, c.opts.BaseURL+"/opportunities/", true, payload, &resp); err != nil {
		return "", fmt.Errorf("create opportunity: %w", err)
	}
	return resp.Opportunity.ID, nil
}

// PostWebhook sends the flat legacy payload to the configured webhook.
func (c *Client) PostWebhook(ctx context.Context, contact validation.Contact, r diagnostic.Result) integration.Outcome {
	if !c.WebhookConfigured() {
		return integration.Failure(fmt.Errorf("webhook %w", integration.ErrNotConfigured))
	}
	payload := newWebhookPayload(contact, r, c.now())
	if err := c.post(ctx, c.opts.WebhookURL, false, payload, nil); err != nil {
		c.log.WithError(err).Error("crm webhook failed")
		return integration.Failure(err)
	}
	return integration.Success("")
}

// post sends body as JSON and decodes a 2xx response into out when non-nil.
// The request deadline is the earlier of ctx's deadline and the client timeout.
func (c *Client) post(ctx context.Context, url string, authed bool, body, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
		req.Header.Set("Version", apiVersion)
	}
	req.SetBody(payload)

	deadline := time.Now().Add(c.opts.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return err
	}

	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		apiErr := &APIError{Status: status}
		var msg struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(resp.Body(), &msg) == nil {
			apiErr.Message = msg.Message
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
