package crm

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"leakdiag/internal/diagnostic"
	"leakdiag/internal/validation"
)

// Source is the lead source recorded on contacts and opportunities.
const Source = "Diagnostic Tool"

// Tags applied to every synced contact.
const (
	TagLead  = "diagnostic-lead"
	TagBrand = "tactical-growth-labs"
)

// BucketTag maps a leak bucket to its CRM tag.
func BucketTag(b diagnostic.Bucket) string {
	switch b {
	case diagnostic.BucketMajor:
		return "diagnostic-major-leakage"
	case diagnostic.BucketMeaningful:
		return "diagnostic-meaningful-leakage"
	case diagnostic.BucketSolid:
		return "diagnostic-solid-fundamentals"
	default:
		return "diagnostic-submitted"
	}
}

// Tags lists the contact tags for a lead.
func Tags(contact validation.Contact, b diagnostic.Bucket) []string {
	tags := []string{TagLead, TagBrand, BucketTag(b)}
	if contact.MonthlyRevenueRange != "" {
		tags = append(tags, "revenue-"+contact.MonthlyRevenueRange)
	}
	return tags
}

// upliftShare is the fraction of estimated revenue booked as opportunity
// value for each bucket.
var upliftShare = map[diagnostic.Bucket]decimal.Decimal{
	diagnostic.BucketMajor:      decimal.RequireFromString("0.30"),
	diagnostic.BucketMeaningful: decimal.RequireFromString("0.15"),
	diagnostic.BucketSolid:      decimal.RequireFromString("0.05"),
}

// MonetaryValue is the opportunity value for a result, in whole currency units.
func MonetaryValue(r diagnostic.Result) int64 {
	share, ok := upliftShare[r.LeakBucket]
	if !ok {
		return 0
	}
	return decimal.NewFromFloat(r.RevenueEst).Mul(share).Round(0).IntPart()
}

type customField struct {
	Key        string `json:"key"`
	FieldValue string `json:"field_value"`
}

type contactPayload struct {
	LocationID   string        `json:"locationId"`
	FirstName    string        `json:"firstName"`
	Email        string        `json:"email"`
	Website      string        `json:"website"`
	Tags         []string      `json:"tags"`
	Source       string        `json:"source"`
	CustomFields []customField `json:"customFields"`
}

func newContactPayload(locationID string, contact validation.Contact, r diagnostic.Result) contactPayload {
	num := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	in := r.Inputs
	return contactPayload{
		LocationID: locationID,
		FirstName:  contact.FirstName,
		Email:      contact.Email,
		Website:    contact.StoreURL,
		Tags:       Tags(contact, r.LeakBucket),
		Source:     Source,
		CustomFields: []customField{
			{"leak_score", strconv.Itoa(r.LeakScore)},
			{"leak_bucket", string(r.LeakBucket)},
			{"estimated_revenue", num(r.RevenueEst)},
			{"top_leak_1", r.LeakTitle(0)},
			{"top_leak_2", r.LeakTitle(1)},
			{"conversion_rate", num(in.ConversionRate)},
			{"aov", num(in.AOV)},
			{"abandoned_carts_30d", strconv.FormatInt(in.AbandonedCarts30d, 10)},
			{"sessions_30d", strconv.FormatInt(in.Sessions30d, 10)},
			{"orders_30d", strconv.FormatInt(in.Orders30d, 10)},
		},
	}
}

type opportunityPayload struct {
	LocationID      string `json:"locationId"`
	Name            string `json:"name"`
	PipelineID      string `json:"pipelineId"`
	PipelineStageID string `json:"pipelineStageId"`
	Status          string `json:"status"`
	ContactID       string `json:"contactId"`
	MonetaryValue   int64  `json:"monetaryValue"`
	Source          string `json:"source"`
}

func newOpportunityPayload(opts Options, contactID string, contact validation.Contact, r diagnostic.Result) opportunityPayload {
	return opportunityPayload{
		LocationID:      opts.LocationID,
		Name:            contact.FirstName + " - Diagnostic Lead (" + diagnostic.StoreHost(contact.StoreURL) + ")",
		PipelineID:      opts.PipelineID,
		PipelineStageID: opts.PipelineStageID,
		Status:          "open",
		ContactID:       contactID,
		MonetaryValue:   MonetaryValue(r),
		Source:          Source,
	}
}

type webhookPayload struct {
	FirstName           string  `json:"firstName"`
	Email               string  `json:"email"`
	StoreURL            string  `json:"storeUrl"`
	MonthlyRevenueRange string  `json:"monthlyRevenueRange,omitempty"`
	Sessions30d         int64   `json:"sessions30d"`
	Orders30d           int64   `json:"orders30d"`
	ConversionRate      float64 `json:"conversionRate"`
	AOV                 float64 `json:"aov"`
	AbandonedCarts30d   int64   `json:"abandonedCarts30d"`
	LeakScore           int     `json:"leakScore"`
	LeakBucket          string  `json:"leakBucket"`
	RevenueEst          float64 `json:"revenueEst"`
	TopLeak1            string  `json:"topLeak1"`
	TopLeak2            string  `json:"topLeak2"`
	Source              string  `json:"source"`
	SubmittedAt         string  `json:"submittedAt"`
}

func newWebhookPayload(contact validation.Contact, r diagnostic.Result, now time.Time) webhookPayload {
	in := r.Inputs
	return webhookPayload{
		FirstName:           contact.FirstName,
		Email:               contact.Email,
		StoreURL:            contact.StoreURL,
		MonthlyRevenueRange: contact.MonthlyRevenueRange,
		Sessions30d:         in.Sessions30d,
		Orders30d:           in.Orders30d,
		ConversionRate:      in.ConversionRate,
		AOV:                 in.AOV,
		AbandonedCarts30d:   in.AbandonedCarts30d,
		LeakScore:           r.LeakScore,
		LeakBucket:          string(r.LeakBucket),
		RevenueEst:          r.RevenueEst,
		TopLeak1:            r.LeakTitle(0),
		TopLeak2:            r.LeakTitle(1),
		Source:              "diagnostic_tool",
		SubmittedAt:         now.UTC().Format(time.RFC3339Nano),
	}
}
