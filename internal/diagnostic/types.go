// Package diagnostic implements the revenue leak scoring engine.
// Every function here is pure: no I/O, no clocks, no shared state, so it is
// safe to call concurrently for independent submissions.
package diagnostic

import "time"

// StoreMetrics are the validated 30-day store figures the engine consumes.
// Cart abandonment is an absolute count compared against Orders30d.
type StoreMetrics struct {
	Sessions30d       int64   `json:"sessions30d"`
	Orders30d         int64   `json:"orders30d"`
	ConversionRate    float64 `json:"conversionRate"` // percent, 0-20
	AOV               float64 `json:"aov"`            // currency units, 0-5000
	AbandonedCarts30d int64   `json:"abandonedCarts30d"`
}

// Baseline is the revenue estimate derived from traffic, conversion and AOV.
type Baseline struct {
	RevenueEst        float64 `json:"revenueEst"`
	RevenuePerSession float64 `json:"revenuePerSession"`
}

// Bucket is the coarse classification of a leak score.
type Bucket string

const (
	BucketMajor      Bucket = "major"
	BucketMeaningful Bucket = "meaningful"
	BucketSolid      Bucket = "solid"
)

// Impact is the severity attached to a finding.
type Impact string

const (
	ImpactHigh   Impact = "high"
	ImpactMedium Impact = "medium"
	ImpactLow    Impact = "low"
)

// Category ties a finding to the metric family that produced it.
type Category string

const (
	CategoryConversion Category = "conversion"
	CategoryCart       Category = "cart"
	CategoryAOV        Category = "aov"
	CategoryTraffic    Category = "traffic"
)

// Finding is one named diagnosis produced by a triggered rule.
type Finding struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Impact      Impact   `json:"impact"`
	ImpactScore int      `json:"impactScore"`
	Category    Category `json:"category"`
	CheckFirst  []string `json:"checkFirst"`
}

// Scenario is a what-if projection with exactly one metric improved.
// Money and percentages are rounded to whole numbers.
type Scenario struct {
	Label         string  `json:"scenario"`
	CRChange      float64 `json:"crChange"`
	AOVChange     float64 `json:"aovChange"`
	NewRevenue    int64   `json:"newRevenue"`
	Uplift        int64   `json:"uplift"`
	UpliftPercent int64   `json:"upliftPercent"`
}

// Result is the complete diagnosis of one submission. Immutable once computed.
type Result struct {
	Inputs            StoreMetrics `json:"inputs"`
	RevenueEst        float64      `json:"revenueEst"`
	RevenuePerSession float64      `json:"revenuePerSession"`
	LeakScore         int          `json:"leakScore"`
	LeakBucket        Bucket       `json:"leakBucket"`
	LeakBucketLabel   string       `json:"leakBucketLabel"`
	Leaks             []Finding    `json:"leaks"`
	Simulations       []Scenario   `json:"simulations"`
	AnalyzedAt        time.Time    `json:"analyzedAt"`
}

// TopLeaks returns at most n findings, highest impact first.
func (r Result) TopLeaks(n int) []Finding {
	if n < 0 {
		n = 0
	}
	if len(r.Leaks) < n {
		n = len(r.Leaks)
	}
	return r.Leaks[:n]
}

// LeakTitle returns the title of the i-th finding, or "None".
func (r Result) LeakTitle(i int) string {
	if i < 0 || i >= len(r.Leaks) {
		return "None"
	}
	return r.Leaks[i].Title
}

// TeaserLeak is the reduced finding shown on screen.
type TeaserLeak struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Impact      Impact `json:"impact"`
}

// TeaserSimulation is the single best what-if shown on screen.
type TeaserSimulation struct {
	Label         string `json:"scenario"`
	Uplift        int64  `json:"uplift"`
	UpliftPercent int64  `json:"upliftPercent"`
}

// Teaser is the abbreviated result returned to the submitter immediately.
type Teaser struct {
	LeakScore       int              `json:"leakScore"`
	LeakBucket      Bucket           `json:"leakBucket"`
	LeakBucketLabel string           `json:"leakBucketLabel"`
	TopLeaks        []TeaserLeak     `json:"topLeaks"`
	BestSimulation  TeaserSimulation `json:"bestSimulation"`
	RevenueEst      float64          `json:"revenueEst"`
}
