package diagnostic

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// TeaserLeakCount is how many findings the on-screen teaser carries.
const TeaserLeakCount = 2

// ComputeBaseline derives estimated monthly revenue and revenue per session,
// both rounded to cents.
func ComputeBaseline(m StoreMetrics) Baseline {
	revenue := roundCents(revenueFor(m.Sessions30d, m.ConversionRate, m.AOV))
	perSession := 0.0
	if m.Sessions30d > 0 {
		perSession = revenue / float64(m.Sessions30d)
	}
	return Baseline{
		RevenueEst:        revenue,
		RevenuePerSession: roundCents(perSession),
	}
}

// ComputeLeakScore starts at 100 and subtracts the penalty of the triggered
// tier in each metric family. The result is clamped to [0, 100].
func ComputeLeakScore(m StoreMetrics) int {
	score := 100
	for _, f := range rules {
		if t, ok := f.match(m); ok {
			score -= t.penalty
		}
	}
	return clamp(score, 0, 100)
}

// ClassifyBucket maps a leak score to its bucket and display label.
func ClassifyBucket(score int) (Bucket, string) {
	switch {
	case score < 40:
		return BucketMajor, "Major Leakage Detected"
	case score < 70:
		return BucketMeaningful, "Meaningful Leakage Detected"
	default:
		return BucketSolid, "Solid Fundamentals"
	}
}

// IdentifyLeaks returns at most one finding per metric family, ordered by
// impact score descending. Equal scores keep family order
// (conversion, cart, AOV).
func IdentifyLeaks(m StoreMetrics) []Finding {
	leaks := make([]Finding, 0, len(rules))
	for _, f := range rules {
		t, ok := f.match(m)
		if !ok || t.leak == nil {
			continue
		}
		leaks = append(leaks, t.leak.finding(t.penalty))
	}
	sort.SliceStable(leaks, func(i, j int) bool {
		return leaks[i].ImpactScore > leaks[j].ImpactScore
	})
	return leaks
}

// simulation is one fixed what-if: a single delta on either CR or AOV.
type simulation struct {
	label     string
	crChange  float64
	aovChange float64
}

var simulations = []simulation{
	{label: "Conversion Rate +0.3%", crChange: 0.3},
	{label: "Conversion Rate +0.5%", crChange: 0.5},
	{label: "AOV +$15", aovChange: 15},
	{label: "AOV +$25", aovChange: 25},
}

// RunSimulations projects revenue for the four fixed scenarios against the
// baseline. All four are always returned.
func RunSimulations(m StoreMetrics, b Baseline) []Scenario {
	out := make([]Scenario, 0, len(simulations))
	for _, s := range simulations {
		projected := revenueFor(m.Sessions30d, m.ConversionRate+s.crChange, m.AOV+s.aovChange)
		uplift := projected - b.RevenueEst
		var pct int64
		if b.RevenueEst > 0 {
			pct = roundWhole(uplift / b.RevenueEst * 100)
		}
		out = append(out, Scenario{
			Label:         s.label,
			CRChange:      s.crChange,
			AOVChange:     s.aovChange,
			NewRevenue:    roundWhole(projected),
			Uplift:        roundWhole(uplift),
			UpliftPercent: pct,
		})
	}
	return out
}

// Analyze runs the full diagnosis. The caller supplies the timestamp so the
// engine stays free of clocks.
func Analyze(m StoreMetrics, analyzedAt time.Time) Result {
	b := ComputeBaseline(m)
	score := ComputeLeakScore(m)
	bucket, label := ClassifyBucket(score)
	return Result{
		Inputs:            m,
		RevenueEst:        b.RevenueEst,
		RevenuePerSession: b.RevenuePerSession,
		LeakScore:         score,
		LeakBucket:        bucket,
		LeakBucketLabel:   label,
		Leaks:             IdentifyLeaks(m),
		Simulations:       RunSimulations(m, b),
		AnalyzedAt:        analyzedAt.UTC(),
	}
}

// GenerateTeaser projects a result onto the short on-screen view.
func GenerateTeaser(r Result) Teaser {
	top := r.TopLeaks(TeaserLeakCount)
	leaks := make([]TeaserLeak, 0, len(top))
	for _, l := range top {
		leaks = append(leaks, TeaserLeak{Title: l.Title, Description: l.Description, Impact: l.Impact})
	}

	var best TeaserSimulation
	for i, s := range r.Simulations {
		if i == 0 || s.Uplift > best.Uplift {
			best = TeaserSimulation{Label: s.Label, Uplift: s.Uplift, UpliftPercent: s.UpliftPercent}
		}
	}

	return Teaser{
		LeakScore:       r.LeakScore,
		LeakBucket:      r.LeakBucket,
		LeakBucketLabel: r.LeakBucketLabel,
		TopLeaks:        leaks,
		BestSimulation:  best,
		RevenueEst:      r.RevenueEst,
	}
}

func revenueFor(sessions int64, conversionRate, aov float64) float64 {
	return float64(sessions) * (conversionRate / 100) * aov
}

func roundCents(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func roundWhole(v float64) int64 {
	return decimal.NewFromFloat(v).Round(0).IntPart()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
