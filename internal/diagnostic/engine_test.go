package diagnostic

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func titles(leaks []Finding) []string {
	out := make([]string, 0, len(leaks))
	for _, l := range leaks {
		out = append(out, l.Title)
	}
	return out
}

func TestAnalyzeScenarios(t *testing.T) {
	tests := []struct {
		name       string
		metrics    StoreMetrics
		revenue    float64
		perSession float64
		score      int
		bucket     Bucket
		leaks      []string
		impacts    []int
	}{
		{
			name:       "moderate store",
			metrics:    StoreMetrics{Sessions30d: 15000, Orders30d: 350, ConversionRate: 2.3, AOV: 145, AbandonedCarts30d: 450},
			revenue:    50025.00,
			perSession: 3.34,
			score:      80,
			bucket:     BucketSolid,
			leaks:      []string{"Cart Recovery Opportunity", "Room for Conversion Improvement"},
			impacts:    []int{12, 8},
		},
		{
			name:       "leaky store",
			metrics:    StoreMetrics{Sessions30d: 10000, Orders30d: 100, ConversionRate: 1.2, AOV: 70, AbandonedCarts30d: 300},
			revenue:    8400.00,
			perSession: 0.84,
			score:      43,
			bucket:     BucketMeaningful,
			leaks:      []string{"Low Conversion Rate", "High Cart Abandonment", "Below-Average Order Value"},
			impacts:    []int{25, 20, 12},
		},
		{
			name:    "empty store",
			metrics: StoreMetrics{},
			score:   100 - 25 - 12,
			bucket:  BucketMeaningful,
			leaks:   []string{"Low Conversion Rate", "Below-Average Order Value"},
			impacts: []int{25, 12},
		},
		{
			name:       "perfect store",
			metrics:    StoreMetrics{Sessions30d: 20000, Orders30d: 600, ConversionRate: 3.0, AOV: 200, AbandonedCarts30d: 600},
			revenue:    120000,
			perSession: 6,
			score:      100,
			bucket:     BucketSolid,
			leaks:      []string{},
			impacts:    []int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Analyze(tt.metrics, fixedTime)

			assert.InDelta(t, tt.revenue, r.RevenueEst, 0.001)
			assert.InDelta(t, tt.perSession, r.RevenuePerSession, 0.01)
			assert.Equal(t, tt.score, r.LeakScore)
			assert.Equal(t, tt.bucket, r.LeakBucket)
			assert.Equal(t, tt.leaks, titles(r.Leaks))

			impacts := make([]int, 0, len(r.Leaks))
			for _, l := range r.Leaks {
				impacts = append(impacts, l.ImpactScore)
			}
			assert.Equal(t, tt.impacts, impacts)
			assert.Len(t, r.Simulations, 4)
			assert.Equal(t, fixedTime, r.AnalyzedAt)
			assert.Equal(t, tt.metrics, r.Inputs)
		})
	}
}

func TestComputeLeakScoreTiers(t *testing.T) {
	base := StoreMetrics{Sessions30d: 1000, Orders30d: 100, ConversionRate: 3, AOV: 200, AbandonedCarts30d: 50}

	tests := []struct {
		name   string
		mutate func(*StoreMetrics)
		want   int
	}{
		{"no penalties", func(m *StoreMetrics) {}, 100},
		{"cr just below 1.5", func(m *StoreMetrics) { m.ConversionRate = 1.49 }, 75},
		{"cr exactly 1.5", func(m *StoreMetrics) { m.ConversionRate = 1.5 }, 85},
		{"cr exactly 2.0", func(m *StoreMetrics) { m.ConversionRate = 2.0 }, 92},
		{"cr exactly 2.5", func(m *StoreMetrics) { m.ConversionRate = 2.5 }, 100},
		{"carts equal orders", func(m *StoreMetrics) { m.AbandonedCarts30d = 100 }, 100},
		{"carts just above orders", func(m *StoreMetrics) { m.AbandonedCarts30d = 101 }, 88},
		{"carts exactly double", func(m *StoreMetrics) { m.AbandonedCarts30d = 200 }, 88},
		{"carts above double", func(m *StoreMetrics) { m.AbandonedCarts30d = 201 }, 80},
		{"aov below 90", func(m *StoreMetrics) { m.AOV = 89.99 }, 88},
		{"aov exactly 90", func(m *StoreMetrics) { m.AOV = 90 }, 94},
		{"aov exactly 130", func(m *StoreMetrics) { m.AOV = 130 }, 100},
		{"every worst tier", func(m *StoreMetrics) {
			m.ConversionRate = 0.5
			m.AbandonedCarts30d = 1000
			m.AOV = 10
		}, 43},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := base
			tt.mutate(&m)
			assert.Equal(t, tt.want, ComputeLeakScore(m))
		})
	}
}

func TestClassifyBucketBoundaries(t *testing.T) {
	tests := []struct {
		score  int
		bucket Bucket
		label  string
	}{
		{0, BucketMajor, "Major Leakage Detected"},
		{39, BucketMajor, "Major Leakage Detected"},
		{40, BucketMeaningful, "Meaningful Leakage Detected"},
		{69, BucketMeaningful, "Meaningful Leakage Detected"},
		{70, BucketSolid, "Solid Fundamentals"},
		{100, BucketSolid, "Solid Fundamentals"},
	}
	for _, tt := range tests {
		bucket, label := ClassifyBucket(tt.score)
		assert.Equal(t, tt.bucket, bucket, "score %d", tt.score)
		assert.Equal(t, tt.label, label, "score %d", tt.score)
	}
}

func TestIdentifyLeaksTieKeepsFamilyOrder(t *testing.T) {
	// Cart medium and AOV low both carry 12.
	m := StoreMetrics{Sessions30d: 1000, Orders30d: 10, ConversionRate: 3, AOV: 50, AbandonedCarts30d: 15}
	leaks := IdentifyLeaks(m)
	require.Len(t, leaks, 2)
	assert.Equal(t, CategoryCart, leaks[0].Category)
	assert.Equal(t, CategoryAOV, leaks[1].Category)
	assert.Equal(t, leaks[0].ImpactScore, leaks[1].ImpactScore)
}

func TestIdentifyLeaksSameFindingDifferentTier(t *testing.T) {
	low := IdentifyLeaks(StoreMetrics{ConversionRate: 1.7, AOV: 200})
	require.Len(t, low, 1)
	assert.Equal(t, "low_conversion", low[0].ID)
	assert.Equal(t, 15, low[0].ImpactScore)
	assert.Equal(t, ImpactHigh, low[0].Impact)

	aov := IdentifyLeaks(StoreMetrics{ConversionRate: 3, AOV: 100})
	require.Len(t, aov, 1)
	assert.Equal(t, "low_aov", aov[0].ID)
	assert.Equal(t, 6, aov[0].ImpactScore)
}

func TestIdentifyLeaksCopiesChecklist(t *testing.T) {
	m := StoreMetrics{ConversionRate: 1}
	first := IdentifyLeaks(m)
	first[0].CheckFirst[0] = "mutated"

	second := IdentifyLeaks(m)
	assert.NotEqual(t, "mutated", second[0].CheckFirst[0])
}

func TestRunSimulations(t *testing.T) {
	m := StoreMetrics{Sessions30d: 15000, Orders30d: 350, ConversionRate: 2.3, AOV: 145, AbandonedCarts30d: 450}
	sims := RunSimulations(m, ComputeBaseline(m))

	require.Len(t, sims, 4)
	want := []Scenario{
		{Label: "Conversion Rate +0.3%", CRChange: 0.3, NewRevenue: 56550, Uplift: 6525, UpliftPercent: 13},
		{Label: "Conversion Rate +0.5%", CRChange: 0.5, NewRevenue: 60900, Uplift: 10875, UpliftPercent: 22},
		{Label: "AOV +$15", AOVChange: 15, NewRevenue: 55200, Uplift: 5175, UpliftPercent: 10},
		{Label: "AOV +$25", AOVChange: 25, NewRevenue: 58650, Uplift: 8625, UpliftPercent: 17},
	}
	assert.Equal(t, want, sims)
}

func TestRunSimulationsZeroRevenue(t *testing.T) {
	sims := RunSimulations(StoreMetrics{}, Baseline{})
	require.Len(t, sims, 4)
	for _, s := range sims {
		assert.Zero(t, s.NewRevenue, s.Label)
		assert.Zero(t, s.Uplift, s.Label)
		assert.Zero(t, s.UpliftPercent, s.Label)
	}
}

func TestGenerateTeaser(t *testing.T) {
	r := Analyze(StoreMetrics{Sessions30d: 10000, Orders30d: 100, ConversionRate: 1.2, AOV: 70, AbandonedCarts30d: 300}, fixedTime)
	teaser := GenerateTeaser(r)

	assert.Equal(t, 43, teaser.LeakScore)
	assert.Equal(t, BucketMeaningful, teaser.LeakBucket)
	assert.Equal(t, "Meaningful Leakage Detected", teaser.LeakBucketLabel)
	require.Len(t, teaser.TopLeaks, 2)
	assert.Equal(t, "Low Conversion Rate", teaser.TopLeaks[0].Title)
	assert.Equal(t, "High Cart Abandonment", teaser.TopLeaks[1].Title)
	assert.InDelta(t, 8400.0, teaser.RevenueEst, 0.001)

	// At 1.2% CR and $70 AOV, +0.5pp conversion beats +$25 AOV.
	assert.Equal(t, "Conversion Rate +0.5%", teaser.BestSimulation.Label)
	for _, s := range r.Simulations {
		assert.LessOrEqual(t, s.Uplift, teaser.BestSimulation.Uplift)
	}
}

func TestGenerateTeaserTieKeepsFirst(t *testing.T) {
	teaser := GenerateTeaser(Analyze(StoreMetrics{}, fixedTime))
	assert.Equal(t, "Conversion Rate +0.3%", teaser.BestSimulation.Label)
	assert.Zero(t, teaser.BestSimulation.Uplift)
}

func TestTopLeaksAndTitles(t *testing.T) {
	r := Result{Leaks: []Finding{{Title: "A"}}}
	assert.Len(t, r.TopLeaks(2), 1)
	assert.Empty(t, r.TopLeaks(-1))
	assert.Equal(t, "A", r.LeakTitle(0))
	assert.Equal(t, "None", r.LeakTitle(1))
}
