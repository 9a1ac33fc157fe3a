package diagnostic

import (
	"math"
	"testing"
)

// FuzzAnalyze checks the engine invariants across the validated input domain.
func FuzzAnalyze(f *testing.F) {
	f.Add(int64(15000), int64(350), 2.3, 145.0, int64(450))
	f.Add(int64(10000), int64(100), 1.2, 70.0, int64(300))
	f.Add(int64(0), int64(0), 0.0, 0.0, int64(0))
	f.Add(int64(100000000), int64(10000000), 20.0, 5000.0, int64(1<<40))

	f.Fuzz(func(t *testing.T, sessions, orders int64, cr, aov float64, carts int64) {
		if sessions < 0 || sessions > 100000000 || orders < 0 || orders > 10000000 || carts < 0 || carts > 1<<50 {
			t.Skip()
		}
		if math.IsNaN(cr) || math.IsNaN(aov) || cr < 0 || cr > 20 || aov < 0 || aov > 5000 {
			t.Skip()
		}
		m := StoreMetrics{Sessions30d: sessions, Orders30d: orders, ConversionRate: cr, AOV: aov, AbandonedCarts30d: carts}

		r := Analyze(m, fixedTime)
		if r.LeakScore < 0 || r.LeakScore > 100 {
			t.Fatalf("score out of range: %d", r.LeakScore)
		}
		bucket, _ := ClassifyBucket(r.LeakScore)
		if bucket != r.LeakBucket {
			t.Fatalf("bucket mismatch: %s vs %s", bucket, r.LeakBucket)
		}

		seen := map[Category]bool{}
		penalty := 0
		for i, l := range r.Leaks {
			if seen[l.Category] {
				t.Fatalf("duplicate finding for %s", l.Category)
			}
			seen[l.Category] = true
			penalty += l.ImpactScore
			if i > 0 && r.Leaks[i-1].ImpactScore < l.ImpactScore {
				t.Fatalf("findings not sorted: %v", r.Leaks)
			}
		}
		if 100-penalty != r.LeakScore {
			t.Fatalf("score %d disagrees with findings penalty %d", r.LeakScore, penalty)
		}

		if len(r.Simulations) != 4 {
			t.Fatalf("expected 4 simulations, got %d", len(r.Simulations))
		}
		for _, s := range r.Simulations {
			if r.RevenueEst == 0 && s.UpliftPercent != 0 {
				t.Fatalf("upliftPercent must be 0 with zero revenue, got %d", s.UpliftPercent)
			}
		}

		teaser := GenerateTeaser(r)
		if len(teaser.TopLeaks) > TeaserLeakCount {
			t.Fatalf("teaser carries %d leaks", len(teaser.TopLeaks))
		}
		for _, s := range r.Simulations {
			if s.Uplift > teaser.BestSimulation.Uplift {
				t.Fatalf("best simulation %v is not the max", teaser.BestSimulation)
			}
		}
	})
}
