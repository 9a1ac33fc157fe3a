package diagnostic

// leakDef is the static description of a finding; the impact score is
// supplied by the tier that triggers it.
type leakDef struct {
	id          string
	title       string
	description string
	impact      Impact
	category    Category
	checkFirst  []string
}

func (d *leakDef) finding(score int) Finding {
	checks := make([]string, len(d.checkFirst))
	copy(checks, d.checkFirst)
	return Finding{
		ID:          d.id,
		Title:       d.title,
		Description: d.description,
		Impact:      d.impact,
		ImpactScore: score,
		Category:    d.category,
		CheckFirst:  checks,
	}
}

var (
	lowConversion = leakDef{
		id:          "low_conversion",
		title:       "Low Conversion Rate",
		description: "Your conversion rate suggests visitors are not finding what they need or encountering friction. This is often the highest-leverage fix for tactical gear stores.",
		impact:      ImpactHigh,
		category:    CategoryConversion,
		checkFirst: []string{
			"Product page load time (should be under 3 seconds)",
			"Mobile checkout experience (60%+ of traffic is mobile)",
			"Trust signals: reviews, security badges, shipping info",
			"Product photography quality and zoom functionality",
			"Clear sizing/compatibility information",
			"Prominent call-to-action buttons",
		},
	}
	conversionMedium = leakDef{
		id:          "conversion_medium",
		title:       "Room for Conversion Improvement",
		description: "Your conversion rate is acceptable but below top-tier tactical stores. Incremental improvements here compound significantly over time.",
		impact:      ImpactMedium,
		category:    CategoryConversion,
		checkFirst: []string{
			"A/B test product page layouts",
			"Review and testimonial placement",
			"Urgency elements (stock levels, sale timers)",
			"Search functionality and filtering",
			"Category page organization",
		},
	}
	highCartAbandon = leakDef{
		id:          "high_cart_abandon",
		title:       "High Cart Abandonment",
		description: "Too many customers are adding items but not completing checkout. This indicates checkout friction, shipping surprise, or trust issues at the critical moment.",
		impact:      ImpactHigh,
		category:    CategoryCart,
		checkFirst: []string{
			"Shipping costs visible before checkout (surprise fees kill conversions)",
			"Guest checkout option available",
			"Payment options: Apple Pay, Google Pay, PayPal",
			"Cart abandonment email sequence in place",
			"Exit-intent offers for cart abandoners",
			"Checkout page load speed and mobile optimization",
		},
	}
	cartMedium = leakDef{
		id:          "cart_medium",
		title:       "Cart Recovery Opportunity",
		description: "You have more abandoned carts than completed orders, so there is meaningful revenue being left on the table that recovery tactics can capture.",
		impact:      ImpactMedium,
		category:    CategoryCart,
		checkFirst: []string{
			"Multi-step abandoned cart email sequence",
			"SMS recovery for mobile abandoners",
			"Retargeting ads for cart abandoners",
			"Simplified checkout (fewer form fields)",
		},
	}
	lowAOV = leakDef{
		id:          "low_aov",
		title:       "Below-Average Order Value",
		description: "Customers are buying but not maximizing basket size. For tactical gear, bundling and smart upsells can significantly increase revenue without more traffic.",
		impact:      ImpactMedium,
		category:    CategoryAOV,
		checkFirst: []string{
			"Product bundles (e.g., \"range day kit\", \"EDC bundle\")",
			"Post-purchase upsells on confirmation page",
			"In-cart recommendations for complementary items",
			"Free shipping threshold above current AOV",
			"Volume discounts for consumables (ammo, targets, etc.)",
			"Loyalty/rewards program incentives",
		},
	}
)

// tier is one row of a family's rule table. The penalty doubles as the
// impact score of the finding it emits.
type tier struct {
	name    string
	applies func(StoreMetrics) bool
	penalty int
	leak    *leakDef
}

// family is an ordered rule table for one metric; the first matching tier wins.
type family struct {
	category Category
	tiers    []tier
}

// rules lists families in evaluation order, which is also the tie-break order
// when findings share an impact score.
var rules = []family{
	{
		category: CategoryConversion,
		tiers: []tier{
			{"cr<1.5", func(m StoreMetrics) bool { return m.ConversionRate < 1.5 }, 25, &lowConversion},
			{"cr<2.0", func(m StoreMetrics) bool { return m.ConversionRate < 2.0 }, 15, &lowConversion},
			{"cr<2.5", func(m StoreMetrics) bool { return m.ConversionRate < 2.5 }, 8, &conversionMedium},
		},
	},
	{
		category: CategoryCart,
		tiers: []tier{
			{"carts>2x", func(m StoreMetrics) bool { return m.AbandonedCarts30d > m.Orders30d*2 }, 20, &highCartAbandon},
			{"carts>1x", func(m StoreMetrics) bool { return m.AbandonedCarts30d > m.Orders30d }, 12, &cartMedium},
		},
	},
	{
		category: CategoryAOV,
		tiers: []tier{
			{"aov<90", func(m StoreMetrics) bool { return m.AOV < 90 }, 12, &lowAOV},
			{"aov<130", func(m StoreMetrics) bool { return m.AOV < 130 }, 6, &lowAOV},
		},
	},
}

// match returns the first tier of f that applies to m.
func (f family) match(m StoreMetrics) (tier, bool) {
	for _, t := range f.tiers {
		if t.applies(m) {
			return t, true
		}
	}
	return tier{}, false
}
