package validation

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leakdiag/internal/diagnostic"
)

func payload(t *testing.T, overrides map[string]any) []byte {
	t.Helper()
	body := map[string]any{
		"firstName":         "Dana",
		"email":             "dana@gearstore.com",
		"storeUrl":          "gearstore.com",
		"sessions30d":       15000,
		"orders30d":         350,
		"conversionRate":    2.3,
		"aov":               145,
		"abandonedCarts30d": 450,
	}
	for k, v := range overrides {
		if v == nil {
			delete(body, k)
			continue
		}
		body[k] = v
	}
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	return raw
}

func fieldErrors(t *testing.T, err error) map[string][]string {
	t.Helper()
	var verr *Error
	require.True(t, errors.As(err, &verr), "expected *Error, got %v", err)
	return verr.FieldErrors
}

func TestParseValid(t *testing.T) {
	sub, err := Parse(payload(t, map[string]any{
		"firstName":           "  Dana ",
		"email":               " Dana@GearStore.COM ",
		"storeUrl":            "HTTPS://www.GearStore.com//",
		"monthlyRevenueRange": "50k-150k",
	}))
	require.NoError(t, err)

	assert.Equal(t, Contact{
		FirstName:           "Dana",
		Email:               "dana@gearstore.com",
		StoreURL:            "https://gearstore.com",
		MonthlyRevenueRange: "50k-150k",
	}, sub.Contact)
	assert.Equal(t, diagnostic.StoreMetrics{
		Sessions30d:       15000,
		Orders30d:         350,
		ConversionRate:    2.3,
		AOV:               145,
		AbandonedCarts30d: 450,
	}, sub.Metrics)
}

func TestParseCoercesNumericStrings(t *testing.T) {
	sub, err := Parse(payload(t, map[string]any{
		"sessions30d":         "12000",
		"aov":                 " 99.5 ",
		"monthlyRevenueRange": nil,
	}))
	require.NoError(t, err)
	assert.Equal(t, int64(12000), sub.Metrics.Sessions30d)
	assert.Equal(t, 99.5, sub.Metrics.AOV)
	assert.Empty(t, sub.Contact.MonthlyRevenueRange)
}

func TestParseAcceptsZeroes(t *testing.T) {
	sub, err := Parse(payload(t, map[string]any{
		"sessions30d": 0, "orders30d": 0, "conversionRate": 0, "aov": 0, "abandonedCarts30d": 0,
	}))
	require.NoError(t, err)
	assert.Equal(t, diagnostic.StoreMetrics{}, sub.Metrics)
}

func TestParseFieldErrors(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]any
		field     string
		want      string
	}{
		{"missing first name", map[string]any{"firstName": nil}, "firstName", "First name is required"},
		{"blank first name", map[string]any{"firstName": "   "}, "firstName", "First name is required"},
		{"long first name", map[string]any{"firstName": strings.Repeat("a", 101)}, "firstName", "First name is too long"},
		{"first name wrong type", map[string]any{"firstName": 42}, "firstName", "First name must be text"},
		{"bad email", map[string]any{"email": "not-an-email"}, "email", "Please enter a valid email address"},
		{"missing email", map[string]any{"email": ""}, "email", "Email is required"},
		{"url without dot", map[string]any{"storeUrl": "localhost"}, "storeUrl", "Please enter a valid store URL (e.g., mystore.com or mystore.myshopify.com)"},
		{"url leading dash", map[string]any{"storeUrl": "-shop.com"}, "storeUrl", "Please enter a valid store URL (e.g., mystore.com or mystore.myshopify.com)"},
		{"sessions missing", map[string]any{"sessions30d": nil}, "sessions30d", "Sessions is required"},
		{"sessions blank string", map[string]any{"sessions30d": ""}, "sessions30d", "Sessions is required"},
		{"sessions not a number", map[string]any{"sessions30d": "lots"}, "sessions30d", "Sessions must be a number"},
		{"sessions fractional", map[string]any{"sessions30d": 10.5}, "sessions30d", "Sessions must be a whole number"},
		{"sessions negative", map[string]any{"sessions30d": -1}, "sessions30d", "Sessions cannot be negative"},
		{"sessions too high", map[string]any{"sessions30d": 100000001}, "sessions30d", "Sessions value seems too high"},
		{"orders too high", map[string]any{"orders30d": 10000001}, "orders30d", "Orders value seems too high"},
		{"orders bool", map[string]any{"orders30d": true}, "orders30d", "Orders must be a number"},
		{"cr above 20", map[string]any{"conversionRate": 20.01}, "conversionRate", "Conversion rate cannot exceed 20%"},
		{"cr negative", map[string]any{"conversionRate": -0.1}, "conversionRate", "Conversion rate cannot be negative"},
		{"cr infinite string", map[string]any{"conversionRate": "Inf"}, "conversionRate", "Conversion rate must be a number"},
		{"aov above 5000", map[string]any{"aov": 5000.01}, "aov", "AOV cannot exceed $5,000"},
		{"carts fractional", map[string]any{"abandonedCarts30d": 1.25}, "abandonedCarts30d", "Abandoned carts must be a whole number"},
		{"carts negative", map[string]any{"abandonedCarts30d": -3}, "abandonedCarts30d", "Abandoned carts cannot be negative"},
		{"unknown revenue range", map[string]any{"monthlyRevenueRange": "1m-plus"}, "monthlyRevenueRange", "Revenue range must be one of under-50k, 50k-150k, 150k-500k, 500k-plus"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(payload(t, tt.overrides))
			require.Error(t, err)
			errs := fieldErrors(t, err)
			assert.Equal(t, []string{tt.want}, errs[tt.field])
			assert.Len(t, errs, 1, "unexpected extra fields: %v", errs)
		})
	}
}

func TestParseCollectsEveryField(t *testing.T) {
	_, err := Parse([]byte(`{}`))
	errs := fieldErrors(t, err)
	for _, f := range []string{"firstName", "email", "storeUrl", "sessions30d", "orders30d", "conversionRate", "aov", "abandonedCarts30d"} {
		assert.Contains(t, errs, f)
	}
	assert.NotContains(t, errs, "monthlyRevenueRange")
	assert.Contains(t, err.Error(), "validation failed: abandonedCarts30d, aov")
}

func TestParseRejectsNonObjectBody(t *testing.T) {
	for _, body := range []string{`[]`, `"x"`, `not json`} {
		_, err := Parse([]byte(body))
		errs := fieldErrors(t, err)
		assert.Equal(t, []string{"Request body must be a JSON object"}, errs["body"], body)
	}
}

func TestNormalizeStoreURL(t *testing.T) {
	tests := []struct{ in, want string }{
		{"gearstore.com", "https://gearstore.com"},
		{"  GearStore.com  ", "https://gearstore.com"},
		{"http://gearstore.com", "https://gearstore.com"},
		{"https://www.gearstore.com/", "https://gearstore.com"},
		{"www.shop.myshopify.com///", "https://shop.myshopify.com"},
		{"gearstore.com/collections/all", "https://gearstore.com/collections/all"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeStoreURL(tt.in), tt.in)
	}
}
