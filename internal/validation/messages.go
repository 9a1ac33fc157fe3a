package validation

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var labels = map[string]string{
	"firstName":           "First name",
	"email":               "Email",
	"storeUrl":            "Store URL",
	"sessions30d":         "Sessions",
	"orders30d":           "Orders",
	"conversionRate":      "Conversion rate",
	"aov":                 "AOV",
	"abandonedCarts30d":   "Abandoned carts",
	"monthlyRevenueRange": "Revenue range",
}

// messages overrides the generic text for specific field/rule pairs.
var messages = map[string]map[string]string{
	"firstName": {"max": "First name is too long"},
	"email": {
		"email": "Please enter a valid email address",
		"max":   "Email is too long",
	},
	"storeUrl": {
		"max":      "URL is too long",
		"storeurl": "Please enter a valid store URL (e.g., mystore.com or mystore.myshopify.com)",
	},
	"sessions30d":    {"max": "Sessions value seems too high"},
	"orders30d":      {"max": "Orders value seems too high"},
	"conversionRate": {"max": "Conversion rate cannot exceed 20%"},
	"aov":            {"max": "AOV cannot exceed $5,000"},
}

func message(fe validator.FieldError) string {
	field := fe.Field()
	if m, ok := messages[field][fe.Tag()]; ok {
		return m
	}
	label := labels[field]
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "whole":
		return label + " must be a whole number"
	case "min":
		return label + " cannot be negative"
	case "max":
		return label + " is too large"
	case "oneof":
		return label + " must be one of " + strings.Join(RevenueRanges, ", ")
	default:
		return label + " is invalid"
	}
}
