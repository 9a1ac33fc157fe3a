// Package validation turns a raw intake-form payload into the contact details
// and store metrics the diagnostic engine consumes.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"leakdiag/internal/diagnostic"
)

// RevenueRanges are the accepted values of the optional monthlyRevenueRange field.
var RevenueRanges = []string{"under-50k", "50k-150k", "150k-500k", "500k-plus"}

// Contact is the normalised identity half of a submission.
type Contact struct {
	FirstName           string `json:"firstName"`
	Email               string `json:"email"`
	StoreURL            string `json:"storeUrl"`
	MonthlyRevenueRange string `json:"monthlyRevenueRange,omitempty"`
}

// Submission is a fully validated intake form.
type Submission struct {
	Contact Contact
	Metrics diagnostic.StoreMetrics
}

// Form mirrors the JSON payload. Numbers are pointers so that a missing field
// is distinguishable from zero.
type Form struct {
	FirstName           string   `json:"firstName" validate:"required,max=100"`
	Email               string   `json:"email" validate:"required,max=255,email"`
	StoreURL            string   `json:"storeUrl" validate:"required,max=500,storeurl"`
	Sessions30d         *float64 `json:"sessions30d" validate:"required,whole,min=0,max=100000000"`
	Orders30d           *float64 `json:"orders30d" validate:"required,whole,min=0,max=10000000"`
	ConversionRate      *float64 `json:"conversionRate" validate:"required,min=0,max=20"`
	AOV                 *float64 `json:"aov" validate:"required,min=0,max=5000"`
	AbandonedCarts30d   *float64 `json:"abandonedCarts30d" validate:"required,whole,min=0"`
	MonthlyRevenueRange string   `json:"monthlyRevenueRange" validate:"omitempty,oneof=under-50k 50k-150k 150k-500k 500k-plus"`
}

// Error carries every failed field with its user-facing messages, keyed by
// the JSON field name.
type Error struct {
	FieldErrors map[string][]string
}

func (e *Error) Error() string {
	fields := make([]string, 0, len(e.FieldErrors))
	for f := range e.FieldErrors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

func (e *Error) add(field, msg string) {
	if e.FieldErrors == nil {
		e.FieldErrors = make(map[string][]string)
	}
	e.FieldErrors[field] = append(e.FieldErrors[field], msg)
}

// storeHostPattern requires a host with at least one dot once the scheme and
// www. prefix are removed.
var storeHostPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9-]*(\.[a-zA-Z0-9-]+)+`)

var (
	schemePrefix   = regexp.MustCompile(`^https?://`)
	trailingSlash  = regexp.MustCompile(`/+$`)
	maxSafeInteger = math.Pow(2, 53) - 1
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("storeurl", validateStoreURL)
	_ = v.RegisterValidation("whole", validateWhole)
	return v
}

func validateStoreURL(fl validator.FieldLevel) bool {
	cleaned := schemePrefix.ReplaceAllString(fl.Field().String(), "")
	cleaned = strings.TrimPrefix(cleaned, "www.")
	return storeHostPattern.MatchString(cleaned)
}

func validateWhole(fl validator.FieldLevel) bool {
	f := fl.Field().Float()
	return f == math.Trunc(f) && math.Abs(f) <= maxSafeInteger
}

// NormalizeStoreURL canonicalises a store address: trimmed, lower-cased,
// without trailing slashes or a www. prefix, always https.
func NormalizeStoreURL(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = schemePrefix.ReplaceAllString(s, "")
	s = trailingSlash.ReplaceAllString(s, "")
	s = strings.TrimPrefix(s, "www.")
	return "https://" + s
}

// Parse decodes and validates a JSON intake payload. Numeric fields accept
// JSON numbers or numeric strings. On failure the returned error is an *Error.
func Parse(raw []byte) (Submission, error) {
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		verr := &Error{}
		verr.add("body", "Request body must be a JSON object")
		return Submission{}, verr
	}

	verr := &Error{}
	form := Form{
		FirstName:           strings.TrimSpace(decodeString(fields, "firstName", verr)),
		Email:               strings.ToLower(strings.TrimSpace(decodeString(fields, "email", verr))),
		StoreURL:            strings.ToLower(strings.TrimSpace(decodeString(fields, "storeUrl", verr))),
		Sessions30d:         decodeNumber(fields, "sessions30d", verr),
		Orders30d:           decodeNumber(fields, "orders30d", verr),
		ConversionRate:      decodeNumber(fields, "conversionRate", verr),
		AOV:                 decodeNumber(fields, "aov", verr),
		AbandonedCarts30d:   decodeNumber(fields, "abandonedCarts30d", verr),
		MonthlyRevenueRange: decodeString(fields, "monthlyRevenueRange", verr),
	}

	if err := validate.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return Submission{}, fmt.Errorf("validate form: %w", err)
		}
		for _, fe := range fieldErrs {
			if _, typed := verr.FieldErrors[fe.Field()]; typed {
				continue
			}
			verr.add(fe.Field(), message(fe))
		}
	}
	if len(verr.FieldErrors) > 0 {
		return Submission{}, verr
	}

	return Submission{
		Contact: Contact{
			FirstName:           form.FirstName,
			Email:               form.Email,
			StoreURL:            NormalizeStoreURL(form.StoreURL),
			MonthlyRevenueRange: form.MonthlyRevenueRange,
		},
		Metrics: diagnostic.StoreMetrics{
			Sessions30d:       int64(*form.Sessions30d),
			Orders30d:         int64(*form.Orders30d),
			ConversionRate:    *form.ConversionRate,
			AOV:               *form.AOV,
			AbandonedCarts30d: int64(*form.AbandonedCarts30d),
		},
	}, nil
}

var nullJSON = []byte("null")

// decodeString returns "" for absent or null values and records a type error
// for anything that is not a JSON string.
func decodeString(fields map[string]json.RawMessage, name string, verr *Error) string {
	raw, ok := fields[name]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), nullJSON) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		verr.add(name, labels[name]+" must be text")
		return ""
	}
	return s
}

// decodeNumber returns nil for absent, null or blank values so that the
// required rule reports them. Numeric strings are coerced.
func decodeNumber(fields map[string]json.RawMessage, name string, verr *Error) *float64 {
	raw, ok := fields[name]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), nullJSON) {
		return nil
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			verr.add(name, labels[name]+" must be a number")
			return nil
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
		parsed, perr := strconv.ParseFloat(s, 64)
		if perr != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
			verr.add(name, labels[name]+" must be a number")
			return nil
		}
		f = parsed
	}
	return &f
}
