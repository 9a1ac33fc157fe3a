package diagnostic

import (
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var printer = message.NewPrinter(language.English)

// FormatInt renders a whole number with thousands separators ("50,025").
func FormatInt(v int64) string {
	return printer.Sprintf("%d", v)
}

// FormatMoney renders an amount with thousands separators and at most two
// decimals, dropping trailing zeros ("50,025", "1,234.5").
func FormatMoney(v float64) string {
	return printer.Sprintf("%v", number.Decimal(roundCents(v), number.MaxFractionDigits(2)))
}

// FormatFixed2 renders v with exactly two decimals and no grouping.
func FormatFixed2(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// FormatRate renders a percentage as entered ("2.3").
func FormatRate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// StoreHost strips the scheme from a normalised store URL for display.
func StoreHost(storeURL string) string {
	s := strings.TrimPrefix(storeURL, "https://")
	return strings.TrimPrefix(s, "http://")
}

// Color returns the display colour used for a bucket on a dark background.
func (b Bucket) Color() string {
	switch b {
	case BucketMajor:
		return "#fca5a5"
	case BucketMeaningful:
		return "#fcd34d"
	default:
		return "#86efac"
	}
}

// AccentColor returns the bucket colour used on a light background.
func (b Bucket) AccentColor() string {
	switch b {
	case BucketMajor:
		return "#dc2626"
	case BucketMeaningful:
		return "#f59e0b"
	default:
		return "#059669"
	}
}
