package format

import (
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	NotAvailable = "N/A"
	InvalidDate  = "invalid date"

	TimestampLayout = "02/01/2006 15:04"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Timestamp renders an ISO-like timestamp. Empty input renders as N/A and
// anything unparsable as the invalid date placeholder.
func Timestamp(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return NotAvailable
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(TimestampLayout)
		}
	}
	return InvalidDate
}

// Number renders v without trailing zeros: 97 -> "97", 88.5 -> "88.5".
func Number(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Percent renders v as given, with a percent suffix.
func Percent(v float64) string {
	return Number(v) + "%"
}

// ProgressWidth clamps v to [0,100].
func ProgressWidth(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}

// ProgressClass picks the bar color for a utilization value.
func ProgressClass(v float64) string {
	switch {
	case v > 80:
		return "bg-danger"
	case v > 60:
		return "bg-warning"
	default:
		return "bg-success"
	}
}
