// internal/pipeline/normalize.go
package pipeline

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidValue is returned when a monetary candidate cannot be
	// normalized into a positive two-decimal amount.
	ErrInvalidValue = errors.New("invalid monetary value")

	// ErrInvalidDate is returned when a date candidate has no recognized shape
	// or does not name a real calendar day.
	ErrInvalidDate = errors.New("invalid emission date")
)

const dateLayout = "02/01/2006"

var (
	valueNoise       = regexp.MustCompile(`[^\d.,\-]`)
	thousandsDotOnly = regexp.MustCompile(`^-?\d{1,3}\.\d{3}$`)
	dayFirstDate     = regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{4})(?:[\sT].*)?$`)
	yearFirstDate    = regexp.MustCompile(`^(\d{4})[-/](\d{2})[-/](\d{2})(?:[\sT].*)?$`)
	compactTimestamp = regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})\d{6}$`)
)

// NormalizeValue turns a raw monetary candidate ("R$ 1.234,50", "150.00",
// "1234,5") into the canonical "1234,50" form. The boolean is false when the
// candidate is not a finite amount greater than zero.
func NormalizeValue(raw string) (string, bool) {
	cleaned := valueNoise.ReplaceAllString(strings.TrimSpace(raw), "")
	if cleaned == "" {
		return "", false
	}

	switch {
	case strings.Contains(cleaned, ","):
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	case strings.Count(cleaned, ".") > 1:
		cleaned = strings.ReplaceAll(cleaned, ".", "")
	case thousandsDotOnly.MatchString(cleaned):
		// 1.234 is one thousand two hundred thirty-four, never 1,234
		cleaned = strings.ReplaceAll(cleaned, ".", "")
	}

	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return "", false
	}
	if math.Round(amount*100) <= 0 {
		return "", false
	}

	formatted := strconv.FormatFloat(amount, 'f', 2, 64)
	return strings.Replace(formatted, ".", ",", 1), true
}

// NormalizeDate accepts DD/MM/YYYY, YYYY-MM-DD, YYYY/MM/DD (each optionally
// followed by a time part) and 14-digit YYYYMMDDHHMMSS timestamps, and
// returns the date as DD/MM/YYYY. Anything else is rejected.
func NormalizeDate(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}

	var day, month, year string
	if m := dayFirstDate.FindStringSubmatch(s); m != nil {
		day, month, year = m[1], m[2], m[3]
	} else if m := yearFirstDate.FindStringSubmatch(s); m != nil {
		year, month, day = m[1], m[2], m[3]
	} else if m := compactTimestamp.FindStringSubmatch(s); m != nil {
		year, month, day = m[1], m[2], m[3]
	} else {
		return "", false
	}

	date := day + "/" + month + "/" + year
	if _, err := time.Parse(dateLayout, date); err != nil {
		return "", false
	}
	return date, true
}
