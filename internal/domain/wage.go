package domain

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// HoursPerYear is the standard full-time year used to annualize hourly rates.
const HoursPerYear = 2080

// Salary bounds accepted from user input.
const (
	MinSalary = 0
	MaxSalary = 10_000_000
)

// occupationCodeRe matches SOC codes ("15-1252") and O*NET-SOC codes ("15-1252.00").
var occupationCodeRe = regexp.MustCompile(`^\d{2}-\d{4}(\.\d{2})?$`)

// ErrInvalidSalary is returned when a salary is not a number within bounds.
var ErrInvalidSalary = errors.New("invalid salary")

// WageThresholds holds the hourly rate required for each level. A nil field
// means the level is absent for the county; presence of one level implies
// nothing about the others.
type WageThresholds struct {
	I   *float64 `json:"I,omitempty"`
	II  *float64 `json:"II,omitempty"`
	III *float64 `json:"III,omitempty"`
	IV  *float64 `json:"IV,omitempty"`
}

// Threshold returns the rate for a level and whether it is present.
func (t WageThresholds) Threshold(l Level) (float64, bool) {
	var p *float64
	switch l {
	case Level1:
		p = t.I
	case Level2:
		p = t.II
	case Level3:
		p = t.III
	case Level4:
		p = t.IV
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

// Thresholds builds a WageThresholds from a level→rate map, mostly for tests
// and table generation.
func Thresholds(rates map[Level]float64) WageThresholds {
	var t WageThresholds
	for l, r := range rates {
		switch l {
		case Level1:
			t.I = &r
		case Level2:
			t.II = &r
		case Level3:
			t.III = &r
		case Level4:
			t.IV = &r
		}
	}
	return t
}

// WageTable maps join keys to thresholds for one occupation. Tables are
// treated as immutable once loaded.
type WageTable map[string]WageThresholds

// Classify returns the highest level whose threshold hourly meets, testing
// IV, III, II, I in that order. The boundary is inclusive. There is no
// fallback: a wage below every present threshold is LevelNone even when
// lower levels are missing from the table.
func Classify(hourly float64, t WageThresholds) Level {
	for _, l := range Levels {
		if rate, ok := t.Threshold(l); ok && hourly >= rate {
			return l
		}
	}
	return LevelNone
}

// HourlyWage converts an annual salary to an hourly rate.
func HourlyWage(annual float64) float64 {
	return annual / HoursPerYear
}

// ValidSalary reports whether an annual salary is a finite number within
// [MinSalary, MaxSalary].
func ValidSalary(annual float64) bool {
	return !math.IsNaN(annual) && annual >= MinSalary && annual <= MaxSalary
}

// ParseSalary parses user input such as "93,600" or "150000" into an annual
// salary and validates its bounds.
func ParseSalary(s string) (float64, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSalary, s)
	}
	if !ValidSalary(v) {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidSalary, s)
	}
	return v, nil
}

// FormatSalary renders an annual salary with thousands separators, e.g. 93600 → "93,600".
func FormatSalary(annual float64) string {
	digits := strconv.FormatFloat(math.Abs(annual), 'f', -1, 64)
	whole, frac, _ := strings.Cut(digits, ".")

	var b strings.Builder
	if annual < 0 {
		b.WriteByte('-')
	}
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}

// ValidOccupationCode reports whether code looks like a SOC or O*NET-SOC code.
func ValidOccupationCode(code string) bool {
	return occupationCodeRe.MatchString(code)
}
