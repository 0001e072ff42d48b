package entity

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// numberRe matches the first plain number in free text, thousands
	// separators included: "13898", "50,000", "4.5".
	numberRe = regexp.MustCompile(`\b(\d+(?:,\d{3})*(?:\.\d+)?)\b`)

	// tonsRe matches numbers carrying an explicit metric-tons unit:
	// "937 mts", "50,000 MT", "5000mt".
	tonsRe = regexp.MustCompile(`(?i)(\d+(?:,\d{3})*(?:\.\d+)?)\s*mts?\b`)

	// commissionRe is looser than numberRe: brokers write "3.75%", "2,5%"
	// never appears, comma groups are not a thing in commission text.
	commissionRe = regexp.MustCompile(`\b(\d+(?:\.\d+)?)\b`)
)

// monthNames in scan order. The first name found as a substring wins, so
// "11 Nov/Onwards" resolves to November, not to the day number.
var monthNames = [...]string{
	"jan", "feb", "mar", "apr", "may", "jun",
	"jul", "aug", "sep", "oct", "nov", "dec",
}

// DefaultCommission is assigned when the commission text yields no number.
// It sits above the matching engine's commission cap, so cargoes without a
// stated commission never match.
const DefaultCommission = 10.0

func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
}

// ExtractNumber returns the first number in s, commas stripped, or nil when
// the text carries none.
func ExtractNumber(s string) *float64 {
	m := numberRe.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	v, err := parseNumber(m[1])
	if err != nil {
		return nil
	}
	return &v
}

// ExtractMonth scans s for a month name and returns 1..12, or nil when no
// month name appears.
func ExtractMonth(s string) *int {
	low := strings.ToLower(s)
	for i, name := range monthNames {
		if strings.Contains(low, name) {
			m := i + 1
			return &m
		}
	}
	return nil
}

// scaleTonnage applies the k-ton shorthand: brokers quote "25/30" meaning
// 25,000..30,000 tons, so bare values under 1000 are scaled up.
func scaleTonnage(v float64) float64 {
	if v > 0 && v < 1000 {
		return v * 1000
	}
	return v
}

// ParseCapacity derives a ship's integer deadweight from its free-text
// capacity ("13898 dwt", "abt 52k"). Sub-1000 values are read as k-tons.
func ParseCapacity(s string) *int {
	v := ExtractNumber(s)
	if v == nil {
		return nil
	}
	n := int(scaleTonnage(*v))
	return &n
}

// ParseQuantityRange derives the min/max tonnage from a cargo's free-text
// quantity. Numbers with an explicit tons unit ("937 mts") are authoritative
// and taken literally, which keeps volume figures like "4387 Cbm" out of the
// range. Without a unit, the first two numbers form the range and the k-ton
// shorthand applies. A single number yields min == max; a reversed pair is
// swapped.
func ParseQuantityRange(s string) (*int, *int) {
	var vals []float64
	if tons := tonsRe.FindAllStringSubmatch(s, -1); len(tons) > 0 {
		for _, m := range tons {
			if v, err := parseNumber(m[1]); err == nil {
				vals = append(vals, v)
			}
		}
	} else {
		for _, m := range numberRe.FindAllStringSubmatch(s, -1) {
			if v, err := parseNumber(m[1]); err == nil {
				vals = append(vals, scaleTonnage(v))
			}
		}
	}
	if len(vals) == 0 {
		return nil, nil
	}
	lo := vals[0]
	hi := lo
	if len(vals) > 1 {
		hi = vals[1]
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	minT, maxT := int(lo), int(hi)
	return &minT, &maxT
}

// ParseCommission derives the commission percentage from free text,
// DefaultCommission when unparseable.
func ParseCommission(s string) float64 {
	m := commissionRe.FindStringSubmatch(s)
	if m == nil {
		return DefaultCommission
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return DefaultCommission
	}
	return v
}

// Normalize fills the ship's derived fields from its free-text ones.
func (s *Ship) Normalize() {
	s.CapacityInt = ParseCapacity(s.Capacity)
	s.MonthInt = ExtractMonth(s.Month)
}

// Normalize fills the cargo's derived fields from its free-text ones.
func (c *Cargo) Normalize() {
	c.QuantityMinInt, c.QuantityMaxInt = ParseQuantityRange(c.Quantity)
	c.MonthInt = ExtractMonth(c.Month)
	c.CommissionFloat = ParseCommission(c.Commission)
}

// Validate reports why the ship cannot enter the matching pool, nil when it
// can. Month and location stay optional; the matching engine degrades for
// those.
func (s *Ship) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("ship has no name")
	}
	if s.CapacityInt == nil || *s.CapacityInt <= 0 {
		return fmt.Errorf("ship %q has no usable capacity (raw %q)", s.Name, s.Capacity)
	}
	return nil
}

// Validate reports why the cargo cannot enter the matching pool, nil when it
// can.
func (c *Cargo) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("cargo has no name")
	}
	if c.QuantityMinInt == nil || c.QuantityMaxInt == nil {
		return fmt.Errorf("cargo %q has no usable quantity (raw %q)", c.Name, c.Quantity)
	}
	if *c.QuantityMinInt <= 0 || *c.QuantityMaxInt <= 0 {
		return fmt.Errorf("cargo %q has non-positive quantity (raw %q)", c.Name, c.Quantity)
	}
	return nil
}
