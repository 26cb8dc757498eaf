// Package money parses ad hoc money expressions found in search snippets
// ("$1.2B", "450m", "32 million USD") with an explicit grammar: optional
// currency token, number with comma/space grouping, optional magnitude
// suffix, optional trailing currency. This is the most silently-wrong-prone
// part of the search-signal adapter, so it lives in a pure package with
// exhaustive tests.
package money

import (
	"regexp"
	"strconv"
	"strings"
)

// Amount is a parsed money expression before USD conversion.
type Amount struct {
	Value    float64
	Currency string // normalized token: "$", "USD", "GBP", ... or ""
	Unit     string // "million", "billion", or ""
}

var moneyRe = regexp.MustCompile(
	`(?i)(?:(USD|US\$|\$|GBP|£|EUR|€)\s*)?` +
		`(\d{1,3}(?:[,\s]\d{3})*(?:\.\d+)?|\d+(?:\.\d+)?)` +
		`(?:\s*(billion|bn|b|million|mm|m))?` +
		`(?:\s*(USD|US\$|GBP|EUR))?`)

// Parse extracts the first money-like expression from s.
func Parse(s string) (Amount, bool) {
	m := moneyRe.FindStringSubmatch(s)
	if m == nil {
		return Amount{}, false
	}

	currency := m[1]
	if currency == "" {
		currency = m[4]
	}
	currency = strings.ToUpper(currency)

	raw := strings.NewReplacer(",", "", " ", "").Replace(m[2])
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Amount{}, false
	}

	var unit string
	switch strings.ToLower(m[3]) {
	case "billion", "bn", "b":
		unit = "billion"
	case "million", "mm", "m":
		unit = "million"
	}

	return Amount{Value: value, Currency: currency, Unit: unit}, true
}

// USD converts the amount to a plain dollar figure. Conservative by
// contract: only unlabeled or explicitly USD-denominated figures convert;
// GBP/EUR and friends are rejected rather than guessed at.
func (a Amount) USD() (float64, bool) {
	switch a.Currency {
	case "", "$", "US$", "USD":
	default:
		return 0, false
	}
	v := a.Value
	switch a.Unit {
	case "million":
		v *= 1_000_000
	case "billion":
		v *= 1_000_000_000
	}
	return v, true
}

var yearRe = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)

// Year returns the first plausible calendar year in s, or 0.
func Year(s string) int {
	m := yearRe.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	y, _ := strconv.Atoi(m[1])
	return y
}

var revenueRe = regexp.MustCompile(
	`(?i)\b(revenue|arr|annual\s+revenue|fy\d{2,4}\s+revenue|fiscal\s+year\s+\d{4}\s+revenue)\b`)

// ImpliesRevenue reports whether the text carries a revenue-indicating
// keyword. Required near any figure to avoid attributing funding totals
// or unrelated numbers to revenue.
func ImpliesRevenue(s string) bool {
	return revenueRe.MatchString(s)
}

// HasCurrencyFigure reports whether s contains a money expression with
// an explicit currency token or magnitude unit. Bare numbers (years,
// counts) do not qualify; this backs the evidence check on advisory
// approval reasons.
func HasCurrencyFigure(s string) bool {
	for _, m := range moneyRe.FindAllStringSubmatch(s, -1) {
		if m[1] != "" || m[3] != "" || m[4] != "" {
			return true
		}
	}
	return false
}

var digitsRe = regexp.MustCompile(`[^\d.]`)

// Number coerces a numeric-like string with currency symbols and grouping
// ("$1,200,000.50") to a float. Returns false when no digits remain.
func Number(s string) (float64, bool) {
	cleaned := digitsRe.ReplaceAllString(s, "")
	if cleaned == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
