// Package normalize turns heterogeneous inbound payloads (webhook bodies,
// query params, form fields) into the canonical Answers record and derives
// a single domain to enrich. All functions are pure.
package normalize

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/eccleston-labs/tally-enricher/internal/model"
)

// DomainFromEmail returns the lowercased part after "@" when the email has
// exactly one "@"; any other shape yields "". Callers treat "" as
// "cannot enrich, route to the disqualify path", not as an error. The
// local part is not validated; only the split count matters.
func DomainFromEmail(email string) string {
	parts := strings.Split(strings.TrimSpace(email), "@")
	if len(parts) != 2 {
		return ""
	}
	return strings.ToLower(parts[1])
}

// NormalizeWebsite accepts a bare domain or a URL with or without scheme
// and returns a lowercase hostname, or "" on unparsable input.
func NormalizeWebsite(input string) string {
	s := strings.TrimSpace(input)
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if !strings.Contains(host, ".") {
		return ""
	}
	return host
}

// DeriveDomain picks the domain to enrich. An explicit website field beats
// a domain derived from the email address.
func DeriveDomain(answers model.Answers) string {
	if host := NormalizeWebsite(answers[model.FieldWebsite]); host != "" {
		return host
	}
	return DomainFromEmail(answers[model.FieldEmail])
}

var nonDigit = regexp.MustCompile(`[^\d]`)

// ParseSeats coerces a numeric-like string ("1,000", "250 seats") to an
// int. Returns nil when no digits are present.
func ParseSeats(s string) *int {
	digits := nonDigit.ReplaceAllString(s, "")
	if digits == "" {
		return nil
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return nil
	}
	return model.Int(n)
}

var (
	sizePlus  = regexp.MustCompile(`^([\d,.]+)\s*\+$`)
	sizeRange = regexp.MustCompile(`^([\d,.]+)\s*-\s*([\d,.]+)$`)
)

// ParseSizeBucket maps a company-size bucket ("1,000+", "50-200", "500")
// to a representative employee count: lower bound for open buckets,
// midpoint for ranges. Returns nil for non-numeric buckets.
func ParseSizeBucket(s string) *int {
	str := strings.ToLower(strings.TrimSpace(s))
	if str == "" {
		return nil
	}
	if m := sizePlus.FindStringSubmatch(str); m != nil {
		return ParseSeats(m[1])
	}
	if m := sizeRange.FindStringSubmatch(str); m != nil {
		lo := ParseSeats(m[1])
		hi := ParseSeats(m[2])
		if lo == nil || hi == nil {
			return nil
		}
		return model.Int((*lo + *hi + 1) / 2)
	}
	return ParseSeats(str)
}

// Derive computes the per-request Derived record from the answers.
func Derive(answers model.Answers) model.Derived {
	return model.Derived{
		Email:       strings.TrimSpace(answers[model.FieldEmail]),
		Domain:      DeriveDomain(answers),
		Website:     NormalizeWebsite(answers[model.FieldWebsite]),
		CompanyName: strings.TrimSpace(answers[model.FieldCompanyName]),
		Seats:       ParseSeats(answers[model.FieldSeats]),
		CompanySize: strings.TrimSpace(answers[model.FieldCompanySize]),
		Computers:   strings.TrimSpace(answers[model.FieldComputers]),
	}
}

// tallyField is one entry of the Tally webhook "fields" array.
type tallyField struct {
	Key   string          `json:"key"`
	Label string          `json:"label"`
	ID    string          `json:"id"`
	Value json.RawMessage `json:"value"`
}

type tallyData struct {
	ResponseID string       `json:"responseId"`
	Fields     []tallyField `json:"fields"`
}

type tallyEnvelope struct {
	Event *struct {
		Data *tallyData `json:"data"`
	} `json:"event"`
	Data *tallyData `json:"data"`

	ResponseID   string `json:"responseId"`
	CompanyName  string `json:"company_name"`
	WorkEmail    string `json:"work_email"`
	CompanySize  string `json:"company_size"`
	CompanySeats string `json:"company_seats"`
	Computers    string `json:"computers"`
	Website      string `json:"website"`
}

// FromTallyWebhook maps a raw webhook body to a submission id and Answers.
// It accepts both the Tally envelope (event.data.fields, a label/value
// array) and a flat JSON object with snake_case field names. Every
// canonical label is present in the result, empty when unanswered.
func FromTallyWebhook(raw []byte) (string, model.Answers, error) {
	var env tallyEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", nil, err
	}

	answers := model.Answers{
		model.FieldCompanyName: "",
		model.FieldEmail:       "",
		model.FieldCompanySize: "",
		model.FieldSeats:       "",
		model.FieldComputers:   "",
		model.FieldWebsite:     "",
	}

	data := env.Data
	if env.Event != nil && env.Event.Data != nil {
		data = env.Event.Data
	}

	if data != nil && len(data.Fields) > 0 {
		for _, f := range data.Fields {
			label := f.Label
			if label == "" {
				label = f.Key
			}
			if label == "" {
				label = f.ID
			}
			if label == "" {
				continue
			}
			answers[label] = rawToString(f.Value)
		}
		return data.ResponseID, answers, nil
	}

	answers[model.FieldCompanyName] = env.CompanyName
	answers[model.FieldEmail] = env.WorkEmail
	answers[model.FieldCompanySize] = env.CompanySize
	answers[model.FieldSeats] = env.CompanySeats
	answers[model.FieldComputers] = env.Computers
	answers[model.FieldWebsite] = env.Website

	sid := env.ResponseID
	if sid == "" {
		sid = uuid.New().String()
	}
	return sid, answers, nil
}

// rawToString renders a loosely-typed JSON value as a plain string.
func rawToString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b)
	}
	trimmed := strings.Trim(string(raw), `"`)
	if trimmed == "null" {
		return ""
	}
	return trimmed
}

// NormalizeDestination upgrades a bare hostname destination to https and
// passes already-absolute URLs through unchanged. Falls back when empty.
func NormalizeDestination(rawURL, fallback string) string {
	if rawURL == "" {
		return fallback
	}
	if strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "https://") {
		return rawURL
	}
	return "https://" + rawURL
}
