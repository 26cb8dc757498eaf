package enrich

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/eccleston-labs/tally-enricher/internal/model"
	"github.com/eccleston-labs/tally-enricher/internal/money"
	"github.com/eccleston-labs/tally-enricher/pkg/pdl"
)

// PDL is the structured company lookup adapter. It owns the numeric
// fields of CompanyEnrichment.
type PDL struct {
	client  pdl.Client
	timeout time.Duration
}

// NewPDL creates the structured lookup adapter. A missing API key is a
// constructor error for this adapter only; the rest of the pipeline
// keeps running without it.
func NewPDL(apiKey string, timeout time.Duration, opts ...pdl.Option) (*PDL, error) {
	if apiKey == "" {
		return nil, eris.New("enrich: pdl api key not configured")
	}
	return &PDL{client: pdl.NewClient(apiKey, opts...), timeout: timeout}, nil
}

func (a *PDL) Name() string { return "pdl" }

// Fetch looks the domain up and extracts headcount, funding and the
// descriptive fields. Numeric-like strings ("$1,200,000") are coerced.
func (a *PDL) Fetch(ctx context.Context, sub Subject) Partial {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.client.EnrichCompany(ctx, pdl.EnrichRequest{
		Website:          sub.Domain,
		IncludeIfMatched: true,
	})
	if err != nil {
		var se *pdl.StatusError
		if errors.As(err, &se) {
			return Partial{Err: fmt.Sprintf("status %d: %s", se.StatusCode, truncate(se.Body, 200))}
		}
		return Partial{Err: err.Error()}
	}

	data := resp.Payload()
	if data == nil {
		return Partial{Err: "empty response body"}
	}

	company := &model.CompanyEnrichment{
		Name:               firstString(data, "name", "display_name"),
		Sector:             firstString(data, "industry"),
		Size:               firstString(data, "size"),
		Type:               firstString(data, "type"),
		EmployeeCount:      toFloat(data["employee_count"]),
		TotalFundingRaised: toFloat(data["total_funding_raised"]),
	}
	return Partial{Company: company}
}

// toFloat coerces a loosely typed JSON value to a number. Strings go
// through the money digit scrub so "$1,200,000" works.
func toFloat(v any) *float64 {
	switch t := v.(type) {
	case float64:
		return model.Float(t)
	case string:
		if n, ok := money.Number(t); ok {
			return model.Float(n)
		}
	}
	return nil
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
