// Package enrich fans out to the external data providers and merges
// their partial outputs into a single per-request result.
package enrich

import (
	"context"

	"github.com/eccleston-labs/tally-enricher/internal/model"
)

// Subject identifies the company being enriched. Domain is required;
// CompanyName is a hint used by the attribution checks. MinRevenueUSD,
// when set, overrides the adapter's configured revenue floor with the
// workspace's own threshold.
type Subject struct {
	Domain        string
	CompanyName   string
	MinRevenueUSD *float64
}

// Partial is one provider's contribution. A provider never returns a Go
// error to the orchestrator: failures populate Err, the debug descriptor
// surfaced in EnrichedResult.Debug. Company and Decision are owned by
// disjoint providers and merged add-only.
type Partial struct {
	Company  *model.CompanyEnrichment
	Decision *model.AiDecision
	Err      string
}

// Adapter is the provider contract. Fetch owns its own timeout and must
// not panic or propagate errors; a timeout looks the same as a
// provider-side failure.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, sub Subject) Partial
}
