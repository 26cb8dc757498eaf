package enrich

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eccleston-labs/tally-enricher/internal/cache"
	"github.com/eccleston-labs/tally-enricher/internal/model"
	"github.com/eccleston-labs/tally-enricher/internal/normalize"
)

// Orchestrator runs every configured adapter concurrently and merges
// their partial outputs. Providers own disjoint fields: the structured
// adapter owns CompanyEnrichment, the search and qualitative adapters
// both produce AiDecision with the search adapter taking precedence.
type Orchestrator struct {
	cache      *cache.Cache
	structured Adapter
	search     Adapter
	advisor    Adapter
	log        *zap.Logger
}

// NewOrchestrator wires the adapters. Any adapter may be nil when its
// provider is not configured; nil slots get a debug entry per request
// instead of failing startup.
func NewOrchestrator(c *cache.Cache, structured, search, advisor Adapter) *Orchestrator {
	return &Orchestrator{
		cache:      c,
		structured: structured,
		search:     search,
		advisor:    advisor,
		log:        zap.L().Named("enrich"),
	}
}

// EnrichAll derives the domain once, consults the cache, fans out to
// the adapters and merges whatever settles. One provider's failure
// populates only its own debug slot; the pipeline always returns a
// usable result. The workspace criteria, when present, override the
// adapters' configured revenue floor.
func (o *Orchestrator) EnrichAll(ctx context.Context, answers model.Answers, criteria *model.WorkspaceCriteria) *model.EnrichedResult {
	res := &model.EnrichedResult{
		Derived: normalize.Derive(answers),
		Debug:   map[string]string{},
	}

	// No domain means nothing to enrich. Expected outcome, not an error.
	if res.Derived.Domain == "" {
		res.Debug["enrich"] = "no domain derivable from answers"
		return res
	}

	if cached := o.cache.GetEnrichment(ctx, res.Derived.Domain); cached != nil {
		res.Company = cached.Company
		res.AiDecision = cached.AiDecision
		res.Debug["cache"] = "hit"
	}

	sub := Subject{Domain: res.Derived.Domain, CompanyName: res.Derived.CompanyName}
	if criteria != nil {
		sub.MinRevenueUSD = criteria.MinRevenueUSD
	}

	var structuredPart, searchPart, advisorPart Partial
	ran := false

	// Settle-all semantics: every goroutine returns nil so one
	// provider's failure cannot cancel a sibling's request.
	g, gCtx := errgroup.WithContext(ctx)

	if res.Company == nil {
		if o.structured == nil {
			res.Debug["pdl"] = "not configured: missing api key"
		} else {
			ran = true
			g.Go(func() error {
				structuredPart = o.structured.Fetch(gCtx, sub)
				return nil
			})
		}
	}

	if res.AiDecision == nil {
		if o.search == nil {
			res.Debug["serp"] = "not configured: missing api key"
		} else {
			ran = true
			g.Go(func() error {
				searchPart = o.search.Fetch(gCtx, sub)
				return nil
			})
		}
		if o.advisor == nil {
			res.Debug["claude"] = "not configured: missing api key"
		} else {
			ran = true
			g.Go(func() error {
				advisorPart = o.advisor.Fetch(gCtx, sub)
				return nil
			})
		}
	}

	_ = g.Wait()

	// Add-only merge. The search verdict beats the qualitative one; a
	// slot already filled (from cache) is never overwritten.
	if structuredPart.Company != nil && res.Company == nil {
		res.Company = structuredPart.Company
	}
	if structuredPart.Err != "" {
		res.Debug["pdl"] = structuredPart.Err
	}
	if searchPart.Decision != nil && res.AiDecision == nil {
		res.AiDecision = searchPart.Decision
	}
	if searchPart.Err != "" {
		res.Debug["serp"] = searchPart.Err
	}
	if advisorPart.Decision != nil && res.AiDecision == nil {
		res.AiDecision = advisorPart.Decision
	}
	if advisorPart.Err != "" {
		res.Debug["claude"] = advisorPart.Err
	}

	if ran && (res.Company != nil || res.AiDecision != nil) {
		o.cache.SetEnrichment(ctx, res.Derived.Domain, res)
	}

	o.log.Debug("enrichment settled",
		zap.String("domain", res.Derived.Domain),
		zap.Bool("company", res.Company != nil),
		zap.Bool("decision", res.AiDecision != nil),
		zap.Int("debug_entries", len(res.Debug)))

	return res
}
