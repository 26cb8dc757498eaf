package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/eccleston-labs/tally-enricher/internal/cache"
	"github.com/eccleston-labs/tally-enricher/internal/config"
	"github.com/eccleston-labs/tally-enricher/internal/enrich"
	"github.com/eccleston-labs/tally-enricher/internal/store"
	"github.com/eccleston-labs/tally-enricher/pkg/pdl"
	"github.com/eccleston-labs/tally-enricher/pkg/serpapi"
)

// newStore opens the configured backend and runs migrations.
func newStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// buildOrchestrator assembles the enrichment fan-out from whatever
// provider keys are configured. A missing key disables that adapter
// only; the pipeline runs with the rest.
func buildOrchestrator(cfg *config.Config, c *cache.Cache) *enrich.Orchestrator {
	log := zap.L().Named("wire")
	providerTimeout := time.Duration(cfg.Enrich.ProviderTimeoutSecs) * time.Second

	var structured, search, advisor enrich.Adapter

	if p, err := enrich.NewPDL(cfg.PDL.Key, providerTimeout, pdl.WithBaseURL(cfg.PDL.BaseURL)); err != nil {
		log.Info("structured lookup disabled", zap.Error(err))
	} else {
		structured = p
	}

	serpOpts := enrich.DefaultSerpOptions()
	serpOpts.MinRevenueUSD = cfg.Scoring.MinRevenueUSD
	serpOpts.RecencyYears = cfg.Scoring.RecencyYears
	if s, err := enrich.NewSerp(cfg.Serp.Key, serpOpts,
		serpapi.WithBaseURL(cfg.Serp.BaseURL),
		serpapi.WithNumResults(cfg.Serp.NumResults),
		serpapi.WithRateLimit(rate.Limit(cfg.Serp.RatePerSec), 1),
	); err != nil {
		log.Info("search signal disabled", zap.Error(err))
	} else {
		search = s
	}

	claudeOpts := enrich.DefaultClaudeOptions()
	claudeOpts.Model = cfg.Anthropic.Model
	claudeOpts.MaxTokens = int64(cfg.Anthropic.MaxTokens)
	if a, err := enrich.NewClaude(cfg.Anthropic.Key, claudeOpts); err != nil {
		log.Info("advisory evaluator disabled", zap.Error(err))
	} else {
		advisor = a
	}

	return enrich.NewOrchestrator(c, structured, search, advisor)
}
