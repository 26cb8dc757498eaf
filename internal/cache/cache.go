// Package cache is a thin read-through facade over the store's kv table.
// Every failure is treated as a miss: a broken cache must degrade the
// pipeline to slower, never to broken.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/eccleston-labs/tally-enricher/internal/model"
	"github.com/eccleston-labs/tally-enricher/internal/store"
)

const (
	// EnrichmentTTL bounds staleness of company data. Headcount and
	// funding move slowly; a week is fine.
	EnrichmentTTL = 7 * 24 * time.Hour

	// WorkspaceTTL bounds staleness of tenant config after an update
	// that somehow missed the invalidation.
	WorkspaceTTL = 24 * time.Hour
)

// EnrichmentKey returns the cache key for a company domain.
func EnrichmentKey(domain string) string { return "enrichment:" + domain }

// WorkspaceKey returns the cache key for a tenant name.
func WorkspaceKey(name string) string { return "workspace:" + name }

// Cache wraps a store with typed get/set helpers.
type Cache struct {
	store store.Store
	log   *zap.Logger
}

// New creates a Cache over the given store.
func New(st store.Store) *Cache {
	return &Cache{store: st, log: zap.L().Named("cache")}
}

// GetEnrichment returns the cached enrichment for a domain, or nil on miss.
func (c *Cache) GetEnrichment(ctx context.Context, domain string) *model.EnrichedResult {
	raw, err := c.store.CacheGet(ctx, EnrichmentKey(domain))
	if err != nil {
		c.log.Warn("enrichment cache read failed", zap.String("domain", domain), zap.Error(err))
		return nil
	}
	if raw == nil {
		return nil
	}
	var res model.EnrichedResult
	if err := json.Unmarshal(raw, &res); err != nil {
		c.log.Warn("enrichment cache entry corrupt", zap.String("domain", domain), zap.Error(err))
		return nil
	}
	return &res
}

// SetEnrichment writes the enrichment for a domain. Debug entries are
// request-scoped noise and are not persisted.
func (c *Cache) SetEnrichment(ctx context.Context, domain string, res *model.EnrichedResult) {
	if res == nil {
		return
	}
	stored := *res
	stored.Debug = nil
	raw, err := json.Marshal(&stored)
	if err != nil {
		c.log.Warn("enrichment cache marshal failed", zap.String("domain", domain), zap.Error(err))
		return
	}
	if err := c.store.CacheSet(ctx, EnrichmentKey(domain), raw, EnrichmentTTL); err != nil {
		c.log.Warn("enrichment cache write failed", zap.String("domain", domain), zap.Error(err))
	}
}

// GetWorkspace returns the cached workspace config, or nil on miss.
func (c *Cache) GetWorkspace(ctx context.Context, name string) *model.Workspace {
	raw, err := c.store.CacheGet(ctx, WorkspaceKey(name))
	if err != nil {
		c.log.Warn("workspace cache read failed", zap.String("workspace", name), zap.Error(err))
		return nil
	}
	if raw == nil {
		return nil
	}
	var ws model.Workspace
	if err := json.Unmarshal(raw, &ws); err != nil {
		c.log.Warn("workspace cache entry corrupt", zap.String("workspace", name), zap.Error(err))
		return nil
	}
	return &ws
}

// SetWorkspace writes the workspace config.
func (c *Cache) SetWorkspace(ctx context.Context, ws *model.Workspace) {
	if ws == nil {
		return
	}
	raw, err := json.Marshal(ws)
	if err != nil {
		c.log.Warn("workspace cache marshal failed", zap.String("workspace", ws.Name), zap.Error(err))
		return
	}
	if err := c.store.CacheSet(ctx, WorkspaceKey(ws.Name), raw, WorkspaceTTL); err != nil {
		c.log.Warn("workspace cache write failed", zap.String("workspace", ws.Name), zap.Error(err))
	}
}

// InvalidateWorkspace drops the cached config after an update so the next
// read sees the new values immediately.
func (c *Cache) InvalidateWorkspace(ctx context.Context, name string) {
	if err := c.store.CacheDelete(ctx, WorkspaceKey(name)); err != nil {
		c.log.Warn("workspace cache invalidation failed", zap.String("workspace", name), zap.Error(err))
	}
}
