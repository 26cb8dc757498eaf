// Package store persists workspaces, analytics events, and the TTL
// key-value cache backing the enrichment pipeline. Two backends are
// provided: sqlite (default, zero-dependency deploys) and postgres.
package store

import (
	"context"
	"time"

	"github.com/eccleston-labs/tally-enricher/internal/model"
)

// Store defines the persistence interface for the qualification pipeline.
type Store interface {
	// Workspaces
	GetWorkspace(ctx context.Context, name string) (*model.Workspace, error)
	UpsertWorkspace(ctx context.Context, ws *model.Workspace) error

	// Analytics (fire-and-forget at call sites; the store itself reports errors)
	InsertAnalytics(ctx context.Context, ev model.AnalyticsEvent) error

	// TTL key-value cache. CacheGet returns (nil, nil) on miss or expiry.
	CacheGet(ctx context.Context, key string) ([]byte, error)
	CacheSet(ctx context.Context, key string, value []byte, ttl time.Duration) error
	CacheDelete(ctx context.Context, key string) error
	DeleteExpiredCache(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
