package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/eccleston-labs/tally-enricher/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS workspaces (
	name       TEXT PRIMARY KEY,
	config     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS analytics (
	id             TEXT PRIMARY KEY,
	event          TEXT NOT NULL,
	email          TEXT NOT NULL,
	domain         TEXT NOT NULL,
	workspace_name TEXT NOT NULL,
	qualified      JSONB NOT NULL,
	ts             TIMESTAMPTZ NOT NULL,
	employees      DOUBLE PRECISION,
	funding        DOUBLE PRECISION,
	sector         TEXT,
	size           TEXT
);

CREATE TABLE IF NOT EXISTS kv_cache (
	key        TEXT PRIMARY KEY,
	value      BYTEA NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analytics_workspace ON analytics(workspace_name);
CREATE INDEX IF NOT EXISTS idx_analytics_ts ON analytics(ts);
CREATE INDEX IF NOT EXISTS idx_kv_cache_expires_at ON kv_cache(expires_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetWorkspace(ctx context.Context, name string) (*model.Workspace, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT config, created_at, updated_at FROM workspaces WHERE name = $1`,
		name,
	)

	var configJSON []byte
	var createdAt, updatedAt time.Time
	err := row.Scan(&configJSON, &createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get workspace %s", name)
	}

	var ws model.Workspace
	if err := json.Unmarshal(configJSON, &ws); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal workspace")
	}
	ws.Name = name
	ws.CreatedAt = createdAt
	ws.UpdatedAt = updatedAt
	return &ws, nil
}

func (s *PostgresStore) UpsertWorkspace(ctx context.Context, ws *model.Workspace) error {
	configJSON, err := json.Marshal(ws)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal workspace")
	}

	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO workspaces (name, config, created_at, updated_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (name) DO UPDATE SET config = EXCLUDED.config, updated_at = EXCLUDED.updated_at`,
		ws.Name, configJSON, now, now,
	)
	return eris.Wrapf(err, "postgres: upsert workspace %s", ws.Name)
}

func (s *PostgresStore) InsertAnalytics(ctx context.Context, ev model.AnalyticsEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.TS.IsZero() {
		ev.TS = time.Now().UTC()
	}

	qualifiedJSON, err := json.Marshal(ev.Qualified)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal qualified")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO analytics (id, event, email, domain, workspace_name, qualified, ts, employees, funding, sector, size)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		ev.ID, ev.Event, ev.Email, ev.Domain, ev.WorkspaceName,
		qualifiedJSON, ev.TS, ev.Employees, ev.Funding, nullIfEmpty(ev.Sector), nullIfEmpty(ev.Size),
	)
	return eris.Wrap(err, "postgres: insert analytics")
}

func (s *PostgresStore) CacheGet(ctx context.Context, key string) ([]byte, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT value FROM kv_cache WHERE key = $1 AND expires_at > now()`,
		key,
	)

	var value []byte
	err := row.Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: cache get %s", key)
	}
	return value, nil
}

func (s *PostgresStore) CacheSet(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	expiresAt := time.Now().UTC().Add(ttl)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO kv_cache (key, value, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`,
		key, value, expiresAt,
	)
	return eris.Wrapf(err, "postgres: cache set %s", key)
}

func (s *PostgresStore) CacheDelete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM kv_cache WHERE key = $1`, key)
	return eris.Wrapf(err, "postgres: cache delete %s", key)
}

func (s *PostgresStore) DeleteExpiredCache(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM kv_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired cache")
	}
	return int(tag.RowsAffected()), nil
}
