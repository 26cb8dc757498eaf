package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/eccleston-labs/tally-enricher/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS workspaces (
	name       TEXT PRIMARY KEY,
	config     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS analytics (
	id             TEXT PRIMARY KEY,
	event          TEXT NOT NULL,
	email          TEXT NOT NULL,
	domain         TEXT NOT NULL,
	workspace_name TEXT NOT NULL,
	qualified      TEXT NOT NULL,
	ts             DATETIME NOT NULL,
	employees      REAL,
	funding        REAL,
	sector         TEXT,
	size           TEXT
);

CREATE TABLE IF NOT EXISTS kv_cache (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analytics_workspace ON analytics(workspace_name);
CREATE INDEX IF NOT EXISTS idx_analytics_ts ON analytics(ts);
CREATE INDEX IF NOT EXISTS idx_kv_cache_expires_at ON kv_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetWorkspace(ctx context.Context, name string) (*model.Workspace, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT config, created_at, updated_at FROM workspaces WHERE name = ?`,
		name,
	)

	var configJSON string
	var createdAt, updatedAt time.Time
	err := row.Scan(&configJSON, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get workspace %s", name)
	}

	var ws model.Workspace
	if err := json.Unmarshal([]byte(configJSON), &ws); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal workspace")
	}
	ws.Name = name
	ws.CreatedAt = createdAt
	ws.UpdatedAt = updatedAt
	return &ws, nil
}

func (s *SQLiteStore) UpsertWorkspace(ctx context.Context, ws *model.Workspace) error {
	configJSON, err := json.Marshal(ws)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal workspace")
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO workspaces (name, config, created_at, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET config = excluded.config, updated_at = excluded.updated_at`,
		ws.Name, string(configJSON), now, now,
	)
	return eris.Wrapf(err, "sqlite: upsert workspace %s", ws.Name)
}

func (s *SQLiteStore) InsertAnalytics(ctx context.Context, ev model.AnalyticsEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.TS.IsZero() {
		ev.TS = time.Now().UTC()
	}

	qualifiedJSON, err := json.Marshal(ev.Qualified)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal qualified")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO analytics (id, event, email, domain, workspace_name, qualified, ts, employees, funding, sector, size)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Event, ev.Email, ev.Domain, ev.WorkspaceName,
		string(qualifiedJSON), ev.TS, ev.Employees, ev.Funding, nullIfEmpty(ev.Sector), nullIfEmpty(ev.Size),
	)
	return eris.Wrap(err, "sqlite: insert analytics")
}

// CountAnalytics reports the number of recorded qualification events.
func (s *SQLiteStore) CountAnalytics(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM analytics`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count analytics")
}

func (s *SQLiteStore) CacheGet(ctx context.Context, key string) ([]byte, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv_cache WHERE key = ? AND expires_at > datetime('now')`,
		key,
	)

	var value []byte
	err := row.Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: cache get %s", key)
	}
	return value, nil
}

func (s *SQLiteStore) CacheSet(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	expiresAt := time.Now().UTC().Add(ttl)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_cache (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expiresAt,
	)
	return eris.Wrapf(err, "sqlite: cache set %s", key)
}

func (s *SQLiteStore) CacheDelete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv_cache WHERE key = ?`, key)
	return eris.Wrapf(err, "sqlite: cache delete %s", key)
}

func (s *SQLiteStore) DeleteExpiredCache(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM kv_cache WHERE expires_at <= datetime('now')`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired cache")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
