package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eccleston-labs/tally-enricher/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetWorkspace_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT config, created_at, updated_at FROM workspaces WHERE name = \$1`).
		WithArgs("nonexistent").
		WillReturnError(pgx.ErrNoRows)

	ws, err := s.GetWorkspace(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, ws)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetWorkspace_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	config := []byte(`{"workspace_name":"acme","booking_url":"cal.com/acme","criteria":{"min_employees":400}}`)
	mock.ExpectQuery(`SELECT config, created_at, updated_at FROM workspaces`).
		WithArgs("acme").
		WillReturnRows(pgxmock.NewRows([]string{"config", "created_at", "updated_at"}).
			AddRow(config, now, now))

	ws, err := s.GetWorkspace(context.Background(), "acme")
	require.NoError(t, err)
	require.NotNil(t, ws)
	assert.Equal(t, "acme", ws.Name)
	assert.Equal(t, "cal.com/acme", ws.BookingURL)
	require.NotNil(t, ws.Criteria)
	assert.Equal(t, 400.0, *ws.Criteria.MinEmployees)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertWorkspace(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO workspaces .* ON CONFLICT`).
		WithArgs("acme", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertWorkspace(context.Background(), &model.Workspace{
		Name:       "acme",
		BookingURL: "cal.com/acme",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertAnalytics(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO analytics`).
		WithArgs(pgxmock.AnyArg(), "lead_qualification", "a@acme.com", "acme.com", "acme",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.InsertAnalytics(context.Background(), model.AnalyticsEvent{
		Event:         "lead_qualification",
		Email:         "a@acme.com",
		Domain:        "acme.com",
		WorkspaceName: "acme",
		Qualified:     model.QualificationResult{Approved: true, Reason: "employees"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CacheGet_Miss(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT value FROM kv_cache`).
		WithArgs("enrichment:unknown.com").
		WillReturnError(pgx.ErrNoRows)

	val, err := s.CacheGet(context.Background(), "enrichment:unknown.com")
	require.NoError(t, err)
	assert.Nil(t, val)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CacheGet_Hit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT value FROM kv_cache`).
		WithArgs("enrichment:acme.com").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow([]byte(`{"employee_count":500}`)))

	val, err := s.CacheGet(context.Background(), "enrichment:acme.com")
	require.NoError(t, err)
	assert.JSONEq(t, `{"employee_count":500}`, string(val))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CacheSet_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO kv_cache .* ON CONFLICT`).
		WithArgs("workspace:acme", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.CacheSet(context.Background(), "workspace:acme", []byte(`{}`), 24*time.Hour)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CacheDelete(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM kv_cache WHERE key = \$1`).
		WithArgs("workspace:acme").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	err := s.CacheDelete(context.Background(), "workspace:acme")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteExpiredCache(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM kv_cache WHERE expires_at`).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := s.DeleteExpiredCache(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
