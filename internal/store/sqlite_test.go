package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eccleston-labs/tally-enricher/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// --- Workspaces ---

func TestSQLite_Workspace_UpsertAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	ws := &model.Workspace{
		Name: "acme",
		Criteria: &model.WorkspaceCriteria{
			MinEmployees:  model.Float(400),
			MinFundingUSD: model.Float(10_000_000),
		},
		BookingURL:  "cal.com/acme",
		FallbackURL: "https://acme.com/thanks",
	}
	require.NoError(t, st.UpsertWorkspace(ctx, ws))

	got, err := st.GetWorkspace(ctx, "acme")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "acme", got.Name)
	require.NotNil(t, got.Criteria)
	assert.Equal(t, 400.0, *got.Criteria.MinEmployees)
	assert.Equal(t, "cal.com/acme", got.BookingURL)
}

func TestSQLite_Workspace_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.GetWorkspace(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_Workspace_UpsertOverwrites(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertWorkspace(ctx, &model.Workspace{
		Name:       "acme",
		BookingURL: "cal.com/old",
	}))
	require.NoError(t, st.UpsertWorkspace(ctx, &model.Workspace{
		Name:       "acme",
		BookingURL: "cal.com/new",
	}))

	got, err := st.GetWorkspace(ctx, "acme")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "cal.com/new", got.BookingURL)
}

// --- Cache ---

func TestSQLite_Cache_SetAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.CacheSet(ctx, "enrichment:acme.com", []byte(`{"employee_count": 500}`), time.Hour))

	val, err := st.CacheGet(ctx, "enrichment:acme.com")
	require.NoError(t, err)
	assert.JSONEq(t, `{"employee_count": 500}`, string(val))
}

func TestSQLite_Cache_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	val, err := st.CacheGet(context.Background(), "enrichment:nope.com")
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestSQLite_Cache_Expired(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.CacheSet(ctx, "enrichment:stale.com", []byte(`{}`), -time.Hour))

	val, err := st.CacheGet(ctx, "enrichment:stale.com")
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestSQLite_Cache_Overwrite(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.CacheSet(ctx, "workspace:acme", []byte(`old`), time.Hour))
	require.NoError(t, st.CacheSet(ctx, "workspace:acme", []byte(`new`), time.Hour))

	val, err := st.CacheGet(ctx, "workspace:acme")
	require.NoError(t, err)
	assert.Equal(t, "new", string(val))
}

func TestSQLite_Cache_Delete(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.CacheSet(ctx, "workspace:acme", []byte(`v`), time.Hour))
	require.NoError(t, st.CacheDelete(ctx, "workspace:acme"))

	val, err := st.CacheGet(ctx, "workspace:acme")
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestSQLite_Cache_DeleteExpired(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.CacheSet(ctx, "a", []byte(`1`), -time.Hour))
	require.NoError(t, st.CacheSet(ctx, "b", []byte(`2`), -time.Minute))
	require.NoError(t, st.CacheSet(ctx, "c", []byte(`3`), time.Hour))

	n, err := st.DeleteExpiredCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	val, err := st.CacheGet(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, "3", string(val))
}

// --- Analytics ---

func TestSQLite_InsertAnalytics(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	err := st.InsertAnalytics(ctx, model.AnalyticsEvent{
		Event:         "lead_qualification",
		Email:         "a@acme.com",
		Domain:        "acme.com",
		WorkspaceName: "acme",
		Qualified:     model.QualificationResult{Approved: true, Reason: "employees"},
		Employees:     model.Float(500),
	})
	require.NoError(t, err)

	// Second insert gets its own generated id, so no conflict.
	err = st.InsertAnalytics(ctx, model.AnalyticsEvent{
		Event:         "lead_qualification",
		Email:         "b@acme.com",
		Domain:        "acme.com",
		WorkspaceName: "acme",
		Qualified:     model.QualificationResult{Approved: false, Reason: "no criteria met"},
	})
	require.NoError(t, err)
}
