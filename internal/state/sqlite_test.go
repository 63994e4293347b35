package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/aeroscore/internal/testutil"
	"github.com/leapstack-labs/aeroscore/pkg/core"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(testutil.NewTestLogger(t))
	require.NoError(t, store.Open(":memory:"))
	require.NoError(t, store.InitSchema())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// tick makes the store clock advance one second per call.
func tick(store *SQLiteStore) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	store.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func TestSQLiteStore_InitSchema(t *testing.T) {
	store := setupTestStore(t)

	for _, table := range []string{"runs", "artifacts"} {
		rows, err := store.db.Query("SELECT 1 FROM " + table + " LIMIT 1")
		require.NoError(t, err, table)
		_ = rows.Close()
	}

	v, err := store.MigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	// Running migrations again is a no-op.
	require.NoError(t, store.InitSchema())
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore(nil)
	_, err := store.CreateRun("compile", "", "")
	assert.ErrorIs(t, err, errNotOpened)
	assert.ErrorIs(t, store.InitSchema(), errNotOpened)
	assert.NoError(t, store.Close())
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	tests := []struct {
		name    string
		status  core.RunStatus
		errMsg  string
		wantErr string
	}{
		{name: "completed", status: core.RunStatusCompleted},
		{name: "failed", status: core.RunStatusFailed, errMsg: "scoring: no usable tables", wantErr: "scoring: no usable tables"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := setupTestStore(t)

			run, err := store.CreateRun("compile", "cat123", "rules456")
			require.NoError(t, err)
			assert.NotEmpty(t, run.ID)
			assert.Equal(t, core.RunStatusRunning, run.Status)

			got, err := store.GetRun(run.ID)
			require.NoError(t, err)
			assert.Equal(t, run, got)
			assert.Nil(t, got.CompletedAt)

			require.NoError(t, store.CompleteRun(run.ID, tt.status, tt.errMsg))

			got, err = store.GetRun(run.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, tt.wantErr, got.Error)
			assert.Equal(t, "cat123", got.CatalogHash)
			assert.Equal(t, "rules456", got.RulesHash)
			require.NotNil(t, got.CompletedAt)
			assert.False(t, got.CompletedAt.Before(got.StartedAt))
		})
	}
}

func TestSQLiteStore_RunNotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetRun("missing")
	assert.ErrorContains(t, err, "run not found")

	err = store.CompleteRun("missing", core.RunStatusCompleted, "")
	assert.ErrorContains(t, err, "run not found")
}

func TestSQLiteStore_LatestAndList(t *testing.T) {
	store := setupTestStore(t)
	tick(store)

	latest, err := store.GetLatestRun()
	require.NoError(t, err)
	assert.Nil(t, latest)

	var ids []string
	for _, cmd := range []string{"exclusions", "scoring", "assemble"} {
		run, err := store.CreateRun(cmd, "", "")
		require.NoError(t, err)
		ids = append(ids, run.ID)
	}

	latest, err = store.GetLatestRun()
	require.NoError(t, err)
	assert.Equal(t, ids[2], latest.ID)
	assert.Equal(t, "assemble", latest.Command)

	runs, err := store.ListRuns(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[1], runs[1].ID)

	runs, err = store.ListRuns(0)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestSQLiteStore_Artifacts(t *testing.T) {
	store := setupTestStore(t)
	tick(store)

	first, err := store.CreateRun("compile", "", "")
	require.NoError(t, err)
	second, err := store.CreateRun("scoring", "", "")
	require.NoError(t, err)

	for _, a := range []*core.Artifact{
		{RunID: first.ID, Stage: "exclusions", Path: "out/exclusions.sql", SHA256: "aa", Bytes: 10, Changed: true},
		{RunID: first.ID, Stage: "scoring", Path: "out/scoring.sql", SHA256: "bb", Bytes: 20, Changed: true},
		{RunID: second.ID, Stage: "scoring", Path: "out/scoring.sql", SHA256: "bb", Bytes: 20, Changed: false},
	} {
		require.NoError(t, store.RecordArtifact(a))
		assert.NotEmpty(t, a.ID)
	}

	arts, err := store.GetArtifactsForRun(first.ID)
	require.NoError(t, err)
	require.Len(t, arts, 2)
	assert.Equal(t, "exclusions", arts[0].Stage)
	assert.Equal(t, "scoring", arts[1].Stage)
	assert.True(t, arts[1].Changed)
	assert.Equal(t, int64(20), arts[1].Bytes)

	latest, err := store.GetLatestArtifact("scoring")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, second.ID, latest.RunID)
	assert.False(t, latest.Changed)

	none, err := store.GetLatestArtifact("assemble")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestSQLiteStore_ArtifactNeedsRun(t *testing.T) {
	store := setupTestStore(t)

	err := store.RecordArtifact(&core.Artifact{Stage: "scoring"})
	assert.ErrorContains(t, err, "has no run")

	err = store.RecordArtifact(&core.Artifact{RunID: "ghost", Stage: "scoring"})
	assert.Error(t, err, "foreign key")
}

func TestSQLiteStore_FilePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	store := NewSQLiteStore(nil)
	require.NoError(t, store.Open(path))
	require.NoError(t, store.InitSchema())
	run, err := store.CreateRun("compile", "c", "r")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened := NewSQLiteStore(nil)
	require.NoError(t, reopened.Open(path))
	defer func() { _ = reopened.Close() }()
	require.NoError(t, reopened.InitSchema())

	got, err := reopened.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, "compile", got.Command)
}
