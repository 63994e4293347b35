package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/aeroscore/internal/artifact"
	"github.com/leapstack-labs/aeroscore/internal/catalog"
	"github.com/leapstack-labs/aeroscore/internal/compiler"
	"github.com/leapstack-labs/aeroscore/internal/rules"
	"github.com/leapstack-labs/aeroscore/internal/testutil"
	"github.com/leapstack-labs/aeroscore/pkg/adapter"
	"github.com/leapstack-labs/aeroscore/pkg/core"
	"github.com/leapstack-labs/aeroscore/pkg/dialect"
	"github.com/leapstack-labs/aeroscore/pkg/dialects/duckdb"
	"github.com/leapstack-labs/aeroscore/pkg/dialects/postgres"
)

func repoRoot() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..")
}

// mockAdapter runs statements against sqlmock.
type mockAdapter struct {
	adapter.BaseSQLAdapter
	dialect *dialect.Dialect
}

func (m *mockAdapter) Connect(context.Context, adapter.Config) error { return nil }

func (m *mockAdapter) GetTableMetadata(ctx context.Context, table string) (*core.TableMetadata, error) {
	return m.GetTableMetadataCommon(ctx, table, m.dialect)
}

func (m *mockAdapter) DialectConfig() *core.DialectConfig { return m.dialect.Config() }
func (m *mockAdapter) Dialect() *dialect.Dialect          { return m.dialect }

func newMockAdapter(t *testing.T, d *dialect.Dialect) (*mockAdapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &mockAdapter{BaseSQLAdapter: adapter.BaseSQLAdapter{DB: db}, dialect: d}, mock
}

type setup struct {
	dialect string
	adapter adapter.Adapter
	store   bool
	dir     string
}

func newTestEngine(t *testing.T, s setup) *Engine {
	t.Helper()
	if s.dir == "" {
		s.dir = t.TempDir()
	}
	cfg := Config{
		RulesDir:     filepath.Join(repoRoot(), "rules"),
		CatalogPath:  filepath.Join("testdata", "schema.json"),
		ArtifactsDir: filepath.Join(s.dir, "out"),
		Dialect:      s.dialect,
		Adapter:      s.adapter,
		Logger:       testutil.NewTestLogger(t),
	}
	if s.store {
		cfg.StatePath = ":memory:"
	}
	e, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestCompileAllStages(t *testing.T) {
	e := newTestEngine(t, setup{store: true})

	res, err := e.Compile("compile")
	require.NoError(t, err)
	require.Len(t, res.Artifacts, 3)
	assert.False(t, res.Placeholders)

	var stages []string
	for _, a := range res.Artifacts {
		stages = append(stages, a.Stage)
		assert.True(t, a.Changed)
		assert.FileExists(t, a.Path)
	}
	assert.Equal(t, artifact.Stages, stages)

	assembled, err := os.ReadFile(res.Artifacts[2].Path)
	require.NoError(t, err)
	text := string(assembled)
	assert.Contains(t, text, "planet_osm_point_aerospace_filtered")
	assert.Contains(t, text, "planet_osm_polygon_aerospace_scored")
	assert.NotContains(t, text, "planet_osm_line_aerospace_filtered")
	assert.NotContains(t, text, "PLACEHOLDER")

	meta := artifact.Meta(text)
	assert.Equal(t, "postgres", meta["dialect"])
	assert.NotEmpty(t, meta["catalog_hash"])
	assert.NotEmpty(t, meta["rules_hash"])

	run, err := e.Store().GetRun(res.RunID)
	require.NoError(t, err)
	assert.Equal(t, core.RunStatusCompleted, run.Status)
	assert.Equal(t, meta["rules_hash"], run.RulesHash)

	arts, err := e.Store().GetArtifactsForRun(res.RunID)
	require.NoError(t, err)
	assert.Len(t, arts, 3)
}

func TestCompileIsIdempotent(t *testing.T) {
	e := newTestEngine(t, setup{})

	first, err := e.Compile("compile")
	require.NoError(t, err)
	second, err := e.Compile("compile")
	require.NoError(t, err)

	require.Len(t, second.Artifacts, 3)
	for i, a := range second.Artifacts {
		assert.False(t, a.Changed, a.Stage)
		assert.Equal(t, first.Artifacts[i].SHA256, a.SHA256)
	}
	assert.Empty(t, second.RunID)
}

func TestCompileSingleStage(t *testing.T) {
	e := newTestEngine(t, setup{})

	res, err := e.Compile("scoring", compiler.StageScoring)
	require.NoError(t, err)
	require.Len(t, res.Artifacts, 1)
	assert.Equal(t, compiler.StageScoring, res.Artifacts[0].Stage)

	_, err = e.Compile("preview", compiler.StagePreview)
	assert.ErrorContains(t, err, "no artifact for stage")
}

func TestCompileAssembleWithoutUpstream(t *testing.T) {
	e := newTestEngine(t, setup{})

	res, err := e.Compile("assemble", compiler.StageAssemble)
	require.NoError(t, err)
	assert.True(t, res.Placeholders)

	data, err := os.ReadFile(res.Artifacts[0].Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "-- PLACEHOLDER: the exclusions artifact is not available.")
}

func TestCompileRefusesForeignDialectArtifacts(t *testing.T) {
	dir := t.TempDir()
	duck := newTestEngine(t, setup{dialect: "duckdb", dir: dir})
	_, err := duck.Compile("exclusions", compiler.StageExclusions, compiler.StageScoring)
	require.NoError(t, err)

	pg := newTestEngine(t, setup{dialect: "postgres", dir: dir, store: true})
	res, err := pg.Compile("assemble", compiler.StageAssemble)

	var se *compiler.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, compiler.StageAssemble, se.Stage)
	assert.ErrorContains(t, err, "compiled for duckdb")

	run, err := pg.Store().GetRun(res.RunID)
	require.NoError(t, err)
	assert.Equal(t, core.RunStatusFailed, run.Status)
	assert.Contains(t, run.Error, "compiled for duckdb")
}

func TestCompileRefusesStaleArtifacts(t *testing.T) {
	dir := t.TempDir()
	first := newTestEngine(t, setup{dir: dir})
	_, err := first.Compile("exclusions", compiler.StageExclusions, compiler.StageScoring)
	require.NoError(t, err)

	// The raw tables grew since the upstream artifacts were written.
	cat, err := catalog.Load(filepath.Join("testdata", "schema.json"))
	require.NoError(t, err)
	cat.Table("planet_osm_point").RowCount++
	catPath := filepath.Join(dir, "schema.json")
	require.NoError(t, catalog.Save(catPath, cat))

	second, err := New(Config{
		RulesDir:     filepath.Join(repoRoot(), "rules"),
		CatalogPath:  catPath,
		ArtifactsDir: filepath.Join(dir, "out"),
		Logger:       testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	_, err = second.Compile("assemble", compiler.StageAssemble)
	var se *compiler.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, compiler.StageAssemble, se.Stage)
	assert.ErrorContains(t, err, "compiled against another catalog")

	// Compiling every stage together rewrites the upstream artifacts first.
	res, err := second.Compile("compile")
	require.NoError(t, err)
	assert.False(t, res.Placeholders)
}

func TestCheckUpstream(t *testing.T) {
	header := "-- dialect: postgres\n-- catalog_hash: cat1\n-- rules_hash: rules1\nSELECT 1;\n"

	tests := []struct {
		name    string
		sql     string
		wantErr string
	}{
		{"current", header, ""},
		{"no header", "SELECT 1;\n", ""},
		{"other catalog", strings.Replace(header, "cat1", "cat0", 1), "another catalog (cat0, now cat1)"},
		{"other rules", strings.Replace(header, "rules1", "rules0", 1), "other rules (rules0, now rules1)"},
		{"other dialect", strings.Replace(header, "postgres", "duckdb", 1), "compiled for duckdb, not postgres"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkUpstream(compiler.StageSQL{SQL: tt.sql, Source: "exclusions.sql"}, "rules1", "cat1", "postgres")
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestCompileUnknownDialect(t *testing.T) {
	e := newTestEngine(t, setup{dialect: "oracle"})
	_, err := e.Compile("compile")
	assert.ErrorContains(t, err, `unknown dialect "oracle"`)
}

func TestDialectName(t *testing.T) {
	assert.Equal(t, "postgres", (&Engine{}).DialectName())
	assert.Equal(t, "duckdb", (&Engine{cfg: Config{Target: core.TargetConfig{Type: "duckdb"}}}).DialectName())
	assert.Equal(t, "duckdb", (&Engine{cfg: Config{Target: core.TargetConfig{Type: " DuckDB"}}}).DialectName())
	assert.Equal(t, "postgres", (&Engine{cfg: Config{Dialect: "postgres", Target: core.TargetConfig{Type: "duckdb"}}}).DialectName())
}

func TestAdapterConfig(t *testing.T) {
	cfg := adapterConfig(core.TargetConfig{Type: "duckdb", Database: "osm.duckdb", Schema: "main"})
	assert.Equal(t, "osm.duckdb", cfg.Path)
	assert.Equal(t, "main", cfg.Schema)

	cfg = adapterConfig(core.TargetConfig{Type: "postgres", Host: "db", Port: 5433, User: "osm", Database: "gis"})
	assert.Empty(t, cfg.Path)
	assert.Equal(t, "osm", cfg.Username)
	assert.Equal(t, 5433, cfg.Port)
}

func TestApply(t *testing.T) {
	db, mock := newMockAdapter(t, postgres.Postgres)
	e := newTestEngine(t, setup{adapter: db})
	_, err := e.Compile("compile")
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE VIEW .*aerospace_filtered").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE VIEW .*aerospace_scored").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO").WillReturnResult(sqlmock.NewResult(0, 42))

	res, err := e.Apply(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Steps, 4)
	assert.Equal(t, 1, res.Steps[0].Number)
	for _, s := range res.Steps {
		assert.NotEqual(t, compiler.StageDiagnostics, s.Title)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyStopsOnFailure(t *testing.T) {
	db, mock := newMockAdapter(t, postgres.Postgres)
	e := newTestEngine(t, setup{adapter: db})
	_, err := e.Compile("compile")
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied for schema public"))

	res, err := e.Apply(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 1")
	assert.Contains(t, err.Error(), "permission denied")
	assert.Empty(t, res.Steps)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyRefusesPlaceholders(t *testing.T) {
	db, mock := newMockAdapter(t, postgres.Postgres)
	e := newTestEngine(t, setup{adapter: db})
	_, err := e.Compile("assemble", compiler.StageAssemble)
	require.NoError(t, err)

	_, err = e.Apply(context.Background())
	require.ErrorIs(t, err, compiler.ErrMissingStage)
	assert.Contains(t, err.Error(), "filtered views")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyRefusesOtherDialect(t *testing.T) {
	db, mock := newMockAdapter(t, duckdb.DuckDB)
	e := newTestEngine(t, setup{adapter: db, dialect: "postgres"})
	_, err := e.Compile("compile")
	require.NoError(t, err)

	_, err = e.Apply(context.Background())
	assert.ErrorContains(t, err, "compiled for postgres but the target is duckdb")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyWithoutScript(t *testing.T) {
	e := newTestEngine(t, setup{})
	_, err := e.Apply(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func countResult(n int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"count"}).AddRow(n)
}

func TestVerify(t *testing.T) {
	db, mock := newMockAdapter(t, postgres.Postgres)
	mock.MatchExpectationsInOrder(false)
	e := newTestEngine(t, setup{adapter: db})

	mock.ExpectQuery(`COUNT\(\*\) FROM public\.planet_osm_point_aerospace_filtered`).WillReturnRows(countResult(4100))
	mock.ExpectQuery(`COUNT\(\*\) FROM public\.planet_osm_polygon_aerospace_filtered`).WillReturnRows(countResult(1800))
	mock.ExpectQuery(`COUNT\(\*\) FROM public\.planet_osm_point_aerospace_scored`).WillReturnRows(countResult(4100))
	mock.ExpectQuery(`COUNT\(\*\) FROM public\.planet_osm_polygon_aerospace_scored`).WillReturnRows(countResult(1800))
	mock.ExpectQuery(`COUNT\(\*\) FROM public\.aerospace_supplier_candidates$`).WillReturnRows(countResult(57))
	mock.ExpectQuery(`SELECT tier_classification, COUNT\(\*\)`).WillReturnRows(
		sqlmock.NewRows([]string{"tier_classification", "count"}).AddRow("tier_4", 30).AddRow("tier_3", 20).AddRow("tier_1", 7))
	mock.ExpectQuery(`SELECT confidence_level, COUNT\(\*\)`).WillReturnRows(
		sqlmock.NewRows([]string{"confidence_level", "count"}).AddRow("low", 40).AddRow(nil, 17))

	report, err := e.Verify(context.Background())
	require.NoError(t, err)
	assert.True(t, report.OK())
	require.Len(t, report.Objects, 5)
	assert.Equal(t, ObjectCount{Kind: KindFilteredView, Name: "planet_osm_point_aerospace_filtered", Rows: 4100}, report.Objects[0])
	assert.Equal(t, ObjectCount{Kind: KindOutputTable, Name: "aerospace_supplier_candidates", Rows: 57}, report.Objects[4])
	assert.Equal(t, []Bucket{{"tier_4", 30}, {"tier_3", 20}, {"tier_1", 7}}, report.Tiers)
	assert.Equal(t, []Bucket{{"low", 40}, {"(null)", 17}}, report.Confidence)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyMissingObjects(t *testing.T) {
	db, mock := newMockAdapter(t, postgres.Postgres)
	mock.MatchExpectationsInOrder(false)
	e := newTestEngine(t, setup{adapter: db})

	missing := errors.New(`relation "aerospace_supplier_candidates" does not exist`)
	mock.ExpectQuery(`point_aerospace_filtered`).WillReturnRows(countResult(1))
	mock.ExpectQuery(`polygon_aerospace_filtered`).WillReturnRows(countResult(1))
	mock.ExpectQuery(`point_aerospace_scored`).WillReturnRows(countResult(1))
	mock.ExpectQuery(`polygon_aerospace_scored`).WillReturnRows(countResult(1))
	mock.ExpectQuery(`aerospace_supplier_candidates`).WillReturnError(missing)

	report, err := e.Verify(context.Background())
	require.NoError(t, err)
	assert.False(t, report.OK())
	assert.True(t, strings.Contains(report.Objects[4].Error, "does not exist"))
	assert.Nil(t, report.Tiers)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Verify counts the same output table the assembled script writes, also
// when the schema part of the name has a dot of its own.
func TestVerifyNestedOutputSchema(t *testing.T) {
	rulesDir := t.TempDir()
	for _, name := range []string{rules.ExclusionsFile, rules.ScoringFile, rules.NegativeSignalsFile, rules.ThresholdsFile, rules.SeedColumnsFile} {
		data, err := os.ReadFile(filepath.Join(repoRoot(), "rules", name))
		require.NoError(t, err)
		if name == rules.SeedColumnsFile {
			data = []byte(strings.Replace(string(data),
				"name: aerospace_supplier_candidates", "name: osm.reporting.aerospace_supplier_candidates", 1))
		}
		require.NoError(t, os.WriteFile(filepath.Join(rulesDir, name), data, 0o644))
	}

	db, mock := newMockAdapter(t, postgres.Postgres)
	mock.MatchExpectationsInOrder(false)
	e, err := New(Config{
		RulesDir:     rulesDir,
		CatalogPath:  filepath.Join("testdata", "schema.json"),
		ArtifactsDir: filepath.Join(t.TempDir(), "out"),
		Adapter:      db,
		Logger:       testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	res, err := e.Compile("compile")
	require.NoError(t, err)
	assembled, err := os.ReadFile(res.Artifacts[2].Path)
	require.NoError(t, err)
	const table = `"osm.reporting".aerospace_supplier_candidates`
	assert.Contains(t, string(assembled), "INSERT INTO "+table)

	mock.ExpectQuery(`_aerospace_filtered`).WillReturnRows(countResult(1))
	mock.ExpectQuery(`_aerospace_filtered`).WillReturnRows(countResult(1))
	mock.ExpectQuery(`_aerospace_scored`).WillReturnRows(countResult(1))
	mock.ExpectQuery(`_aerospace_scored`).WillReturnRows(countResult(1))
	mock.ExpectQuery(`COUNT\(\*\) FROM "osm\.reporting"\.aerospace_supplier_candidates$`).WillReturnRows(countResult(3))
	mock.ExpectQuery(`SELECT tier_classification, COUNT\(\*\) FROM "osm\.reporting"\.`).WillReturnRows(
		sqlmock.NewRows([]string{"tier_classification", "count"}).AddRow("tier_4", 3))
	mock.ExpectQuery(`SELECT confidence_level, COUNT\(\*\) FROM "osm\.reporting"\.`).WillReturnRows(
		sqlmock.NewRows([]string{"confidence_level", "count"}).AddRow("low", 3))

	report, err := e.Verify(context.Background())
	require.NoError(t, err)
	assert.True(t, report.OK(), "%+v", report.Objects)
	assert.Equal(t, ObjectCount{Kind: KindOutputTable, Name: "aerospace_supplier_candidates", Rows: 3}, report.Objects[4])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHistory(t *testing.T) {
	e := newTestEngine(t, setup{store: true})

	_, err := e.Compile("exclusions", compiler.StageExclusions)
	require.NoError(t, err)
	_, err = e.Compile("compile")
	require.NoError(t, err)

	records, err := e.History(10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "compile", records[0].Run.Command)
	assert.Len(t, records[0].Artifacts, 3)
	assert.Equal(t, "exclusions", records[1].Run.Command)
	assert.Len(t, records[1].Artifacts, 1)
}

func TestHistoryWithoutState(t *testing.T) {
	e := newTestEngine(t, setup{})
	_, err := e.History(5)
	assert.ErrorIs(t, err, ErrNoState)
}

func TestIntrospect(t *testing.T) {
	db, mock := newMockAdapter(t, postgres.Postgres)
	mock.MatchExpectationsInOrder(false)
	dir := t.TempDir()
	e, err := New(Config{
		CatalogPath: filepath.Join(dir, "schema.json"),
		Target:      core.TargetConfig{Type: "postgres", Schema: "osm"},
		Adapter:     db,
		Logger:      testutil.NewTestLogger(t),
	})
	require.NoError(t, err)

	mock.ExpectQuery("information_schema.columns").WithArgs("osm", "planet_osm_point").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable", "ordinal_position"}).
			AddRow("osm_id", "bigint", "YES", 1).
			AddRow("name", "text", "YES", 2))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM osm\.planet_osm_point`).WillReturnRows(countResult(12))

	cat, err := e.Introspect(context.Background(), []string{"planet_osm_point"})
	require.NoError(t, err)
	assert.Equal(t, "osm", cat.Schema)
	assert.True(t, cat.Table("planet_osm_point").Exists)
	assert.Equal(t, int64(12), cat.Table("planet_osm_point").RowCount)
	assert.FileExists(t, filepath.Join(dir, "schema.json"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIntrospectCountFailureWritesNothing(t *testing.T) {
	db, mock := newMockAdapter(t, postgres.Postgres)
	dir := t.TempDir()
	e, err := New(Config{
		CatalogPath: filepath.Join(dir, "schema.json"),
		Target:      core.TargetConfig{Type: "postgres", Schema: "osm"},
		Adapter:     db,
		Logger:      testutil.NewTestLogger(t),
	})
	require.NoError(t, err)

	mock.ExpectQuery("information_schema.columns").WithArgs("osm", "planet_osm_polygon").
		WillReturnRows(sqlmock.NewRows([]string{"column_name", "data_type", "is_nullable", "ordinal_position"}).
			AddRow("osm_id", "bigint", "YES", 1).
			AddRow("way_area", "real", "YES", 2))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM osm\.planet_osm_polygon`).
		WillReturnError(errors.New("canceling statement due to statement timeout"))

	_, err = e.Introspect(context.Background(), []string{"planet_osm_polygon"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "statement timeout")
	assert.NoFileExists(t, filepath.Join(dir, "schema.json"))
}
