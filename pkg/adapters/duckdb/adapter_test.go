package duckdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/aeroscore/pkg/adapter"
	"github.com/leapstack-labs/aeroscore/pkg/core"
)

func connect(t *testing.T, cfg core.AdapterConfig) *Adapter {
	t.Helper()
	adp := New(nil)
	require.NoError(t, adp.Connect(context.Background(), cfg))
	t.Cleanup(func() { _ = adp.Close() })
	return adp
}

func TestAdapter_Connect(t *testing.T) {
	tests := []struct {
		name string
		cfg  func(t *testing.T) core.AdapterConfig
	}{
		{"empty path is in-memory", func(*testing.T) core.AdapterConfig { return core.AdapterConfig{} }},
		{"explicit in-memory", func(*testing.T) core.AdapterConfig { return core.AdapterConfig{Path: ":memory:"} }},
		{"file from database field", func(t *testing.T) core.AdapterConfig {
			return core.AdapterConfig{Database: filepath.Join(t.TempDir(), "osm.duckdb")}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adp := connect(t, tt.cfg(t))
			assert.True(t, adp.IsConnected())
			require.NoError(t, adp.Exec(context.Background(), "SELECT 1"))
		})
	}
}

func TestAdapter_NotConnected(t *testing.T) {
	adp := New(nil)
	ctx := context.Background()

	assert.ErrorContains(t, adp.Exec(ctx, "SELECT 1"), "database connection not established")
	_, err := adp.Query(ctx, "SELECT 1")
	assert.ErrorContains(t, err, "database connection not established")
	_, err = adp.GetTableMetadata(ctx, "planet_osm_point")
	assert.ErrorContains(t, err, "database connection not established")
	assert.NoError(t, adp.Close())
}

func TestAdapter_Dialect(t *testing.T) {
	adp := New(nil)
	assert.Equal(t, "duckdb", adp.Dialect().Name)
	assert.Equal(t, "main", adp.DialectConfig().DefaultSchema)
	assert.False(t, adp.DialectConfig().GeomFromTextSRID)
}

func TestAdapter_ExecScript(t *testing.T) {
	ctx := context.Background()
	adp := connect(t, core.AdapterConfig{})

	script := `
CREATE TABLE planet_osm_point (osm_id BIGINT, name VARCHAR, amenity VARCHAR);
INSERT INTO planet_osm_point VALUES (1, 'Aerospace Cafe', 'cafe'), (2, 'Corner Shop', NULL), (3, 'Bistro', 'restaurant');
DROP VIEW IF EXISTS planet_osm_point_aerospace_filtered;
CREATE VIEW planet_osm_point_aerospace_filtered AS
SELECT *
FROM planet_osm_point
WHERE (amenity IS NULL OR amenity NOT IN ('restaurant', 'cafe'))
  OR lower(name) LIKE '%aerospace%';
`
	require.NoError(t, adp.Exec(ctx, script))

	rows, err := adp.Query(ctx, "SELECT osm_id FROM planet_osm_point_aerospace_filtered ORDER BY osm_id")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		require.NoError(t, rows.Scan(&id))
		ids = append(ids, id)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []int64{1, 2}, ids)
}

func TestAdapter_GetTableMetadata(t *testing.T) {
	ctx := context.Background()
	adp := connect(t, core.AdapterConfig{})

	require.NoError(t, adp.Exec(ctx, `
		CREATE TABLE planet_osm_polygon (
			osm_id BIGINT NOT NULL,
			name VARCHAR,
			"addr:postcode" VARCHAR,
			way_area REAL
		)`))
	require.NoError(t, adp.Exec(ctx, `INSERT INTO planet_osm_polygon VALUES (-7, 'Hangar 3', 'BS34 7QW', 2400.5), (8, NULL, NULL, 90)`))
	require.NoError(t, adp.Exec(ctx, `CREATE TABLE planet_osm_roads (osm_id BIGINT)`))

	t.Run("existing table", func(t *testing.T) {
		meta, err := adp.GetTableMetadata(ctx, "planet_osm_polygon")
		require.NoError(t, err)
		assert.Equal(t, "main", meta.Schema)
		assert.Equal(t, int64(2), meta.RowCount)
		require.Len(t, meta.Columns, 4)
		assert.Equal(t, core.Column{Name: "osm_id", Type: "BIGINT", Nullable: false, Position: 1}, meta.Columns[0])
		assert.Equal(t, "addr:postcode", meta.Columns[2].Name)
		assert.True(t, meta.Columns[2].Nullable)
	})

	t.Run("empty table", func(t *testing.T) {
		meta, err := adp.GetTableMetadata(ctx, "main.planet_osm_roads")
		require.NoError(t, err)
		assert.Zero(t, meta.RowCount)
	})

	t.Run("missing table", func(t *testing.T) {
		_, err := adp.GetTableMetadata(ctx, "planet_osm_line")
		assert.ErrorIs(t, err, adapter.ErrTableNotFound)
	})
}

func TestConnect_WithSettings(t *testing.T) {
	ctx := context.Background()
	adp := connect(t, core.AdapterConfig{Params: map[string]any{
		"settings": map[string]any{"threads": 2},
	}})
	require.NotNil(t, adp.Params)
	assert.Equal(t, "2", adp.Params.Settings["threads"])

	rows, err := adp.Query(ctx, "SELECT current_setting('threads')")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()
	require.True(t, rows.Next())
	var threads int64
	require.NoError(t, rows.Scan(&threads))
	assert.Equal(t, int64(2), threads)
}

func TestConnect_InvalidParams(t *testing.T) {
	adp := New(nil)
	err := adp.Connect(context.Background(), core.AdapterConfig{Params: map[string]any{"secrets": []any{}}})
	assert.ErrorContains(t, err, "invalid duckdb params")
	assert.False(t, adp.IsConnected())
}

func TestSetupStatements(t *testing.T) {
	tests := []struct {
		name   string
		params *Params
		want   []string
	}{
		{"nil", nil, nil},
		{"empty", &Params{}, nil},
		{
			name:   "extensions then sorted settings",
			params: &Params{Extensions: []string{"Spatial", " json "}, Settings: map[string]string{"threads": "4", "memory_limit": "4GB"}},
			want:   []string{"INSTALL spatial", "LOAD spatial", "INSTALL json", "LOAD json", "SET memory_limit = '4GB'", "SET threads = '4'"},
		},
		{
			name:   "unsafe names skipped and values escaped",
			params: &Params{Extensions: []string{"spatial; DROP TABLE x"}, Settings: map[string]string{"bad name": "1", "timezone": "it's"}},
			want:   []string{"SET timezone = 'it''s'"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, setupStatements(tt.params))
		})
	}
}

func TestAdapter_Registry(t *testing.T) {
	a, err := adapter.NewAdapter(core.AdapterConfig{Type: "duckdb"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &Adapter{}, a)
}
