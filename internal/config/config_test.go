package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/aeroscore/pkg/adapter"
	_ "github.com/leapstack-labs/aeroscore/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/aeroscore/pkg/adapters/postgres"
	"github.com/leapstack-labs/aeroscore/pkg/core"
)

func TestApplyTargetDefaults(t *testing.T) {
	tests := []struct {
		name string
		in   core.TargetConfig
		want core.TargetConfig
	}{
		{
			name: "postgres",
			in:   core.TargetConfig{Type: "postgres", Database: "gis"},
			want: core.TargetConfig{Type: "postgres", Database: "gis", Schema: "public", Port: 5432, Host: "localhost"},
		},
		{
			name: "duckdb keeps explicit schema",
			in:   core.TargetConfig{Type: "duckdb", Schema: "osm"},
			want: core.TargetConfig{Type: "duckdb", Schema: "osm"},
		},
		{
			name: "duckdb default schema",
			in:   core.TargetConfig{Type: "duckdb"},
			want: core.TargetConfig{Type: "duckdb", Schema: "main"},
		},
		{
			name: "unknown type",
			in:   core.TargetConfig{Type: "oracle"},
			want: core.TargetConfig{Type: "oracle", Schema: "public"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in
			ApplyTargetDefaults(&got)
			assert.Equal(t, tt.want, got)
		})
	}
	ApplyTargetDefaults(nil)
}

func TestValidateTarget(t *testing.T) {
	assert.ErrorContains(t, ValidateTarget(nil), "target is required")
	assert.ErrorContains(t, ValidateTarget(&core.TargetConfig{}), "target type is required")

	var unknown *adapter.UnknownAdapterError
	require.ErrorAs(t, ValidateTarget(&core.TargetConfig{Type: "oracle"}), &unknown)
	assert.Equal(t, "oracle", unknown.Type)

	assert.ErrorContains(t, ValidateTarget(&core.TargetConfig{Type: "postgres"}), "database is required")
	assert.NoError(t, ValidateTarget(&core.TargetConfig{Type: "postgres", Database: "gis"}))
	assert.ErrorContains(t, ValidateTarget(&core.TargetConfig{Type: "PostgreSQL"}), "database is required")
	assert.NoError(t, ValidateTarget(&core.TargetConfig{Type: "DuckDB"}))
}

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	assert.Empty(t, FindProjectRoot(nested, 5))

	require.NoError(t, os.WriteFile(filepath.Join(root, ConfigFileNameAlt), []byte("rules_dir: rules\n"), 0o644))
	assert.Equal(t, root, FindProjectRoot(nested, 5))
	assert.Empty(t, FindProjectRoot(nested, 1))
	assert.Equal(t, filepath.Join(root, ConfigFileNameAlt), FindConfigFile(root))
}
