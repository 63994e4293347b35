package duckdb

import (
	"testing"

	"github.com/leapstack-labs/aeroscore/pkg/core"
	"github.com/leapstack-labs/aeroscore/pkg/dialect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuckDBRegistered(t *testing.T) {
	d, ok := dialect.Get("duckdb")
	require.True(t, ok)
	assert.Same(t, DuckDB, d)
}

func TestDuckDBSettings(t *testing.T) {
	assert.Equal(t, "main", DuckDB.DefaultSchema)
	assert.Equal(t, core.ArrayDuckDB, DuckDB.Arrays)
	assert.Equal(t, "VARCHAR[]", DuckDB.TextArrayType)
	assert.Equal(t, "RTREE", DuckDB.SpatialIndex)
	assert.Empty(t, DuckDB.DropClause())
	assert.False(t, DuckDB.GeomFromTextSRID)
	assert.Equal(t, "?", DuckDB.FormatPlaceholder(3))
	assert.Equal(t, `"qualify"`, DuckDB.QuoteIdentifierIfNeeded("qualify"))
}
