package duckdb

import (
	"github.com/leapstack-labs/aeroscore/pkg/dialect"
)

func init() {
	dialect.Register(DuckDB)
}

// DuckDB is the DuckDB dialect: [...] list literals with list_filter and
// R-tree spatial indexes.
var DuckDB = dialect.New(Config).Build()
