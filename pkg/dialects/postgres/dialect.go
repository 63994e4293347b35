package postgres

import (
	"github.com/leapstack-labs/aeroscore/pkg/dialect"
)

func init() {
	dialect.Register(Postgres)
}

// Postgres is the PostgreSQL dialect: ARRAY[...] literals, GIST spatial
// indexes and cascading drops.
var Postgres = dialect.New(Config).Build()
