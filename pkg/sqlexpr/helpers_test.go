package sqlexpr

import (
	"github.com/leapstack-labs/aeroscore/pkg/dialect"
	"github.com/leapstack-labs/aeroscore/pkg/dialects/postgres"
)

func testDialect() *dialect.Dialect {
	return postgres.Postgres
}
