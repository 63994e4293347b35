// Package adapter provides the database adapter contract aeroscore talks
// to, a registry of adapter factories and a database/sql base that
// concrete adapters embed.
//
// Concrete adapters live in pkg/adapters/ and register themselves from
// init; import them with a blank identifier.
package adapter

import (
	"errors"

	"github.com/leapstack-labs/aeroscore/pkg/core"
	"github.com/leapstack-labs/aeroscore/pkg/dialect"
)

// Aliases for the core types adapters exchange.
type (
	Config   = core.AdapterConfig
	Column   = core.Column
	Metadata = core.TableMetadata
	Rows     = core.Rows
)

// ErrTableNotFound is returned by GetTableMetadata when the table has no
// columns in the information schema.
var ErrTableNotFound = errors.New("table not found")

// Adapter is a connected database that can run generated scripts and
// describe the raw map tables.
type Adapter interface {
	core.Adapter

	// Dialect returns the SQL dialect scripts for this adapter are
	// rendered in.
	Dialect() *dialect.Dialect
}
