package core

// DialectConfig holds the static configuration for a SQL dialect.
// This is pure data; rendering behavior that depends on it lives in
// pkg/dialect and pkg/sqlexpr.
type DialectConfig struct {
	// Name is the dialect identifier (e.g., "duckdb", "postgres")
	Name string

	// Identifiers defines quoting and normalization rules
	Identifiers IdentifierConfig

	// DefaultSchema is the default schema name ("main" for DuckDB, "public" for Postgres)
	DefaultSchema string

	// Placeholder defines how query parameters are formatted
	Placeholder PlaceholderStyle

	// Arrays selects how array literals and null filtering are written.
	Arrays ArrayStyle

	// TextArrayType is the column type of a list of strings.
	TextArrayType string

	// SpatialIndex is the index method for geometry columns (GIST, RTREE).
	SpatialIndex string

	// DropCascade appends CASCADE to DROP VIEW / DROP TABLE.
	DropCascade bool

	// GeomFromTextSRID passes the SRID as a second ST_GeomFromText argument.
	GeomFromTextSRID bool

	// Keywords are the reserved words that force identifier quoting.
	Keywords []string
}

// NormalizationStrategy defines how unquoted identifiers are normalized.
type NormalizationStrategy int

const (
	// NormLowercase normalizes unquoted identifiers to lowercase (default SQL behavior).
	NormLowercase NormalizationStrategy = iota
	// NormUppercase normalizes unquoted identifiers to uppercase (Snowflake, Oracle).
	NormUppercase
	// NormCaseInsensitive normalizes to lowercase for comparison (DuckDB).
	NormCaseInsensitive
)

// PlaceholderStyle defines how query parameters are formatted.
type PlaceholderStyle int

const (
	// PlaceholderQuestion uses ? for all parameters (DuckDB, SQLite).
	PlaceholderQuestion PlaceholderStyle = iota
	// PlaceholderDollar uses $1, $2, etc. for parameters (PostgreSQL).
	PlaceholderDollar
)

// ArrayStyle selects the array syntax of a dialect.
type ArrayStyle int

const (
	// ArrayPostgres writes ARRAY[...] and array_remove(..., NULL).
	ArrayPostgres ArrayStyle = iota
	// ArrayDuckDB writes [...] and list_filter(..., x -> x IS NOT NULL).
	ArrayDuckDB
)

// IdentifierConfig defines how identifiers are quoted and normalized.
type IdentifierConfig struct {
	Quote         string                // Quote character: ", `
	QuoteEnd      string                // End quote character (usually same as Quote)
	Escape        string                // Escape sequence: "", ``
	Normalization NormalizationStrategy // How to normalize unquoted identifiers
}
