// Package dialect describes the SQL dialects the compiler can target.
//
// A Dialect carries identifier quoting rules, reserved words and the small
// set of syntax choices that differ between targets (array literals,
// spatial index method, DROP ... CASCADE). Concrete dialects live in
// pkg/dialects and register themselves on import.
package dialect

import (
	"strconv"
	"strings"

	"github.com/leapstack-labs/aeroscore/pkg/core"
)

// Dialect is a built SQL dialect.
type Dialect struct {
	Name        string
	Identifiers core.IdentifierConfig

	// Database-specific settings
	DefaultSchema string                // Default schema name ("main" for DuckDB, "public" for Postgres)
	Placeholder   core.PlaceholderStyle // How to format query parameters

	Arrays        core.ArrayStyle
	TextArrayType string
	SpatialIndex  string
	DropCascade   bool

	// GeomFromTextSRID is set when ST_GeomFromText takes an SRID argument.
	GeomFromTextSRID bool

	reservedWords map[string]struct{} // All keywords that need quoting as identifiers
}

// Config returns the pure data configuration for this dialect.
func (d *Dialect) Config() *core.DialectConfig {
	keywords := make([]string, 0, len(d.reservedWords))
	for kw := range d.reservedWords {
		keywords = append(keywords, kw)
	}
	return &core.DialectConfig{
		Name:          d.Name,
		Identifiers:   d.Identifiers,
		DefaultSchema: d.DefaultSchema,
		Placeholder:   d.Placeholder,
		Arrays:        d.Arrays,
		TextArrayType: d.TextArrayType,
		SpatialIndex:  d.SpatialIndex,
		DropCascade:   d.DropCascade,
		Keywords:      keywords,

		GeomFromTextSRID: d.GeomFromTextSRID,
	}
}

// NormalizeName normalizes an identifier according to the dialect's rules.
func (d *Dialect) NormalizeName(name string) string {
	switch d.Identifiers.Normalization {
	case core.NormUppercase:
		return strings.ToUpper(name)
	default:
		return strings.ToLower(name)
	}
}

// FormatPlaceholder returns a placeholder for the given parameter index (1-based).
// Returns "?" for PlaceholderQuestion style, "$1", "$2" etc. for PlaceholderDollar style.
func (d *Dialect) FormatPlaceholder(index int) string {
	switch d.Placeholder {
	case core.PlaceholderDollar:
		return "$" + strconv.Itoa(index)
	default: // PlaceholderQuestion
		return "?"
	}
}

// IsReservedWord returns true if the word needs quoting when used as an identifier.
func (d *Dialect) IsReservedWord(word string) bool {
	_, ok := d.reservedWords[d.NormalizeName(word)]
	return ok
}

// QuoteIdentifier quotes an identifier using the dialect's quote characters.
func (d *Dialect) QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, d.Identifiers.QuoteEnd, d.Identifiers.Escape)
	return d.Identifiers.Quote + escaped + d.Identifiers.QuoteEnd
}

// QuoteIdentifierIfNeeded quotes an identifier when it is a reserved word
// or is not a plain lower-case identifier. OSM tag columns such as
// "addr:postcode" are always quoted.
func (d *Dialect) QuoteIdentifierIfNeeded(name string) string {
	if needsQuoting(name) || d.IsReservedWord(name) {
		return d.QuoteIdentifier(name)
	}
	return name
}

// QuoteQualified quotes and joins a schema-qualified name. An empty schema
// yields the bare name.
func (d *Dialect) QuoteQualified(schema, name string) string {
	if schema == "" {
		return d.QuoteIdentifierIfNeeded(name)
	}
	return d.QuoteIdentifierIfNeeded(schema) + "." + d.QuoteIdentifierIfNeeded(name)
}

// DropClause returns the trailing option of DROP statements.
func (d *Dialect) DropClause() string {
	if d.DropCascade {
		return " CASCADE"
	}
	return ""
}

func needsQuoting(name string) bool {
	if name == "" {
		return true
	}
	c := name[0]
	if !isLower(c) && c != '_' {
		return true
	}
	for i := 1; i < len(name); i++ {
		c = name[i]
		if !isLower(c) && !isDigit(c) && c != '_' {
			return true
		}
	}
	return false
}

func isLower(c byte) bool { return c >= 'a' && c <= 'z' }
func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// Builder assembles a Dialect.
type Builder struct {
	dialect *Dialect
}

// NewDialect creates a new dialect builder with the given name and
// standard double-quote identifiers.
func NewDialect(name string) *Builder {
	return New(&core.DialectConfig{
		Name: name,
		Identifiers: core.IdentifierConfig{
			Quote:         `"`,
			QuoteEnd:      `"`,
			Escape:        `""`,
			Normalization: core.NormLowercase,
		},
		TextArrayType: "TEXT[]",
	})
}

// New creates a dialect builder from a DialectConfig.
func New(cfg *core.DialectConfig) *Builder {
	b := &Builder{
		dialect: &Dialect{
			Name:          cfg.Name,
			Identifiers:   cfg.Identifiers,
			DefaultSchema: cfg.DefaultSchema,
			Placeholder:   cfg.Placeholder,
			Arrays:        cfg.Arrays,
			TextArrayType: cfg.TextArrayType,
			SpatialIndex:  cfg.SpatialIndex,
			DropCascade:   cfg.DropCascade,
			reservedWords: make(map[string]struct{}),

			GeomFromTextSRID: cfg.GeomFromTextSRID,
		},
	}
	return b.WithReservedWords(cfg.Keywords...)
}

// DefaultSchema sets the default schema name.
func (b *Builder) DefaultSchema(schema string) *Builder {
	b.dialect.DefaultSchema = schema
	return b
}

// PlaceholderStyle sets how query parameters are formatted.
func (b *Builder) PlaceholderStyle(style core.PlaceholderStyle) *Builder {
	b.dialect.Placeholder = style
	return b
}

// Arrays sets the array syntax and the list-of-text column type.
func (b *Builder) Arrays(style core.ArrayStyle, textArrayType string) *Builder {
	b.dialect.Arrays = style
	b.dialect.TextArrayType = textArrayType
	return b
}

// SpatialIndex sets the index method used for geometry columns.
func (b *Builder) SpatialIndex(method string) *Builder {
	b.dialect.SpatialIndex = method
	return b
}

// DropCascade makes DROP statements cascade to dependent objects.
func (b *Builder) DropCascade(on bool) *Builder {
	b.dialect.DropCascade = on
	return b
}

// GeomFromTextSRID makes ST_GeomFromText calls carry the SRID.
func (b *Builder) GeomFromTextSRID(on bool) *Builder {
	b.dialect.GeomFromTextSRID = on
	return b
}

// WithReservedWords registers words that need quoting when used as identifiers.
func (b *Builder) WithReservedWords(words ...string) *Builder {
	for _, w := range words {
		b.dialect.reservedWords[b.dialect.NormalizeName(w)] = struct{}{}
	}
	return b
}

// Build returns the constructed dialect.
func (b *Builder) Build() *Dialect {
	return b.dialect
}
