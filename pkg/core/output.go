package core

import "strings"

// ComputedKind marks an output column whose value the pipeline derives
// instead of copying it from a source column.
type ComputedKind string

// Computed column kinds.
const (
	ComputedNone            ComputedKind = ""
	ComputedScore           ComputedKind = "score"
	ComputedMatchedKeywords ComputedKind = "matched_keywords"
	ComputedSourceTable     ComputedKind = "source_table"
	ComputedOSMType         ComputedKind = "osm_type"
	ComputedTier            ComputedKind = "tier"
	ComputedConfidence      ComputedKind = "confidence"
	ComputedCreatedAt       ComputedKind = "created_at"
)

// Valid reports whether k is a known kind.
func (k ComputedKind) Valid() bool {
	switch k {
	case ComputedNone, ComputedScore, ComputedMatchedKeywords, ComputedSourceTable,
		ComputedOSMType, ComputedTier, ComputedConfidence, ComputedCreatedAt:
		return true
	}
	return false
}

// Classification reports whether the column is filled in after
// deduplication from the final score.
func (k ComputedKind) Classification() bool {
	return k == ComputedTier || k == ComputedConfidence
}

// OutputColumn is one column of the candidate table.
//
// A source column is read from SourceColumn, then each of Fallbacks in
// order (COALESCE). Expression, when set, is a trusted SQL fragment that
// replaces the source lookup.
type OutputColumn struct {
	Name         string
	Type         string
	Group        string
	Description  string
	SourceColumn string
	Fallbacks    []string
	Expression   string
	Computed     ComputedKind
}

// Sources returns the ordered list of raw columns the output column reads.
func (c OutputColumn) Sources() []string {
	if c.Computed != ComputedNone || c.Expression != "" {
		return nil
	}
	src := c.SourceColumn
	if src == "" {
		src = c.Name
	}
	out := make([]string, 0, 1+len(c.Fallbacks))
	out = append(out, src)
	return append(out, c.Fallbacks...)
}

// IsGeometry reports whether the column holds a geometry.
func (c OutputColumn) IsGeometry() bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(c.Type)), "GEOMETRY")
}

// Region restricts candidates to those intersecting a bounding box.
type Region struct {
	// BBox is min x, min y, max x, max y in the SRID's units.
	BBox   [4]float64
	SRID   int
	Column string
}

// OutputTableSpec describes the final candidate table.
type OutputTableSpec struct {
	Name        string
	Description string
	Columns     []OutputColumn
	// IndexColumns names the columns that get a plain index. Geometry
	// columns always get a spatial index.
	IndexColumns []string
	MinScore     int
	Limit        int
	Region       *Region
}

// DefaultOutputTable is used when the output table has no name.
const DefaultOutputTable = "aerospace_candidates"

// Qualified splits the output table name into schema and table. The schema
// is everything before the last dot; a bare name takes defaultSchema.
func (s OutputTableSpec) Qualified(defaultSchema string) (schema, table string) {
	name := s.Name
	if name == "" {
		name = DefaultOutputTable
	}
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return name[:i], name[i+1:]
	}
	return defaultSchema, name
}

// Column returns the named output column.
func (s OutputTableSpec) Column(name string) (OutputColumn, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return OutputColumn{}, false
}

// ComputedColumn returns the first column of the given kind.
func (s OutputTableSpec) ComputedColumn(kind ComputedKind) (OutputColumn, bool) {
	for _, c := range s.Columns {
		if c.Computed == kind {
			return c, true
		}
	}
	return OutputColumn{}, false
}

// ColumnNames returns the output column names in declared order.
func (s OutputTableSpec) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}
