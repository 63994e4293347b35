package rules

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/aeroscore/pkg/core"
)

// wellKnownComputed infers the computed kind of columns that declare
// neither a source nor an expression.
var wellKnownComputed = map[string]core.ComputedKind{
	"aerospace_score":     core.ComputedScore,
	"matched_keywords":    core.ComputedMatchedKeywords,
	"source_table":        core.ComputedSourceTable,
	"osm_type":            core.ComputedOSMType,
	"tier":                core.ComputedTier,
	"tier_classification": core.ComputedTier,
	"confidence":          core.ComputedConfidence,
	"confidence_level":    core.ComputedConfidence,
	"created_at":          core.ComputedCreatedAt,
}

type seedFile struct {
	OutputTable           outputTableDoc `yaml:"output_table"`
	IdentificationColumns []columnDoc    `yaml:"identification_columns"`
	ContactColumns        []columnDoc    `yaml:"contact_columns"`
	AddressColumns        []columnDoc    `yaml:"address_columns"`
	ClassificationColumns []columnDoc    `yaml:"classification_columns"`
	DescriptiveColumns    []columnDoc    `yaml:"descriptive_columns"`
	SpatialColumns        []columnDoc    `yaml:"spatial_columns"`
	ScoringColumns        []columnDoc    `yaml:"scoring_columns"`
	MetadataColumns       []columnDoc    `yaml:"metadata_columns"`
}

// groups returns the column groups in output order.
func (f *seedFile) groups() []struct {
	name    string
	columns []columnDoc
} {
	return []struct {
		name    string
		columns []columnDoc
	}{
		{"identification", f.IdentificationColumns},
		{"contact", f.ContactColumns},
		{"address", f.AddressColumns},
		{"classification", f.ClassificationColumns},
		{"descriptive", f.DescriptiveColumns},
		{"spatial", f.SpatialColumns},
		{"scoring", f.ScoringColumns},
		{"metadata", f.MetadataColumns},
	}
}

type outputTableDoc struct {
	Name         string     `yaml:"name"`
	Description  string     `yaml:"description"`
	IndexColumns []string   `yaml:"index_columns"`
	Region       *regionDoc `yaml:"region"`
}

type regionDoc struct {
	BBox   []float64 `yaml:"bbox"`
	SRID   int       `yaml:"srid"`
	Column string    `yaml:"column"`
}

type columnDoc struct {
	ColumnName       string   `yaml:"column_name"`
	DataType         string   `yaml:"data_type"`
	Description      string   `yaml:"description"`
	SourceColumn     string   `yaml:"source_column"`
	FallbackColumns  []string `yaml:"fallback_columns"`
	SourceExpression string   `yaml:"source_expression"`
	Computed         string   `yaml:"computed"`
}

// ParseSeedColumns reads seed_columns.yaml into an OutputTableSpec.
// MinScore and Limit are left for thresholds.yaml to fill in.
func ParseSeedColumns(data []byte) (core.OutputTableSpec, error) {
	var spec core.OutputTableSpec
	fail := func(path, format string, args ...any) (core.OutputTableSpec, error) {
		return core.OutputTableSpec{}, &ValidationError{Document: SeedColumnsFile, Path: path, Message: fmt.Sprintf(format, args...)}
	}

	var doc seedFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return fail("", "%v", err)
	}

	spec.Name = strings.TrimSpace(doc.OutputTable.Name)
	spec.Description = doc.OutputTable.Description
	spec.IndexColumns = doc.OutputTable.IndexColumns
	if spec.Name == "" {
		return fail("output_table.name", "is required")
	}

	for _, g := range doc.groups() {
		for i, c := range g.columns {
			path := fmt.Sprintf("%s_columns[%d]", g.name, i)
			col, err := outputColumn(g.name, c)
			if err != nil {
				return fail(path, "%v", err)
			}
			spec.Columns = append(spec.Columns, col)
		}
	}
	if len(spec.Columns) == 0 {
		return fail("", "no output columns declared")
	}

	if r := doc.OutputTable.Region; r != nil {
		if len(r.BBox) != 4 {
			return fail("output_table.region.bbox", "needs four numbers: min x, min y, max x, max y")
		}
		spec.Region = &core.Region{SRID: r.SRID, Column: r.Column}
		copy(spec.Region.BBox[:], r.BBox)
		if spec.Region.Column == "" {
			for _, c := range spec.Columns {
				if c.IsGeometry() {
					spec.Region.Column = c.Name
					break
				}
			}
		}
	}
	return spec, nil
}

func outputColumn(group string, c columnDoc) (core.OutputColumn, error) {
	col := core.OutputColumn{
		Name:         strings.TrimSpace(c.ColumnName),
		Type:         strings.ToUpper(strings.TrimSpace(c.DataType)),
		Group:        group,
		Description:  c.Description,
		SourceColumn: c.SourceColumn,
		Fallbacks:    c.FallbackColumns,
		Expression:   strings.TrimSpace(c.SourceExpression),
		Computed:     core.ComputedKind(c.Computed),
	}
	if col.Name == "" {
		return col, errors.New("column_name is required")
	}
	if col.Type == "" {
		return col, fmt.Errorf("column %q: data_type is required", col.Name)
	}
	if !col.Computed.Valid() {
		return col, fmt.Errorf("column %q: unknown computed kind %q", col.Name, c.Computed)
	}
	if col.Computed != core.ComputedNone && (col.SourceColumn != "" || col.Expression != "") {
		return col, fmt.Errorf("column %q: a computed column takes no source", col.Name)
	}
	if col.Expression != "" && col.SourceColumn != "" {
		return col, fmt.Errorf("column %q: source_column and source_expression are exclusive", col.Name)
	}
	if col.Computed == core.ComputedNone && col.SourceColumn == "" && col.Expression == "" {
		col.Computed = wellKnownComputed[col.Name]
	}
	return col, nil
}
