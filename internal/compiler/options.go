// Package compiler turns rule sets and a schema catalog into SQL.
//
// Every function here is pure: the same catalog, rules and options always
// yield byte-identical SQL. Conditions that reference columns a table does
// not have are dropped for that table instead of failing the run.
package compiler

import (
	"log/slog"

	"github.com/leapstack-labs/aeroscore/pkg/core"
	"github.com/leapstack-labs/aeroscore/pkg/dialect"
)

// Default naming and resolution settings.
const (
	DefaultFilteredSuffix    = "_aerospace_filtered"
	DefaultScoredSuffix      = "_aerospace_scored"
	DefaultScoreColumn       = "aerospace_score"
	DefaultKeywordsColumn    = "matched_keywords"
	DefaultSourceTableColumn = "source_table"
	DefaultDedupKey          = "osm_id"
	DefaultTopN              = 20
)

// DefaultAreaColumns are tried in order when an _area field is not itself
// a column.
var DefaultAreaColumns = []string{"way_area", "area", "st_area", "building_area"}

// DefaultFieldAliases maps rule fields to the column they read.
var DefaultFieldAliases = map[string]string{
	"postcode_area": "addr:postcode",
}

// DefaultSourceOrder lists the tables that feed the candidate table, in
// deduplication tie-break order.
var DefaultSourceOrder = []string{"planet_osm_point", "planet_osm_polygon", "planet_osm_line"}

// Options controls column resolution, naming and the target dialect.
type Options struct {
	Dialect *dialect.Dialect
	Logger  *slog.Logger

	AreaColumns  []string
	FieldAliases map[string]string
	SourceOrder  []string
	DedupKey     string

	FilteredSuffix    string
	ScoredSuffix      string
	ScoreColumn       string
	KeywordsColumn    string
	SourceTableColumn string

	PreviewCounts bool
	TopN          int
}

// NewOptions builds options for d from the compiler section of the
// configuration. Unset fields take the defaults.
func NewOptions(d *dialect.Dialect, cfg core.CompilerConfig, logger *slog.Logger) Options {
	return Options{
		Dialect:        d,
		Logger:         logger,
		AreaColumns:    cfg.AreaColumns,
		FieldAliases:   cfg.FieldAliases,
		SourceOrder:    cfg.SourceOrder,
		DedupKey:       cfg.DedupKey,
		FilteredSuffix: cfg.FilteredSuffix,
		ScoredSuffix:   cfg.ScoredSuffix,
		PreviewCounts:  cfg.PreviewCounts,
		TopN:           cfg.TopN,
	}.withDefaults()
}

// withDefaults fills every unset field.
func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.AreaColumns == nil {
		o.AreaColumns = DefaultAreaColumns
	}
	if o.FieldAliases == nil {
		o.FieldAliases = DefaultFieldAliases
	}
	if len(o.SourceOrder) == 0 {
		o.SourceOrder = DefaultSourceOrder
	}
	if o.DedupKey == "" {
		o.DedupKey = DefaultDedupKey
	}
	if o.FilteredSuffix == "" {
		o.FilteredSuffix = DefaultFilteredSuffix
	}
	if o.ScoredSuffix == "" {
		o.ScoredSuffix = DefaultScoredSuffix
	}
	if o.ScoreColumn == "" {
		o.ScoreColumn = DefaultScoreColumn
	}
	if o.KeywordsColumn == "" {
		o.KeywordsColumn = DefaultKeywordsColumn
	}
	if o.SourceTableColumn == "" {
		o.SourceTableColumn = DefaultSourceTableColumn
	}
	if o.TopN <= 0 {
		o.TopN = DefaultTopN
	}
	return o
}

// FilteredViewName returns the filtered view of table.
func (o Options) FilteredViewName(table string) string {
	return table + o.withDefaults().FilteredSuffix
}

// ScoredViewName returns the scored view of table.
func (o Options) ScoredViewName(table string) string {
	return table + o.withDefaults().ScoredSuffix
}
