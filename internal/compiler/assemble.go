package compiler

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"

	"github.com/leapstack-labs/aeroscore/pkg/core"
	"github.com/leapstack-labs/aeroscore/pkg/sqlexpr"
)

// Columns added to every candidate row for deduplication. They never reach
// the output table.
const (
	dedupKeyColumn   = "_dedup_key"
	osmKindColumn    = "_osm_kind"
	dedupScoreColumn = "_dedup_score"
	sourceRankColumn = "_source_rank"
	dedupRankColumn  = "_dedup_rank"
	candidatesCTE    = "candidates"
	rankedCTE        = "ranked"
	maxColumnTypeLen = 64
)

// columnTypeRe accepts a type name with up to two parenthesised arguments
// and an optional array suffix, e.g. TEXT, NUMERIC(10,2), TEXT[],
// GEOMETRY(Geometry, 3857).
var columnTypeRe = regexp.MustCompile(`(?i)^[A-Z][A-Z0-9_ ]*(?:\(\s*[A-Z0-9_]+\s*(?:,\s*[A-Z0-9_]+\s*)?\))?(?:\[\])?$`)

// StageSQL is the text of an upstream artifact. Empty SQL means the
// artifact was not available.
type StageSQL struct {
	SQL    string
	Source string
}

// Available reports whether the artifact has any SQL.
func (s StageSQL) Available() bool {
	return strings.TrimSpace(s.SQL) != ""
}

// AssembleInput is everything the assembler reads.
type AssembleInput struct {
	Catalog    *core.Catalog
	Output     core.OutputTableSpec
	Tiers      core.ThresholdTable
	Confidence core.ConfidenceTable

	Filtered StageSQL
	Scored   StageSQL

	Options Options
}

// Branch is the projection of one scored view into the candidate union.
// Projections line up with InsertPlan.Branched. Key and Kind together
// identify an OSM element: node and way ids are separate number spaces.
type Branch struct {
	Table       string
	View        string
	Rank        int
	Projections []sqlexpr.Expr
	Key         sqlexpr.Expr
	Kind        sqlexpr.Expr
	Score       sqlexpr.Expr
}

// InsertPlan is the checked shape of the final INSERT.
type InsertPlan struct {
	Schema  string
	Table   string
	Columns []core.OutputColumn

	// ViewSchema holds the scored views, next to the raw tables.
	ViewSchema string

	// Branched lists the output columns projected by every branch, in
	// output order. The remaining columns are computed after deduplication.
	Branched []string
	Branches []Branch

	// Select has one expression per output column, evaluated over the
	// ranked candidates.
	Select []sqlexpr.Expr
	// Filter is applied to the surviving candidates after deduplication.
	Filter sqlexpr.Expr
	Limit  int
}

// PlanInsert validates the output table against the catalog and builds
// the candidate union. Every output column either gets a source
// expression in every branch or the plan fails with a MismatchError.
func PlanInsert(in AssembleInput) (*InsertPlan, error) {
	opts := in.Options.withDefaults()
	if in.Catalog == nil {
		return nil, stageErr(StageAssemble, "", "", fmt.Errorf("no schema catalog"))
	}
	if err := ValidateOutputSpec(in.Output); err != nil {
		return nil, stageErr(StageAssemble, "", "", err)
	}
	if err := ValidateThresholds(in.Tiers); err != nil {
		return nil, stageErr(StageAssemble, "", "", err)
	}
	if err := ValidateConfidence(in.Confidence); err != nil {
		return nil, stageErr(StageAssemble, "", "", err)
	}
	if err := validateGates(in.Output, in.Confidence); err != nil {
		return nil, stageErr(StageAssemble, "", "", err)
	}

	schema, name := in.Output.Qualified(in.Catalog.Schema)
	plan := &InsertPlan{
		Schema:     schema,
		Table:      name,
		Columns:    in.Output.Columns,
		ViewSchema: in.Catalog.Schema,
		Limit:      in.Output.Limit,
	}

	sources := candidateSources(in.Catalog, opts)
	if len(sources) == 0 {
		return nil, stageErr(StageAssemble, "", "",
			fmt.Errorf("no usable source table among %s", strings.Join(opts.SourceOrder, ", ")))
	}

	for _, c := range in.Output.Columns {
		if !afterDedup(c.Computed) {
			plan.Branched = append(plan.Branched, c.Name)
		}
	}

	for _, src := range sources {
		if !src.table.HasColumn(opts.DedupKey) {
			return nil, &MismatchError{Table: src.table.Name, Column: opts.DedupKey, Reason: "deduplication key is missing"}
		}
		b := Branch{
			Table: src.table.Name,
			View:  opts.ScoredViewName(src.table.Name),
			Rank:  src.rank,
			Key:   sqlexpr.Col(opts.DedupKey),
			Kind:  osmTypeExpr(src.table, opts),
			Score: sqlexpr.Col(opts.ScoreColumn),
		}
		for _, c := range in.Output.Columns {
			if afterDedup(c.Computed) {
				continue
			}
			b.Projections = append(b.Projections, projection(c, src.table, opts))
		}
		plan.Branches = append(plan.Branches, b)
	}

	// A source-backed column must be found in at least one table.
	for i, name := range plan.Branched {
		col, _ := in.Output.Column(name)
		if len(col.Sources()) == 0 {
			continue
		}
		found := false
		for _, b := range plan.Branches {
			if _, isNull := b.Projections[i].(sqlexpr.Null); !isNull {
				found = true
				break
			}
		}
		if !found {
			return nil, &MismatchError{
				Column: name,
				Reason: fmt.Sprintf("no source table has any of %s", strings.Join(col.Sources(), ", ")),
			}
		}
	}

	score := sqlexpr.Col(dedupScoreColumn)
	for _, c := range in.Output.Columns {
		switch c.Computed {
		case core.ComputedTier:
			plan.Select = append(plan.Select, TierExpr(score, in.Tiers))
		case core.ComputedConfidence:
			plan.Select = append(plan.Select, ConfidenceExpr(score, in.Confidence))
		case core.ComputedCreatedAt:
			plan.Select = append(plan.Select, sqlexpr.Raw{SQL: "CURRENT_TIMESTAMP"})
		default:
			plan.Select = append(plan.Select, sqlexpr.Col(c.Name))
		}
	}

	filter := []sqlexpr.Expr{
		sqlexpr.Compare{Op: sqlexpr.OpGe, Left: score, Right: sqlexpr.Int(in.Output.MinScore)},
	}
	if r := in.Output.Region; r != nil {
		region, err := RegionExpr(*r, opts)
		if err != nil {
			return nil, stageErr(StageAssemble, "", "", err)
		}
		filter = append(filter, region)
	}
	plan.Filter = sqlexpr.AndOf(filter...)

	if err := plan.checkParity(); err != nil {
		return nil, err
	}
	return plan, nil
}

// checkParity verifies that the INSERT column list, every branch and the
// final projection have matching arity.
func (p *InsertPlan) checkParity() error {
	if len(p.Select) != len(p.Columns) {
		return &MismatchError{Table: p.Table, Reason: fmt.Sprintf(
			"select list has %d expressions for %d columns", len(p.Select), len(p.Columns))}
	}
	for _, b := range p.Branches {
		if len(b.Projections) != len(p.Branched) {
			return &MismatchError{Table: b.Table, Reason: fmt.Sprintf(
				"branch projects %d columns, expected %d", len(b.Projections), len(p.Branched))}
		}
	}
	return nil
}

type candidateSource struct {
	table *core.TableInfo
	rank  int
}

// candidateSources returns the usable tables of the source order. The rank
// breaks deduplication ties.
func candidateSources(cat *core.Catalog, opts Options) []candidateSource {
	var out []candidateSource
	for i, name := range opts.SourceOrder {
		t := cat.Table(name)
		if !t.Usable() {
			opts.Logger.Debug("source table not usable", slog.String("table", name))
			continue
		}
		out = append(out, candidateSource{table: t, rank: i + 1})
	}
	return out
}

// afterDedup reports whether a computed column is filled in after
// deduplication rather than projected per branch.
func afterDedup(k core.ComputedKind) bool {
	return k.Classification() || k == core.ComputedCreatedAt
}

// projection returns the expression a branch over table uses for c.
func projection(c core.OutputColumn, table *core.TableInfo, opts Options) sqlexpr.Expr {
	switch c.Computed {
	case core.ComputedScore:
		return sqlexpr.Col(opts.ScoreColumn)
	case core.ComputedMatchedKeywords:
		return sqlexpr.Col(opts.KeywordsColumn)
	case core.ComputedSourceTable:
		return sqlexpr.Col(opts.SourceTableColumn)
	case core.ComputedOSMType:
		return osmTypeExpr(table, opts)
	}
	if c.Expression != "" {
		return sqlexpr.Raw{SQL: c.Expression}
	}

	var present []sqlexpr.Expr
	for _, src := range c.Sources() {
		if table.HasColumn(src) {
			present = append(present, sqlexpr.Col(src))
		}
	}
	if len(present) == 0 {
		return sqlexpr.Null{Type: c.Type}
	}
	return sqlexpr.Cast{X: sqlexpr.Coalesce(present...), Type: c.Type}
}

// osmTypeExpr derives the OSM element type from the source table. osm2pgsql
// stores relations in the line, roads and polygon tables with negated ids,
// so a way in the line table and the same way in the polygon table share a
// type.
func osmTypeExpr(table *core.TableInfo, opts Options) sqlexpr.Expr {
	switch {
	case strings.HasSuffix(table.Name, "_point"):
		return sqlexpr.Str("node")
	case table.HasColumn(opts.DedupKey):
		return sqlexpr.Case{
			Whens: []sqlexpr.When{{
				Cond: sqlexpr.Compare{Op: sqlexpr.OpLt, Left: sqlexpr.Col(opts.DedupKey), Right: sqlexpr.Int(0)},
				Then: sqlexpr.Str("relation"),
			}},
			Else:   sqlexpr.Str("way"),
			Inline: true,
		}
	}
	return sqlexpr.Str("way")
}

// RegionExpr compiles the bounding-box filter.
func RegionExpr(r core.Region, opts Options) (sqlexpr.Expr, error) {
	b := orb.Bound{
		Min: orb.Point{r.BBox[0], r.BBox[1]},
		Max: orb.Point{r.BBox[2], r.BBox[3]},
	}
	if b.Min[0] >= b.Max[0] || b.Min[1] >= b.Max[1] {
		return nil, fmt.Errorf("region bbox %v is empty", r.BBox)
	}
	if r.Column == "" {
		return nil, fmt.Errorf("region has no geometry column")
	}
	args := []sqlexpr.Expr{sqlexpr.Str(wkt.MarshalString(b.ToPolygon()))}
	if opts.Dialect.GeomFromTextSRID && r.SRID != 0 {
		args = append(args, sqlexpr.Int(r.SRID))
	}
	return sqlexpr.Func{Name: "ST_Intersects", Args: []sqlexpr.Expr{
		sqlexpr.Col(r.Column),
		sqlexpr.Func{Name: "ST_GeomFromText", Args: args},
	}}, nil
}

// ValidateOutputSpec checks names, types and computed kinds of the output
// table.
func ValidateOutputSpec(spec core.OutputTableSpec) error {
	if len(spec.Columns) == 0 {
		return fmt.Errorf("output table %q has no columns", spec.Name)
	}
	seen := make(map[string]bool, len(spec.Columns))
	counts := make(map[core.ComputedKind]int)
	for _, c := range spec.Columns {
		if c.Name == "" {
			return fmt.Errorf("output column with type %q has no name", c.Type)
		}
		if seen[c.Name] {
			return fmt.Errorf("output column %q is declared twice", c.Name)
		}
		seen[c.Name] = true
		if !c.Computed.Valid() {
			return fmt.Errorf("output column %q: unknown computed kind %q", c.Name, c.Computed)
		}
		if c.Computed != core.ComputedNone {
			counts[c.Computed]++
			if counts[c.Computed] > 1 {
				return fmt.Errorf("output column %q: %s is computed twice", c.Name, c.Computed)
			}
		}
		if err := ValidateColumnType(c.Type); err != nil {
			return fmt.Errorf("output column %q: %w", c.Name, err)
		}
	}
	if spec.Limit < 0 {
		return fmt.Errorf("output limit %d is negative", spec.Limit)
	}
	for _, ix := range spec.IndexColumns {
		if !seen[ix] {
			return fmt.Errorf("index column %q is not an output column", ix)
		}
	}
	if r := spec.Region; r != nil {
		col, ok := spec.Column(r.Column)
		if !ok {
			return fmt.Errorf("region column %q is not an output column", r.Column)
		}
		if !col.IsGeometry() {
			return fmt.Errorf("region column %q is %s, not a geometry", r.Column, col.Type)
		}
	}
	return nil
}

// ValidateColumnType checks that typeName is a plain SQL type.
func ValidateColumnType(typeName string) error {
	if typeName == "" {
		return fmt.Errorf("column type is required")
	}
	if len(typeName) > maxColumnTypeLen {
		return fmt.Errorf("column type must be at most %d characters", maxColumnTypeLen)
	}
	if strings.ContainsAny(typeName, ";-'\"\\") {
		return fmt.Errorf("column type contains invalid characters")
	}
	if !columnTypeRe.MatchString(typeName) {
		return fmt.Errorf("column type %q is not a recognized type pattern", typeName)
	}
	return nil
}

// validateGates checks that confidence gates only name output columns.
func validateGates(spec core.OutputTableSpec, conf core.ConfidenceTable) error {
	for _, b := range conf.Bands {
		for _, c := range b.Gate.Columns() {
			if _, ok := spec.Column(c); !ok {
				return fmt.Errorf("confidence band %q gates on %q, which is not an output column", b.Label, c)
			}
		}
	}
	return nil
}

// Assemble builds the complete pipeline script. Upstream artifacts that
// are not available become placeholders; call Script.Validate before
// executing the result.
func Assemble(in AssembleInput) (*Script, error) {
	opts := in.Options.withDefaults()
	plan, err := PlanInsert(in)
	if err != nil {
		return nil, err
	}
	d := opts.Dialect

	script := &Script{
		Title: "aerospace candidate pipeline",
		Meta: []Meta{
			{Key: "stage", Value: StageAssemble},
			{Key: "dialect", Value: d.Name},
			{Key: "schema", Value: in.Catalog.Schema},
		},
		Summary: assembleSummary(in, plan, opts),
	}

	script.Sections = append(script.Sections, Section{
		Stage: StageOutputDDL,
		Title: "output table " + plan.Table,
		SQL:   renderOutputDDL(in.Output, plan, opts),
	})
	script.Sections = append(script.Sections,
		upstreamSection(StageFilteredViews, "filtered views", in.Filtered, StageExclusions, opts))
	script.Sections = append(script.Sections,
		upstreamSection(StageScoredViews, "scored views", in.Scored, StageScoring, opts))
	script.Sections = append(script.Sections, Section{
		Stage: StageInsert,
		Title: "deduplicate, classify and insert candidates",
		SQL:   renderInsert(plan, opts),
	})
	script.Sections = append(script.Sections, Section{
		Stage: StageDiagnostics,
		Title: "diagnostics",
		SQL:   renderDiagnostics(in.Output, plan, opts),
	})
	return script, nil
}

func upstreamSection(stage, title string, art StageSQL, from string, opts Options) Section {
	if !art.Available() {
		opts.Logger.Warn("upstream artifact missing, writing placeholder", slog.String("stage", from))
		return PlaceholderSection(stage, title,
			fmt.Sprintf("the %s artifact is not available.\nrun `aeroscore %s` and assemble again.", from, from))
	}
	if art.Source != "" {
		title += " (from " + art.Source + ")"
	}
	return Section{Stage: stage, Title: title, SQL: stripHeader(art.SQL)}
}

// stripHeader drops the leading comment banner of an embedded artifact so
// the assembled script carries a single header. The artifact's own step
// markers become plain comments, leaving the assembled steps unambiguous.
func stripHeader(sql string) string {
	lines := strings.Split(sql, "\n")
	i := 0
	for i < len(lines) && strings.HasPrefix(lines[i], "-- ") && !strings.HasPrefix(lines[i], stepPrefix) {
		i++
	}
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	lines = lines[i:]
	for j, line := range lines {
		if _, title, ok := ParseStepMarker(line); ok {
			lines[j] = "-- " + title
		}
	}
	return strings.Join(lines, "\n")
}

func assembleSummary(in AssembleInput, plan *InsertPlan, opts Options) []string {
	tables := make([]string, len(plan.Branches))
	for i, b := range plan.Branches {
		tables[i] = b.Table
	}
	limit := "none"
	if plan.Limit > 0 {
		limit = strconv.Itoa(plan.Limit)
	}
	lines := []string{
		"output table: " + opts.Dialect.QuoteQualified(plan.Schema, plan.Table),
		fmt.Sprintf("minimum score: %d", in.Output.MinScore),
		"limit: " + limit,
		"sources: " + strings.Join(tables, ", "),
		fmt.Sprintf("deduplication: %s and element type, highest score wins, then source order", opts.DedupKey),
	}
	if r := in.Output.Region; r != nil {
		lines = append(lines, fmt.Sprintf("region: %s within %s (srid %d)",
			r.Column, strings.Trim(fmt.Sprint(r.BBox), "[]"), r.SRID))
	}
	return lines
}

func renderOutputDDL(spec core.OutputTableSpec, plan *InsertPlan, opts Options) string {
	d := opts.Dialect
	p := sqlexpr.NewPrinter(d)

	p.Write("DROP TABLE IF EXISTS ")
	p.Table(plan.Schema, plan.Table)
	p.Writeln(d.DropClause(), ";")
	p.Write("CREATE TABLE ")
	p.Table(plan.Schema, plan.Table)
	p.Writeln(" (")
	p.Indent()
	p.List(len(spec.Columns), func(i int) {
		p.Ident(spec.Columns[i].Name)
		p.Write(" ", spec.Columns[i].Type)
	}, ",", true)
	p.Newline()
	p.Dedent()
	p.Writeln(");")

	if spec.Description != "" {
		p.Write("COMMENT ON TABLE ")
		p.Table(plan.Schema, plan.Table)
		p.Writeln(" IS ", sqlexpr.QuoteLiteral(spec.Description), ";")
	}
	for _, c := range spec.Columns {
		if c.Description == "" {
			continue
		}
		p.Write("COMMENT ON COLUMN ")
		p.Table(plan.Schema, plan.Table)
		p.Write(".")
		p.Ident(c.Name)
		p.Writeln(" IS ", sqlexpr.QuoteLiteral(c.Description), ";")
	}

	for _, c := range indexColumns(spec, opts) {
		p.Write("CREATE INDEX ", d.QuoteIdentifierIfNeeded(indexName(plan.Table, c.Name)), " ON ")
		p.Table(plan.Schema, plan.Table)
		if c.IsGeometry() && d.SpatialIndex != "" {
			p.Write(" USING ", d.SpatialIndex)
		}
		p.Write(" (")
		p.Ident(c.Name)
		p.Writeln(");")
	}
	return p.String()
}

// indexColumns returns the indexed columns in output order. Without an
// explicit list the score, tier and postcode columns are indexed.
// Geometry columns are always indexed.
func indexColumns(spec core.OutputTableSpec, opts Options) []core.OutputColumn {
	want := make(map[string]bool)
	if spec.IndexColumns != nil {
		for _, c := range spec.IndexColumns {
			want[c] = true
		}
	} else {
		for _, c := range spec.Columns {
			switch {
			case c.Computed == core.ComputedScore, c.Computed == core.ComputedTier:
				want[c.Name] = true
			case c.Name == "postcode", c.SourceColumn == "addr:postcode":
				want[c.Name] = true
			}
		}
	}
	var out []core.OutputColumn
	for _, c := range spec.Columns {
		if want[c.Name] || c.IsGeometry() {
			out = append(out, c)
		}
	}
	return out
}

func indexName(table, column string) string {
	var b strings.Builder
	b.WriteString("idx_")
	for _, r := range table + "_" + column {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' {
			b.WriteRune(r)
		} else if r >= 'A' && r <= 'Z' {
			b.WriteRune(r + ('a' - 'A'))
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func renderInsert(plan *InsertPlan, opts Options) string {
	d := opts.Dialect
	p := sqlexpr.NewPrinter(d)

	p.Write("INSERT INTO ")
	p.Table(plan.Schema, plan.Table)
	p.Writeln(" (")
	p.Indent()
	p.List(len(plan.Columns), func(i int) { p.Ident(plan.Columns[i].Name) }, ",", true)
	p.Newline()
	p.Dedent()
	p.Writeln(")")

	p.Writeln("WITH ", candidatesCTE, " AS (")
	p.Indent()
	for i, b := range plan.Branches {
		if i > 0 {
			p.Writeln("UNION ALL")
		}
		p.Writeln("SELECT")
		p.Indent()
		for j, e := range b.Projections {
			p.Expr(e)
			p.Write(" AS ")
			p.Ident(plan.Branched[j])
			p.Writeln(",")
		}
		p.Expr(b.Key)
		p.Writeln(" AS ", dedupKeyColumn, ",")
		p.Expr(b.Kind)
		p.Writeln(" AS ", osmKindColumn, ",")
		p.Expr(b.Score)
		p.Writeln(" AS ", dedupScoreColumn, ",")
		p.Writeln(strconv.Itoa(b.Rank), " AS ", sourceRankColumn)
		p.Dedent()
		p.Write("FROM ")
		p.Table(plan.ViewSchema, b.View)
		p.Newline()
	}
	p.Dedent()
	p.Writeln("),")

	p.Writeln(rankedCTE, " AS (")
	p.Indent()
	p.Writeln("SELECT")
	p.Indent()
	p.Writeln("*,")
	p.Writeln("ROW_NUMBER() OVER (PARTITION BY ", dedupKeyColumn, ", ", osmKindColumn, " ORDER BY ",
		dedupScoreColumn, " DESC, ", sourceRankColumn, ") AS ", dedupRankColumn)
	p.Dedent()
	p.Writeln("FROM ", candidatesCTE)
	p.Dedent()
	p.Writeln(")")

	p.Writeln("SELECT")
	p.Indent()
	for i, e := range plan.Select {
		p.Expr(e)
		if col, ok := e.(sqlexpr.Column); !ok || col.Name != plan.Columns[i].Name {
			p.Write(" AS ")
			p.Ident(plan.Columns[i].Name)
		}
		if i < len(plan.Select)-1 {
			p.Write(",")
		}
		p.Newline()
	}
	p.Dedent()
	p.Writeln("FROM ", rankedCTE)
	p.Write("WHERE ", dedupRankColumn, " = 1")
	for _, t := range conjuncts(plan.Filter) {
		p.Newline()
		p.Write("  AND ")
		p.Expr(t)
	}
	p.Newline()
	p.Write("ORDER BY ", dedupScoreColumn, " DESC, ", dedupKeyColumn, ", ", osmKindColumn)
	if plan.Limit > 0 {
		p.Newline()
		p.Write("LIMIT ", strconv.Itoa(plan.Limit))
	}
	p.Writeln(";")
	return p.String()
}

func conjuncts(e sqlexpr.Expr) []sqlexpr.Expr {
	switch n := e.(type) {
	case nil:
		return nil
	case sqlexpr.And:
		return n.Terms
	}
	return []sqlexpr.Expr{e}
}

func renderDiagnostics(spec core.OutputTableSpec, plan *InsertPlan, opts Options) string {
	d := opts.Dialect
	p := sqlexpr.NewPrinter(d)
	table := d.QuoteQualified(plan.Schema, plan.Table)

	score, hasScore := spec.ComputedColumn(core.ComputedScore)
	for _, kind := range []core.ComputedKind{core.ComputedTier, core.ComputedConfidence, core.ComputedSourceTable} {
		col, ok := spec.ComputedColumn(kind)
		if !ok {
			continue
		}
		name := d.QuoteIdentifierIfNeeded(col.Name)
		p.Writeln("SELECT ", name, ", COUNT(*) AS candidates")
		p.Writeln("FROM ", table)
		p.Writeln("GROUP BY ", name)
		p.Writeln("ORDER BY candidates DESC, ", name, ";")
		p.Newline()
	}

	listed := topListColumns(spec, opts)
	if len(listed) > 0 {
		p.Writeln("SELECT ", strings.Join(quoteAll(d.QuoteIdentifierIfNeeded, listed), ", "))
		p.Writeln("FROM ", table)
		if hasScore {
			p.Writeln("ORDER BY ", d.QuoteIdentifierIfNeeded(score.Name), " DESC")
		}
		p.Writeln("LIMIT ", strconv.Itoa(opts.TopN), ";")
	}
	return p.String()
}

// topListColumns picks the identifying and classification columns for the
// top-N listing.
func topListColumns(spec core.OutputTableSpec, opts Options) []string {
	rank := func(c core.OutputColumn) int {
		switch {
		case c.Name == opts.DedupKey || c.SourceColumn == opts.DedupKey:
			return 1
		case c.Name == "name":
			return 2
		case c.Computed == core.ComputedSourceTable:
			return 3
		case c.Computed == core.ComputedScore:
			return 4
		case c.Computed == core.ComputedTier:
			return 5
		case c.Computed == core.ComputedConfidence:
			return 6
		}
		return 0
	}
	var cols []core.OutputColumn
	for _, c := range spec.Columns {
		if rank(c) > 0 {
			cols = append(cols, c)
		}
	}
	sort.SliceStable(cols, func(i, j int) bool { return rank(cols[i]) < rank(cols[j]) })
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

func quoteAll(quote func(string) string, names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = quote(n)
	}
	return out
}
