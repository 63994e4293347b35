package compiler

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/aeroscore/pkg/core"
	"github.com/leapstack-labs/aeroscore/pkg/sqlexpr"
)

// FilteredView is the compiled exclusion filter of one raw table.
type FilteredView struct {
	Table string
	Name  string
	Rows  int64

	// Predicate is the WHERE clause. It is TRUE when no exclusion applies.
	Predicate sqlexpr.Expr

	Applied int
	Skipped int
	Bypass  []string
}

// CompileExclusionPredicate builds the keep predicate for one table.
//
// Applicable defaults and table overrides are AND-combined. When none
// apply the predicate is TRUE and bypass clauses are not consulted.
// Otherwise every applicable bypass clause is OR-ed onto the inclusion.
func CompileExclusionPredicate(rs core.ExclusionRuleSet, table *core.TableInfo, opts Options) (*FilteredView, error) {
	opts = opts.withDefaults()
	view := &FilteredView{
		Table: table.Name,
		Name:  opts.FilteredViewName(table.Name),
		Rows:  table.RowCount,
	}

	conds := make([]core.Condition, 0, len(rs.Defaults)+len(rs.TableOverrides[table.Name]))
	conds = append(conds, rs.Defaults...)
	conds = append(conds, rs.TableOverrides[table.Name]...)

	terms := make([]sqlexpr.Expr, 0, len(conds))
	for _, c := range conds {
		e, err := CompileCondition(c, table, opts)
		if err != nil {
			return nil, stageErr(StageExclusions, table.Name, c.Field, err)
		}
		if e == nil {
			view.Skipped++
			opts.Logger.Debug("exclusion does not apply",
				slog.String("table", table.Name), slog.String("condition", c.String()))
			continue
		}
		view.Applied++
		terms = append(terms, e)
	}

	inclusion := sqlexpr.AndOf(terms...)
	if inclusion == nil {
		view.Predicate = sqlexpr.True
		return view, nil
	}

	bypass := make([]sqlexpr.Expr, 0, len(rs.Bypass)+1)
	bypass = append(bypass, inclusion)
	for _, clause := range rs.Bypass {
		e, err := CompileConditions(clause.Conditions, core.CombineOr, table, opts)
		if err != nil {
			return nil, stageErr(StageExclusions, table.Name, clause.Name, err)
		}
		if e == nil {
			continue
		}
		view.Bypass = append(view.Bypass, clause.Name)
		bypass = append(bypass, e)
	}
	view.Predicate = sqlexpr.OrOf(bypass...)
	return view, nil
}

// CompileExclusions compiles a filtered view for every usable table of the
// catalog in table-name order. Absent and empty tables are skipped.
func CompileExclusions(rs core.ExclusionRuleSet, cat *core.Catalog, opts Options) ([]*FilteredView, error) {
	opts = opts.withDefaults()
	for name := range rs.TableOverrides {
		if cat.Table(name) == nil {
			opts.Logger.Warn("exclusion overrides name a table that is not in the catalog", slog.String("table", name))
		}
	}

	var views []*FilteredView
	for _, name := range cat.TableNames() {
		table := cat.Table(name)
		if !table.Usable() {
			opts.Logger.Info("skipping table", slog.String("table", name),
				slog.Bool("exists", table.Exists), slog.Int64("rows", table.RowCount))
			continue
		}
		view, err := CompileExclusionPredicate(rs, table, opts)
		if err != nil {
			return nil, err
		}
		opts.Logger.Debug("compiled filtered view", slog.String("view", view.Name),
			slog.Int("applied", view.Applied), slog.Int("skipped", view.Skipped))
		views = append(views, view)
	}
	return views, nil
}

// RenderExclusions renders the exclusions artifact: one drop-and-create
// block per filtered view, plus commented preview counts when enabled.
func RenderExclusions(cat *core.Catalog, views []*FilteredView, opts Options) *Script {
	opts = opts.withDefaults()
	d := opts.Dialect

	script := &Script{
		Title: "aerospace exclusion filters",
		Meta: []Meta{
			{Key: "stage", Value: StageExclusions},
			{Key: "dialect", Value: d.Name},
			{Key: "schema", Value: cat.Schema},
		},
	}

	for _, v := range views {
		p := sqlexpr.NewPrinter(d)
		p.Comment(fmt.Sprintf("%s: %d rows, %d exclusions applied, %d skipped, bypass: %s",
			v.Table, v.Rows, v.Applied, v.Skipped, listOrNone(v.Bypass)))
		p.Write("DROP VIEW IF EXISTS ")
		p.Table(cat.Schema, v.Name)
		p.Writeln(d.DropClause(), ";")
		p.Write("CREATE VIEW ")
		p.Table(cat.Schema, v.Name)
		p.Writeln(" AS")
		p.Writeln("SELECT *")
		p.Write("FROM ")
		p.Table(cat.Schema, v.Table)
		p.Newline()
		p.Write("WHERE ")
		p.Expr(v.Predicate)
		p.Writeln(";")
		script.Sections = append(script.Sections, Section{
			Stage: StageFilteredViews,
			Title: "filtered view " + v.Name,
			SQL:   p.String(),
		})
	}

	if opts.PreviewCounts && len(views) > 0 {
		script.Sections = append(script.Sections, Section{
			Stage: StagePreview,
			Title: "preview counts (uncomment to run)",
			SQL:   previewCounts(cat.Schema, viewNames(views), opts),
		})
	}
	return script
}

// previewCounts renders commented COUNT(*) queries for the named views.
func previewCounts(schema string, views []string, opts Options) string {
	p := sqlexpr.NewPrinter(opts.Dialect)
	for _, v := range views {
		q := sqlexpr.NewPrinter(opts.Dialect)
		q.Write("SELECT ", sqlexpr.QuoteLiteral(v), " AS view_name, COUNT(*) AS row_count FROM ")
		q.Table(schema, v)
		q.Write(";")
		p.Comment(strings.TrimSuffix(q.String(), "\n"))
	}
	return p.String()
}

func viewNames(views []*FilteredView) []string {
	out := make([]string, len(views))
	for i, v := range views {
		out[i] = v.Name
	}
	return out
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
