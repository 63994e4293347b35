package compiler

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/aeroscore/pkg/core"
	"github.com/leapstack-labs/aeroscore/pkg/sqlexpr"
)

// ScoredView is the compiled score of one filtered view.
type ScoredView struct {
	Table    string
	Filtered string
	Name     string

	Score    sqlexpr.Expr
	Keywords sqlexpr.Expr

	// Columns lists the view's columns: the raw table's columns followed
	// by the score, matched keywords and source table columns.
	Columns []string

	// Rules is the number of weighted rules and bonuses that applied.
	Rules int
}

// HasColumn reports whether the scored view exposes name.
func (v *ScoredView) HasColumn(name string) bool {
	for _, c := range v.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// CompileFirstMatchCase compiles positive rules into one CASE that yields
// the weight of the first matching rule in declared order, else 0. Rules
// with no applicable condition are left out; nil means none applied.
func CompileFirstMatchCase(rules []core.WeightedRule, table *core.TableInfo, opts Options) (sqlexpr.Expr, int, error) {
	var whens []sqlexpr.When
	for _, r := range rules {
		cond, err := CompileConditions(r.Conditions, combinatorOr(r.Combinator), table, opts)
		if err != nil {
			return nil, 0, stageErr(StageScoring, table.Name, r.Name, err)
		}
		if cond == nil {
			continue
		}
		whens = append(whens, sqlexpr.When{Cond: cond, Then: sqlexpr.Int(r.Weight)})
	}
	if len(whens) == 0 {
		return nil, 0, nil
	}
	return sqlexpr.Case{Whens: whens, Else: sqlexpr.Int(0)}, len(whens), nil
}

// CompileSummedTerms compiles rules whose weights all add up: each
// applicable rule becomes its own CASE yielding the weight or 0.
func CompileSummedTerms(rules []core.WeightedRule, table *core.TableInfo, opts Options) ([]sqlexpr.Expr, error) {
	var terms []sqlexpr.Expr
	for _, r := range rules {
		cond, err := CompileConditions(r.Conditions, combinatorOr(r.Combinator), table, opts)
		if err != nil {
			return nil, stageErr(StageScoring, table.Name, r.Name, err)
		}
		if cond == nil {
			continue
		}
		terms = append(terms, weightTerm(cond, r.Weight))
	}
	return terms, nil
}

// CompileKeywordBonuses compiles one summed term per bonus group that has
// at least one of its fields.
func CompileKeywordBonuses(bonuses []core.KeywordBonus, table *core.TableInfo, opts Options) []sqlexpr.Expr {
	var terms []sqlexpr.Expr
	for _, b := range bonuses {
		cond := keywordInFields(b.Keywords, bonusFields(b), table, opts)
		if cond == nil {
			continue
		}
		terms = append(terms, weightTerm(cond, b.Weight))
	}
	return terms
}

// MatchedKeywordsExpr lists every bonus keyword found in the row's text
// fields, NULLs removed. Each keyword appears once, in first-declared order.
func MatchedKeywordsExpr(bonuses []core.KeywordBonus, table *core.TableInfo, opts Options) sqlexpr.Expr {
	seen := make(map[string]bool)
	var elems []sqlexpr.Expr
	for _, b := range bonuses {
		fields := bonusFields(b)
		for _, kw := range b.Keywords {
			key := strings.ToLower(kw)
			if kw == "" || seen[key] {
				continue
			}
			cond := keywordInFields([]string{kw}, fields, table, opts)
			if cond == nil {
				continue
			}
			seen[key] = true
			elems = append(elems, sqlexpr.Case{
				Whens:  []sqlexpr.When{{Cond: cond, Then: sqlexpr.Str(key)}},
				Inline: true,
			})
		}
	}
	return sqlexpr.Array{Elems: elems, DropNulls: true}
}

// CompileScoreExpr sums the first-match positive CASE, keyword bonuses,
// negative signals and contextual negatives. It is 0 when nothing applies.
func CompileScoreExpr(rs core.ScoringRuleSet, table *core.TableInfo, opts Options) (sqlexpr.Expr, int, error) {
	var terms []sqlexpr.Expr

	positive, n, err := CompileFirstMatchCase(rs.Positive, table, opts)
	if err != nil {
		return nil, 0, err
	}
	if positive != nil {
		terms = append(terms, positive)
	}

	bonuses := CompileKeywordBonuses(rs.KeywordBonuses, table, opts)
	terms = append(terms, bonuses...)
	n += len(bonuses)

	for _, group := range [][]core.WeightedRule{rs.Negative, rs.Contextual} {
		summed, err := CompileSummedTerms(group, table, opts)
		if err != nil {
			return nil, 0, err
		}
		terms = append(terms, summed...)
		n += len(summed)
	}

	if len(terms) == 0 {
		return sqlexpr.Int(0), 0, nil
	}
	return sqlexpr.Sum{Terms: terms}, n, nil
}

// CompileScoring compiles a scored view for every filtered view. The
// filtered views carry the table set, so both artifacts always agree on it.
func CompileScoring(rs core.ScoringRuleSet, cat *core.Catalog, filtered []*FilteredView, opts Options) ([]*ScoredView, error) {
	opts = opts.withDefaults()
	computed := []string{opts.ScoreColumn, opts.KeywordsColumn, opts.SourceTableColumn}

	var views []*ScoredView
	for _, fv := range filtered {
		table := cat.Table(fv.Table)
		if table == nil {
			return nil, stageErr(StageScoring, fv.Table, "", fmt.Errorf("table is not in the catalog"))
		}
		for _, c := range computed {
			if table.HasColumn(c) {
				return nil, stageErr(StageScoring, table.Name, "",
					fmt.Errorf("raw table already has a column named %q", c))
			}
		}

		score, n, err := CompileScoreExpr(rs, table, opts)
		if err != nil {
			return nil, err
		}

		cols := append(table.ColumnNames(), computed...)
		view := &ScoredView{
			Table:    table.Name,
			Filtered: fv.Name,
			Name:     opts.ScoredViewName(table.Name),
			Score:    score,
			Keywords: MatchedKeywordsExpr(rs.KeywordBonuses, table, opts),
			Columns:  cols,
			Rules:    n,
		}
		opts.Logger.Debug("compiled scored view", slog.String("view", view.Name), slog.Int("rules", n))
		views = append(views, view)
	}
	return views, nil
}

// RenderScoring renders the scoring artifact. Each view selects from the
// filtered view inside a subquery so the score can be filtered on by name.
func RenderScoring(cat *core.Catalog, views []*ScoredView, opts Options) *Script {
	opts = opts.withDefaults()
	d := opts.Dialect

	script := &Script{
		Title: "aerospace scoring views",
		Meta: []Meta{
			{Key: "stage", Value: StageScoring},
			{Key: "dialect", Value: d.Name},
			{Key: "schema", Value: cat.Schema},
		},
	}

	for _, v := range views {
		p := sqlexpr.NewPrinter(d)
		p.Comment(fmt.Sprintf("%s: %d scoring terms", v.Table, v.Rules))
		p.Write("DROP VIEW IF EXISTS ")
		p.Table(cat.Schema, v.Name)
		p.Writeln(d.DropClause(), ";")
		p.Write("CREATE VIEW ")
		p.Table(cat.Schema, v.Name)
		p.Writeln(" AS")
		p.Writeln("SELECT *")
		p.Writeln("FROM (")
		p.Indent()
		p.Writeln("SELECT")
		p.Indent()
		p.Writeln("f.*,")
		p.Expr(v.Score)
		p.Write(" AS ")
		p.Ident(opts.ScoreColumn)
		p.Writeln(",")
		p.Expr(v.Keywords)
		p.Write(" AS ")
		p.Ident(opts.KeywordsColumn)
		p.Writeln(",")
		p.Expr(sqlexpr.Str(v.Table))
		p.Write(" AS ")
		p.Ident(opts.SourceTableColumn)
		p.Newline()
		p.Dedent()
		p.Write("FROM ")
		p.Table(cat.Schema, v.Filtered)
		p.Writeln(" AS f")
		p.Dedent()
		p.Writeln(") AS scored")
		p.Write("WHERE ")
		p.Ident(opts.ScoreColumn)
		p.Writeln(" > 0;")

		script.Sections = append(script.Sections, Section{
			Stage: StageScoredViews,
			Title: "scored view " + v.Name,
			SQL:   p.String(),
		})
	}

	if opts.PreviewCounts && len(views) > 0 {
		names := make([]string, len(views))
		for i, v := range views {
			names[i] = v.Name
		}
		script.Sections = append(script.Sections, Section{
			Stage: StagePreview,
			Title: "preview counts (uncomment to run)",
			SQL:   previewCounts(cat.Schema, names, opts),
		})
	}
	return script
}

func weightTerm(cond sqlexpr.Expr, weight int) sqlexpr.Expr {
	return sqlexpr.Case{
		Whens:  []sqlexpr.When{{Cond: cond, Then: sqlexpr.Int(weight)}},
		Else:   sqlexpr.Int(0),
		Inline: true,
	}
}

// keywordInFields tests whether any keyword occurs in any resolvable field.
func keywordInFields(keywords, fields []string, table *core.TableInfo, opts Options) sqlexpr.Expr {
	var terms []sqlexpr.Expr
	for _, f := range fields {
		col, ok := ResolveColumn(f, table, opts)
		if !ok {
			continue
		}
		terms = append(terms, keywordMatch(sqlexpr.Col(col), keywords))
	}
	return sqlexpr.OrOf(terms...)
}

func bonusFields(b core.KeywordBonus) []string {
	if len(b.Fields) == 0 {
		return core.DefaultKeywordFields
	}
	return b.Fields
}

// combinatorOr treats an unset combinator as OR.
func combinatorOr(c core.Combinator) core.Combinator {
	if c == "" {
		return core.CombineOr
	}
	return c
}
