package compiler

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/aeroscore/pkg/core"
	"github.com/leapstack-labs/aeroscore/pkg/sqlexpr"
)

const (
	containsSuffix = "_contains"
	areaSuffix     = "_area"
)

// ResolveColumn maps a rule field to a physical column of table.
//
// Aliases are applied first, then a trailing _contains is stripped. A field
// ending in _area that is not a column resolves to the first existing
// area column. The bool is false when nothing matches.
func ResolveColumn(field string, table *core.TableInfo, opts Options) (string, bool) {
	opts = opts.withDefaults()
	if alias, ok := opts.FieldAliases[field]; ok {
		return alias, table.HasColumn(alias)
	}

	name := strings.TrimSuffix(field, containsSuffix)
	if table.HasColumn(name) {
		return name, true
	}
	if strings.HasSuffix(name, areaSuffix) {
		for _, col := range opts.AreaColumns {
			if table.HasColumn(col) {
				return col, true
			}
		}
	}
	return "", false
}

// CompileCondition lowers one condition to a predicate for table. It
// returns nil when the condition does not apply to the table, either
// because its column is missing or because it lists no values.
func CompileCondition(cond core.Condition, table *core.TableInfo, opts Options) (sqlexpr.Expr, error) {
	if !cond.Operator.Valid() {
		return nil, fmt.Errorf("unknown operator %q on field %q", cond.Operator, cond.Field)
	}
	name, ok := ResolveColumn(cond.Field, table, opts)
	if !ok {
		return nil, nil
	}
	col := sqlexpr.Col(name)

	switch cond.Operator {
	case core.OpIsNull:
		return sqlexpr.IsNullOf(col), nil
	case core.OpIsNotNull:
		return sqlexpr.IsNotNullOf(col), nil

	case core.OpEqualsAny:
		if hasWildcard(cond.Values) {
			return sqlexpr.IsNotNullOf(col), nil
		}
		switch len(cond.Values) {
		case 0:
			return nil, nil
		case 1:
			return sqlexpr.Eq(col, sqlexpr.Str(cond.Values[0])), nil
		}
		return sqlexpr.In{X: col, Values: sqlexpr.Strs(cond.Values)}, nil

	case core.OpNotEqualsAny:
		if hasWildcard(cond.Values) {
			return sqlexpr.IsNullOf(col), nil
		}
		if len(cond.Values) == 0 {
			return nil, nil
		}
		// NOT IN alone drops NULL rows, and NULL means the tag is absent.
		return sqlexpr.OrOf(
			sqlexpr.IsNullOf(col),
			sqlexpr.In{X: col, Values: sqlexpr.Strs(cond.Values), Negate: true},
		), nil

	case core.OpContainsKeywordAny:
		return keywordMatch(col, cond.Values), nil

	case core.OpExcludesKeywordAny:
		match := keywordMatch(col, cond.Values)
		if match == nil {
			return nil, nil
		}
		return sqlexpr.OrOf(sqlexpr.IsNullOf(col), sqlexpr.Not{X: match}), nil

	case core.OpPrefixAny:
		return prefixMatch(col, cond.Values), nil

	case core.OpExcludesPrefixAny:
		match := prefixMatch(col, cond.Values)
		if match == nil {
			return nil, nil
		}
		return sqlexpr.OrOf(sqlexpr.IsNullOf(col), sqlexpr.Not{X: match}), nil

	case core.OpNumericLT:
		// Keep rows at or above the bound; unknown sizes are kept.
		return sqlexpr.OrOf(
			sqlexpr.IsNullOf(col),
			sqlexpr.Compare{Op: sqlexpr.OpGe, Left: col, Right: sqlexpr.Num(cond.Bound)},
		), nil
	case core.OpNumericGT:
		return sqlexpr.OrOf(
			sqlexpr.IsNullOf(col),
			sqlexpr.Compare{Op: sqlexpr.OpLe, Left: col, Right: sqlexpr.Num(cond.Bound)},
		), nil
	case core.OpNumericBelow:
		return sqlexpr.Compare{Op: sqlexpr.OpLt, Left: col, Right: sqlexpr.Num(cond.Bound)}, nil
	case core.OpNumericAbove:
		return sqlexpr.Compare{Op: sqlexpr.OpGt, Left: col, Right: sqlexpr.Num(cond.Bound)}, nil
	}
	return nil, fmt.Errorf("unhandled operator %q", cond.Operator)
}

// CompileConditions lowers every condition and joins the applicable ones
// with the combinator. It returns nil when none apply.
func CompileConditions(conds []core.Condition, combine core.Combinator, table *core.TableInfo, opts Options) (sqlexpr.Expr, error) {
	terms := make([]sqlexpr.Expr, 0, len(conds))
	for _, c := range conds {
		e, err := CompileCondition(c, table, opts)
		if err != nil {
			return nil, err
		}
		terms = append(terms, e)
	}
	if combine == core.CombineAnd {
		return sqlexpr.AndOf(terms...), nil
	}
	return sqlexpr.OrOf(terms...), nil
}

// keywordMatch is a case-insensitive substring test for any keyword.
func keywordMatch(col sqlexpr.Expr, keywords []string) sqlexpr.Expr {
	terms := make([]sqlexpr.Expr, 0, len(keywords))
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		terms = append(terms, sqlexpr.Contains(sqlexpr.Lower(col), strings.ToLower(kw)))
	}
	return sqlexpr.OrOf(terms...)
}

// prefixMatch is a case-insensitive prefix test for any of prefixes.
func prefixMatch(col sqlexpr.Expr, prefixes []string) sqlexpr.Expr {
	terms := make([]sqlexpr.Expr, 0, len(prefixes))
	for _, p := range prefixes {
		if p == "" {
			continue
		}
		terms = append(terms, sqlexpr.HasPrefix(sqlexpr.Upper(col), strings.ToUpper(p)))
	}
	return sqlexpr.OrOf(terms...)
}

func hasWildcard(values []string) bool {
	for _, v := range values {
		if v == core.Wildcard {
			return true
		}
	}
	return false
}
