// Package sqlexpr is the SQL expression tree the compiler builds predicates
// and scores from. Nodes are plain values; Printer renders them for a
// dialect and is the only place literals and identifiers are quoted.
package sqlexpr

import "strings"

// Expr is any SQL expression node.
type Expr interface {
	exprNode()
}

// Column references a column, optionally qualified by a table alias.
type Column struct {
	Qualifier string
	Name      string
}

// String is a text literal.
type String struct {
	Value string
}

// Number is a numeric literal.
type Number struct {
	Value float64
}

// Bool is TRUE or FALSE.
type Bool struct {
	Value bool
}

// Null is the NULL literal. A non-empty Type renders CAST(NULL AS Type).
type Null struct {
	Type string
}

// Raw is a trusted SQL fragment taken verbatim from configuration.
type Raw struct {
	SQL string
}

// And is the conjunction of its terms.
type And struct {
	Terms []Expr
}

// Or is the disjunction of its terms.
type Or struct {
	Terms []Expr
}

// Not negates X.
type Not struct {
	X Expr
}

// IsNull tests X IS NULL, or IS NOT NULL when Negate is set.
type IsNull struct {
	X      Expr
	Negate bool
}

// In tests membership of X in Values.
type In struct {
	X      Expr
	Values []Expr
	Negate bool
}

// CompareOp is a binary comparison operator.
type CompareOp string

// Comparison operators.
const (
	OpEq CompareOp = "="
	OpNe CompareOp = "<>"
	OpLt CompareOp = "<"
	OpLe CompareOp = "<="
	OpGt CompareOp = ">"
	OpGe CompareOp = ">="
)

// Compare is Left Op Right.
type Compare struct {
	Op    CompareOp
	Left  Expr
	Right Expr
}

// Like matches X against a LIKE pattern. Escaped records that the pattern
// uses backslash escapes, which is rendered as an explicit ESCAPE clause.
type Like struct {
	X       Expr
	Pattern string
	Escaped bool
}

// Func is a function call.
type Func struct {
	Name string
	Args []Expr
}

// When is one branch of a Case.
type When struct {
	Cond Expr
	Then Expr
}

// Case is a searched CASE expression. Branches are tested in order and the
// first true one wins. Inline renders it on a single line.
type Case struct {
	Whens  []When
	Else   Expr
	Inline bool
}

// Sum adds its terms.
type Sum struct {
	Terms []Expr
}

// Array is a list of text values. DropNulls removes NULL elements at query
// time. An empty array renders as a typed empty list.
type Array struct {
	Elems     []Expr
	DropNulls bool
}

// Cast converts X to Type.
type Cast struct {
	X    Expr
	Type string
}

func (Column) exprNode()  {}
func (String) exprNode()  {}
func (Number) exprNode()  {}
func (Bool) exprNode()    {}
func (Null) exprNode()    {}
func (Raw) exprNode()     {}
func (And) exprNode()     {}
func (Or) exprNode()      {}
func (Not) exprNode()     {}
func (IsNull) exprNode()  {}
func (In) exprNode()      {}
func (Compare) exprNode() {}
func (Like) exprNode()    {}
func (Func) exprNode()    {}
func (Case) exprNode()    {}
func (Sum) exprNode()     {}
func (Array) exprNode()   {}
func (Cast) exprNode()    {}

// Col returns an unqualified column reference.
func Col(name string) Column { return Column{Name: name} }

// QCol returns a column reference qualified by alias.
func QCol(alias, name string) Column { return Column{Qualifier: alias, Name: name} }

// Str returns a text literal.
func Str(s string) String { return String{Value: s} }

// Int returns an integer literal.
func Int(n int) Number { return Number{Value: float64(n)} }

// Num returns a numeric literal.
func Num(f float64) Number { return Number{Value: f} }

// True is the TRUE literal.
var True = Bool{Value: true}

// AndOf joins the non-nil terms with AND. It returns nil when no term is
// left and the term itself when only one is.
func AndOf(terms ...Expr) Expr {
	kept := compact(terms)
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return And{Terms: kept}
}

// OrOf joins the non-nil terms with OR, folding like AndOf.
func OrOf(terms ...Expr) Expr {
	kept := compact(terms)
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return Or{Terms: kept}
}

func compact(terms []Expr) []Expr {
	kept := make([]Expr, 0, len(terms))
	for _, t := range terms {
		if t != nil {
			kept = append(kept, t)
		}
	}
	return kept
}

// IsNullOf returns x IS NULL.
func IsNullOf(x Expr) Expr { return IsNull{X: x} }

// IsNotNullOf returns x IS NOT NULL.
func IsNotNullOf(x Expr) Expr { return IsNull{X: x, Negate: true} }

// Eq returns l = r.
func Eq(l, r Expr) Expr { return Compare{Op: OpEq, Left: l, Right: r} }

// Lower returns LOWER(x).
func Lower(x Expr) Expr { return Func{Name: "LOWER", Args: []Expr{x}} }

// Upper returns UPPER(x).
func Upper(x Expr) Expr { return Func{Name: "UPPER", Args: []Expr{x}} }

// Coalesce returns COALESCE(args...), or the single argument unchanged.
func Coalesce(args ...Expr) Expr {
	if len(args) == 1 {
		return args[0]
	}
	return Func{Name: "COALESCE", Args: args}
}

// Strs converts values to text literals.
func Strs(values []string) []Expr {
	out := make([]Expr, len(values))
	for i, v := range values {
		out[i] = Str(v)
	}
	return out
}

// Contains returns a LIKE test for substr anywhere in x.
func Contains(x Expr, substr string) Expr {
	esc, escaped := EscapeLike(substr)
	return Like{X: x, Pattern: "%" + esc + "%", Escaped: escaped}
}

// HasPrefix returns a LIKE test for x starting with prefix.
func HasPrefix(x Expr, prefix string) Expr {
	esc, escaped := EscapeLike(prefix)
	return Like{X: x, Pattern: esc + "%", Escaped: escaped}
}

// EscapeLike backslash-escapes the LIKE wildcards in s. The bool reports
// whether anything was escaped.
func EscapeLike(s string) (string, bool) {
	if !strings.ContainsAny(s, `\%_`) {
		return s, false
	}
	var b strings.Builder
	for _, r := range s {
		if r == '\\' || r == '%' || r == '_' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String(), true
}
