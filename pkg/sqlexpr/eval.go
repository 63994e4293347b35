package sqlexpr

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Row is a set of column values keyed by column name. A missing key or a
// nil value is NULL.
type Row map[string]any

// Eval evaluates e against row with SQL three-valued logic. Predicates
// yield true, false or nil (unknown). Raw fragments and functions other
// than LOWER, UPPER and COALESCE cannot be evaluated and return an error.
func Eval(e Expr, row Row) (any, error) {
	switch n := e.(type) {
	case nil:
		return nil, nil
	case Column:
		return normalize(row[n.Name]), nil
	case String:
		return n.Value, nil
	case Number:
		return n.Value, nil
	case Bool:
		return n.Value, nil
	case Null:
		return nil, nil
	case Raw:
		return nil, fmt.Errorf("cannot evaluate raw SQL %q", n.SQL)
	case And:
		return evalJunction(n.Terms, row, false)
	case Or:
		return evalJunction(n.Terms, row, true)
	case Not:
		v, err := evalBool(n.X, row)
		if err != nil || v == nil {
			return nil, err
		}
		return !*v, nil
	case IsNull:
		v, err := Eval(n.X, row)
		if err != nil {
			return nil, err
		}
		return (v == nil) != n.Negate, nil
	case In:
		return evalIn(n, row)
	case Compare:
		return evalCompare(n, row)
	case Like:
		v, err := Eval(n.X, row)
		if err != nil || v == nil {
			return nil, err
		}
		re, err := likeRegexp(n.Pattern, n.Escaped)
		if err != nil {
			return nil, err
		}
		return re.MatchString(toString(v)), nil
	case Func:
		return evalFunc(n, row)
	case Case:
		for _, w := range n.Whens {
			c, err := evalBool(w.Cond, row)
			if err != nil {
				return nil, err
			}
			if c != nil && *c {
				return Eval(w.Then, row)
			}
		}
		return Eval(n.Else, row)
	case Sum:
		var total float64
		for _, t := range n.Terms {
			v, err := Eval(t, row)
			if err != nil {
				return nil, err
			}
			if v == nil {
				return nil, nil
			}
			f, ok := v.(float64)
			if !ok {
				return nil, fmt.Errorf("cannot add non-numeric value %v", v)
			}
			total += f
		}
		return total, nil
	case Array:
		out := make([]string, 0, len(n.Elems))
		for _, el := range n.Elems {
			v, err := Eval(el, row)
			if err != nil {
				return nil, err
			}
			if v == nil {
				if n.DropNulls {
					continue
				}
				return nil, fmt.Errorf("NULL array element without null filtering")
			}
			out = append(out, toString(v))
		}
		return out, nil
	case Cast:
		return Eval(n.X, row)
	}
	return nil, fmt.Errorf("cannot evaluate %T", e)
}

// EvalBool evaluates a predicate. A nil result means unknown.
func EvalBool(e Expr, row Row) (*bool, error) {
	return evalBool(e, row)
}

// Matches reports whether a WHERE clause of e keeps row. Unknown is not
// kept.
func Matches(e Expr, row Row) (bool, error) {
	b, err := evalBool(e, row)
	if err != nil {
		return false, err
	}
	return b != nil && *b, nil
}

func evalBool(e Expr, row Row) (*bool, error) {
	v, err := Eval(e, row)
	if err != nil || v == nil {
		return nil, err
	}
	b, ok := v.(bool)
	if !ok {
		return nil, fmt.Errorf("expected boolean, got %T", v)
	}
	return &b, nil
}

func evalJunction(terms []Expr, row Row, isOr bool) (any, error) {
	unknown := false
	for _, t := range terms {
		b, err := evalBool(t, row)
		if err != nil {
			return nil, err
		}
		switch {
		case b == nil:
			unknown = true
		case *b == isOr:
			// TRUE decides an OR, FALSE decides an AND.
			return isOr, nil
		}
	}
	if unknown {
		return nil, nil
	}
	return !isOr, nil
}

func evalIn(n In, row Row) (any, error) {
	v, err := Eval(n.X, row)
	if err != nil || v == nil {
		return nil, err
	}
	sawNull := false
	for _, item := range n.Values {
		iv, err := Eval(item, row)
		if err != nil {
			return nil, err
		}
		if iv == nil {
			sawNull = true
			continue
		}
		if compareValues(v, iv) == 0 {
			return !n.Negate, nil
		}
	}
	if sawNull {
		return nil, nil
	}
	return n.Negate, nil
}

func evalCompare(n Compare, row Row) (any, error) {
	l, err := Eval(n.Left, row)
	if err != nil {
		return nil, err
	}
	r, err := Eval(n.Right, row)
	if err != nil {
		return nil, err
	}
	if l == nil || r == nil {
		return nil, nil
	}
	c := compareValues(l, r)
	switch n.Op {
	case OpEq:
		return c == 0, nil
	case OpNe:
		return c != 0, nil
	case OpLt:
		return c < 0, nil
	case OpLe:
		return c <= 0, nil
	case OpGt:
		return c > 0, nil
	case OpGe:
		return c >= 0, nil
	}
	return nil, fmt.Errorf("unknown comparison %q", n.Op)
}

func evalFunc(n Func, row Row) (any, error) {
	args := make([]any, len(n.Args))
	for i, a := range n.Args {
		v, err := Eval(a, row)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	switch strings.ToUpper(n.Name) {
	case "LOWER", "UPPER":
		if len(args) != 1 {
			return nil, fmt.Errorf("%s takes one argument", n.Name)
		}
		if args[0] == nil {
			return nil, nil
		}
		if strings.EqualFold(n.Name, "LOWER") {
			return strings.ToLower(toString(args[0])), nil
		}
		return strings.ToUpper(toString(args[0])), nil
	case "COALESCE":
		for _, a := range args {
			if a != nil {
				return a, nil
			}
		}
		return nil, nil
	}
	return nil, fmt.Errorf("cannot evaluate function %s", n.Name)
}

// compareValues orders two non-nil values. Numbers compare numerically;
// anything else compares as text.
func compareValues(a, b any) int {
	af, aok := a.(float64)
	bf, bok := b.(float64)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	return strings.Compare(toString(a), toString(b))
}

func normalize(v any) any {
	switch x := v.(type) {
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case float32:
		return float64(x)
	}
	return v
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return FormatNumber(x)
	case bool:
		return strconv.FormatBool(x)
	}
	return fmt.Sprint(v)
}

func likeRegexp(pattern string, escaped bool) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("(?s)^")
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case escaped && r == '\\' && i+1 < len(runes):
			i++
			b.WriteString(regexp.QuoteMeta(string(runes[i])))
		case r == '%':
			b.WriteString(".*")
		case r == '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}
