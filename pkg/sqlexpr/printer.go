package sqlexpr

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/leapstack-labs/aeroscore/pkg/core"
	"github.com/leapstack-labs/aeroscore/pkg/dialect"
)

const indentSize = 2

// Printer writes SQL text with indentation for one dialect. Statements are
// laid out with Write/Newline/Indent; expressions go through Expr.
type Printer struct {
	dialect     *dialect.Dialect
	output      *bytes.Buffer
	depth       int
	atLineStart bool
}

// NewPrinter returns a printer for d.
func NewPrinter(d *dialect.Dialect) *Printer {
	return &Printer{
		dialect:     d,
		output:      &bytes.Buffer{},
		atLineStart: true,
	}
}

// Render renders a single expression at depth zero.
func Render(e Expr, d *dialect.Dialect) string {
	p := NewPrinter(d)
	p.Expr(e)
	return p.output.String()
}

// Dialect returns the printer's dialect.
func (p *Printer) Dialect() *dialect.Dialect {
	return p.dialect
}

// String returns the written text with exactly one trailing newline.
func (p *Printer) String() string {
	return strings.TrimRight(p.output.String(), "\n") + "\n"
}

// Write appends each string, indenting at the start of a line.
func (p *Printer) Write(parts ...string) {
	for _, s := range parts {
		if s == "" {
			continue
		}
		if p.atLineStart && s[0] != '\n' {
			p.writeIndent()
		}
		p.output.WriteString(s)
		p.atLineStart = false
	}
}

// Newline ends the current line.
func (p *Printer) Newline() {
	p.output.WriteByte('\n')
	p.atLineStart = true
}

// Writeln writes the parts then ends the line.
func (p *Printer) Writeln(parts ...string) {
	p.Write(parts...)
	p.Newline()
}

// Comment writes each line of text as a -- comment.
func (p *Printer) Comment(text string) {
	for _, line := range strings.Split(text, "\n") {
		if line == "" {
			p.Writeln("--")
			continue
		}
		p.Writeln("-- ", line)
	}
}

func (p *Printer) writeIndent() {
	for i := 0; i < p.depth*indentSize; i++ {
		p.output.WriteByte(' ')
	}
	p.atLineStart = false
}

// Indent increases the indentation depth.
func (p *Printer) Indent() {
	p.depth++
}

// Dedent decreases the indentation depth.
func (p *Printer) Dedent() {
	if p.depth > 0 {
		p.depth--
	}
}

// Ident writes a quoted-if-needed identifier.
func (p *Printer) Ident(name string) {
	p.Write(p.dialect.QuoteIdentifierIfNeeded(name))
}

// Table writes a schema-qualified table name.
func (p *Printer) Table(schema, name string) {
	p.Write(p.dialect.QuoteQualified(schema, name))
}

// List writes count items separated by sep. With multiline set every
// separator is followed by a line break.
func (p *Printer) List(count int, format func(i int), sep string, multiline bool) {
	for i := 0; i < count; i++ {
		format(i)
		if i < count-1 {
			p.Write(sep)
			if multiline {
				p.Newline()
			} else {
				p.Write(" ")
			}
		}
	}
}

// Expr writes an expression.
func (p *Printer) Expr(e Expr) {
	switch n := e.(type) {
	case nil:
		p.Write("NULL")
	case Column:
		if n.Qualifier != "" {
			p.Ident(n.Qualifier)
			p.Write(".")
		}
		p.Ident(n.Name)
	case String:
		p.Write(QuoteLiteral(n.Value))
	case Number:
		p.Write(FormatNumber(n.Value))
	case Bool:
		if n.Value {
			p.Write("TRUE")
		} else {
			p.Write("FALSE")
		}
	case Null:
		if n.Type == "" {
			p.Write("NULL")
		} else {
			p.Write("CAST(NULL AS ", n.Type, ")")
		}
	case Raw:
		p.Write(n.SQL)
	case And:
		p.junction("AND", n.Terms)
	case Or:
		p.junction("OR", n.Terms)
	case Not:
		p.Write("NOT (")
		p.Expr(n.X)
		p.Write(")")
	case IsNull:
		p.Expr(n.X)
		if n.Negate {
			p.Write(" IS NOT NULL")
		} else {
			p.Write(" IS NULL")
		}
	case In:
		p.Expr(n.X)
		if n.Negate {
			p.Write(" NOT IN (")
		} else {
			p.Write(" IN (")
		}
		p.List(len(n.Values), func(i int) { p.Expr(n.Values[i]) }, ",", false)
		p.Write(")")
	case Compare:
		p.Expr(n.Left)
		p.Write(" ", string(n.Op), " ")
		p.Expr(n.Right)
	case Like:
		p.Expr(n.X)
		p.Write(" LIKE ", QuoteLiteral(n.Pattern))
		if n.Escaped {
			p.Write(` ESCAPE '\'`)
		}
	case Func:
		p.Write(n.Name, "(")
		p.List(len(n.Args), func(i int) { p.Expr(n.Args[i]) }, ",", false)
		p.Write(")")
	case Case:
		p.caseExpr(n)
	case Sum:
		p.sum(n)
	case Array:
		p.array(n)
	case Cast:
		p.Write("CAST(")
		p.Expr(n.X)
		p.Write(" AS ", n.Type, ")")
	default:
		panic("sqlexpr: unknown node type")
	}
}

func (p *Printer) junction(op string, terms []Expr) {
	switch len(terms) {
	case 0:
		// An empty conjunction is TRUE and an empty disjunction is FALSE.
		if op == "AND" {
			p.Write("TRUE")
		} else {
			p.Write("FALSE")
		}
		return
	case 1:
		p.Expr(terms[0])
		return
	}
	p.Write("(")
	for i, t := range terms {
		if i > 0 {
			p.Write(" ", op, " ")
		}
		p.Expr(t)
	}
	p.Write(")")
}

func (p *Printer) caseExpr(c Case) {
	if len(c.Whens) == 0 {
		p.Expr(c.Else)
		return
	}
	if c.Inline {
		p.Write("CASE")
		for _, w := range c.Whens {
			p.Write(" WHEN ")
			p.Expr(w.Cond)
			p.Write(" THEN ")
			p.Expr(w.Then)
		}
		if c.Else != nil {
			p.Write(" ELSE ")
			p.Expr(c.Else)
		}
		p.Write(" END")
		return
	}
	p.Writeln("CASE")
	p.Indent()
	for _, w := range c.Whens {
		p.Write("WHEN ")
		p.Expr(w.Cond)
		p.Write(" THEN ")
		p.Expr(w.Then)
		p.Newline()
	}
	if c.Else != nil {
		p.Write("ELSE ")
		p.Expr(c.Else)
		p.Newline()
	}
	p.Dedent()
	p.Write("END")
}

func (p *Printer) sum(s Sum) {
	switch len(s.Terms) {
	case 0:
		p.Write("0")
		return
	case 1:
		p.Expr(s.Terms[0])
		return
	}
	p.Writeln("(")
	p.Indent()
	for i, t := range s.Terms {
		if i > 0 {
			p.Write("+ ")
		}
		p.Expr(t)
		p.Newline()
	}
	p.Dedent()
	p.Write(")")
}

func (p *Printer) array(a Array) {
	if len(a.Elems) == 0 {
		if p.dialect.Arrays == core.ArrayDuckDB {
			p.Write("CAST([] AS ", p.dialect.TextArrayType, ")")
		} else {
			p.Write("CAST(ARRAY[] AS ", p.dialect.TextArrayType, ")")
		}
		return
	}

	elems := func() {
		p.List(len(a.Elems), func(i int) { p.Expr(a.Elems[i]) }, ",", false)
	}

	switch p.dialect.Arrays {
	case core.ArrayDuckDB:
		if a.DropNulls {
			p.Write("list_filter([")
			elems()
			p.Write("], x -> x IS NOT NULL)")
			return
		}
		p.Write("[")
		elems()
		p.Write("]")
	default:
		if a.DropNulls {
			p.Write("array_remove(ARRAY[")
			elems()
			p.Write("], NULL)")
			return
		}
		p.Write("ARRAY[")
		elems()
		p.Write("]")
	}
}

// QuoteLiteral quotes s as a SQL string literal, doubling single quotes.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// FormatNumber writes f in the shortest form that round-trips.
func FormatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
