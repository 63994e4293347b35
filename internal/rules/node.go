package rules

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/aeroscore/pkg/core"
)

// Rule documents whose mapping order carries meaning are walked as
// yaml.Node trees; decoding them into Go maps would lose the order.

type decoder struct {
	doc string
}

type pair struct {
	key   string
	node  *yaml.Node
	value *yaml.Node
}

func (d *decoder) errorf(n *yaml.Node, path, format string, args ...any) error {
	e := &ValidationError{Document: d.doc, Path: path, Message: fmt.Sprintf(format, args...)}
	if n != nil {
		e.Line = n.Line
	}
	return e
}

// root parses data and returns the top-level node. An empty document
// yields nil.
func (d *decoder) root(data []byte) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ValidationError{Document: d.doc, Message: err.Error()}
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, nil
	}
	return deref(doc.Content[0]), nil
}

func deref(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

func isNull(n *yaml.Node) bool {
	n = deref(n)
	return n == nil || n.Kind == yaml.ScalarNode && n.Tag == "!!null"
}

// mapping returns the key/value pairs of a mapping node in document order.
// A null node is an empty mapping.
func (d *decoder) mapping(n *yaml.Node, path string) ([]pair, error) {
	if isNull(n) {
		return nil, nil
	}
	n = deref(n)
	if n.Kind != yaml.MappingNode {
		return nil, d.errorf(n, path, "expected a mapping")
	}
	seen := make(map[string]bool, len(n.Content)/2)
	pairs := make([]pair, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], deref(n.Content[i+1])
		if seen[k.Value] {
			return nil, d.errorf(k, join(path, k.Value), "duplicate key")
		}
		seen[k.Value] = true
		pairs = append(pairs, pair{key: k.Value, node: k, value: v})
	}
	return pairs, nil
}

// fields checks a mapping against its allowed keys and returns it by key.
func (d *decoder) fields(n *yaml.Node, path string, allowed ...string) (map[string]*yaml.Node, error) {
	pairs, err := d.mapping(n, path)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*yaml.Node, len(pairs))
	for _, p := range pairs {
		if !contains(allowed, p.key) {
			return nil, d.errorf(p.node, join(path, p.key), "unknown field (allowed: %s)", strings.Join(allowed, ", "))
		}
		out[p.key] = p.value
	}
	return out, nil
}

func (d *decoder) sequence(n *yaml.Node, path string) ([]*yaml.Node, error) {
	if isNull(n) {
		return nil, nil
	}
	n = deref(n)
	if n.Kind != yaml.SequenceNode {
		return nil, d.errorf(n, path, "expected a list")
	}
	out := make([]*yaml.Node, len(n.Content))
	for i, c := range n.Content {
		out[i] = deref(c)
	}
	return out, nil
}

// strings accepts a list of scalars or a single scalar.
func (d *decoder) strings(n *yaml.Node, path string) ([]string, error) {
	if isNull(n) {
		return nil, nil
	}
	n = deref(n)
	if n.Kind == yaml.ScalarNode {
		return []string{n.Value}, nil
	}
	items, err := d.sequence(n, path)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(items))
	for i, item := range items {
		if item.Kind != yaml.ScalarNode {
			return nil, d.errorf(item, fmt.Sprintf("%s[%d]", path, i), "expected a string")
		}
		out[i] = item.Value
	}
	return out, nil
}

func (d *decoder) integer(n *yaml.Node, path string) (int, error) {
	var v int
	if n == nil || n.Kind != yaml.ScalarNode || n.Decode(&v) != nil {
		return 0, d.errorf(n, path, "expected an integer")
	}
	return v, nil
}

func (d *decoder) number(n *yaml.Node, path string) (float64, error) {
	var v float64
	if n == nil || n.Kind != yaml.ScalarNode || n.Decode(&v) != nil {
		return 0, d.errorf(n, path, "expected a number")
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, d.errorf(n, path, "%q is not a finite number", n.Value)
	}
	return v, nil
}

// condContext selects how the short condition form is read.
type condContext int

const (
	// keepContext reads exclusions: `amenity: [cafe]` keeps every row that
	// is not a cafe and `building_area: "<150"` keeps rows of at least 150.
	keepContext condContext = iota
	// matchContext reads bypass and scoring conditions: `amenity: [cafe]`
	// matches cafes and `building_area: "<500"` matches smaller areas.
	matchContext
)

const postcodeField = "postcode_area"

// conditions reads a list of condition items. An item is either a mapping
// of field to values, each key becoming one condition, or the long form
// {field, op, values, bound}.
func (d *decoder) conditions(n *yaml.Node, path string, ctx condContext) ([]core.Condition, error) {
	items, err := d.sequence(n, path)
	if err != nil {
		return nil, err
	}
	var out []core.Condition
	for i, item := range items {
		itemPath := fmt.Sprintf("%s[%d]", path, i)
		pairs, err := d.mapping(item, itemPath)
		if err != nil {
			return nil, err
		}
		if len(pairs) == 0 {
			return nil, d.errorf(item, itemPath, "empty condition")
		}
		if hasKey(pairs, "op") {
			c, err := d.longCondition(item, itemPath)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
			continue
		}
		for _, p := range pairs {
			c, err := d.shortCondition(p, join(itemPath, p.key), ctx)
			if err != nil {
				return nil, err
			}
			out = append(out, c)
		}
	}
	return out, nil
}

func (d *decoder) longCondition(n *yaml.Node, path string) (core.Condition, error) {
	f, err := d.fields(n, path, "field", "op", "values", "bound")
	if err != nil {
		return core.Condition{}, err
	}
	var c core.Condition
	if f["field"] == nil || f["field"].Value == "" {
		return c, d.errorf(n, join(path, "field"), "is required")
	}
	c.Field = f["field"].Value
	c.Operator = core.Operator(f["op"].Value)
	if !c.Operator.Valid() {
		return c, d.errorf(f["op"], join(path, "op"), "unknown operator %q", c.Operator)
	}

	switch {
	case c.Operator.Numeric():
		if f["bound"] == nil {
			return c, d.errorf(n, join(path, "bound"), "operator %s needs a bound", c.Operator)
		}
		if c.Bound, err = d.number(f["bound"], join(path, "bound")); err != nil {
			return c, err
		}
	case c.Operator == core.OpIsNull || c.Operator == core.OpIsNotNull:
	default:
		if c.Values, err = d.strings(f["values"], join(path, "values")); err != nil {
			return c, err
		}
		if len(c.Values) == 0 {
			return c, d.errorf(n, join(path, "values"), "operator %s needs values", c.Operator)
		}
	}
	return c, nil
}

func (d *decoder) shortCondition(p pair, path string, ctx condContext) (core.Condition, error) {
	c := core.Condition{Field: p.key}
	if isNull(p.value) {
		return c, d.errorf(p.node, path, "has no values")
	}

	if p.value.Kind == yaml.ScalarNode && p.value.Tag == "!!str" {
		if cmp, bound, ok, err := parseBound(p.value.Value); ok || err != nil {
			if err != nil {
				return c, d.errorf(p.value, path, "%v", err)
			}
			c.Bound = bound
			switch {
			case ctx == keepContext && cmp == '<':
				c.Operator = core.OpNumericLT
			case ctx == keepContext:
				c.Operator = core.OpNumericGT
			case cmp == '<':
				c.Operator = core.OpNumericBelow
			default:
				c.Operator = core.OpNumericAbove
			}
			return c, nil
		}
	}

	values, err := d.strings(p.value, path)
	if err != nil {
		return c, err
	}
	c.Values = values

	contains := strings.HasSuffix(p.key, "_contains")
	switch {
	case ctx == keepContext && contains:
		c.Operator = core.OpExcludesKeywordAny
	case ctx == keepContext && strings.HasSuffix(p.key, postcodeField):
		c.Operator = core.OpExcludesPrefixAny
	case ctx == keepContext:
		c.Operator = core.OpNotEqualsAny
	case contains:
		c.Operator = core.OpContainsKeywordAny
	case strings.HasSuffix(p.key, postcodeField):
		c.Operator = core.OpPrefixAny
	default:
		c.Operator = core.OpEqualsAny
	}
	return c, nil
}

// parseBound reads "<150" or "> 2e4". ok is false for any other string.
func parseBound(s string) (cmp byte, bound float64, ok bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" || (s[0] != '<' && s[0] != '>') {
		return 0, 0, false, nil
	}
	bound, err = strconv.ParseFloat(strings.TrimSpace(s[1:]), 64)
	if err != nil {
		return 0, 0, false, fmt.Errorf("bad numeric bound %q", s)
	}
	if math.IsNaN(bound) || math.IsInf(bound, 0) {
		return 0, 0, false, fmt.Errorf("numeric bound %q is not a finite number", s)
	}
	return s[0], bound, true, nil
}

// weightedRules reads a mapping of rule name to {weight, conditions,
// combine, description}. Names listed in skip are left for the caller.
func (d *decoder) weightedRules(n *yaml.Node, path string, ctx condContext, combine core.Combinator, skip ...string) ([]core.WeightedRule, error) {
	pairs, err := d.mapping(n, path)
	if err != nil {
		return nil, err
	}
	var out []core.WeightedRule
	for _, p := range pairs {
		if contains(skip, p.key) {
			continue
		}
		rulePath := join(path, p.key)
		f, err := d.fields(p.value, rulePath, "weight", "conditions", "combine", "description")
		if err != nil {
			return nil, err
		}
		if f["weight"] == nil {
			return nil, d.errorf(p.node, join(rulePath, "weight"), "is required")
		}
		r := core.WeightedRule{Name: p.key, Combinator: combine}
		if r.Weight, err = d.integer(f["weight"], join(rulePath, "weight")); err != nil {
			return nil, err
		}
		if c := f["combine"]; c != nil {
			r.Combinator = core.Combinator(strings.ToUpper(c.Value))
			if r.Combinator != core.CombineAnd && r.Combinator != core.CombineOr {
				return nil, d.errorf(c, join(rulePath, "combine"), "must be AND or OR")
			}
		}
		if r.Conditions, err = d.conditions(f["conditions"], join(rulePath, "conditions"), ctx); err != nil {
			return nil, err
		}
		if len(r.Conditions) == 0 {
			return nil, d.errorf(p.node, join(rulePath, "conditions"), "rule has no conditions")
		}
		out = append(out, r)
	}
	return out, nil
}

func (d *decoder) keywordBonuses(n *yaml.Node, path string) ([]core.KeywordBonus, error) {
	pairs, err := d.mapping(n, path)
	if err != nil {
		return nil, err
	}
	var out []core.KeywordBonus
	for _, p := range pairs {
		bonusPath := join(path, p.key)
		f, err := d.fields(p.value, bonusPath, "weight", "keywords", "fields", "description")
		if err != nil {
			return nil, err
		}
		b := core.KeywordBonus{Name: p.key}
		if b.Weight, err = d.integer(f["weight"], join(bonusPath, "weight")); err != nil {
			return nil, err
		}
		if b.Keywords, err = d.strings(f["keywords"], join(bonusPath, "keywords")); err != nil {
			return nil, err
		}
		if len(b.Keywords) == 0 {
			return nil, d.errorf(p.node, join(bonusPath, "keywords"), "bonus has no keywords")
		}
		if b.Fields, err = d.strings(f["fields"], join(bonusPath, "fields")); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func hasKey(pairs []pair, key string) bool {
	for _, p := range pairs {
		if p.key == key {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
