package core

import (
	"fmt"
	"sort"
)

// Operator is the comparison a Condition applies to its field.
type Operator string

// Condition operators. The numeric_lt and numeric_gt forms are keep
// predicates used by exclusions: a row is kept when the value is NULL or on
// the allowed side of the bound. numeric_below and numeric_above are match
// predicates used by scoring rules, where NULL never matches.
const (
	OpEqualsAny          Operator = "equals_any"
	OpNotEqualsAny       Operator = "not_equals_any"
	OpIsNull             Operator = "is_null"
	OpIsNotNull          Operator = "is_not_null"
	OpContainsKeywordAny Operator = "contains_keyword_any"
	OpExcludesKeywordAny Operator = "excludes_keyword_any"
	OpPrefixAny          Operator = "prefix_any"
	OpExcludesPrefixAny  Operator = "excludes_prefix_any"
	OpNumericLT          Operator = "numeric_lt"
	OpNumericGT          Operator = "numeric_gt"
	OpNumericBelow       Operator = "numeric_below"
	OpNumericAbove       Operator = "numeric_above"
)

// Wildcard is the value that turns equals_any into IS NOT NULL and
// not_equals_any into IS NULL.
const Wildcard = "*"

var knownOperators = map[Operator]bool{
	OpEqualsAny: true, OpNotEqualsAny: true, OpIsNull: true, OpIsNotNull: true,
	OpContainsKeywordAny: true, OpExcludesKeywordAny: true, OpPrefixAny: true, OpExcludesPrefixAny: true,
	OpNumericLT: true, OpNumericGT: true, OpNumericBelow: true, OpNumericAbove: true,
}

// Valid reports whether o is a known operator.
func (o Operator) Valid() bool { return knownOperators[o] }

// Numeric reports whether the operator compares against Condition.Bound.
func (o Operator) Numeric() bool {
	switch o {
	case OpNumericLT, OpNumericGT, OpNumericBelow, OpNumericAbove:
		return true
	}
	return false
}

// Condition is a single test against one field of a raw row.
//
// Field keeps any derived suffix (name_contains, building_area,
// postcode_area); resolving it to a physical column is the compiler's job.
type Condition struct {
	Field    string   `json:"field" yaml:"field"`
	Operator Operator `json:"operator" yaml:"operator"`
	Values   []string `json:"values,omitempty" yaml:"values,omitempty"`
	Bound    float64  `json:"bound,omitempty" yaml:"bound,omitempty"`
}

func (c Condition) String() string {
	if c.Operator.Numeric() {
		return fmt.Sprintf("%s %s %g", c.Field, c.Operator, c.Bound)
	}
	return fmt.Sprintf("%s %s %v", c.Field, c.Operator, c.Values)
}

// Combinator joins the conditions of a rule.
type Combinator string

// Supported combinators.
const (
	CombineAnd Combinator = "AND"
	CombineOr  Combinator = "OR"
)

// WeightedRule is a named group of conditions carrying a weight. Positive
// rules use OR; negative signals use OR; contextual negatives use AND.
type WeightedRule struct {
	Name       string
	Weight     int
	Conditions []Condition
	Combinator Combinator
}

// BypassClause re-admits rows the exclusions would drop. Its conditions
// are OR-combined.
type BypassClause struct {
	Name       string
	Conditions []Condition
}

// ExclusionRuleSet is the full set of exclusion rules.
type ExclusionRuleSet struct {
	Defaults       []Condition
	TableOverrides map[string][]Condition
	Bypass         []BypassClause
}

// DefaultKeywordFields are the text fields keyword bonuses search when a
// group does not name its own.
var DefaultKeywordFields = []string{"name", "operator", "description", "brand"}

// KeywordBonus adds Weight once when any keyword appears in any field.
type KeywordBonus struct {
	Name     string
	Weight   int
	Keywords []string
	Fields   []string
}

// ScoringRuleSet holds every rule that contributes to the score.
type ScoringRuleSet struct {
	// Positive rules are evaluated first-match-wins in declared order.
	Positive []WeightedRule
	// KeywordBonuses, Negative and Contextual are summed independently.
	KeywordBonuses []KeywordBonus
	Negative       []WeightedRule
	Contextual     []WeightedRule
}

// Threshold maps a minimum score to a tier label.
type Threshold struct {
	Label    string
	MinScore int
}

// ThresholdTable assigns tiers. Default is used below every threshold.
type ThresholdTable struct {
	Thresholds []Threshold
	Default    string
}

// Sorted returns the thresholds ordered by descending minimum score, ties
// broken by label, so the first threshold a score meets is its tier.
func (t ThresholdTable) Sorted() []Threshold {
	out := make([]Threshold, len(t.Thresholds))
	copy(out, t.Thresholds)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].MinScore != out[j].MinScore {
			return out[i].MinScore > out[j].MinScore
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// Gate is a contact requirement attached to a confidence band. A row meets
// the gate when at least one AnyNotNull column is non-null (if any are
// listed) and every AllNotNull column is non-null.
type Gate struct {
	AnyNotNull []string
	AllNotNull []string
}

// Empty reports whether the gate lists no columns.
func (g *Gate) Empty() bool {
	return g == nil || (len(g.AnyNotNull) == 0 && len(g.AllNotNull) == 0)
}

// Columns returns every column the gate reads.
func (g *Gate) Columns() []string {
	if g == nil {
		return nil
	}
	out := make([]string, 0, len(g.AnyNotNull)+len(g.AllNotNull))
	out = append(out, g.AnyNotNull...)
	return append(out, g.AllNotNull...)
}

// ConfidenceBand maps a minimum score, plus an optional gate, to a label.
type ConfidenceBand struct {
	Label    string
	MinScore int
	Gate     *Gate
}

// ConfidenceTable assigns confidence labels. Default is used when no band
// matches.
type ConfidenceTable struct {
	Bands   []ConfidenceBand
	Default string
}

// Sorted returns the bands ordered by descending minimum score, ties broken
// by label.
func (t ConfidenceTable) Sorted() []ConfidenceBand {
	out := make([]ConfidenceBand, len(t.Bands))
	copy(out, t.Bands)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].MinScore != out[j].MinScore {
			return out[i].MinScore > out[j].MinScore
		}
		return out[i].Label < out[j].Label
	})
	return out
}
