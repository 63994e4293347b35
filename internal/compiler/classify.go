package compiler

import (
	"fmt"

	"github.com/leapstack-labs/aeroscore/pkg/core"
	"github.com/leapstack-labs/aeroscore/pkg/sqlexpr"
)

// Classify returns the tier and confidence label of a final score. present
// reports which output columns are non-null for the row; it is only read
// for confidence gates.
func Classify(score int, present map[string]bool, tiers core.ThresholdTable, conf core.ConfidenceTable) (tier, confidence string) {
	tier = tiers.Default
	for _, th := range tiers.Sorted() {
		if score >= th.MinScore {
			tier = th.Label
			break
		}
	}

	confidence = conf.Default
	for _, band := range conf.Sorted() {
		if score >= band.MinScore && gateMet(band.Gate, present) {
			confidence = band.Label
			break
		}
	}
	return tier, confidence
}

func gateMet(g *core.Gate, present map[string]bool) bool {
	if g.Empty() {
		return true
	}
	if len(g.AnyNotNull) > 0 {
		found := false
		for _, c := range g.AnyNotNull {
			if present[c] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, c := range g.AllNotNull {
		if !present[c] {
			return false
		}
	}
	return true
}

// TierExpr compiles the tier assignment of score to a CASE with the same
// ordering as Classify.
func TierExpr(score sqlexpr.Expr, tiers core.ThresholdTable) sqlexpr.Expr {
	sorted := tiers.Sorted()
	whens := make([]sqlexpr.When, len(sorted))
	for i, th := range sorted {
		whens[i] = sqlexpr.When{
			Cond: sqlexpr.Compare{Op: sqlexpr.OpGe, Left: score, Right: sqlexpr.Int(th.MinScore)},
			Then: sqlexpr.Str(th.Label),
		}
	}
	return sqlexpr.Case{Whens: whens, Else: sqlexpr.Str(tiers.Default)}
}

// ConfidenceExpr compiles the confidence assignment. A band whose gate
// fails falls through to the next band.
func ConfidenceExpr(score sqlexpr.Expr, conf core.ConfidenceTable) sqlexpr.Expr {
	sorted := conf.Sorted()
	whens := make([]sqlexpr.When, len(sorted))
	for i, band := range sorted {
		cond := sqlexpr.Expr(sqlexpr.Compare{Op: sqlexpr.OpGe, Left: score, Right: sqlexpr.Int(band.MinScore)})
		whens[i] = sqlexpr.When{
			Cond: sqlexpr.AndOf(cond, gateExpr(band.Gate)),
			Then: sqlexpr.Str(band.Label),
		}
	}
	return sqlexpr.Case{Whens: whens, Else: sqlexpr.Str(conf.Default)}
}

func gateExpr(g *core.Gate) sqlexpr.Expr {
	if g.Empty() {
		return nil
	}
	var anyTerms []sqlexpr.Expr
	for _, c := range g.AnyNotNull {
		anyTerms = append(anyTerms, sqlexpr.IsNotNullOf(sqlexpr.Col(c)))
	}
	terms := []sqlexpr.Expr{sqlexpr.OrOf(anyTerms...)}
	for _, c := range g.AllNotNull {
		terms = append(terms, sqlexpr.IsNotNullOf(sqlexpr.Col(c)))
	}
	return sqlexpr.AndOf(terms...)
}

// ValidateThresholds checks that a tier table can classify every score.
func ValidateThresholds(tiers core.ThresholdTable) error {
	if tiers.Default == "" {
		return fmt.Errorf("tier table has no default label")
	}
	seen := make(map[string]bool)
	for _, th := range tiers.Thresholds {
		if th.Label == "" {
			return fmt.Errorf("tier threshold %d has no label", th.MinScore)
		}
		if seen[th.Label] {
			return fmt.Errorf("tier label %q is used twice", th.Label)
		}
		seen[th.Label] = true
	}
	return nil
}

// ValidateConfidence checks the confidence table. The highest band must
// carry a contact gate.
func ValidateConfidence(conf core.ConfidenceTable) error {
	if conf.Default == "" {
		return fmt.Errorf("confidence table has no default label")
	}
	sorted := conf.Sorted()
	if len(sorted) > 0 && sorted[0].Gate.Empty() {
		return fmt.Errorf("highest confidence band %q must require contact columns", sorted[0].Label)
	}
	seen := make(map[string]bool)
	for _, b := range sorted {
		if seen[b.Label] {
			return fmt.Errorf("confidence label %q is used twice", b.Label)
		}
		seen[b.Label] = true
	}
	return nil
}
