package rules

import (
	"github.com/leapstack-labs/aeroscore/pkg/core"
)

const (
	keywordBonusesKey      = "keyword_bonuses"
	negativeSignalsKey     = "negative_signals"
	contextualNegativesKey = "contextual_negatives"
)

// ParseScoring reads scoring.yaml. Positive rules keep their declared
// order, which is the order they are tried in. Keyword bonuses may sit at
// the top level or inside scoring_rules.
func ParseScoring(data []byte) (core.ScoringRuleSet, error) {
	d := &decoder{doc: ScoringFile}
	var set core.ScoringRuleSet

	root, err := d.root(data)
	if err != nil {
		return set, err
	}
	top, err := d.fields(root, "", "scoring_rules", keywordBonusesKey)
	if err != nil {
		return set, err
	}

	set.Positive, err = d.weightedRules(top["scoring_rules"], "scoring_rules", matchContext, core.CombineOr, keywordBonusesKey)
	if err != nil {
		return set, err
	}
	for _, r := range set.Positive {
		if r.Weight <= 0 {
			return set, d.errorf(nil, join(join("scoring_rules", r.Name), "weight"), "positive rule weight must be greater than zero")
		}
	}

	nested, err := d.mapping(top["scoring_rules"], "scoring_rules")
	if err != nil {
		return set, err
	}
	for _, p := range nested {
		if p.key != keywordBonusesKey {
			continue
		}
		bonuses, err := d.keywordBonuses(p.value, join("scoring_rules", keywordBonusesKey))
		if err != nil {
			return set, err
		}
		set.KeywordBonuses = append(set.KeywordBonuses, bonuses...)
	}

	bonuses, err := d.keywordBonuses(top[keywordBonusesKey], keywordBonusesKey)
	if err != nil {
		return set, err
	}
	set.KeywordBonuses = append(set.KeywordBonuses, bonuses...)

	seen := make(map[string]bool)
	for _, b := range set.KeywordBonuses {
		if seen[b.Name] {
			return set, d.errorf(nil, join(keywordBonusesKey, b.Name), "keyword bonus declared twice")
		}
		seen[b.Name] = true
	}
	return set, nil
}

// ParseNegativeSignals reads negative_signals.yaml and returns the plain
// signals, OR-combined, and the contextual negatives, AND-combined. The
// document may wrap its signals in a single negative_signals key.
func ParseNegativeSignals(data []byte) (negative, contextual []core.WeightedRule, err error) {
	d := &decoder{doc: NegativeSignalsFile}

	root, err := d.root(data)
	if err != nil {
		return nil, nil, err
	}
	pairs, err := d.mapping(root, "")
	if err != nil {
		return nil, nil, err
	}
	path := ""
	if len(pairs) == 1 && pairs[0].key == negativeSignalsKey {
		root, path = pairs[0].value, negativeSignalsKey
		if pairs, err = d.mapping(root, path); err != nil {
			return nil, nil, err
		}
	}

	negative, err = d.weightedRules(root, path, matchContext, core.CombineOr, contextualNegativesKey)
	if err != nil {
		return nil, nil, err
	}
	for _, p := range pairs {
		if p.key != contextualNegativesKey {
			continue
		}
		contextual, err = d.weightedRules(p.value, join(path, contextualNegativesKey), matchContext, core.CombineAnd)
		if err != nil {
			return nil, nil, err
		}
	}

	for _, group := range []struct {
		path  string
		rules []core.WeightedRule
	}{{path, negative}, {join(path, contextualNegativesKey), contextual}} {
		for _, r := range group.rules {
			if r.Weight >= 0 {
				return nil, nil, d.errorf(nil, join(join(group.path, r.Name), "weight"), "negative signal weight must be below zero")
			}
		}
	}
	return negative, contextual, nil
}
