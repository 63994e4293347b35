package rules

import (
	"github.com/leapstack-labs/aeroscore/pkg/core"
)

// ParseExclusions reads exclusions.yaml:
//
//	exclusions:
//	  food_service:
//	    - amenity: [restaurant, cafe]
//	  small_buildings:
//	    - building_area: "<150"
//	table_exclusions:
//	  planet_osm_line:
//	    - highway: ["*"]
//	overrides:
//	  aerospace_names:
//	    - name_contains: [aerospace, aviation]
//
// Exclusion items say what to drop. They compile to keep predicates, so a
// row survives when it avoids every listed value. Each override category
// becomes one bypass clause.
func ParseExclusions(data []byte) (core.ExclusionRuleSet, error) {
	d := &decoder{doc: ExclusionsFile}
	var set core.ExclusionRuleSet

	root, err := d.root(data)
	if err != nil {
		return set, err
	}
	top, err := d.fields(root, "", "exclusions", "table_exclusions", "overrides")
	if err != nil {
		return set, err
	}

	categories, err := d.mapping(top["exclusions"], "exclusions")
	if err != nil {
		return set, err
	}
	for _, c := range categories {
		conds, err := d.conditions(c.value, join("exclusions", c.key), keepContext)
		if err != nil {
			return set, err
		}
		set.Defaults = append(set.Defaults, conds...)
	}

	tables, err := d.mapping(top["table_exclusions"], "table_exclusions")
	if err != nil {
		return set, err
	}
	for _, t := range tables {
		conds, err := d.conditions(t.value, join("table_exclusions", t.key), keepContext)
		if err != nil {
			return set, err
		}
		if set.TableOverrides == nil {
			set.TableOverrides = make(map[string][]core.Condition)
		}
		set.TableOverrides[t.key] = conds
	}

	overrides, err := d.mapping(top["overrides"], "overrides")
	if err != nil {
		return set, err
	}
	for _, o := range overrides {
		path := join("overrides", o.key)
		conds, err := d.conditions(o.value, path, matchContext)
		if err != nil {
			return set, err
		}
		if len(conds) == 0 {
			return set, d.errorf(o.node, path, "override has no conditions")
		}
		set.Bypass = append(set.Bypass, core.BypassClause{Name: o.key, Conditions: conds})
	}
	return set, nil
}
