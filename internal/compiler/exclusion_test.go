package compiler

import (
	"strings"
	"testing"

	"github.com/leapstack-labs/aeroscore/pkg/core"
	"github.com/leapstack-labs/aeroscore/pkg/sqlexpr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExclusionScenarios(t *testing.T) {
	cat := testCatalog()
	opts := testOptions(t)
	rs := core.ExclusionRuleSet{
		Defaults: []core.Condition{
			{Field: "amenity", Operator: core.OpNotEqualsAny, Values: []string{"restaurant", "cafe"}},
		},
		Bypass: []core.BypassClause{
			{Name: "aerospace_name", Conditions: []core.Condition{
				{Field: "name_contains", Operator: core.OpContainsKeywordAny, Values: []string{"aerospace"}},
			}},
		},
	}

	view, err := CompileExclusionPredicate(rs, cat.Table("planet_osm_point"), opts)
	require.NoError(t, err)

	tests := []struct {
		name string
		row  sqlexpr.Row
		keep bool
	}{
		{"null amenity is kept", sqlexpr.Row{"amenity": nil, "name": "Hangar 4"}, true},
		{"restaurant is excluded", sqlexpr.Row{"amenity": "restaurant", "name": "Luigi's"}, false},
		{"restaurant without a name is excluded", sqlexpr.Row{"amenity": "restaurant"}, false},
		{"bypass keeps aerospace cafe", sqlexpr.Row{"amenity": "restaurant", "name": "Aerospace Cafe"}, true},
		{"other amenity is kept", sqlexpr.Row{"amenity": "fuel"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.keep, matches(t, view.Predicate, tt.row))
		})
	}
	assert.Equal(t, []string{"aerospace_name"}, view.Bypass)
}

func TestExclusionEmptyBypassIsInclusionOnly(t *testing.T) {
	cat := testCatalog()
	opts := testOptions(t)
	rs := testExclusions()
	rs.Bypass = nil

	for _, name := range []string{"planet_osm_point", "planet_osm_polygon", "planet_osm_line"} {
		table := cat.Table(name)
		view, err := CompileExclusionPredicate(rs, table, opts)
		require.NoError(t, err)

		var conds []core.Condition
		conds = append(conds, rs.Defaults...)
		conds = append(conds, rs.TableOverrides[name]...)
		want, err := CompileConditions(conds, core.CombineAnd, table, opts)
		require.NoError(t, err)
		require.NotNil(t, want)

		assert.Equal(t, sqlexpr.Render(want, opts.Dialect), sqlexpr.Render(view.Predicate, opts.Dialect), name)
	}
}

func TestExclusionInapplicableIsNoOp(t *testing.T) {
	cat := testCatalog()
	opts := testOptions(t)
	line := cat.Table("planet_osm_line")

	full := testExclusions()
	trimmed := testExclusions()
	// The line table has neither amenity, shop nor an area column.
	trimmed.Defaults = nil

	a, err := CompileExclusionPredicate(full, line, opts)
	require.NoError(t, err)
	b, err := CompileExclusionPredicate(trimmed, line, opts)
	require.NoError(t, err)

	assert.Equal(t, sqlexpr.Render(b.Predicate, opts.Dialect), sqlexpr.Render(a.Predicate, opts.Dialect))
	assert.Equal(t, 1, a.Applied)
	assert.Equal(t, 3, a.Skipped)

	rows := []sqlexpr.Row{
		{"highway": nil, "name": "Runway"},
		{"highway": "primary", "name": "A38"},
		{"highway": "service", "name": "Aviation Way"},
	}
	for _, row := range rows {
		assert.Equal(t, matches(t, b.Predicate, row), matches(t, a.Predicate, row), "%v", row)
	}
}

func TestExclusionNothingApplicableIsTrue(t *testing.T) {
	cat := testCatalog()
	rs := core.ExclusionRuleSet{
		Defaults: []core.Condition{{Field: "cuisine", Operator: core.OpIsNull}},
		Bypass: []core.BypassClause{{Name: "never", Conditions: []core.Condition{
			{Field: "name", Operator: core.OpEqualsAny, Values: []string{"x"}},
		}}},
	}
	view, err := CompileExclusionPredicate(rs, cat.Table("planet_osm_point"), testOptions(t))
	require.NoError(t, err)
	assert.Equal(t, sqlexpr.True, view.Predicate)
	assert.Empty(t, view.Bypass, "bypass is not consulted without an inclusion predicate")
}

func TestCompileExclusionsSkipsUnusableTables(t *testing.T) {
	cat := testCatalog()
	rs := testExclusions()
	rs.TableOverrides["planet_osm_ghost"] = []core.Condition{{Field: "name", Operator: core.OpIsNull}}

	views, err := CompileExclusions(rs, cat, testOptions(t))
	require.NoError(t, err)

	var names []string
	for _, v := range views {
		names = append(names, v.Table)
	}
	assert.Equal(t, []string{"planet_osm_line", "planet_osm_point", "planet_osm_polygon"}, names)
	assert.Equal(t, "planet_osm_point_aerospace_filtered", views[1].Name)
}

func TestCompileExclusionsReportsStage(t *testing.T) {
	cat := testCatalog()
	rs := core.ExclusionRuleSet{
		Bypass: []core.BypassClause{{Name: "broken", Conditions: []core.Condition{
			{Field: "name", Operator: "resembles", Values: []string{"x"}},
		}}},
		Defaults: []core.Condition{{Field: "name", Operator: core.OpIsNotNull}},
	}
	_, err := CompileExclusions(rs, cat, testOptions(t))
	require.Error(t, err)

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageExclusions, se.Stage)
	assert.Equal(t, "planet_osm_line", se.Table)
	assert.Equal(t, "broken", se.Rule)
}

func TestRenderExclusions(t *testing.T) {
	cat := testCatalog()
	opts := testOptions(t)
	opts.PreviewCounts = true

	views, err := CompileExclusions(testExclusions(), cat, opts)
	require.NoError(t, err)
	sql := RenderExclusions(cat, views, opts).String()

	assert.Contains(t, sql, "DROP VIEW IF EXISTS public.planet_osm_point_aerospace_filtered CASCADE;\n")
	assert.Contains(t, sql, "CREATE VIEW public.planet_osm_point_aerospace_filtered AS\nSELECT *\nFROM public.planet_osm_point\nWHERE ")
	assert.Contains(t, sql, "-- planet_osm_polygon: 800 rows, 3 exclusions applied, 0 skipped, bypass: aerospace_name")
	assert.Contains(t, sql, "-- SELECT 'planet_osm_line_aerospace_filtered' AS view_name, COUNT(*) AS row_count")
	assert.NotContains(t, sql, "planet_osm_roads")
	assert.NotContains(t, sql, "planet_osm_empty")
	assert.Equal(t, 3, strings.Count(sql, "CREATE VIEW"))
}

func TestRenderExclusionsIsIdempotent(t *testing.T) {
	render := func() string {
		cat := testCatalog()
		opts := testOptions(t)
		opts.PreviewCounts = true
		views, err := CompileExclusions(testExclusions(), cat, opts)
		require.NoError(t, err)
		return RenderExclusions(cat, views, opts).String()
	}
	assert.Equal(t, render(), render())
}
