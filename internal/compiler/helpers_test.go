package compiler

import (
	"testing"

	"github.com/leapstack-labs/aeroscore/internal/testutil"
	"github.com/leapstack-labs/aeroscore/pkg/core"
	"github.com/leapstack-labs/aeroscore/pkg/dialects/duckdb"
	"github.com/leapstack-labs/aeroscore/pkg/dialects/postgres"
	"github.com/leapstack-labs/aeroscore/pkg/sqlexpr"
	"github.com/stretchr/testify/require"
)

func table(name string, rows int64, columns ...string) *core.TableInfo {
	t := &core.TableInfo{Name: name, Exists: true, RowCount: rows}
	for i, c := range columns {
		typ := "text"
		switch c {
		case "osm_id":
			typ = "bigint"
		case "way_area":
			typ = "real"
		case "way":
			typ = "geometry"
		}
		t.Columns = append(t.Columns, core.Column{Name: c, Type: typ, Nullable: true, Position: i + 1})
	}
	return t
}

// testCatalog mirrors a small osm2pgsql import. The line table has no
// amenity column and the roads table is absent.
func testCatalog() *core.Catalog {
	cat := &core.Catalog{
		Schema: "public",
		Tables: map[string]*core.TableInfo{
			"planet_osm_point": table("planet_osm_point", 1200,
				"osm_id", "name", "amenity", "shop", "office", "industrial", "man_made",
				"operator", "description", "brand", "website", "phone", "email",
				"addr:street", "addr:city", "addr:postcode", "way"),
			"planet_osm_polygon": table("planet_osm_polygon", 800,
				"osm_id", "name", "amenity", "shop", "building", "landuse", "office",
				"industrial", "operator", "description", "website", "phone",
				"addr:postcode", "way_area", "way"),
			"planet_osm_line": table("planet_osm_line", 300,
				"osm_id", "name", "highway", "railway", "operator", "way"),
			"planet_osm_roads": {Name: "planet_osm_roads", Exists: false},
			"planet_osm_empty": {Name: "planet_osm_empty", Exists: true, RowCount: 0},
		},
	}
	cat.Index()
	return cat
}

func testOptions(t *testing.T) Options {
	t.Helper()
	return Options{Dialect: postgres.Postgres, Logger: testutil.NewTestLogger(t)}.withDefaults()
}

func duckOptions(t *testing.T) Options {
	t.Helper()
	return Options{Dialect: duckdb.DuckDB, Logger: testutil.NewTestLogger(t)}.withDefaults()
}

func testExclusions() core.ExclusionRuleSet {
	return core.ExclusionRuleSet{
		Defaults: []core.Condition{
			{Field: "amenity", Operator: core.OpNotEqualsAny, Values: []string{"restaurant", "cafe", "pub"}},
			{Field: "shop", Operator: core.OpNotEqualsAny, Values: []string{"*"}},
			{Field: "building_area", Operator: core.OpNumericLT, Bound: 150},
		},
		TableOverrides: map[string][]core.Condition{
			"planet_osm_line": {
				{Field: "highway", Operator: core.OpIsNull},
			},
		},
		Bypass: []core.BypassClause{
			{Name: "aerospace_name", Conditions: []core.Condition{
				{Field: "name_contains", Operator: core.OpContainsKeywordAny, Values: []string{"aerospace", "aviation"}},
			}},
		},
	}
}

func testScoring() core.ScoringRuleSet {
	return core.ScoringRuleSet{
		Positive: []core.WeightedRule{
			{Name: "factory", Weight: 40, Conditions: []core.Condition{
				{Field: "building", Operator: core.OpEqualsAny, Values: []string{"factory"}},
			}},
			{Name: "industrial_landuse", Weight: 50, Conditions: []core.Condition{
				{Field: "landuse", Operator: core.OpEqualsAny, Values: []string{"industrial"}},
			}},
			{Name: "aerospace_office", Weight: 30, Conditions: []core.Condition{
				{Field: "office", Operator: core.OpEqualsAny, Values: []string{"engineering", "company"}},
			}},
		},
		KeywordBonuses: []core.KeywordBonus{
			{Name: "aerospace_terms", Weight: 25, Keywords: []string{"Aerospace", "aviation"}},
			{Name: "precision", Weight: 10, Keywords: []string{"precision", "aerospace"}},
		},
		Negative: []core.WeightedRule{
			{Name: "retail", Weight: -30, Conditions: []core.Condition{
				{Field: "shop", Operator: core.OpIsNotNull},
			}},
		},
		Contextual: []core.WeightedRule{
			{Name: "tiny_building", Weight: -15, Combinator: core.CombineAnd, Conditions: []core.Condition{
				{Field: "building", Operator: core.OpIsNotNull},
				{Field: "building_area", Operator: core.OpNumericBelow, Bound: 500},
			}},
		},
	}
}

func testTiers() core.ThresholdTable {
	return core.ThresholdTable{
		Thresholds: []core.Threshold{
			{Label: "medium", MinScore: 50},
			{Label: "high", MinScore: 80},
			{Label: "low", MinScore: 20},
		},
		Default: "minimal",
	}
}

func testConfidence() core.ConfidenceTable {
	return core.ConfidenceTable{
		Bands: []core.ConfidenceBand{
			{Label: "high", MinScore: 80, Gate: &core.Gate{AnyNotNull: []string{"website", "phone"}}},
			{Label: "medium", MinScore: 50},
		},
		Default: "low",
	}
}

func testOutput() core.OutputTableSpec {
	return core.OutputTableSpec{
		Name:        "aerospace_candidates",
		Description: "Candidate aerospace suppliers",
		Columns: []core.OutputColumn{
			{Name: "osm_id", Type: "BIGINT", Group: "identification"},
			{Name: "osm_type", Type: "TEXT", Group: "identification", Computed: core.ComputedOSMType},
			{Name: "source_table", Type: "TEXT", Group: "identification", Computed: core.ComputedSourceTable},
			{Name: "name", Type: "TEXT", Group: "identification", Description: "Facility name"},
			{Name: "operator", Type: "TEXT", Group: "descriptive", Fallbacks: []string{"brand"}},
			{Name: "website", Type: "TEXT", Group: "contact"},
			{Name: "phone", Type: "TEXT", Group: "contact"},
			{Name: "postcode", Type: "TEXT", Group: "address", SourceColumn: "addr:postcode"},
			{Name: "geometry", Type: "GEOMETRY(Geometry, 3857)", Group: "spatial", SourceColumn: "way"},
			{Name: "aerospace_score", Type: "INTEGER", Group: "scoring", Computed: core.ComputedScore},
			{Name: "matched_keywords", Type: "TEXT[]", Group: "scoring", Computed: core.ComputedMatchedKeywords},
			{Name: "tier", Type: "TEXT", Group: "classification", Computed: core.ComputedTier},
			{Name: "confidence", Type: "TEXT", Group: "classification", Computed: core.ComputedConfidence},
			{Name: "created_at", Type: "TIMESTAMP", Group: "metadata", Computed: core.ComputedCreatedAt},
		},
		MinScore: 20,
		Limit:    500,
	}
}

func matches(t *testing.T, e sqlexpr.Expr, row sqlexpr.Row) bool {
	t.Helper()
	ok, err := sqlexpr.Matches(e, row)
	require.NoError(t, err)
	return ok
}

func evalScore(t *testing.T, e sqlexpr.Expr, row sqlexpr.Row) float64 {
	t.Helper()
	v, err := sqlexpr.Eval(e, row)
	require.NoError(t, err)
	f, ok := v.(float64)
	require.True(t, ok, "score is %T", v)
	return f
}
