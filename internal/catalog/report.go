package catalog

import "github.com/leapstack-labs/aeroscore/pkg/core"

// RelevantGroup lists the aerospace-relevant columns of one category found
// in any existing table.
type RelevantGroup struct {
	Category string   `json:"category"`
	Expected []string `json:"expected"`
	Found    []string `json:"found"`
}

var relevantColumns = []struct {
	category string
	columns  []string
}{
	{"primary_filters", []string{"landuse", "industrial", "man_made", "building", "amenity", "aeroway", "military"}},
	{"identification", []string{"name", "operator", "brand", "company", "office", "shop"}},
	{"contact_info", []string{"website", "phone", "email", "contact:website", "contact:phone"}},
	{"address", []string{"addr:postcode", "addr:street", "addr:city", "addr:country"}},
	{"descriptive", []string{"description", "industrial:type", "manufacturing", "product", "craft", "material", "service"}},
	{"spatial", []string{"way", "geom"}},
}

// RelevantColumns reports which columns that matter for finding suppliers
// exist in the catalog. Found columns keep the expected order.
func RelevantColumns(cat *core.Catalog) []RelevantGroup {
	out := make([]RelevantGroup, 0, len(relevantColumns))
	for _, group := range relevantColumns {
		g := RelevantGroup{Category: group.category, Expected: group.columns, Found: []string{}}
		for _, col := range group.columns {
			for _, name := range cat.TableNames() {
				if t := cat.Tables[name]; t != nil && t.Exists && t.HasColumn(col) {
					g.Found = append(g.Found, col)
					break
				}
			}
		}
		out = append(out, g)
	}
	return out
}
