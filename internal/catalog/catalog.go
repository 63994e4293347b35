// Package catalog reads, writes and builds the schema.json snapshot of the
// raw map tables.
package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/aeroscore/pkg/core"
)

// DefaultSchema is assumed when a catalog document names no schema.
const DefaultSchema = "public"

// DefaultTables are the osm2pgsql output tables introspected by default.
var DefaultTables = []string{"planet_osm_point", "planet_osm_line", "planet_osm_polygon", "planet_osm_roads"}

// Summary counts what a catalog holds. It is written alongside the tables
// and ignored on load.
type Summary struct {
	TotalTables    int `json:"total_tables"`
	TablesWithData int `json:"tables_with_data"`
	TotalColumns   int `json:"total_columns"`
}

type document struct {
	Schema  string                     `json:"schema"`
	Tables  map[string]*core.TableInfo `json:"tables"`
	Summary *Summary                   `json:"summary,omitempty"`
}

// Summarize counts existing tables, tables with rows and their columns.
func Summarize(cat *core.Catalog) Summary {
	var s Summary
	for _, name := range cat.TableNames() {
		t := cat.Tables[name]
		if t == nil || !t.Exists {
			continue
		}
		s.TotalTables++
		s.TotalColumns += len(t.Columns)
		if t.RowCount > 0 {
			s.TablesWithData++
		}
	}
	return s
}

// Parse decodes a schema.json document and indexes its tables.
func Parse(data []byte) (*core.Catalog, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(doc.Tables) == 0 {
		return nil, errors.New("parse catalog: no tables listed")
	}
	for name, t := range doc.Tables {
		if t == nil {
			doc.Tables[name] = &core.TableInfo{Name: name}
			continue
		}
		if t.Name != "" && t.Name != name {
			return nil, fmt.Errorf("parse catalog: table %q is listed under %q", t.Name, name)
		}
	}
	if doc.Schema == "" {
		doc.Schema = DefaultSchema
	}
	cat := &core.Catalog{Schema: doc.Schema, Tables: doc.Tables}
	cat.Index()
	return cat, nil
}

// Load reads and parses the catalog at path.
func Load(path string) (*core.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	cat, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cat, nil
}

// Marshal encodes cat as an indented schema.json document with a summary.
// Tables are written in name order.
func Marshal(cat *core.Catalog) ([]byte, error) {
	s := Summarize(cat)
	data, err := json.MarshalIndent(document{Schema: cat.Schema, Tables: cat.Tables, Summary: &s}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Save writes cat to path, creating the parent directory.
func Save(path string, cat *core.Catalog) error {
	data, err := Marshal(cat)
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create catalog dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}
	return nil
}

// Hash fingerprints the catalog contents. Two catalogs describing the same
// tables hash equal regardless of the file they were read from.
func Hash(cat *core.Catalog) string {
	data, err := json.Marshal(document{Schema: cat.Schema, Tables: cat.Tables})
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
