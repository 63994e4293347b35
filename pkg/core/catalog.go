package core

import "sort"

// Catalog is the schema snapshot of the raw map tables the compiler works
// against. It is loaded once per run and never mutated afterwards.
type Catalog struct {
	Schema string                `json:"schema"`
	Tables map[string]*TableInfo `json:"tables"`
}

// TableInfo describes one raw table.
type TableInfo struct {
	Name     string   `json:"name"`
	Exists   bool     `json:"exists"`
	RowCount int64    `json:"row_count"`
	Columns  []Column `json:"columns"`

	index map[string]int
}

// Table returns the named table, or nil when the catalog does not list it.
func (c *Catalog) Table(name string) *TableInfo {
	if c == nil || c.Tables == nil {
		return nil
	}
	return c.Tables[name]
}

// TableNames returns every table name in sorted order.
func (c *Catalog) TableNames() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.Tables))
	for name := range c.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Usable reports whether the table exists and holds at least one row.
// Tables that are absent or empty get no views.
func (t *TableInfo) Usable() bool {
	return t != nil && t.Exists && t.RowCount > 0
}

// HasColumn reports whether the table has a column with the exact name.
func (t *TableInfo) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// Column looks up a column by exact name.
func (t *TableInfo) Column(name string) (Column, bool) {
	if t == nil {
		return Column{}, false
	}
	if t.index == nil || len(t.index) != len(t.Columns) {
		t.buildIndex()
	}
	i, ok := t.index[name]
	if !ok {
		return Column{}, false
	}
	return t.Columns[i], true
}

// ColumnNames returns the column names in table order.
func (t *TableInfo) ColumnNames() []string {
	if t == nil {
		return nil
	}
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

func (t *TableInfo) buildIndex() {
	t.index = make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		t.index[c.Name] = i
	}
}

// Index builds the lookup tables of every table in the catalog. Call it once
// after loading so later lookups do not write to shared state.
func (c *Catalog) Index() {
	if c == nil {
		return
	}
	for name, t := range c.Tables {
		if t == nil {
			continue
		}
		if t.Name == "" {
			t.Name = name
		}
		t.buildIndex()
	}
}
