package core

// TargetConfig holds database target configuration.
type TargetConfig struct {
	Type string `koanf:"type"` // duckdb, postgres

	// File-based databases (DuckDB)
	Database string `koanf:"database"` // file path or database name

	// Network databases
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`

	// Schema holds the raw map tables and receives the generated views.
	Schema string `koanf:"schema"`

	// Additional driver-specific options
	Options map[string]string `koanf:"options"`

	// Params holds adapter-specific configuration (e.g., DuckDB extensions, settings)
	Params map[string]any `koanf:"params"`
}

// CompilerConfig tunes column resolution and naming inside the compiler.
// Zero values fall back to the built-in defaults.
type CompilerConfig struct {
	// AreaColumns are tried in order when a rule field ends in _area and the
	// field itself is not a column.
	AreaColumns []string `koanf:"area_columns"`

	// FieldAliases maps a rule field to the physical column it reads.
	FieldAliases map[string]string `koanf:"field_aliases"`

	// SourceOrder lists the tables whose scored views feed the candidate
	// table. Earlier tables win score ties during deduplication.
	SourceOrder []string `koanf:"source_order"`

	// DedupKey is the column that identifies one facility across tables.
	DedupKey string `koanf:"dedup_key"`

	FilteredSuffix string `koanf:"filtered_suffix"`
	ScoredSuffix   string `koanf:"scored_suffix"`

	// PreviewCounts emits commented row-count queries for each view.
	PreviewCounts bool `koanf:"preview_counts"`

	// TopN is the size of the top-candidate listing in diagnostics.
	TopN int `koanf:"top_n"`
}
