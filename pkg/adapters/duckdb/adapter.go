// Package duckdb provides a DuckDB adapter for running aeroscore scripts
// against a local copy of the map tables.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	_ "github.com/marcboeker/go-duckdb" // duckdb driver

	"github.com/leapstack-labs/aeroscore/pkg/adapter"
	"github.com/leapstack-labs/aeroscore/pkg/core"
	"github.com/leapstack-labs/aeroscore/pkg/dialect"
	duckdialect "github.com/leapstack-labs/aeroscore/pkg/dialects/duckdb"
)

// Adapter implements the adapter.Adapter interface for DuckDB.
type Adapter struct {
	adapter.BaseSQLAdapter
	Params *Params
}

// New creates a new DuckDB adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger},
	}
}

// Dialect returns the DuckDB dialect.
func (a *Adapter) Dialect() *dialect.Dialect {
	return duckdialect.DuckDB
}

// DialectConfig returns the static dialect configuration.
func (a *Adapter) DialectConfig() *core.DialectConfig {
	return duckdialect.Config
}

// Connect opens the database file, or an in-memory database when the
// path is empty or ":memory:", then applies extensions and settings.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	params, err := ParseParams(cfg.Params)
	if err != nil {
		return err
	}

	path := cfg.Path
	if path == "" {
		path = cfg.Database
	}
	if path == "" {
		path = ":memory:"
	}

	a.Logger.Debug("connecting to duckdb", slog.String("path", path))

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	a.DB = db
	a.Cfg = cfg
	a.Params = params

	for _, stmt := range setupStatements(params) {
		if err := a.Exec(ctx, stmt); err != nil {
			_ = a.Close()
			a.DB = nil
			return fmt.Errorf("duckdb setup %q: %w", stmt, err)
		}
	}
	return nil
}

var settingNameRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// setupStatements returns the INSTALL/LOAD and SET statements for params,
// settings in key order. Names that are not plain identifiers are skipped.
func setupStatements(p *Params) []string {
	if p == nil {
		return nil
	}
	var out []string
	for _, ext := range p.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if !settingNameRe.MatchString(ext) {
			continue
		}
		out = append(out, "INSTALL "+ext, "LOAD "+ext)
	}

	keys := make([]string, 0, len(p.Settings))
	for k := range p.Settings {
		if settingNameRe.MatchString(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := strings.ReplaceAll(p.Settings[k], "'", "''")
		out = append(out, fmt.Sprintf("SET %s = '%s'", k, v))
	}
	return out
}

// GetTableMetadata retrieves metadata for a specified table.
func (a *Adapter) GetTableMetadata(ctx context.Context, table string) (*adapter.Metadata, error) {
	return a.GetTableMetadataCommon(ctx, table, duckdialect.DuckDB)
}

var _ adapter.Adapter = (*Adapter)(nil)
