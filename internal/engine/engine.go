// Package engine runs the aeroscore pipeline: it compiles rule documents
// into stage artifacts, records each compile in the state store, and
// executes or checks the assembled script against a database.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/aeroscore/internal/catalog"
	"github.com/leapstack-labs/aeroscore/internal/compiler"
	"github.com/leapstack-labs/aeroscore/internal/rules"
	"github.com/leapstack-labs/aeroscore/internal/state"
	"github.com/leapstack-labs/aeroscore/pkg/adapter"
	"github.com/leapstack-labs/aeroscore/pkg/core"
	"github.com/leapstack-labs/aeroscore/pkg/dialect"

	// Register the dialects the compiler can target.
	_ "github.com/leapstack-labs/aeroscore/pkg/dialects/duckdb"
	_ "github.com/leapstack-labs/aeroscore/pkg/dialects/postgres"
)

// DefaultDialect is used when neither the dialect nor the target type is
// configured.
const DefaultDialect = "postgres"

// Config holds engine configuration.
type Config struct {
	// RulesDir holds the five rule documents.
	RulesDir string
	// CatalogPath is the schema.json written by introspection.
	CatalogPath string
	// ArtifactsDir receives the stage SQL files.
	ArtifactsDir string
	// StatePath is the SQLite state database. Empty disables run tracking.
	StatePath string

	// Dialect names the SQL dialect to compile for. Defaults to the
	// target type, then DefaultDialect.
	Dialect  string
	Compiler core.CompilerConfig
	Target   core.TargetConfig

	// Store and Adapter replace the ones the engine would open itself.
	Store   core.Store
	Adapter adapter.Adapter

	Logger *slog.Logger
}

// Engine orchestrates compile, apply and verify.
type Engine struct {
	cfg    Config
	logger *slog.Logger

	store     core.Store
	ownsStore bool

	dbMu      sync.Mutex
	db        adapter.Adapter
	ownsDB    bool
	connected bool
}

// New creates an engine. The state store is opened immediately; the
// database is connected on first use.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	e := &Engine{cfg: cfg, logger: logger, store: cfg.Store, db: cfg.Adapter}
	if cfg.Adapter != nil {
		e.connected = true
	}

	if e.store == nil && cfg.StatePath != "" {
		store := state.NewSQLiteStore(logger)
		if err := store.Open(cfg.StatePath); err != nil {
			return nil, fmt.Errorf("failed to open state store: %w", err)
		}
		if err := store.InitSchema(); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to initialize state schema: %w", err)
		}
		e.store = store
		e.ownsStore = true
	}

	logger.Debug("engine ready",
		slog.String("rules_dir", cfg.RulesDir),
		slog.String("catalog", cfg.CatalogPath),
		slog.String("artifacts_dir", cfg.ArtifactsDir))
	return e, nil
}

// Close releases the database connection and state store the engine
// opened.
func (e *Engine) Close() error {
	var firstErr error
	e.dbMu.Lock()
	if e.db != nil && e.ownsDB {
		if err := e.db.Close(); err != nil {
			firstErr = err
		}
	}
	e.dbMu.Unlock()
	if e.store != nil && e.ownsStore {
		if err := e.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Store returns the run store, or nil when run tracking is disabled.
func (e *Engine) Store() core.Store {
	return e.store
}

// DialectName returns the dialect compile targets.
func (e *Engine) DialectName() string {
	switch {
	case e.cfg.Dialect != "":
		return e.cfg.Dialect
	case e.cfg.Target.Type != "":
		return adapter.TargetType(e.cfg.Target.Type)
	default:
		return DefaultDialect
	}
}

// Options builds compiler options for the configured dialect.
func (e *Engine) Options() (compiler.Options, error) {
	d, err := dialect.Lookup(e.DialectName())
	if err != nil {
		return compiler.Options{}, err
	}
	return compiler.NewOptions(d, e.cfg.Compiler, e.logger), nil
}

// LoadInputs reads the rules directory and the schema catalog.
func (e *Engine) LoadInputs() (*rules.Set, *core.Catalog, error) {
	set, err := rules.LoadDir(e.cfg.RulesDir)
	if err != nil {
		return nil, nil, err
	}
	cat, err := catalog.Load(e.cfg.CatalogPath)
	if err != nil {
		return nil, nil, err
	}
	return set, cat, nil
}

// adapterConfig maps the target onto the adapter's connection settings.
func adapterConfig(t core.TargetConfig) adapter.Config {
	cfg := adapter.Config{
		Type:     t.Type,
		Host:     t.Host,
		Port:     t.Port,
		Database: t.Database,
		Username: t.User,
		Password: t.Password,
		Schema:   t.Schema,
		Options:  t.Options,
		Params:   t.Params,
	}
	if t.Type == "duckdb" {
		cfg.Path = t.Database
	}
	return cfg
}

// connect returns the database adapter, connecting on first use.
func (e *Engine) connect(ctx context.Context) (adapter.Adapter, error) {
	e.dbMu.Lock()
	defer e.dbMu.Unlock()
	if e.connected {
		return e.db, nil
	}

	cfg := adapterConfig(e.cfg.Target)
	db, err := adapter.NewAdapter(cfg, e.logger)
	if err != nil {
		return nil, err
	}
	if err := db.Connect(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Type, err)
	}
	e.logger.Debug("connected", slog.String("type", cfg.Type))
	e.db, e.ownsDB, e.connected = db, true, true
	return db, nil
}

// Introspect reads the raw tables from the target database and writes the
// schema catalog.
func (e *Engine) Introspect(ctx context.Context, tables []string) (*core.Catalog, error) {
	db, err := e.connect(ctx)
	if err != nil {
		return nil, err
	}
	schema := e.cfg.Target.Schema
	if schema == "" {
		schema = db.Dialect().DefaultSchema
	}
	cat, err := catalog.Introspect(ctx, db, schema, tables, e.logger)
	if err != nil {
		return nil, err
	}
	if err := catalog.Save(e.cfg.CatalogPath, cat); err != nil {
		return nil, err
	}
	e.logger.Info("catalog written", slog.String("path", e.cfg.CatalogPath), slog.Int("tables", len(cat.Tables)))
	return cat, nil
}
