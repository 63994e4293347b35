package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/aeroscore/internal/cli/config"
	"github.com/leapstack-labs/aeroscore/internal/cli/output"
	"github.com/leapstack-labs/aeroscore/internal/engine"
	"github.com/leapstack-labs/aeroscore/pkg/core"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Engine   *engine.Engine
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext with engine and renderer.
// Returns the context and a cleanup function that must be called (typically via defer).
func NewCommandContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	eng, err := createEngine(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat))
	cleanup := func() {
		if err := eng.Close(); err != nil {
			logger.Warn("failed to close engine", slog.String("error", err.Error()))
		}
	}

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Engine:   eng,
		Renderer: r,
	}, cleanup, nil
}

// getConfig returns the loaded configuration, or the defaults when the
// command runs without the root pre-run (as in tests).
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return config.Default()
}

func createEngine(cfg *config.Config, logger *slog.Logger) (*engine.Engine, error) {
	if cfg.StatePath != "" && cfg.StatePath != ":memory:" {
		if dir := filepath.Dir(cfg.StatePath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create state directory: %w", err)
			}
		}
	}

	var target core.TargetConfig
	if cfg.Target != nil {
		target = *cfg.Target
	}

	return engine.New(engine.Config{
		RulesDir:     cfg.RulesDir,
		CatalogPath:  cfg.CatalogPath,
		ArtifactsDir: cfg.ArtifactsDir,
		StatePath:    cfg.StatePath,
		Dialect:      cfg.Dialect,
		Compiler:     cfg.Compiler,
		Target:       target,
		Logger:       logger,
	})
}

// requireTarget fails commands that need a database when none is configured.
func requireTarget(cfg *config.Config) error {
	if cfg.Target == nil || cfg.Target.Type == "" {
		return fmt.Errorf("no target database configured\nHint: add a target section to aeroscore.yaml or select one with --target")
	}
	return nil
}
