// Package config loads the aeroscore CLI configuration.
//
// Values are layered with koanf: built-in defaults, then aeroscore.yaml,
// then AEROSCORE_ environment variables, then command-line flags.
package config

import (
	sharedcfg "github.com/leapstack-labs/aeroscore/internal/config"
	"github.com/leapstack-labs/aeroscore/pkg/core"
)

// TargetConfig is an alias for the shared target configuration.
type TargetConfig = core.TargetConfig

// CompilerConfig is an alias for the shared compiler configuration.
type CompilerConfig = core.CompilerConfig

// Config holds all CLI configuration options.
type Config struct {
	RulesDir     string               `koanf:"rules_dir"`
	CatalogPath  string               `koanf:"catalog_path"`
	ArtifactsDir string               `koanf:"artifacts_dir"`
	StatePath    string               `koanf:"state_path"`
	Dialect      string               `koanf:"dialect"`
	Environment  string               `koanf:"environment"`
	Verbose      bool                 `koanf:"verbose"`
	OutputFormat string               `koanf:"output"`
	Target       *TargetConfig        `koanf:"target"`
	Compiler     CompilerConfig       `koanf:"compiler"`
	Environments map[string]EnvConfig `koanf:"environments"`

	// ProjectRoot is the directory relative paths are resolved against.
	ProjectRoot string `koanf:"-"`
}

// EnvConfig holds environment-specific overrides.
type EnvConfig struct {
	Dialect string        `koanf:"dialect"`
	Target  *TargetConfig `koanf:"target"`
}

// Default configuration values.
const (
	DefaultRulesDir     = sharedcfg.DefaultRulesDir
	DefaultCatalogPath  = sharedcfg.DefaultCatalogPath
	DefaultArtifactsDir = sharedcfg.DefaultArtifactsDir
	DefaultStateFile    = sharedcfg.DefaultStateFile
	DefaultOutput       = "auto" // TTY=text, otherwise markdown
)

// Default returns the configuration used when nothing was loaded.
func Default() *Config {
	return &Config{
		RulesDir:     DefaultRulesDir,
		CatalogPath:  DefaultCatalogPath,
		ArtifactsDir: DefaultArtifactsDir,
		StatePath:    DefaultStateFile,
		OutputFormat: DefaultOutput,
	}
}
