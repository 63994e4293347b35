package config

import (
	"fmt"
	"os"
)

// Validate checks the fields every command needs.
func (c *Config) Validate() error {
	if c.RulesDir == "" {
		return fmt.Errorf("rules_dir is required")
	}
	if c.ArtifactsDir == "" {
		return fmt.Errorf("artifacts_dir is required")
	}
	return nil
}

// ValidateRulesDir checks that the rules directory exists.
func (c *Config) ValidateRulesDir() error {
	if _, err := os.Stat(c.RulesDir); os.IsNotExist(err) {
		return fmt.Errorf("rules directory does not exist: %s\nHint: create it or pass --rules-dir", c.RulesDir)
	}
	return nil
}

// ValidateCatalog checks that the schema catalog exists.
func (c *Config) ValidateCatalog() error {
	if _, err := os.Stat(c.CatalogPath); os.IsNotExist(err) {
		return fmt.Errorf("schema catalog does not exist: %s\nHint: run `aeroscore introspect` or pass --catalog", c.CatalogPath)
	}
	return nil
}
