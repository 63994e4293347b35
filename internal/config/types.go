// Package config holds the project defaults and checks shared by the CLI
// and the engine. It does not depend on any CLI package.
package config

import (
	"fmt"

	"github.com/leapstack-labs/aeroscore/pkg/adapter"
	"github.com/leapstack-labs/aeroscore/pkg/core"
)

// ValidateTarget checks that the target names a registered adapter.
func ValidateTarget(t *core.TargetConfig) error {
	if t == nil {
		return fmt.Errorf("target is required")
	}
	if t.Type == "" {
		return fmt.Errorf("target type is required")
	}
	if !adapter.IsRegistered(t.Type) {
		return &adapter.UnknownAdapterError{
			Type:      t.Type,
			Available: adapter.ListAdapters(),
		}
	}
	if adapter.TargetType(t.Type) == "postgres" && t.Database == "" {
		return fmt.Errorf("target database is required for postgres")
	}
	return nil
}
