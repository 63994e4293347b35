// Package core defines the shared language of the aeroscore system.
//
// This package contains:
//   - Domain entities (Catalog, Condition, WeightedRule, OutputTableSpec, Run)
//   - Service interfaces (Adapter)
//   - Configuration types (TargetConfig, CompilerConfig, DialectConfig)
//
// The Golden Rule: pkg/core imports ONLY the standard library.
// All other packages depend on core, not the reverse.
package core
