// Package rules loads the YAML rule documents that drive the compiler.
package rules

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/aeroscore/pkg/core"
)

// Rule document file names.
const (
	ExclusionsFile      = "exclusions.yaml"
	ScoringFile         = "scoring.yaml"
	NegativeSignalsFile = "negative_signals.yaml"
	ThresholdsFile      = "thresholds.yaml"
	SeedColumnsFile     = "seed_columns.yaml"
)

// Documents lists every rule document in hashing order.
var Documents = []string{
	ExclusionsFile,
	ScoringFile,
	NegativeSignalsFile,
	ThresholdsFile,
	SeedColumnsFile,
}

// optional documents may be absent from a rules directory.
var optional = map[string]bool{NegativeSignalsFile: true}

// Set is a fully loaded rules directory.
type Set struct {
	Dir        string
	Exclusions core.ExclusionRuleSet
	Scoring    core.ScoringRuleSet
	Tiers      core.ThresholdTable
	Confidence core.ConfidenceTable
	Output     core.OutputTableSpec
	// Hash fingerprints the documents the set was loaded from.
	Hash string
}

// LoadDir loads every rule document from dir. Only negative_signals.yaml
// may be missing.
func LoadDir(dir string) (*Set, error) {
	docs := make(map[string][]byte, len(Documents))
	for _, name := range Documents {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) && optional[name] {
				continue
			}
			return nil, fmt.Errorf("read rules: %w", err)
		}
		docs[name] = data
	}
	set, err := Parse(docs)
	if err != nil {
		return nil, err
	}
	set.Dir = dir
	return set, nil
}

// Parse builds a Set from document contents keyed by file name.
func Parse(docs map[string][]byte) (*Set, error) {
	for _, name := range Documents {
		if _, ok := docs[name]; !ok && !optional[name] {
			return nil, fmt.Errorf("rules: %s is required", name)
		}
	}

	set := &Set{Hash: Hash(docs)}
	var err error
	if set.Exclusions, err = ParseExclusions(docs[ExclusionsFile]); err != nil {
		return nil, err
	}
	if set.Scoring, err = ParseScoring(docs[ScoringFile]); err != nil {
		return nil, err
	}
	if data, ok := docs[NegativeSignalsFile]; ok {
		if set.Scoring.Negative, set.Scoring.Contextual, err = ParseNegativeSignals(data); err != nil {
			return nil, err
		}
	}

	th, err := ParseThresholds(docs[ThresholdsFile])
	if err != nil {
		return nil, err
	}
	set.Tiers, set.Confidence = th.Tiers, th.Confidence

	if set.Output, err = ParseSeedColumns(docs[SeedColumnsFile]); err != nil {
		return nil, err
	}
	set.Output.MinScore, set.Output.Limit = th.MinScore, th.Limit
	return set, nil
}

// Hash returns a hex SHA-256 over the present documents in Documents order.
// Each document contributes its name and content.
func Hash(docs map[string][]byte) string {
	h := sha256.New()
	for _, name := range Documents {
		data, ok := docs[name]
		if !ok {
			continue
		}
		h.Write([]byte(name))
		h.Write([]byte{0})
		h.Write(data)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Paths returns the paths of every rule document under dir, for watching.
func Paths(dir string) []string {
	out := make([]string, len(Documents))
	for i, name := range Documents {
		out[i] = filepath.Join(dir, name)
	}
	return out
}
