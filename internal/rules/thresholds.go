package rules

import (
	"bytes"
	"errors"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/aeroscore/pkg/core"
)

// Defaults applied when thresholds.yaml leaves a field out.
const (
	DefaultTier     = "unclassified"
	DefaultMinScore = 10
	DefaultLimit    = 5000
)

// DefaultConfidence is used when thresholds.yaml has no confidence section.
func DefaultConfidence() core.ConfidenceTable {
	return core.ConfidenceTable{
		Bands: []core.ConfidenceBand{
			{Label: "high", MinScore: 150, Gate: &core.Gate{AnyNotNull: []string{"website", "phone"}}},
			{Label: "medium", MinScore: 80, Gate: &core.Gate{AllNotNull: []string{"name"}}},
			{Label: "low", MinScore: 40},
		},
		Default: "very_low",
	}
}

// Thresholds is the decoded thresholds.yaml.
type Thresholds struct {
	Tiers      core.ThresholdTable
	Confidence core.ConfidenceTable
	// MinScore drops candidates scoring below it from the output table.
	MinScore int
	// Limit caps the output table; zero means no cap.
	Limit int
}

type thresholdsFile struct {
	Thresholds thresholdsSection `yaml:"thresholds"`
}

type thresholdsSection struct {
	Classification      map[string]tierDoc `yaml:"classification"`
	DefaultTier         string             `yaml:"default_tier"`
	Confidence          *confidenceDoc     `yaml:"confidence"`
	MinimumRequirements struct {
		MinScore *int `yaml:"min_score"`
	} `yaml:"minimum_requirements"`
	OutputLimits struct {
		MaxTotalResults *int `yaml:"max_total_results"`
	} `yaml:"output_limits"`
}

type tierDoc struct {
	MinScore    *int   `yaml:"min_score"`
	MaxScore    *int   `yaml:"max_score"`
	Description string `yaml:"description"`
}

type confidenceDoc struct {
	Bands   map[string]bandDoc `yaml:"bands"`
	Default string             `yaml:"default"`
}

type bandDoc struct {
	MinScore    *int     `yaml:"min_score"`
	AnyNotNull  []string `yaml:"any_not_null"`
	AllNotNull  []string `yaml:"all_not_null"`
	Description string   `yaml:"description"`
}

// ParseThresholds reads thresholds.yaml. Tiers are open ranges from their
// minimum score upwards; a max_score is rejected because it could leave a
// gap that breaks tier monotonicity.
func ParseThresholds(data []byte) (Thresholds, error) {
	out := Thresholds{MinScore: DefaultMinScore, Limit: DefaultLimit}
	fail := func(path, msg string) (Thresholds, error) {
		return Thresholds{}, &ValidationError{Document: ThresholdsFile, Path: path, Message: msg}
	}

	var doc thresholdsFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return fail("", err.Error())
	}
	t := doc.Thresholds

	if len(t.Classification) == 0 {
		return fail("thresholds.classification", "at least one tier is required")
	}
	labels := make([]string, 0, len(t.Classification))
	for label := range t.Classification {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		tier := t.Classification[label]
		path := "thresholds.classification." + label
		if tier.MinScore == nil {
			return fail(path+".min_score", "is required")
		}
		if tier.MaxScore != nil {
			return fail(path+".max_score", "tiers are open ranges, remove max_score")
		}
		out.Tiers.Thresholds = append(out.Tiers.Thresholds, core.Threshold{Label: label, MinScore: *tier.MinScore})
	}
	out.Tiers.Default = t.DefaultTier
	if out.Tiers.Default == "" {
		out.Tiers.Default = DefaultTier
	}

	if t.Confidence == nil {
		out.Confidence = DefaultConfidence()
	} else {
		labels = labels[:0]
		for label := range t.Confidence.Bands {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		for _, label := range labels {
			band := t.Confidence.Bands[label]
			path := "thresholds.confidence.bands." + label
			if band.MinScore == nil {
				return fail(path+".min_score", "is required")
			}
			b := core.ConfidenceBand{Label: label, MinScore: *band.MinScore}
			if len(band.AnyNotNull) > 0 || len(band.AllNotNull) > 0 {
				b.Gate = &core.Gate{AnyNotNull: band.AnyNotNull, AllNotNull: band.AllNotNull}
			}
			out.Confidence.Bands = append(out.Confidence.Bands, b)
		}
		out.Confidence.Default = t.Confidence.Default
		if out.Confidence.Default == "" {
			return fail("thresholds.confidence.default", "is required")
		}
	}

	if v := t.MinimumRequirements.MinScore; v != nil {
		out.MinScore = *v
	}
	if v := t.OutputLimits.MaxTotalResults; v != nil {
		if *v < 0 {
			return fail("thresholds.output_limits.max_total_results", "must not be negative")
		}
		out.Limit = *v
	}
	return out, nil
}
