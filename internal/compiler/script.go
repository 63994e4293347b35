package compiler

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	stepPrefix        = "-- STEP "
	placeholderMarker = "-- PLACEHOLDER: "
)

// Pipeline stages. The first three name the artifacts; the rest name
// sections of the assembled script.
const (
	StageExclusions = "exclusions"
	StageScoring    = "scoring"
	StageAssemble   = "assemble"

	StageOutputDDL     = "output_ddl"
	StageFilteredViews = "filtered_views"
	StageScoredViews   = "scored_views"
	StageInsert        = "insert"
	StageDiagnostics   = "diagnostics"
	StagePreview       = "preview"
)

// Meta is a key/value line in a script header.
type Meta struct {
	Key   string
	Value string
}

// Section is one titled block of a script.
type Section struct {
	Stage string
	Title string
	SQL   string
	// Placeholder marks a section whose SQL is a comment standing in for
	// an artifact that was not available.
	Placeholder bool
}

// Script is an ordered list of sections with a comment header. Rendering
// is deterministic; nothing time-dependent is written.
type Script struct {
	Title    string
	Meta     []Meta
	Summary  []string
	Sections []Section
}

// PlaceholderSection stands in for a missing artifact.
func PlaceholderSection(stage, title, reason string) Section {
	var b strings.Builder
	for _, line := range strings.Split(reason, "\n") {
		b.WriteString(placeholderMarker)
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return Section{Stage: stage, Title: title, SQL: b.String(), Placeholder: true}
}

// SetMeta sets or replaces a header entry.
func (s *Script) SetMeta(key, value string) {
	for i := range s.Meta {
		if s.Meta[i].Key == key {
			s.Meta[i].Value = value
			return
		}
	}
	s.Meta = append(s.Meta, Meta{Key: key, Value: value})
}

// MetaValue returns a header entry.
func (s *Script) MetaValue(key string) (string, bool) {
	for _, m := range s.Meta {
		if m.Key == key {
			return m.Value, true
		}
	}
	return "", false
}

// Validate refuses a script that still has a placeholder step. It checks
// the rendered text, the same way apply checks the file on disk.
func (s *Script) Validate() error {
	return CheckSteps(ParseSteps(s.String()))
}

// String renders the script.
func (s *Script) String() string {
	var b strings.Builder
	rule := strings.Repeat("=", 76)

	b.WriteString("-- " + rule + "\n")
	b.WriteString("-- " + s.Title + "\n")
	b.WriteString("-- generated by aeroscore; do not edit\n")
	for _, m := range s.Meta {
		fmt.Fprintf(&b, "-- %s: %s\n", m.Key, m.Value)
	}
	for _, line := range s.Summary {
		b.WriteString("--   " + line + "\n")
	}
	b.WriteString("-- " + rule + "\n")

	for i, sec := range s.Sections {
		b.WriteString("\n")
		fmt.Fprintf(&b, "%s%d: %s\n", stepPrefix, i+1, sec.Title)
		b.WriteString(strings.TrimRight(sec.SQL, "\n"))
		b.WriteString("\n")
	}
	return b.String()
}

// ParseStepMarker reads a "-- STEP n: title" line.
func ParseStepMarker(line string) (n int, title string, ok bool) {
	rest, found := strings.CutPrefix(line, stepPrefix)
	if !found {
		return 0, "", false
	}
	num, title, found := strings.Cut(rest, ": ")
	if !found {
		return 0, "", false
	}
	n, err := strconv.Atoi(num)
	if err != nil || n < 1 {
		return 0, "", false
	}
	return n, title, true
}

// Step is one top-level step recovered from rendered script text.
type Step struct {
	Number int
	Title  string
	SQL    string
}

// Placeholder reports whether the step stands in for a missing artifact.
func (st Step) Placeholder() bool {
	return strings.HasPrefix(st.SQL, placeholderMarker)
}

// CheckSteps returns ErrMissingStage naming every placeholder step.
func CheckSteps(steps []Step) error {
	var missing []string
	for _, st := range steps {
		if st.Placeholder() {
			missing = append(missing, st.Title)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingStage, strings.Join(missing, ", "))
	}
	return nil
}

// ParseSteps splits rendered script text back into its steps. Text before
// the first marker is the header and is not returned.
func ParseSteps(text string) []Step {
	var steps []Step
	var cur *Step
	var body strings.Builder
	flush := func() {
		if cur != nil {
			cur.SQL = strings.TrimSpace(body.String())
			steps = append(steps, *cur)
		}
		body.Reset()
	}
	for _, line := range strings.Split(text, "\n") {
		if n, title, ok := ParseStepMarker(line); ok {
			flush()
			cur = &Step{Number: n, Title: title}
			continue
		}
		if cur != nil {
			body.WriteString(line)
			body.WriteByte('\n')
		}
	}
	flush()
	return steps
}
