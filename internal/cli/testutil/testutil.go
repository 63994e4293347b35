// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"testing"

	"github.com/leapstack-labs/aeroscore/internal/cli/output"
)

func repoRoot() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "..")
}

// SetupTestProject creates a temporary project holding aeroscore.yaml,
// the bundled rule documents and a small schema catalog. The project
// compiles for dialect and has no target.
func SetupTestProject(t *testing.T, dialect string) string {
	t.Helper()

	tmpDir := t.TempDir()
	root := repoRoot()

	copyFile(t, filepath.Join(root, "internal", "engine", "testdata", "schema.json"), filepath.Join(tmpDir, "schema.json"))

	rulesDir := filepath.Join(tmpDir, "rules")
	if err := os.MkdirAll(rulesDir, 0o755); err != nil {
		t.Fatalf("failed to create rules dir: %v", err)
	}
	entries, err := os.ReadDir(filepath.Join(root, "rules"))
	if err != nil {
		t.Fatalf("failed to read rules: %v", err)
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".yaml" {
			continue
		}
		copyFile(t, filepath.Join(root, "rules", e.Name()), filepath.Join(rulesDir, e.Name()))
	}

	cfg := "dialect: " + dialect + "\n"
	if err := os.WriteFile(filepath.Join(tmpDir, "aeroscore.yaml"), []byte(cfg), 0o600); err != nil {
		t.Fatalf("failed to write aeroscore.yaml: %v", err)
	}

	return tmpDir
}

func copyFile(t *testing.T, src, dst string) {
	t.Helper()
	data, err := os.ReadFile(src) //nolint:gosec
	if err != nil {
		t.Fatalf("failed to read %s: %v", src, err)
	}
	if err := os.WriteFile(dst, data, 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", dst, err)
	}
}

// TestRenderer is a Renderer whose stdout and stderr are buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a TestRenderer; isTTY simulates a terminal.
func NewTestRenderer(mode output.OutputMode, isTTY bool) *TestRenderer {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// Output returns what was written to stdout.
func (tr *TestRenderer) Output() string { return tr.Out.String() }

// ErrorOutput returns what was written to stderr.
func (tr *TestRenderer) ErrorOutput() string { return tr.ErrOut.String() }

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI fails when s carries terminal escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if loc := ansiPattern.FindStringIndex(s); loc != nil {
		t.Errorf("unexpected ANSI escape at offset %d in %q", loc[0], s)
	}
}

// AssertValidMarkdown checks that code fences are balanced and that no
// header is empty.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	if n := strings.Count(md, "```"); n%2 != 0 {
		t.Errorf("unbalanced code fences: %d", n)
	}
	for i, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d", i+1)
		}
	}
}

// DecodeJSON unmarshals the captured stdout into v.
func (tr *TestRenderer) DecodeJSON(t *testing.T, v any) {
	t.Helper()
	if err := json.Unmarshal(tr.Out.Bytes(), v); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, tr.Out.String())
	}
}
