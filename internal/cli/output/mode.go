// Package output renders command results for terminals, scripts and agents.
//
// A Renderer prints styled text on a terminal and markdown when piped,
// unless the user picks a mode with --output.
package output

import (
	"os"
	"strings"

	"golang.org/x/term"
)

// OutputMode selects how results are printed.
type OutputMode string //nolint:revive

// Output modes.
const (
	ModeAuto     OutputMode = "auto"
	ModeText     OutputMode = "text"
	ModeMarkdown OutputMode = "markdown"
	ModeJSON     OutputMode = "json"
)

// Mode converts a user-supplied format name into an OutputMode.
// Unknown and empty names select ModeAuto.
func Mode(s string) OutputMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "txt":
		return ModeText
	case "markdown", "md":
		return ModeMarkdown
	case "json":
		return ModeJSON
	default:
		return ModeAuto
	}
}

// ValidModes lists the names accepted by --output.
func ValidModes() []string {
	return []string{string(ModeAuto), string(ModeText), string(ModeMarkdown), string(ModeJSON)}
}

func isTerminal(w any) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd())) //nolint:gosec
}
