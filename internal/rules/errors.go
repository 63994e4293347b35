package rules

import "fmt"

// ValidationError reports a malformed rule document. Path locates the
// offending field inside the document, e.g. "scoring_rules.factory.weight".
type ValidationError struct {
	Document string
	Path     string
	Line     int
	Message  string
}

func (e *ValidationError) Error() string {
	loc := e.Document
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", e.Document, e.Line)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", loc, e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s", loc, e.Message)
}
