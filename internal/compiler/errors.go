package compiler

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingStage is returned when a script that must be complete still
// holds a placeholder for a required stage.
var ErrMissingStage = errors.New("required stage is missing")

// StageError names the stage, and when known the table and rule, that
// stopped a compile.
type StageError struct {
	Stage string
	Table string
	Rule  string
	Err   error
}

func (e *StageError) Error() string {
	var b strings.Builder
	b.WriteString(e.Stage)
	if e.Table != "" {
		fmt.Fprintf(&b, " [table %s]", e.Table)
	}
	if e.Rule != "" {
		fmt.Fprintf(&b, " [rule %s]", e.Rule)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *StageError) Unwrap() error { return e.Err }

// MismatchError reports an output column that cannot be projected
// consistently from the source views.
type MismatchError struct {
	Table  string
	Column string
	Reason string
}

func (e *MismatchError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("output column %q: %s", e.Column, e.Reason)
	}
	return fmt.Sprintf("output column %q in %s: %s", e.Column, e.Table, e.Reason)
}

func stageErr(stage, table, rule string, err error) error {
	return &StageError{Stage: stage, Table: table, Rule: rule, Err: err}
}
