package core

import "time"

// Store defines the interface for compile-run bookkeeping.
type Store interface {
	Open(path string) error
	Close() error
	InitSchema() error

	// Run operations
	CreateRun(command, catalogHash, rulesHash string) (*Run, error)
	GetRun(id string) (*Run, error)
	CompleteRun(id string, status RunStatus, errMsg string) error
	GetLatestRun() (*Run, error)
	ListRuns(limit int) ([]*Run, error)

	// Artifact operations
	RecordArtifact(a *Artifact) error
	GetArtifactsForRun(runID string) ([]*Artifact, error)
	GetLatestArtifact(stage string) (*Artifact, error)
}

// RunStatus is the outcome of a compile run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one invocation of the compiler pipeline.
type Run struct {
	ID          string
	Command     string
	Status      RunStatus
	CatalogHash string
	RulesHash   string
	StartedAt   time.Time
	CompletedAt *time.Time
	Error       string
}

// Artifact records one SQL file written by a run.
type Artifact struct {
	ID        string
	RunID     string
	Stage     string
	Path      string
	SHA256    string
	Bytes     int64
	Changed   bool
	CreatedAt time.Time
}
