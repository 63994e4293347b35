package state

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/leapstack-labs/aeroscore/pkg/core"
)

const artifactColumns = `id, run_id, stage, path, sha256, bytes, changed, created_at`

// RecordArtifact stores a written artifact against its run. ID and
// CreatedAt are filled in when empty.
func (s *SQLiteStore) RecordArtifact(a *core.Artifact) error {
	if s.db == nil {
		return errNotOpened
	}
	if a.RunID == "" {
		return fmt.Errorf("artifact %s has no run", a.Stage)
	}
	if a.ID == "" {
		a.ID = generateID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}

	_, err := s.db.Exec(
		`INSERT INTO artifacts (`+artifactColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.RunID, a.Stage, a.Path, a.SHA256, a.Bytes, a.Changed, formatTime(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to record artifact: %w", err)
	}
	return nil
}

// GetArtifactsForRun returns the artifacts of a run in write order.
func (s *SQLiteStore) GetArtifactsForRun(runID string) ([]*core.Artifact, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	rows, err := s.db.Query(`SELECT `+artifactColumns+` FROM artifacts WHERE run_id = ? ORDER BY created_at, rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get artifacts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*core.Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to get artifacts: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetLatestArtifact returns the newest artifact of a stage, or nil.
func (s *SQLiteStore) GetLatestArtifact(stage string) (*core.Artifact, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	a, err := scanArtifact(s.db.QueryRow(
		`SELECT `+artifactColumns+` FROM artifacts WHERE stage = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`, stage))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest artifact: %w", err)
	}
	return a, nil
}

func scanArtifact(row scanner) (*core.Artifact, error) {
	var (
		a         core.Artifact
		createdAt string
	)
	if err := row.Scan(&a.ID, &a.RunID, &a.Stage, &a.Path, &a.SHA256, &a.Bytes, &a.Changed, &createdAt); err != nil {
		return nil, err
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	a.CreatedAt = t
	return &a, nil
}
