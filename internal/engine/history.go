package engine

import (
	"errors"

	"github.com/leapstack-labs/aeroscore/pkg/core"
)

// ErrNoState is returned by history lookups when run tracking is off.
var ErrNoState = errors.New("run tracking is disabled (no state path configured)")

// RunRecord is a compile run and the artifacts it wrote.
type RunRecord struct {
	Run       *core.Run
	Artifacts []*core.Artifact
}

// History returns up to limit recent runs, newest first.
func (e *Engine) History(limit int) ([]RunRecord, error) {
	if e.store == nil {
		return nil, ErrNoState
	}
	runs, err := e.store.ListRuns(limit)
	if err != nil {
		return nil, err
	}
	out := make([]RunRecord, 0, len(runs))
	for _, r := range runs {
		arts, err := e.store.GetArtifactsForRun(r.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, RunRecord{Run: r, Artifacts: arts})
	}
	return out, nil
}
