package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/leapstack-labs/aeroscore/internal/artifact"
	"github.com/leapstack-labs/aeroscore/internal/compiler"
)

// StepResult is one executed step of the assembled script.
type StepResult struct {
	Number   int
	Title    string
	Duration time.Duration
}

// ApplyResult reports an apply invocation.
type ApplyResult struct {
	Path  string
	Steps []StepResult
}

// Apply executes the assembled script against the target database, one
// step at a time. The diagnostics step is left to Verify. A script with a
// placeholder step, or one compiled for another dialect, is refused
// before anything runs.
func (e *Engine) Apply(ctx context.Context) (*ApplyResult, error) {
	name, err := artifact.FileName(compiler.StageAssemble)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(e.cfg.ArtifactsDir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read assembled script: %w", err)
	}
	text := string(data)

	steps := compiler.ParseSteps(text)
	if len(steps) == 0 {
		return nil, fmt.Errorf("%s has no steps", path)
	}
	if err := compiler.CheckSteps(steps); err != nil {
		return nil, err
	}

	db, err := e.connect(ctx)
	if err != nil {
		return nil, err
	}
	if d := artifact.Meta(text)["dialect"]; d != "" && d != db.Dialect().Name {
		return nil, fmt.Errorf("%s was compiled for %s but the target is %s", name, d, db.Dialect().Name)
	}

	res := &ApplyResult{Path: path}
	for _, s := range steps {
		if s.Title == compiler.StageDiagnostics {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		e.logger.Info("applying step", slog.Int("step", s.Number), slog.String("title", s.Title))
		start := time.Now()
		if err := db.Exec(ctx, s.SQL); err != nil {
			return res, fmt.Errorf("step %d (%s): %w", s.Number, s.Title, err)
		}
		res.Steps = append(res.Steps, StepResult{Number: s.Number, Title: s.Title, Duration: time.Since(start)})
	}
	return res, nil
}
