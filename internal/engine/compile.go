package engine

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/leapstack-labs/aeroscore/internal/artifact"
	"github.com/leapstack-labs/aeroscore/internal/catalog"
	"github.com/leapstack-labs/aeroscore/internal/compiler"
	"github.com/leapstack-labs/aeroscore/internal/rules"
	"github.com/leapstack-labs/aeroscore/pkg/core"
)

// CompileResult reports one compile invocation.
type CompileResult struct {
	RunID     string
	Artifacts []artifact.Info
	// Placeholders is set when the assembled script is missing an
	// upstream stage and cannot be applied yet.
	Placeholders bool
}

// Compile runs the given stages in pipeline order and writes their
// artifacts. With no stages it runs all three. The run is recorded in the
// state store under command.
func (e *Engine) Compile(command string, stages ...string) (*CompileResult, error) {
	if len(stages) == 0 {
		stages = artifact.Stages
	}
	for _, s := range stages {
		if _, err := artifact.FileName(s); err != nil {
			return nil, err
		}
	}

	set, cat, err := e.LoadInputs()
	if err != nil {
		return nil, err
	}
	opts, err := e.Options()
	if err != nil {
		return nil, err
	}
	catHash := catalog.Hash(cat)

	var run *core.Run
	if e.store != nil {
		if run, err = e.store.CreateRun(command, catHash, set.Hash); err != nil {
			return nil, err
		}
	}

	res := &CompileResult{}
	if run != nil {
		res.RunID = run.ID
	}
	err = e.compileStages(res, set, cat, catHash, opts, stages)
	e.finishRun(run, err)
	return res, err
}

func (e *Engine) compileStages(res *CompileResult, set *rules.Set, cat *core.Catalog, catHash string, opts compiler.Options, stages []string) error {
	want := make(map[string]bool, len(stages))
	for _, s := range stages {
		want[s] = true
	}

	// Exclusions are compiled whenever scoring runs, since scored views
	// read the filtered view columns.
	var filtered []*compiler.FilteredView
	if want[compiler.StageExclusions] || want[compiler.StageScoring] {
		var err error
		if filtered, err = compiler.CompileExclusions(set.Exclusions, cat, opts); err != nil {
			return err
		}
	}

	for _, stage := range artifact.Stages {
		if !want[stage] {
			continue
		}
		var script *compiler.Script
		switch stage {
		case compiler.StageExclusions:
			script = compiler.RenderExclusions(cat, filtered, opts)
		case compiler.StageScoring:
			scored, err := compiler.CompileScoring(set.Scoring, cat, filtered, opts)
			if err != nil {
				return err
			}
			script = compiler.RenderScoring(cat, scored, opts)
		case compiler.StageAssemble:
			in, err := e.assembleInput(set, cat, catHash, opts)
			if err != nil {
				return err
			}
			if script, err = compiler.Assemble(in); err != nil {
				return err
			}
			if err := script.Validate(); err != nil {
				res.Placeholders = true
				e.logger.Warn("assembled script is incomplete", slog.String("error", err.Error()))
			}
		}
		script.SetMeta("catalog_hash", catHash)
		script.SetMeta("rules_hash", set.Hash)

		info, err := artifact.Write(e.cfg.ArtifactsDir, stage, script.String())
		if err != nil {
			return err
		}
		res.Artifacts = append(res.Artifacts, info)
		e.logger.Info("artifact written",
			slog.String("stage", stage),
			slog.String("path", info.Path),
			slog.Bool("changed", info.Changed))

		if err := e.recordArtifact(res.RunID, info); err != nil {
			return err
		}
	}
	return nil
}

// assembleInput reads the upstream artifacts from disk. An artifact that
// was compiled for another dialect, or against another catalog or rule set,
// is refused rather than embedded.
func (e *Engine) assembleInput(set *rules.Set, cat *core.Catalog, catHash string, opts compiler.Options) (compiler.AssembleInput, error) {
	in := compiler.AssembleInput{
		Catalog:    cat,
		Output:     set.Output,
		Tiers:      set.Tiers,
		Confidence: set.Confidence,
		Options:    opts,
	}
	for _, stage := range []string{compiler.StageExclusions, compiler.StageScoring} {
		art, err := artifact.Read(e.cfg.ArtifactsDir, stage)
		if err != nil {
			return in, err
		}
		if art.Available() {
			if err := checkUpstream(art, set.Hash, catHash, opts.Dialect.Name); err != nil {
				return in, &compiler.StageError{Stage: compiler.StageAssemble, Err: err}
			}
		}
		if stage == compiler.StageExclusions {
			in.Filtered = art
		} else {
			in.Scored = art
		}
	}
	return in, nil
}

// checkUpstream compares the header of an upstream artifact with the
// inputs of the current compile. Missing header keys are not checked.
func checkUpstream(art compiler.StageSQL, rulesHash, catHash, dialect string) error {
	meta := artifact.Meta(art.SQL)
	if d := meta["dialect"]; d != "" && d != dialect {
		return fmt.Errorf("%s was compiled for %s, not %s; compile it again", art.Source, d, dialect)
	}
	if h := meta["catalog_hash"]; h != "" && h != catHash {
		return fmt.Errorf("%s was compiled against another catalog (%s, now %s); compile it again", art.Source, h, catHash)
	}
	if h := meta["rules_hash"]; h != "" && h != rulesHash {
		return fmt.Errorf("%s was compiled from other rules (%s, now %s); compile it again", art.Source, h, rulesHash)
	}
	return nil
}

func (e *Engine) recordArtifact(runID string, info artifact.Info) error {
	if e.store == nil || runID == "" {
		return nil
	}
	path := info.Path
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return e.store.RecordArtifact(&core.Artifact{
		RunID:   runID,
		Stage:   info.Stage,
		Path:    path,
		SHA256:  info.SHA256,
		Bytes:   info.Bytes,
		Changed: info.Changed,
	})
}

func (e *Engine) finishRun(run *core.Run, runErr error) {
	if run == nil {
		return
	}
	status, msg := core.RunStatusCompleted, ""
	if runErr != nil {
		status, msg = core.RunStatusFailed, runErr.Error()
	}
	if err := e.store.CompleteRun(run.ID, status, msg); err != nil {
		e.logger.Warn("failed to complete run", slog.String("id", run.ID), slog.Any("error", err))
	}
}
