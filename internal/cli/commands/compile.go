package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/aeroscore/internal/artifact"
	"github.com/leapstack-labs/aeroscore/internal/cli/output"
	"github.com/leapstack-labs/aeroscore/internal/compiler"
	"github.com/leapstack-labs/aeroscore/internal/engine"
	"github.com/leapstack-labs/aeroscore/internal/rules"
)

// ArtifactOutput is the JSON form of one written artifact.
type ArtifactOutput struct {
	Stage   string `json:"stage"`
	Path    string `json:"path"`
	SHA256  string `json:"sha256"`
	Bytes   int64  `json:"bytes"`
	Changed bool   `json:"changed"`
}

// CompileOutput is the JSON form of a compile run.
type CompileOutput struct {
	RunID        string           `json:"run_id,omitempty"`
	Dialect      string           `json:"dialect"`
	Artifacts    []ArtifactOutput `json:"artifacts"`
	Placeholders bool             `json:"placeholders"`
	Error        string           `json:"error,omitempty"`
}

// NewExclusionsCommand creates the exclusions command.
func NewExclusionsCommand() *cobra.Command {
	return newStageCommand(compiler.StageExclusions,
		"Compile exclusion rules into filtered views",
		`Compile exclusions.yaml into one filtered view per usable map table and
write them to exclusions.sql.`)
}

// NewScoringCommand creates the scoring command.
func NewScoringCommand() *cobra.Command {
	return newStageCommand(compiler.StageScoring,
		"Compile scoring rules into scored views",
		`Compile scoring.yaml and negative_signals.yaml into one scored view per
filtered view and write them to scoring.sql. The filtered views are derived
from the current exclusion rules.`)
}

// NewAssembleCommand creates the assemble command.
func NewAssembleCommand() *cobra.Command {
	return newStageCommand(compiler.StageAssemble,
		"Assemble the full pipeline script",
		`Combine exclusions.sql and scoring.sql with the classification thresholds and
output columns into compute_aerospace_scores.sql. A missing upstream artifact
becomes a commented placeholder; compile it and assemble again.`)
}

func newStageCommand(stage, short, long string) *cobra.Command {
	file, _ := artifact.FileName(stage)
	return &cobra.Command{
		Use:   stage,
		Short: short,
		Long:  long,
		Example: fmt.Sprintf(`  # Write %[2]s for the configured dialect
  aeroscore %[1]s

  # Compile for DuckDB into another directory
  aeroscore %[1]s --dialect duckdb --artifacts-dir build`, stage, file),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCompile(cmd, stage, []string{stage})
		},
	}
}

// NewCompileCommand creates the compile command.
func NewCompileCommand() *cobra.Command {
	var watchFlag bool
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile all three pipeline stages",
		Long: `Compile the exclusion, scoring and assembly stages in order.

Artifacts whose content did not change are left untouched. With --watch the
rules directory and the schema catalog are watched and every change triggers
a new compile until interrupted.`,
		Example: `  # Compile everything
  aeroscore compile

  # Recompile whenever a rule document changes
  aeroscore compile --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if watchFlag {
				return runCompileWatch(cmd)
			}
			return runCompile(cmd, "compile", artifact.Stages)
		},
	}
	cmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Recompile when rule documents or the catalog change")
	return cmd
}

func runCompile(cmd *cobra.Command, command string, stages []string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := cmdCtx.Engine.Compile(command, stages...)
	if rerr := renderCompile(cmdCtx.Renderer, cmdCtx.Engine.DialectName(), res, err); rerr != nil {
		return rerr
	}
	return err
}

func runCompileWatch(cmd *cobra.Command) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := cmdCtx.Renderer
	compileOnce := func() {
		res, err := cmdCtx.Engine.Compile("compile", artifact.Stages...)
		if rerr := renderCompile(r, cmdCtx.Engine.DialectName(), res, err); rerr != nil {
			cmdCtx.Logger.Error("render failed", slog.String("error", rerr.Error()))
		}
		if err != nil {
			r.Error(err.Error())
		}
	}

	compileOnce()
	paths := append(rules.Paths(cmdCtx.Cfg.RulesDir), cmdCtx.Cfg.CatalogPath)
	if r.EffectiveMode() != output.ModeJSON {
		r.Muted(fmt.Sprintf("watching %s and %s (Ctrl+C to stop)", cmdCtx.Cfg.RulesDir, filepath.Base(cmdCtx.Cfg.CatalogPath)))
	}
	return watch(ctx, paths, watchDebounce, cmdCtx.Logger, compileOnce)
}

func compileOutput(dialectName string, res *engine.CompileResult, err error) CompileOutput {
	out := CompileOutput{Dialect: dialectName, Artifacts: []ArtifactOutput{}}
	if res != nil {
		out.RunID = res.RunID
		out.Placeholders = res.Placeholders
		for _, a := range res.Artifacts {
			out.Artifacts = append(out.Artifacts, ArtifactOutput{
				Stage:   a.Stage,
				Path:    a.Path,
				SHA256:  a.SHA256,
				Bytes:   a.Bytes,
				Changed: a.Changed,
			})
		}
	}
	if err != nil {
		out.Error = err.Error()
	}
	return out
}

func renderCompile(r *output.Renderer, dialectName string, res *engine.CompileResult, err error) error {
	out := compileOutput(dialectName, res, err)
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeMarkdown:
		r.Println(output.FormatHeader(1, "Compile"))
		r.Println("")
		r.Println(output.FormatKeyValue("Dialect", out.Dialect))
		if out.RunID != "" {
			r.Println(output.FormatKeyValue("Run", out.RunID))
		}
		r.Println("")
	default:
		styles := r.Styles()
		r.Println(styles.Header1.Render("Compile") + " " + styles.Muted.Render("("+out.Dialect+")"))
	}

	for _, a := range out.Artifacts {
		status, detail := "success", fmt.Sprintf("%d bytes, sha256 %s", a.Bytes, shortHash(a.SHA256))
		if !a.Changed {
			status, detail = "skipped", "unchanged"
		}
		r.StatusLine(filepath.Base(a.Path), status, detail)
	}
	if len(out.Artifacts) == 0 && err == nil {
		r.Muted("nothing to write")
	}
	if out.Placeholders {
		r.Warning(fmt.Sprintf("the assembled script has placeholders; run `aeroscore %s` and `aeroscore %s` first",
			compiler.StageExclusions, compiler.StageScoring))
	}
	if r.EffectiveMode() == output.ModeText && out.RunID != "" {
		r.Muted("run " + out.RunID)
	}
	return nil
}

// watchDebounce groups the burst of events an editor save produces.
const watchDebounce = 200 * time.Millisecond

