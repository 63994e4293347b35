package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/aeroscore/internal/cli/output"
	"github.com/leapstack-labs/aeroscore/internal/compiler"
	"github.com/leapstack-labs/aeroscore/internal/engine"
)

// StepOutput is the JSON form of one applied step.
type StepOutput struct {
	Number     int    `json:"number"`
	Title      string `json:"title"`
	DurationMS int64  `json:"duration_ms"`
}

// ApplyOutput is the JSON form of the apply command.
type ApplyOutput struct {
	Path  string       `json:"path"`
	Steps []StepOutput `json:"steps"`
	Error string       `json:"error,omitempty"`
}

// NewApplyCommand creates the apply command.
func NewApplyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "apply",
		Short: "Run the assembled script against the target",
		Long: `Execute compute_aerospace_scores.sql against the target database step by
step: filtered views, scored views, the output table and its indexes.

The script is refused when it still contains placeholders or was compiled for
another dialect. Execution stops at the first failing step; the steps before
it stay applied.`,
		Example: `  # Compile and apply
  aeroscore compile && aeroscore apply

  # Apply to the prod environment
  aeroscore apply --target prod`,
		Args: cobra.NoArgs,
		RunE: runApply,
	}
}

func runApply(cmd *cobra.Command, _ []string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := requireTarget(cmdCtx.Cfg); err != nil {
		return err
	}

	res, err := cmdCtx.Engine.Apply(cmd.Context())
	if errors.Is(err, compiler.ErrMissingStage) {
		err = fmt.Errorf("%w\nHint: run `aeroscore compile` first", err)
	}

	out := applyOutput(res, err)
	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		if rerr := r.JSON(out); rerr != nil {
			return rerr
		}
	case output.ModeMarkdown:
		if res != nil {
			r.Println(output.FormatHeader(1, "Apply"))
			r.Println("")
			r.Println(output.FormatKeyValue("Script", out.Path))
			r.Println("")
			rows := make([]table.Row, 0, len(out.Steps))
			for _, s := range out.Steps {
				rows = append(rows, table.Row{s.Number, s.Title, fmt.Sprintf("%dms", s.DurationMS)})
			}
			r.Table(table.Row{"Step", "Title", "Duration"}, rows)
		}
	default:
		if res != nil {
			r.Header(1, "Apply")
			for _, s := range res.Steps {
				r.StatusLine(fmt.Sprintf("step %d: %s", s.Number, s.Title), "success", s.Duration.Round(time.Millisecond).String())
			}
			if err == nil {
				r.Success(fmt.Sprintf("%s applied", output.FormatCount(len(res.Steps), "step")))
			}
		}
	}
	return err
}

func applyOutput(res *engine.ApplyResult, err error) ApplyOutput {
	out := ApplyOutput{Steps: []StepOutput{}}
	if res != nil {
		out.Path = res.Path
		for _, s := range res.Steps {
			out.Steps = append(out.Steps, StepOutput{Number: s.Number, Title: s.Title, DurationMS: s.Duration.Milliseconds()})
		}
	}
	if err != nil {
		out.Error = err.Error()
	}
	return out
}
