package commands

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/aeroscore/internal/cli/output"
	"github.com/leapstack-labs/aeroscore/internal/engine"
	"github.com/leapstack-labs/aeroscore/pkg/core"
)

// RunOutput is the JSON form of one recorded run.
type RunOutput struct {
	ID          string           `json:"id"`
	Command     string           `json:"command"`
	Status      string           `json:"status"`
	CatalogHash string           `json:"catalog_hash"`
	RulesHash   string           `json:"rules_hash"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Error       string           `json:"error,omitempty"`
	Artifacts   []ArtifactOutput `json:"artifacts"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent compile runs",
		Long: `List recent compile runs from the state database, newest first, with the
catalog and rule hashes they compiled and the artifacts they wrote.`,
		Example: `  aeroscore history
  aeroscore history --limit 5 -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd, limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to show")
	return cmd
}

func runHistory(cmd *cobra.Command, limit int) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	records, err := cmdCtx.Engine.History(limit)
	if errors.Is(err, engine.ErrNoState) {
		return fmt.Errorf("%w\nHint: set state_path in aeroscore.yaml", err)
	}
	if err != nil {
		return err
	}

	runs := make([]RunOutput, 0, len(records))
	for _, rec := range records {
		runs = append(runs, runOutput(rec))
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(runs)
	}
	if r.EffectiveMode() == output.ModeMarkdown {
		r.Println(output.FormatHeader(1, "Compile history"))
		r.Println("")
	} else {
		r.Header(1, "Compile history")
	}
	if len(runs) == 0 {
		r.Muted("no runs recorded")
		return nil
	}

	rows := make([]table.Row, 0, len(runs))
	for _, run := range runs {
		changed := 0
		for _, a := range run.Artifacts {
			if a.Changed {
				changed++
			}
		}
		status := run.Status
		if run.Error != "" {
			status += ": " + truncate(run.Error, 60)
		}
		rows = append(rows, table.Row{
			shortHash(run.ID),
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Command,
			status,
			shortHash(run.RulesHash),
			shortHash(run.CatalogHash),
			fmt.Sprintf("%d/%d", changed, len(run.Artifacts)),
		})
	}
	r.Table(table.Row{"Run", "Started", "Command", "Status", "Rules", "Catalog", "Changed"}, rows)
	return nil
}

func runOutput(rec engine.RunRecord) RunOutput {
	out := RunOutput{
		ID:          rec.Run.ID,
		Command:     rec.Run.Command,
		Status:      string(rec.Run.Status),
		CatalogHash: rec.Run.CatalogHash,
		RulesHash:   rec.Run.RulesHash,
		StartedAt:   rec.Run.StartedAt,
		CompletedAt: rec.Run.CompletedAt,
		Error:       rec.Run.Error,
		Artifacts:   []ArtifactOutput{},
	}
	for _, a := range rec.Artifacts {
		out.Artifacts = append(out.Artifacts, artifactOutput(a))
	}
	return out
}

func artifactOutput(a *core.Artifact) ArtifactOutput {
	return ArtifactOutput{Stage: a.Stage, Path: filepath.Base(a.Path), SHA256: a.SHA256, Bytes: a.Bytes, Changed: a.Changed}
}
