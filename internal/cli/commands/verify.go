package commands

import (
	"errors"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/aeroscore/internal/cli/output"
	"github.com/leapstack-labs/aeroscore/internal/engine"
)

// errVerifyFailed makes the command exit non-zero after the report printed.
var errVerifyFailed = errors.New("verification failed: some pipeline objects are missing")

// ObjectOutput is the JSON form of one counted object.
type ObjectOutput struct {
	Kind  string `json:"kind"`
	Name  string `json:"name"`
	Rows  int64  `json:"rows"`
	Error string `json:"error,omitempty"`
}

// BucketOutput is the JSON form of one distribution row.
type BucketOutput struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// VerifyOutput is the JSON form of the verify command.
type VerifyOutput struct {
	OK         bool           `json:"ok"`
	Objects    []ObjectOutput `json:"objects"`
	Tiers      []BucketOutput `json:"tiers"`
	Confidence []BucketOutput `json:"confidence"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check the views and table the pipeline created",
		Long: `Count the rows of every filtered view, scored view and the output table in
the target database, and show the tier and confidence distributions of the
output table. Exits non-zero when an object is missing.`,
		Example: `  aeroscore verify
  aeroscore verify -o json`,
		Args: cobra.NoArgs,
		RunE: runVerify,
	}
}

func runVerify(cmd *cobra.Command, _ []string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := requireTarget(cmdCtx.Cfg); err != nil {
		return err
	}
	report, err := cmdCtx.Engine.Verify(cmd.Context())
	if err != nil && report == nil {
		return err
	}

	r := cmdCtx.Renderer
	out := verifyOutput(report)
	switch r.EffectiveMode() {
	case output.ModeJSON:
		if rerr := r.JSON(out); rerr != nil {
			return rerr
		}
	case output.ModeMarkdown:
		renderVerifyMarkdown(r, out)
	default:
		renderVerifyText(r, out)
	}

	if err != nil {
		return err
	}
	if !report.OK() {
		return errVerifyFailed
	}
	return nil
}

func verifyOutput(report *engine.VerifyReport) VerifyOutput {
	out := VerifyOutput{OK: report.OK(), Objects: []ObjectOutput{}, Tiers: []BucketOutput{}, Confidence: []BucketOutput{}}
	for _, o := range report.Objects {
		out.Objects = append(out.Objects, ObjectOutput(o))
	}
	for _, b := range report.Tiers {
		out.Tiers = append(out.Tiers, BucketOutput(b))
	}
	for _, b := range report.Confidence {
		out.Confidence = append(out.Confidence, BucketOutput(b))
	}
	return out
}

func bucketRows(buckets []BucketOutput) []table.Row {
	var total int64
	for _, b := range buckets {
		total += b.Count
	}
	rows := make([]table.Row, 0, len(buckets))
	for _, b := range buckets {
		pct := 0.0
		if total > 0 {
			pct = float64(b.Count) * 100 / float64(total)
		}
		rows = append(rows, table.Row{b.Label, b.Count, fmt.Sprintf("%.1f%%", pct)})
	}
	return rows
}

func renderVerifyText(r *output.Renderer, out VerifyOutput) {
	r.Header(1, "Verify")
	caser := cases.Title(language.English)
	kind := ""
	for _, o := range out.Objects {
		if o.Kind != kind {
			kind = o.Kind
			r.Header(2, caser.String(kind)+"s")
		}
		if o.Error != "" {
			r.StatusLine(o.Name, "failed", o.Error)
			continue
		}
		r.StatusLine(o.Name, "success", output.FormatCount(int(o.Rows), "row"))
	}
	if len(out.Tiers) > 0 {
		r.Header(2, "Tiers")
		r.Table(table.Row{"Tier", "Count", "Share"}, bucketRows(out.Tiers))
	}
	if len(out.Confidence) > 0 {
		r.Header(2, "Confidence")
		r.Table(table.Row{"Confidence", "Count", "Share"}, bucketRows(out.Confidence))
	}
}

func renderVerifyMarkdown(r *output.Renderer, out VerifyOutput) {
	r.Println(output.FormatHeader(1, "Verify"))
	r.Println("")
	rows := make([]table.Row, 0, len(out.Objects))
	for _, o := range out.Objects {
		status := fmt.Sprintf("%d", o.Rows)
		if o.Error != "" {
			status = "missing: " + o.Error
		}
		rows = append(rows, table.Row{o.Kind, o.Name, status})
	}
	r.Table(table.Row{"Kind", "Name", "Rows"}, rows)
	if len(out.Tiers) > 0 {
		r.Println("")
		r.Println(output.FormatHeader(2, "Tiers"))
		r.Println("")
		r.Table(table.Row{"Tier", "Count", "Share"}, bucketRows(out.Tiers))
	}
	if len(out.Confidence) > 0 {
		r.Println("")
		r.Println(output.FormatHeader(2, "Confidence"))
		r.Println("")
		r.Table(table.Row{"Confidence", "Count", "Share"}, bucketRows(out.Confidence))
	}
}
