package commands

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/aeroscore/internal/catalog"
	"github.com/leapstack-labs/aeroscore/internal/cli/output"
	"github.com/leapstack-labs/aeroscore/pkg/core"
)

// TableOutput is the JSON form of one catalog table.
type TableOutput struct {
	Name    string `json:"name"`
	Exists  bool   `json:"exists"`
	Rows    int64  `json:"row_count"`
	Columns int    `json:"columns"`
}

// IntrospectOutput is the JSON form of the introspect command.
type IntrospectOutput struct {
	Path     string                  `json:"path"`
	Schema   string                  `json:"schema"`
	Summary  catalog.Summary         `json:"summary"`
	Tables   []TableOutput           `json:"tables"`
	Relevant []catalog.RelevantGroup `json:"relevant_columns,omitempty"`
}

type introspectOptions struct {
	tables  []string
	report  bool
	offline bool
}

// NewIntrospectCommand creates the introspect command.
func NewIntrospectCommand() *cobra.Command {
	opts := &introspectOptions{}
	cmd := &cobra.Command{
		Use:   "introspect",
		Short: "Read the map tables of the target into schema.json",
		Long: `Query the target database for the columns and row counts of the osm2pgsql
tables and write the schema catalog the compiler reads.

Tables that do not exist are recorded as missing; every compile stage skips
them. --report lists which aerospace-relevant columns the tables carry.`,
		Example: `  # Introspect the default osm2pgsql tables
  aeroscore introspect

  # Only the point and polygon tables, with the column report
  aeroscore introspect --tables planet_osm_point,planet_osm_polygon --report

  # Report on the existing schema.json without connecting
  aeroscore introspect --offline --report`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIntrospect(cmd, opts)
		},
	}
	cmd.Flags().StringSliceVar(&opts.tables, "tables", catalog.DefaultTables, "Tables to introspect")
	cmd.Flags().BoolVar(&opts.report, "report", false, "List the aerospace-relevant columns found")
	cmd.Flags().BoolVar(&opts.offline, "offline", false, "Read the existing catalog instead of the database")
	return cmd
}

func runIntrospect(cmd *cobra.Command, opts *introspectOptions) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	var cat *core.Catalog
	if opts.offline {
		if err := cmdCtx.Cfg.ValidateCatalog(); err != nil {
			return err
		}
		if cat, err = catalog.Load(cmdCtx.Cfg.CatalogPath); err != nil {
			return err
		}
	} else {
		if err := requireTarget(cmdCtx.Cfg); err != nil {
			return err
		}
		if cat, err = cmdCtx.Engine.Introspect(cmd.Context(), opts.tables); err != nil {
			return fmt.Errorf("introspection failed: %w", err)
		}
	}

	out := IntrospectOutput{
		Path:    cmdCtx.Cfg.CatalogPath,
		Schema:  cat.Schema,
		Summary: catalog.Summarize(cat),
		Tables:  []TableOutput{},
	}
	for _, name := range cat.TableNames() {
		t := cat.Tables[name]
		out.Tables = append(out.Tables, TableOutput{Name: name, Exists: t.Exists, Rows: t.RowCount, Columns: len(t.Columns)})
	}
	if opts.report {
		out.Relevant = catalog.RelevantColumns(cat)
	}

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(out)
	case output.ModeMarkdown:
		renderIntrospectMarkdown(r, out)
	default:
		renderIntrospectText(r, out)
	}
	return nil
}

func tableRows(out IntrospectOutput) []table.Row {
	rows := make([]table.Row, 0, len(out.Tables))
	for _, t := range out.Tables {
		status := "yes"
		if !t.Exists {
			status = "missing"
		}
		rows = append(rows, table.Row{t.Name, status, t.Rows, t.Columns})
	}
	return rows
}

func renderIntrospectText(r *output.Renderer, out IntrospectOutput) {
	styles := r.Styles()
	r.Header(1, "Schema catalog")
	r.Printf("%s %s\n", styles.Muted.Render("catalog"), styles.Path.Render(out.Path))
	r.Printf("schema %s: %d tables, %d with data, %d columns\n\n",
		styles.Bold.Render(out.Schema), out.Summary.TotalTables, out.Summary.TablesWithData, out.Summary.TotalColumns)
	r.Table(table.Row{"Table", "Exists", "Rows", "Columns"}, tableRows(out))

	if len(out.Relevant) == 0 {
		return
	}
	r.Header(2, "Relevant columns")
	caser := cases.Title(language.English)
	for _, g := range out.Relevant {
		label := caser.String(strings.ReplaceAll(g.Category, "_", " "))
		r.Printf("  %s %s\n", styles.Bold.Render(label), styles.Muted.Render(fmt.Sprintf("(%d/%d)", len(g.Found), len(g.Expected))))
		for _, col := range g.Expected {
			status := "failed"
			if contains(g.Found, col) {
				status = "success"
			}
			r.StatusLine(col, status, "")
		}
	}
}

func renderIntrospectMarkdown(r *output.Renderer, out IntrospectOutput) {
	r.Println(output.FormatHeader(1, "Schema catalog"))
	r.Println("")
	r.Println(output.FormatKeyValue("Path", out.Path))
	r.Println(output.FormatKeyValue("Schema", out.Schema))
	r.Println(output.FormatKeyValue("Tables", fmt.Sprintf("%d (%d with data)", out.Summary.TotalTables, out.Summary.TablesWithData)))
	r.Println(output.FormatKeyValue("Columns", fmt.Sprintf("%d", out.Summary.TotalColumns)))
	r.Println("")
	r.Table(table.Row{"Table", "Exists", "Rows", "Columns"}, tableRows(out))

	if len(out.Relevant) == 0 {
		return
	}
	r.Println("")
	r.Println(output.FormatHeader(2, "Relevant columns"))
	r.Println("")
	caser := cases.Title(language.English)
	for _, g := range out.Relevant {
		label := caser.String(strings.ReplaceAll(g.Category, "_", " "))
		var missing []string
		for _, col := range g.Expected {
			if !contains(g.Found, col) {
				missing = append(missing, col)
			}
		}
		r.Printf("- **%s**: found %s; missing %s\n", label, joinOr(g.Found, "none"), joinOr(missing, "none"))
	}
}
