// Package cli provides the command-line interface for aeroscore.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/aeroscore/internal/cli/commands"
	"github.com/leapstack-labs/aeroscore/internal/cli/config"
	"github.com/leapstack-labs/aeroscore/internal/cli/output"
	"github.com/leapstack-labs/aeroscore/pkg/dialect"

	// Register the database adapters and their dialects.
	_ "github.com/leapstack-labs/aeroscore/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/aeroscore/pkg/adapters/postgres"
)

var (
	cfgFile    string
	targetFlag string
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "aeroscore",
		Short: "aeroscore - aerospace supplier scoring compiler",
		Long: `aeroscore compiles declarative exclusion, scoring and classification rules
into SQL that filters, scores and ranks candidate aerospace suppliers in an
osm2pgsql map database.

The rules live in YAML documents, the database layout in a schema catalog
(schema.json). Compiling writes three SQL artifacts; apply runs the assembled
script against the target and verify checks what it created.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.LoadConfigWithTarget(cfgFile, targetFlag, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := newLogger(cmd, cfg.Verbose)
			cmd.SetContext(context.WithValue(cmd.Context(), config.LoggerKey(), logger))

			if cfgUsed := config.GetConfigFileUsed(); cfgUsed != "" {
				logger.Debug("using config file", slog.String("path", cfgUsed))
			}
			if cfg.Environment != "" {
				logger.Debug("using environment", slog.String("name", cfg.Environment))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./aeroscore.yaml)")
	flags.StringVarP(&targetFlag, "target", "t", "", "Environment whose target to use (e.g., dev, prod)")
	flags.String("project-dir", "", "Project root for relative paths")
	flags.String("rules-dir", "", "Path to the rules directory")
	flags.String("catalog", "", "Path to the schema catalog (schema.json)")
	flags.String("artifacts-dir", "", "Directory for generated SQL")
	flags.String("state", "", "Path to state database")
	flags.String("dialect", "", "SQL dialect to compile for ("+dialectList()+")")
	flags.BoolP("verbose", "v", false, "Verbose output")
	flags.StringP("output", "o", "", "Output format (auto|text|markdown|json)")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return output.ValidModes(), cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("dialect", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return dialect.List(), cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("target", completeTargets)

	rootCmd.AddCommand(commands.NewVersionCommand(Version, GitCommit, BuildDate))
	rootCmd.AddCommand(commands.NewIntrospectCommand())
	rootCmd.AddCommand(commands.NewExclusionsCommand())
	rootCmd.AddCommand(commands.NewScoringCommand())
	rootCmd.AddCommand(commands.NewAssembleCommand())
	rootCmd.AddCommand(commands.NewCompileCommand())
	rootCmd.AddCommand(commands.NewApplyCommand())
	rootCmd.AddCommand(commands.NewVerifyCommand())
	rootCmd.AddCommand(commands.NewHistoryCommand())
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// newLogger writes text logs to stderr, at debug level when verbose.
func newLogger(cmd *cobra.Command, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func dialectList() string {
	return strings.Join(dialect.List(), "|")
}

// completeTargets offers the environments of the config file.
func completeTargets(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
	cfg, err := config.LoadConfig(cfgFile, nil)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	names := make([]string, 0, len(cfg.Environments))
	for name := range cfg.Environments {
		names = append(names, name)
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for aeroscore.

Bash:
  $ source <(aeroscore completion bash)

Zsh:
  $ aeroscore completion zsh > "${fpath[1]}/_aeroscore"

Fish:
  $ aeroscore completion fish | source

PowerShell:
  PS> aeroscore completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
}
