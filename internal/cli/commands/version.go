package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/aeroscore/internal/cli/output"
	"github.com/leapstack-labs/aeroscore/pkg/dialect"
)

// VersionInfo is the JSON form of the version command.
type VersionInfo struct {
	Version   string   `json:"version"`
	Commit    string   `json:"commit"`
	BuildDate string   `json:"build_date"`
	Dialects  []string `json:"dialects"`
}

// NewVersionCommand creates the version command.
func NewVersionCommand(version, commit, buildDate string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display the aeroscore version, build information and supported SQL dialects.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := VersionInfo{Version: version, Commit: commit, BuildDate: buildDate, Dialects: dialect.List()}
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(getConfig().OutputFormat))
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(info)
			}
			r.Printf("aeroscore v%s (commit %s, built %s)\n", info.Version, info.Commit, info.BuildDate)
			r.Printf("dialects: %s\n", joinOr(info.Dialects, "none"))
			return nil
		},
	}
}
