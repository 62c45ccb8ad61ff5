package cmd

import (
	"fmt"

	"github.com/carlmjohnson/versioninfo"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		version, commit, built := buildInfo()
		fmt.Fprintf(cmd.OutOrStdout(), "leadcycle %s\n", version)
		fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", commit)
		fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", built)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// buildInfo prefers ldflags and falls back to the embedded vcs info
func buildInfo() (version, commit, built string) {
	version, commit, built = Version, GitCommit, BuildDate
	if version == "dev" && versioninfo.Version != "unknown" && versioninfo.Version != "(devel)" {
		version = versioninfo.Version
	}
	if commit == "none" && versioninfo.Revision != "unknown" {
		commit = versioninfo.Revision
		if versioninfo.DirtyBuild {
			commit += "-dirty"
		}
	}
	if built == "unknown" && !versioninfo.LastCommit.IsZero() {
		built = versioninfo.LastCommit.UTC().Format("2006-01-02T15:04:05Z")
	}
	return version, commit, built
}
