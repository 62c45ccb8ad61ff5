package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kiracore/leadcycle/internal/config"
	"github.com/kiracore/leadcycle/internal/paths"
)

var (
	initProject  string
	initURL      string
	initUsername string
	initGlobal   bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize leadcycle configuration",
	Long: `Initialize a new .leadcycle.yaml configuration file.

With --global the file is written to the user config directory instead
(~/.config/leadcycle/config.yaml). The API token is never written; set
LEADCYCLE_JIRA_TOKEN in the environment or in a .env file.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVar(&initProject, "project", "", "Jira project key")
	initCmd.Flags().StringVar(&initURL, "url", "", "Jira base URL (https://example.atlassian.net)")
	initCmd.Flags().StringVar(&initUsername, "username", "", "Jira account email")
	initCmd.Flags().BoolVar(&initGlobal, "global", false, "write the user config instead of .leadcycle.yaml")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile := paths.LocalConfigFile
	if initGlobal {
		configFile = paths.ConfigFilePath()
	}

	// Check if config already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file %s already exists", configFile)
	}

	cfg := config.Default()
	cfg.Jira.URL = initURL
	if cfg.Jira.URL == "" {
		cfg.Jira.URL = "https://your-domain.atlassian.net"
	}
	cfg.Jira.Username = initUsername
	cfg.Query.Project = initProject
	if cfg.Query.Project == "" {
		cfg.Query.Project = "YOUR-PROJECT"
	}

	data, err := cfg.Marshal()
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	content := append([]byte("# Leadcycle configuration\n"), data...)

	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(configFile, content, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created %s\n", configFile)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintf(out, "  1. Edit %s to set jira.url, jira.username and query.project\n", configFile)
	fmt.Fprintln(out, "  2. Export LEADCYCLE_JIRA_TOKEN=<api token> (or add it to .env)")
	fmt.Fprintln(out, "  3. Run: leadcycle config validate")
	fmt.Fprintln(out, "  4. Run: leadcycle report --window days:30 --dry-run")
	fmt.Fprintln(out, "  5. Run: leadcycle report --window days:30")

	return nil
}
