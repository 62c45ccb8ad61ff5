package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiracore/leadcycle/internal/config"
	"github.com/kiracore/leadcycle/internal/paths"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Commands for managing leadcycle configuration files.`,
}

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate configuration file",
	Long: `Validate the configuration for errors and warnings.

Without a file argument the effective configuration is validated: the
config file, .env and LEADCYCLE_* environment variables combined.

Examples:
  leadcycle config validate
  leadcycle config validate .leadcycle.yaml
  leadcycle config validate --config myconfig.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration as yaml. The API token is masked.`,
	RunE:  runShowConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(validateCmd)
	configCmd.AddCommand(showCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	var (
		cfg    *config.Config
		source string
		err    error
	)
	if len(args) > 0 {
		source = args[0]
		cfg, err = config.LoadFromFile(source)
	} else {
		source = viper.ConfigFileUsed()
		if source == "" {
			source = "defaults and environment"
		}
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Validating: %s\n\n", source)

	result := cfg.Validate()

	if len(result.Errors) > 0 {
		fmt.Fprintf(out, "\033[31m✗ %d error(s):\033[0m\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Fprintf(out, "  \033[31m• %s\033[0m\n", e.Error())
		}
		fmt.Fprintln(out)
	}

	if result.HasWarnings() {
		fmt.Fprintf(out, "\033[33m⚠ %d warning(s):\033[0m\n", len(result.Warnings))
		for _, w := range result.Warnings {
			fmt.Fprintf(out, "  \033[33m• %s\033[0m\n", w.Error())
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintf(out, "Configuration summary:\n")
	fmt.Fprintf(out, "  Jira:        %s\n", cfg.Jira.URL)
	fmt.Fprintf(out, "  Project:     %s\n", cfg.Query.Project)
	fmt.Fprintf(out, "  Statuses:    %v\n", cfg.Query.Statuses)
	fmt.Fprintf(out, "  Issue types: %v\n", cfg.Query.IssueTypes)
	fmt.Fprintf(out, "  Workflow:    %s -> %s\n", cfg.Workflow.StartState, cfg.Workflow.DoneState)
	fmt.Fprintf(out, "  Report:      %s (%d columns)\n", cfg.Report.Output, len(cfg.Report.Fields))
	fmt.Fprintln(out)

	if result.IsValid() {
		fmt.Fprintf(out, "\033[32m✓ Configuration is valid\033[0m\n")
		return nil
	}

	fmt.Fprintf(out, "\033[31m✗ Configuration has errors\033[0m\n")
	return fmt.Errorf("configuration has %d error(s)", len(result.Errors))
}

func runShowConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	data, err := cfg.Redacted().Marshal()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	used := viper.ConfigFileUsed()
	if used == "" {
		used = fmt.Sprintf("none (looked for %s and %s)", paths.LocalConfigFile, paths.ConfigFilePath())
	}
	fmt.Fprintf(out, "# config file: %s\n", used)
	_, err = out.Write(data)
	return err
}
