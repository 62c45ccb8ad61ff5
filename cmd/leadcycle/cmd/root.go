package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kiracore/leadcycle/internal/config"
	"github.com/kiracore/leadcycle/internal/paths"
)

var (
	// Version info (set by ldflags)
	Version   = "dev"
	GitCommit = "none"
	BuildDate = "unknown"

	// Global flags
	cfgFile  string
	dryRun   bool
	verbose  bool
	logLevel string
	noColor  bool

	// Shared command flags
	format string

	// configErr holds a config file that exists but could not be read
	configErr error
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "leadcycle",
	Short: "Lead and cycle time reports for Jira projects",
	Long: `Leadcycle computes average lead time and cycle time for the Jira tickets
completed in a report window, and writes the tickets to a CSV report.

Lead time runs from ticket creation to the last move into Done. Cycle time
runs from the first move into In Progress to the last move into Done.

Example:
  leadcycle init --project FOO --url https://example.atlassian.net
  leadcycle report --window days:90
  leadcycle report --interactive
  leadcycle history list`,
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default .leadcycle.yaml)")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "show what would happen without calling Jira")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored log output")

	// Bind flags to viper
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig reads in .env and the config file
func initConfig() {
	// .env is optional; real environment variables win over it
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		configErr = fmt.Errorf("failed to load .env: %w", err)
	}

	config.SetDefaults(viper.GetViper())

	// LEADCYCLE_JIRA_TOKEN overrides jira.token
	viper.SetEnvPrefix("LEADCYCLE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := readConfig(viper.GetViper(), cfgFile, ".", paths.ConfigFilePath()); err != nil {
		configErr = err
	}
}

// readConfig loads the first config found. Search order:
//  1. explicit (--config)
//  2. localDir/.leadcycle.yaml - project-specific config
//  3. userFile (XDG config.yaml) - user default config
//
// No config at all is not an error.
func readConfig(v *viper.Viper, explicit, localDir, userFile string) error {
	if explicit != "" {
		v.SetConfigFile(explicit)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", explicit, err)
		}
		return nil
	}

	local := filepath.Join(localDir, paths.LocalConfigFile)
	for _, path := range []string{local, userFile} {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", path, err)
		}
		return nil
	}
	return nil
}

// setupLogging installs a tint handler on stderr as the default slog logger
func setupLogging(cmd *cobra.Command, args []string) error {
	level := viper.GetString("log.level")
	if verbose {
		level = "debug"
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      lvl,
		TimeFormat: time.Kitchen,
		NoColor:    noColor || !isTerminal(os.Stderr),
	})))

	if configErr != nil {
		return configErr
	}
	if used := viper.ConfigFileUsed(); used != "" {
		slog.Debug("using config file", "path", used)
	}
	return nil
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
