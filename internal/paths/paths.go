package paths

import (
	"os"
	"path/filepath"
)

const (
	// AppName is the application name used in XDG directories
	AppName = "leadcycle"

	// LocalConfigFile is the per-project config file looked up in the working directory
	LocalConfigFile = ".leadcycle.yaml"
)

// DataDir returns the XDG data directory for leadcycle.
// Priority: $XDG_DATA_HOME/leadcycle -> ~/.local/share/leadcycle
func DataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, AppName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", AppName)
}

// ConfigDir returns the XDG config directory for leadcycle.
// Priority: $XDG_CONFIG_HOME/leadcycle -> ~/.config/leadcycle
func ConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, AppName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", AppName)
}

// HistoryDBPath returns the default run history database path.
// Returns: $XDG_DATA_HOME/leadcycle/history.db
func HistoryDBPath() string {
	return filepath.Join(DataDir(), "history.db")
}

// BackupDir returns the default backup directory for the history database
func BackupDir() string {
	return filepath.Join(DataDir(), "backups")
}

// ConfigFilePath returns the default config file path in XDG config dir.
// Returns: $XDG_CONFIG_HOME/leadcycle/config.yaml
func ConfigFilePath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0755)
}

// EnsureBackupDir creates the backup directory if it doesn't exist.
func EnsureBackupDir() error {
	return os.MkdirAll(BackupDir(), 0755)
}
