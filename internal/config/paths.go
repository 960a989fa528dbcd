package config

import (
	"os"
	"path/filepath"
)

const (
	// EnvConfigPath is the environment variable for explicit config path
	EnvConfigPath = "IDENTIGRAPH_CONFIG"
	// EnvPrefix prefixes every environment override
	EnvPrefix = "IDENTIGRAPH_"
	// ConfigFileName is the default config file name
	ConfigFileName = "identigraph.yaml"
	// ConfigDirName is the config directory name under XDG
	ConfigDirName = "identigraph"
)

// FindConfigPath searches for config file in priority order:
// 1. $IDENTIGRAPH_CONFIG (explicit path)
// 2. ./identigraph.yaml (working directory)
// 3. $XDG_CONFIG_HOME/identigraph/config.yaml
// 4. ~/.config/identigraph/config.yaml
// 5. /etc/identigraph/config.yaml
//
// Returns empty string if no config file found
func FindConfigPath() string {
	if path := os.Getenv(EnvConfigPath); path != "" && fileExists(path) {
		return path
	}

	if fileExists(ConfigFileName) {
		if abs, err := filepath.Abs(ConfigFileName); err == nil {
			return abs
		}
		return ConfigFileName
	}

	var candidates []string
	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		candidates = append(candidates, filepath.Join(xdgHome, ConfigDirName, "config.yaml"))
	}
	if home := os.Getenv("HOME"); home != "" {
		candidates = append(candidates, filepath.Join(home, ".config", ConfigDirName, "config.yaml"))
	}
	candidates = append(candidates, filepath.Join("/etc", ConfigDirName, "config.yaml"))

	for _, path := range candidates {
		if fileExists(path) {
			return path
		}
	}
	return ""
}

// EnsureConfigDir creates the config directory if it doesn't exist
func EnsureConfigDir(configPath string) error {
	return os.MkdirAll(filepath.Dir(configPath), 0755)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
