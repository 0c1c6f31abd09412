// Package config handles configuration loading and defaults.
package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Default values.
const (
	DefaultDBPath       = "~/.taskline/taskline.db"
	DefaultSnapshotPath = "~/.taskline/snapshot.jsonl"
)

// Config holds the full configuration for taskline.
type Config struct {
	DBPath       string `toml:"db_path"`
	SnapshotPath string `toml:"snapshot_path"`
	AutoSnapshot bool   `toml:"auto_snapshot"`
	NoColor      bool   `toml:"no_color"`
	Verbose      bool   `toml:"verbose"`
}

// Load loads configuration from multiple sources in priority order:
// 1. Defaults
// 2. User config file (~/.config/taskline/taskline.toml or ~/.taskline.toml)
// 3. Project config file (taskline.toml or .taskline.toml in current directory)
// 4. Environment variables (TASKLINE_*)
// 5. CLI flags
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := &Config{
		DBPath:       DefaultDBPath,
		SnapshotPath: DefaultSnapshotPath,
	}

	if userFile := findUserConfigFile(); userFile != "" {
		if err := loadConfigFile(cfg, userFile); err != nil {
			return nil, fmt.Errorf("loading user config file %s: %w", userFile, err)
		}
	}

	if projFile := findProjectConfigFile(); projFile != "" {
		if err := loadConfigFile(cfg, projFile); err != nil {
			return nil, fmt.Errorf("loading project config file %s: %w", projFile, err)
		}
	}

	loadFromEnv(cfg)

	if err := parseFlags(cfg, fs, args); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	if err := finalize(cfg); err != nil {
		return nil, fmt.Errorf("finalizing config: %w", err)
	}

	return cfg, nil
}

func findUserConfigFile() string {
	if dir, err := os.UserConfigDir(); err == nil {
		candidate := filepath.Join(dir, "taskline", "taskline.toml")
		if fileExists(candidate) {
			return candidate
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidate := filepath.Join(home, ".taskline.toml")
		if fileExists(candidate) {
			return candidate
		}
	}
	return ""
}

func findProjectConfigFile() string {
	for _, name := range []string{"taskline.toml", ".taskline.toml"} {
		if fileExists(name) {
			return name
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func loadConfigFile(cfg *Config, path string) error {
	_, err := toml.DecodeFile(path, cfg)
	return err
}

func loadFromEnv(cfg *Config) {
	if v := os.Getenv("TASKLINE_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("TASKLINE_SNAPSHOT_PATH"); v != "" {
		cfg.SnapshotPath = v
	}
	if v := os.Getenv("TASKLINE_AUTO_SNAPSHOT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.AutoSnapshot = b
		}
	}
	if v := os.Getenv("TASKLINE_NO_COLOR"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.NoColor = b
		}
	}
	if v := os.Getenv("TASKLINE_VERBOSE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Verbose = b
		}
	}
}

// parseFlags registers flags with the current config values as defaults,
// so flags override every earlier source only when actually passed.
func parseFlags(cfg *Config, fs *flag.FlagSet, args []string) error {
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "Path to database file")
	fs.StringVar(&cfg.SnapshotPath, "snapshot-path", cfg.SnapshotPath, "Path to snapshot file")
	fs.BoolVar(&cfg.AutoSnapshot, "auto-snapshot", cfg.AutoSnapshot, "Export a snapshot after every write")
	fs.BoolVar(&cfg.NoColor, "no-color", cfg.NoColor, "Disable colored output")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "Enable verbose logging")
	return fs.Parse(args)
}

func finalize(cfg *Config) error {
	var err error
	if cfg.DBPath, err = expandHome(cfg.DBPath); err != nil {
		return err
	}
	if cfg.SnapshotPath, err = expandHome(cfg.SnapshotPath); err != nil {
		return err
	}
	return nil
}

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
