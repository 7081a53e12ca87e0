// Package config loads todotxt settings from TOML files, the environment
// and command-line overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	DefaultFile      = "~/todo.txt"
	DefaultLogLevel  = "warn"
	DefaultLogFormat = "console"

	userConfigDir  = "todotxt"
	userConfigName = "config.toml"
)

// projectConfigNames are looked up in the working directory, first match wins.
var projectConfigNames = []string{"todotxt.toml", ".todotxt.toml"}

// Config holds all settings.
type Config struct {
	// File is the todo.txt file to read and write.
	File string `toml:"file"`
	// ExportDir receives JSON/NDJSON exports. Defaults to <dir of File>/exports.
	ExportDir string `toml:"export_dir"`
	// AutoDate stamps today's creation date on added lines that have none.
	AutoDate bool `toml:"auto_date"`
	// MaxEntries caps the list size; 0 means unbounded.
	MaxEntries int       `toml:"max_entries"`
	Log        LogConfig `toml:"log"`

	// Path of the config file that was applied last, if any.
	Source string `toml:"-"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // console|json
}

// Overrides are values given on the command line. Empty strings leave the
// loaded value alone.
type Overrides struct {
	// ConfigFile replaces the user and project config file lookup.
	ConfigFile string
	File       string
	ExportDir  string
	LogLevel   string
}

// Load builds the configuration in priority order:
// 1. Defaults
// 2. User config file ($XDG_CONFIG_HOME/todotxt/config.toml)
// 3. Project config file (todotxt.toml or .todotxt.toml in the working directory)
// 4. Environment variables (TODOTXT_*)
// 5. Command-line overrides
func Load(o Overrides) (*Config, error) {
	cfg := &Config{}
	setDefaults(cfg)

	if o.ConfigFile != "" {
		path := expandPath(o.ConfigFile)
		if err := loadConfigFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	} else {
		if path := findUserConfigFile(); path != "" {
			if err := loadConfigFile(cfg, path); err != nil {
				return nil, fmt.Errorf("loading user config file %s: %w", path, err)
			}
		}
		if path := findProjectConfigFile(); path != "" {
			if err := loadConfigFile(cfg, path); err != nil {
				return nil, fmt.Errorf("loading project config file %s: %w", path, err)
			}
		}
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, err
	}
	applyOverrides(cfg, o)

	if err := finalizeConfig(cfg); err != nil {
		return nil, fmt.Errorf("finalizing config: %w", err)
	}
	return cfg, nil
}

func setDefaults(cfg *Config) {
	cfg.File = DefaultFile
	cfg.Log.Level = DefaultLogLevel
	cfg.Log.Format = DefaultLogFormat
}

func loadConfigFile(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return err
	}
	cfg.Source = path
	return nil
}

func findUserConfigFile() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil || home == "" {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	path := filepath.Join(base, userConfigDir, userConfigName)
	if fileExists(path) {
		return path
	}
	return ""
}

func findProjectConfigFile() string {
	for _, name := range projectConfigNames {
		if fileExists(name) {
			return name
		}
	}
	return ""
}

// loadFromEnv overrides config from environment variables.
func loadFromEnv(cfg *Config) error {
	if v := os.Getenv("TODOTXT_FILE"); v != "" {
		cfg.File = v
	}
	if v := os.Getenv("TODOTXT_EXPORT_DIR"); v != "" {
		cfg.ExportDir = v
	}
	if v := os.Getenv("TODOTXT_AUTO_DATE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TODOTXT_AUTO_DATE: %w", err)
		}
		cfg.AutoDate = b
	}
	if v := os.Getenv("TODOTXT_MAX_ENTRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TODOTXT_MAX_ENTRIES: %w", err)
		}
		cfg.MaxEntries = n
	}
	if v := os.Getenv("TODOTXT_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("TODOTXT_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	return nil
}

func applyOverrides(cfg *Config, o Overrides) {
	if o.File != "" {
		cfg.File = o.File
	}
	if o.ExportDir != "" {
		cfg.ExportDir = o.ExportDir
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
}

// finalizeConfig computes derived values and validates settings.
func finalizeConfig(cfg *Config) error {
	if strings.TrimSpace(cfg.File) == "" {
		return errors.New("file must not be empty")
	}
	if cfg.MaxEntries < 0 {
		return fmt.Errorf("max_entries must be >= 0, got %d", cfg.MaxEntries)
	}
	switch cfg.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log format must be console or json, got %q", cfg.Log.Format)
	}

	file, err := absPath(expandPath(cfg.File))
	if err != nil {
		return err
	}
	cfg.File = file

	if cfg.ExportDir == "" {
		cfg.ExportDir = filepath.Join(filepath.Dir(cfg.File), "exports")
	}
	exportDir, err := absPath(expandPath(cfg.ExportDir))
	if err != nil {
		return err
	}
	cfg.ExportDir = exportDir
	return nil
}

// Encode writes cfg as TOML.
func (c *Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

func absPath(path string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	return abs, nil
}

func expandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil && home != "" {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
