// Package config loads the layered dtab configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"
)

// Config errors.
var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigFileRead     = errors.New("cannot read config file")
	ErrConfigInvalid      = errors.New("invalid config file")
	ErrDelimiterEmpty     = errors.New("delimiter cannot be empty")
)

// Config holds all configuration options.
type Config struct {
	// From config files (serialized)
	Delimiter    string `json:"delimiter"`
	QuoteOnWrite bool   `json:"quote_on_write"`
	DirectWrite  bool   `json:"direct_write"`

	// Resolved (computed, not serialized)
	EffectiveCwd string `json:"-"` // Absolute working directory (from -C flag or os.Getwd)

	// Sources tracks which config files were loaded (for diagnostics)
	Sources Sources `json:"-"`
}

// Sources tracks which config files were loaded.
type Sources struct {
	Global  string // Path to global config if loaded, empty otherwise
	Project string // Path to project config if loaded, empty otherwise
}

// fileConfig is the on-disk shape. Pointers distinguish "unset" from an
// explicit zero value so layers only override what they name.
type fileConfig struct {
	Delimiter    *string `json:"delimiter"`
	QuoteOnWrite *bool   `json:"quote_on_write"`
	DirectWrite  *bool   `json:"direct_write"`
}

// FileName is the default project config file name.
const FileName = ".dtab.json"

// DefaultDelimiter is used when no layer sets a delimiter.
const DefaultDelimiter = ","

// Default returns the default configuration.
func Default() Config {
	return Config{
		Delimiter: DefaultDelimiter,
	}
}

// LoadInput holds the inputs for [Load].
type LoadInput struct {
	WorkDirOverride   string            // -C/--cwd flag value; if empty, os.Getwd() is used
	ConfigPath        string            // -c/--config flag value
	DelimiterOverride *string           // -d/--delimiter flag value; nil means no override
	Env               map[string]string // environment variables
}

// Load loads configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Global user config ($XDG_CONFIG_HOME/dtab/config.json or ~/.config/dtab/config.json)
// 3. Project config file at default location (.dtab.json, if exists)
// 4. Explicit config file via ConfigPath (if non-empty)
// 5. CLI overrides.
func Load(input LoadInput) (Config, error) {
	workDir := input.WorkDirOverride
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	}

	cfg := Default()

	if globalPath := globalConfigPath(input.Env); globalPath != "" {
		globalCfg, loaded, err := loadFile(globalPath, false)
		if err != nil {
			return Config{}, err
		}

		if loaded {
			cfg.Sources.Global = globalPath
			cfg = merge(cfg, globalCfg)
		}
	}

	projectPath, mustExist := filepath.Join(workDir, FileName), false
	if input.ConfigPath != "" {
		projectPath, mustExist = input.ConfigPath, true
		if !filepath.IsAbs(projectPath) {
			projectPath = filepath.Join(workDir, projectPath)
		}
	}

	projectCfg, loaded, err := loadFile(projectPath, mustExist)
	if err != nil {
		return Config{}, err
	}

	if loaded {
		cfg.Sources.Project = projectPath
		cfg = merge(cfg, projectCfg)
	}

	if input.DelimiterOverride != nil {
		if *input.DelimiterOverride == "" {
			return Config{}, ErrDelimiterEmpty
		}

		cfg.Delimiter = unescapeDelimiter(*input.DelimiterOverride)
	}

	cfg.EffectiveCwd = workDir

	return cfg, nil
}

// globalConfigPath returns the path to the global config file.
// Returns empty string if neither XDG_CONFIG_HOME nor HOME is set.
func globalConfigPath(env map[string]string) string {
	if xdgConfig := env["XDG_CONFIG_HOME"]; xdgConfig != "" {
		return filepath.Join(xdgConfig, "dtab", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "dtab", "config.json")
	}

	return ""
}

// loadFile loads a config file. If mustExist is false, a missing file
// returns loaded=false and no error.
func loadFile(path string, mustExist bool) (fileConfig, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !mustExist && os.IsNotExist(err) {
			return fileConfig{}, false, nil
		}

		if os.IsNotExist(err) {
			return fileConfig{}, false, fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
		}

		return fileConfig{}, false, fmt.Errorf("%w: %s: %w", ErrConfigFileRead, path, err)
	}

	cfg, err := parse(data)
	if err != nil {
		return fileConfig{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	return cfg, true, nil
}

func parse(data []byte) (fileConfig, error) {
	// Standardize JSONC to JSON
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fileConfig{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg fileConfig

	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return fileConfig{}, fmt.Errorf("invalid JSON: %w", err)
	}

	if cfg.Delimiter != nil && *cfg.Delimiter == "" {
		return fileConfig{}, ErrDelimiterEmpty
	}

	return cfg, nil
}

func merge(base Config, overlay fileConfig) Config {
	if overlay.Delimiter != nil {
		base.Delimiter = unescapeDelimiter(*overlay.Delimiter)
	}

	if overlay.QuoteOnWrite != nil {
		base.QuoteOnWrite = *overlay.QuoteOnWrite
	}

	if overlay.DirectWrite != nil {
		base.DirectWrite = *overlay.DirectWrite
	}

	return base
}

// unescapeDelimiter maps the two-character spelling `\t` to a tab, since a
// literal tab is awkward to pass on a command line.
func unescapeDelimiter(delim string) string {
	if delim == `\t` {
		return "\t"
	}

	return delim
}

// Format returns the serialized config as indented JSON.
func Format(cfg Config) (string, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to format config: %w", err)
	}

	return string(data), nil
}
