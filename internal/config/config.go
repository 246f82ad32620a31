// Package config loads readloop's own settings: which device to use, where the
// preference file and error table live, and how reports are written.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	appDir      = "readloop"
	projectFile = ".readloop.json"
)

// Config holds all configurable readloop settings.
type Config struct {
	DeviceID       string `json:"device_id"`
	PrefsPath      string `json:"prefs_path"`       // repeat-read preference file (YAML)
	ErrorTablePath string `json:"error_table_path"` // TOML classification table; empty uses the built-in one
	MetricsAddr    string `json:"metrics_addr"`     // empty disables the HTTP endpoint
	LogLevel       string `json:"log_level"`
	DefaultFormat  string `json:"default_format"` // "markdown" | "json"
	OutputDir      string `json:"output_dir"`
}

func Defaults() Config {
	return Config{
		DeviceID:      "sim-reader",
		DefaultFormat: "markdown",
		OutputDir:     ".",
	}
}

// Dir is ~/.config/readloop.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appDir), nil
}

// LoadGlobal reads ~/.config/readloop/config.json.
// Returns defaults if the file is absent.
func LoadGlobal() (*Config, error) {
	p, err := GlobalPath()
	if err != nil {
		return nil, err
	}
	return loadFile(p, true)
}

// LoadProject reads .readloop.json in the current working directory.
// Returns nil (no error) if the file is absent.
func LoadProject() (*Config, error) {
	return loadFile(projectFile, false)
}

// Load merges the global and project files.
func Load() (Config, error) {
	global, err := LoadGlobal()
	if err != nil {
		return Config{}, err
	}
	project, err := LoadProject()
	if err != nil {
		return Config{}, err
	}
	return Merge(global, project), nil
}

func loadFile(path string, returnDefaults bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if returnDefaults {
				d := Defaults()
				return &d, nil
			}
			return nil, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &cfg, nil
}

// Merge layers defaults, then global, then project. Empty fields never
// override.
func Merge(global, project *Config) Config {
	result := Defaults()
	for _, layer := range []*Config{global, project} {
		if layer == nil {
			continue
		}
		override(&result.DeviceID, layer.DeviceID)
		override(&result.PrefsPath, layer.PrefsPath)
		override(&result.ErrorTablePath, layer.ErrorTablePath)
		override(&result.MetricsAddr, layer.MetricsAddr)
		override(&result.LogLevel, layer.LogLevel)
		override(&result.DefaultFormat, layer.DefaultFormat)
		override(&result.OutputDir, layer.OutputDir)
	}
	return result
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// PrefsFile is PrefsPath, or ~/.config/readloop/prefs.yaml when unset.
func (c Config) PrefsFile() (string, error) {
	if c.PrefsPath != "" {
		return c.PrefsPath, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", fmt.Errorf("resolving preference path: %w", err)
	}
	return filepath.Join(dir, "prefs.yaml"), nil
}

// ParseError is returned when a config file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
