package config

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

// Feature: readloop, Property 6: config merge precedence
func TestConfigMergePrecedence(t *testing.T) {
	value := rapid.StringMatching(`[a-zA-Z0-9/_.:-]{1,20}`)

	configGen := rapid.Custom(func(t *rapid.T) *Config {
		if rapid.Bool().Draw(t, "nil") {
			return nil
		}
		cfg := &Config{}
		for _, f := range fields(cfg) {
			if rapid.Bool().Draw(t, "has_"+f.name) {
				*f.ptr = value.Draw(t, f.name)
			}
		}
		return cfg
	})

	rapid.Check(t, func(t *rapid.T) {
		global := configGen.Draw(t, "global")
		project := configGen.Draw(t, "project")

		merged := Merge(global, project)
		defaults := Defaults()

		mergedFields := fields(&merged)
		defaultFields := fields(&defaults)
		for i, f := range mergedFields {
			want := *defaultFields[i].ptr
			if global != nil && *fields(global)[i].ptr != "" {
				want = *fields(global)[i].ptr
			}
			if project != nil && *fields(project)[i].ptr != "" {
				want = *fields(project)[i].ptr
			}
			if *f.ptr != want {
				t.Fatalf("%s: got %q, want %q", f.name, *f.ptr, want)
			}
		}
	})
}

type field struct {
	name string
	ptr  *string
}

func fields(c *Config) []field {
	return []field{
		{"device_id", &c.DeviceID},
		{"prefs_path", &c.PrefsPath},
		{"error_table_path", &c.ErrorTablePath},
		{"metrics_addr", &c.MetricsAddr},
		{"log_level", &c.LogLevel},
		{"default_format", &c.DefaultFormat},
		{"output_dir", &c.OutputDir},
	}
}

func TestDefaultsValues(t *testing.T) {
	d := Defaults()
	if d.DefaultFormat != "markdown" || d.OutputDir != "." || d.DeviceID != "sim-reader" {
		t.Fatalf("defaults %+v", d)
	}
	if d.MetricsAddr != "" {
		t.Fatalf("metrics endpoint enabled by default: %q", d.MetricsAddr)
	}
}

func TestLoadGlobalMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadGlobal()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg == nil || *cfg != Defaults() {
		t.Fatalf("got %+v, want defaults", cfg)
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(orig) })
}

func TestLoadProjectMissingFileReturnsNil(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := LoadProject()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg != nil {
		t.Fatalf("expected nil config, got %+v", cfg)
	}
}

func TestLoadProjectOverridesGlobal(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, ".config", "readloop")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"device_id":"desk-reader","output_dir":"/tmp/reports"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	work := t.TempDir()
	chdir(t, work)
	if err := os.WriteFile(projectFile, []byte(`{"device_id":"gate-reader","metrics_addr":":9100"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DeviceID != "gate-reader" || cfg.OutputDir != "/tmp/reports" || cfg.MetricsAddr != ":9100" {
		t.Fatalf("merged %+v", cfg)
	}

	prefs, err := cfg.PrefsFile()
	if err != nil {
		t.Fatalf("PrefsFile: %v", err)
	}
	if prefs != filepath.Join(dir, "prefs.yaml") {
		t.Fatalf("PrefsFile %q", prefs)
	}
}

func TestLoadGlobalParseError(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)

	cfgDir := filepath.Join(tmp, ".config", "readloop")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfgDir, "config.json"), []byte("{invalid json"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadGlobal()
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected *ParseError, got %T: %v", err, err)
	}
	if parseErr.Path != filepath.Join(cfgDir, "config.json") {
		t.Fatalf("ParseError path %q", parseErr.Path)
	}
}

func TestRunSetupKeepsDefaultsOnEmptyAnswers(t *testing.T) {
	existing := Defaults()
	existing.MetricsAddr = ":9464"

	in := strings.NewReader("desk-reader\njson\n\n\n\n\n")
	var out bytes.Buffer
	got, err := RunSetup(in, &out, existing)
	if err != nil {
		t.Fatalf("RunSetup: %v", err)
	}
	if got.DeviceID != "desk-reader" || got.DefaultFormat != "json" {
		t.Fatalf("answers not applied: %+v", got)
	}
	if got.OutputDir != "." || got.MetricsAddr != ":9464" || got.PrefsPath != "" {
		t.Fatalf("empty answers changed values: %+v", got)
	}
	if !strings.Contains(out.String(), "Reader id [sim-reader]") {
		t.Fatalf("prompt does not show the current value:\n%s", out.String())
	}
}

func TestRunSetupShortInput(t *testing.T) {
	// input ends early; remaining prompts keep their values
	got, err := RunSetup(strings.NewReader("r2"), io.Discard, Defaults())
	if err != nil {
		t.Fatalf("RunSetup: %v", err)
	}
	if got.DeviceID != "r2" || got.DefaultFormat != "markdown" || got.OutputDir != "." {
		t.Fatalf("unexpected config: %+v", got)
	}
}

func TestSaveGlobalRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	want := Defaults()
	want.DeviceID = "bench-1"
	want.ErrorTablePath = "/etc/readloop/codes.toml"
	if err := SaveGlobal(want); err != nil {
		t.Fatalf("SaveGlobal: %v", err)
	}
	got, err := LoadGlobal()
	if err != nil {
		t.Fatalf("LoadGlobal: %v", err)
	}
	if *got != want {
		t.Fatalf("got %+v, want %+v", *got, want)
	}
}
