package config

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// GlobalPath is ~/.config/readloop/config.json.
func GlobalPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// SaveGlobal writes c to GlobalPath, creating the directory if needed.
func SaveGlobal(c Config) error {
	p, err := GlobalPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(p, append(data, '\n'), 0o644)
}

// RunSetup asks for each setting on out, reading answers from in. An empty
// answer keeps the value from existing.
func RunSetup(in io.Reader, out io.Writer, existing Config) (Config, error) {
	r := bufio.NewReader(in)

	ask := func(prompt, defaultVal string) (string, error) {
		if defaultVal != "" {
			fmt.Fprintf(out, "%s [%s]: ", prompt, defaultVal)
		} else {
			fmt.Fprintf(out, "%s: ", prompt)
		}
		line, err := r.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return defaultVal, nil
		}
		return line, nil
	}

	c := existing
	fmt.Fprintln(out)
	fmt.Fprintln(out, "  readloop setup")
	fmt.Fprintln(out)

	var err error
	if c.DeviceID, err = ask("  Reader id", c.DeviceID); err != nil {
		return Config{}, err
	}

	format, err := ask("  Report format (markdown/json)", c.DefaultFormat)
	if err != nil {
		return Config{}, err
	}
	if strings.ToLower(format) == "json" {
		c.DefaultFormat = "json"
	} else {
		c.DefaultFormat = "markdown"
	}

	if c.OutputDir, err = ask("  Report output directory", c.OutputDir); err != nil {
		return Config{}, err
	}
	if c.PrefsPath, err = ask("  Repeat preference file (empty for the default)", c.PrefsPath); err != nil {
		return Config{}, err
	}
	if c.ErrorTablePath, err = ask("  Error code table (empty for the built-in one)", c.ErrorTablePath); err != nil {
		return Config{}, err
	}
	if c.MetricsAddr, err = ask("  Metrics address, e.g. :9464 (empty to disable)", c.MetricsAddr); err != nil {
		return Config{}, err
	}

	fmt.Fprintln(out)
	return c, nil
}
