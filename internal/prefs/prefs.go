// Package prefs reads the repeat-read preferences. The file is owned by
// whatever settings screen writes it; readloop only reads it.
package prefs

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fakeyudi/readloop/internal/session"
)

var ErrInvalidPreferences = errors.New("prefs: invalid preferences")

// Count accepts both `repeat_num: 5` and `repeat_num: "5"`; settings screens
// tend to store numbers as text.
type Count int

func (c *Count) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("%w: line %d: expected a number", ErrInvalidPreferences, value.Line)
	}
	raw := strings.TrimSpace(value.Value)
	if raw == "" {
		*c = 0
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("%w: line %d: %q is not a number", ErrInvalidPreferences, value.Line, value.Value)
	}
	*c = Count(n)
	return nil
}

// Preferences mirrors the keys of the preference file.
type Preferences struct {
	RepeatSet        bool  `yaml:"repeat_set"`
	RepeatNum        Count `yaml:"repeat_num"`
	RepeatIntervalMS Count `yaml:"repeat_interval_ms"`
	StopOnFatal      *bool `yaml:"stop_on_fatal,omitempty"`
	AttemptTimeoutMS Count `yaml:"attempt_timeout_ms"`
}

// Defaults is what an absent file means: a single read.
func Defaults() Preferences {
	return Preferences{RepeatNum: 1, RepeatIntervalMS: 100}
}

// Load reads path. A missing file yields Defaults.
func Load(path string) (Preferences, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Defaults(), nil
		}
		return Preferences{}, fmt.Errorf("read preferences %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML. Keys that are absent keep their default.
func Parse(data []byte) (Preferences, error) {
	p := Defaults()
	if len(strings.TrimSpace(string(data))) == 0 {
		return p, nil
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		if errors.Is(err, ErrInvalidPreferences) {
			return Preferences{}, err
		}
		return Preferences{}, fmt.Errorf("%w: %v", ErrInvalidPreferences, err)
	}
	return p, nil
}

// Policy converts the preferences to a session policy. With repeat disabled
// the session makes exactly one attempt.
func (p Preferences) Policy() (session.Policy, error) {
	pol := session.DefaultPolicy()
	if p.RepeatSet {
		pol.MaxAttempts = int(p.RepeatNum)
	}
	pol.InterAttemptDelay = time.Duration(p.RepeatIntervalMS) * time.Millisecond
	if p.StopOnFatal != nil {
		pol.StopOnFatalError = *p.StopOnFatal
	}
	pol.AttemptTimeout = time.Duration(p.AttemptTimeoutMS) * time.Millisecond
	if err := pol.Validate(); err != nil {
		return session.Policy{}, fmt.Errorf("%w: %v", ErrInvalidPreferences, err)
	}
	return pol, nil
}
