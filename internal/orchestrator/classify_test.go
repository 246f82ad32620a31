package orchestrator_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fakeyudi/readloop/internal/device"
	"github.com/fakeyudi/readloop/internal/orchestrator"
	"github.com/fakeyudi/readloop/internal/session"
)

func TestDefaultClassifier(t *testing.T) {
	c := orchestrator.DefaultClassifier()
	cases := []struct {
		code int
		want orchestrator.Class
	}{
		{device.CodeAuthRejected, orchestrator.ClassFatal},
		{device.CodeOpenFailed, orchestrator.ClassFatal},
		{device.CodeOpenFailedNoTag, orchestrator.ClassFatal},
		{device.CodeOpenFailedRetry, orchestrator.ClassFatal},
		{device.CodeReadTimeout, orchestrator.ClassRetryable},
		{device.CodeNotIdentityCard, orchestrator.ClassRetryable},
		{9999, orchestrator.ClassRetryable},
	}
	for _, tc := range cases {
		if got, _, _ := c.Classify(tc.code); got != tc.want {
			t.Fatalf("Classify(%d) = %s, want %s", tc.code, got, tc.want)
		}
	}
	if _, _, known := c.Classify(9999); known {
		t.Fatalf("unknown code reported as known")
	}
}

func TestClassifierOutcome(t *testing.T) {
	c := orchestrator.DefaultClassifier()

	ok := c.Outcome(device.Callback{Tag: device.TagSuccess, Payload: []byte("x")})
	if ok.Kind != session.OutcomeSuccess || string(ok.Payload) != "x" {
		t.Fatalf("success outcome %+v", ok)
	}

	auth := c.Outcome(device.Callback{Tag: device.TagError, Code: device.CodeAuthRejected, Message: "denied"})
	if auth.Kind != session.OutcomeFatalError || !strings.Contains(auth.Message, "credentials") || !strings.HasPrefix(auth.Message, "denied") {
		t.Fatalf("auth outcome %+v", auth)
	}

	lost := c.Outcome(device.Callback{Tag: device.TagError, Code: device.CodeTagLost})
	if lost.Kind != session.OutcomeRetryableError || lost.Message == "" {
		t.Fatalf("tag lost outcome %+v", lost)
	}

	if got := c.Outcome(device.Callback{Tag: device.TagCancelled}); got.Kind != session.OutcomeCancelled {
		t.Fatalf("cancelled outcome %+v", got)
	}
	if got := c.Outcome(device.Callback{Tag: "weird"}); got.Kind != session.OutcomeRetryableError {
		t.Fatalf("unknown tag outcome %+v", got)
	}
}

func writeTable(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "errors.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write table: %v", err)
	}
	return path
}

func TestLoadClassifierOverridesDefaults(t *testing.T) {
	path := writeTable(t, `
default = "fatal"

[[code]]
code = 41
class = "Retryable"
label = "open_failed"

[[code]]
code = 31
class = "retryable"
`)
	c, err := orchestrator.LoadClassifier(path)
	if err != nil {
		t.Fatalf("LoadClassifier: %v", err)
	}
	if got, _, _ := c.Classify(41); got != orchestrator.ClassRetryable {
		t.Fatalf("41 = %s, want retryable", got)
	}
	if got, _, _ := c.Classify(2); got != orchestrator.ClassFatal {
		t.Fatalf("default rule for 2 lost: %s", got)
	}
	if got, _, _ := c.Classify(12345); got != orchestrator.ClassFatal {
		t.Fatalf("fallback = %s, want fatal", got)
	}
}

func TestLoadClassifierReplace(t *testing.T) {
	path := writeTable(t, `
replace = true

[[code]]
code = 7
class = "fatal"
`)
	c, err := orchestrator.LoadClassifier(path)
	if err != nil {
		t.Fatalf("LoadClassifier: %v", err)
	}
	rules := c.Rules()
	if len(rules) != 1 || rules[0].Code != 7 {
		t.Fatalf("rules %+v, want only code 7", rules)
	}
	if got, _, _ := c.Classify(device.CodeOpenFailed); got != orchestrator.ClassRetryable {
		t.Fatalf("41 = %s after replace, want retryable", got)
	}
}

func TestLoadClassifierErrors(t *testing.T) {
	cases := map[string]string{
		"bad class":   "[[code]]\ncode = 1\nclass = \"maybe\"\n",
		"bad default": "default = \"sometimes\"\n",
		"unknown key": "colour = \"red\"\n",
	}
	for name, body := range cases {
		if _, err := orchestrator.LoadClassifier(writeTable(t, body)); !errors.Is(err, orchestrator.ErrInvalidClassifier) {
			t.Fatalf("%s: error %v, want ErrInvalidClassifier", name, err)
		}
	}
	if _, err := orchestrator.LoadClassifier(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("missing file accepted")
	}
}

func TestGateIsIdempotent(t *testing.T) {
	g := orchestrator.NewGate()
	if g.Requested() {
		t.Fatalf("new gate already requested")
	}
	if !g.RequestCancel() {
		t.Fatalf("first RequestCancel not reported as first")
	}
	if g.RequestCancel() {
		t.Fatalf("second RequestCancel reported as first")
	}
	select {
	case <-g.Done():
	default:
		t.Fatalf("Done not closed")
	}
	if !g.Requested() {
		t.Fatalf("flag not set")
	}
}
