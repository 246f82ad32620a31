package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"pgregory.net/rapid"

	"github.com/fakeyudi/readloop/internal/logging"
	"github.com/fakeyudi/readloop/internal/report"
	"github.com/fakeyudi/readloop/internal/session"
)

func TestMain(m *testing.M) {
	logging.ConfigureTests()
	os.Exit(m.Run())
}

func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	_, err = root.ExecuteC()
	return buf.String(), err
}

// resetFlags puts every flag back to its default so package-level flag
// variables do not leak between executions.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// isolate points the config, preference and data directories at a temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)
	t.Setenv("XDG_DATA_HOME", filepath.Join(tmp, "data"))
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })
	return tmp
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	resetFlags(rootCmd)
	out, err := executeCommand(rootCmd, args...)
	if err != nil {
		t.Fatalf("readloop %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func TestRunRetriesAndStores(t *testing.T) {
	isolate(t)

	out := run(t, "run", "--script", "err:31,ok,ok", "--attempts", "3", "--delay", "0", "--latency", "1ms")
	for _, want := range []string{
		"attempt 1: retryable_error",
		"attempt 2: success",
		"attempt 3: success",
		"Successful reads: 2/3",
		"Success ratio: 66.7%",
		"completed after 3 attempts",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("run output missing %q:\n%s", want, out)
		}
	}

	status := run(t, "status")
	if !strings.Contains(status, "Successful reads: 2/3") {
		t.Fatalf("status does not show the stored session:\n%s", status)
	}
}

func TestRunStopsOnFatal(t *testing.T) {
	isolate(t)

	out := run(t, "run", "--script", "fatal:41,ok", "--attempts", "3", "--delay", "0", "--latency", "1ms", "--no-save")
	if !strings.Contains(out, "Successful reads: 0/1") {
		t.Fatalf("fatal error did not stop the session:\n%s", out)
	}
	if !strings.Contains(out, "stopped on fatal error 41 at attempt 1") {
		t.Fatalf("missing fatal result line:\n%s", out)
	}

	// nothing saved
	if status := run(t, "status"); !strings.Contains(status, "no sessions recorded") {
		t.Fatalf("--no-save stored a session:\n%s", status)
	}
}

func TestRunContinuesPastFatalWhenAsked(t *testing.T) {
	isolate(t)

	out := run(t, "run", "--script", "fatal:41,ok", "--attempts", "2", "--delay", "0",
		"--latency", "1ms", "--no-stop-on-fatal", "--no-save")
	if !strings.Contains(out, "Successful reads: 1/2") {
		t.Fatalf("expected the second attempt to run:\n%s", out)
	}
}

func TestRunAttemptTimeout(t *testing.T) {
	isolate(t)

	out := run(t, "run", "--script", "hang", "--attempts", "2", "--delay", "0", "--timeout", "20ms", "--no-save")
	if !strings.Contains(out, "Successful reads: 0/2") {
		t.Fatalf("hung reads were not timed out:\n%s", out)
	}
	if !strings.Contains(out, "code=31") {
		t.Fatalf("timeout not reported as a read timeout:\n%s", out)
	}
}

func TestRunReadsPreferenceFile(t *testing.T) {
	tmp := isolate(t)
	prefsPath := filepath.Join(tmp, "prefs.yaml")
	data := "repeat_set: true\nrepeat_num: \"2\"\nrepeat_interval_ms: 0\n"
	if err := os.WriteFile(prefsPath, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	out := run(t, "run", "--prefs", prefsPath, "--script", "ok", "--latency", "1ms", "--no-save")
	if !strings.Contains(out, "Successful reads: 2/2") {
		t.Fatalf("preference repeat count not applied:\n%s", out)
	}

	// flags win over the file
	out = run(t, "run", "--prefs", prefsPath, "--attempts", "1", "--script", "ok", "--latency", "1ms", "--no-save")
	if !strings.Contains(out, "Successful reads: 1/1") {
		t.Fatalf("--attempts did not override preferences:\n%s", out)
	}
}

func TestRunRejectsBadInput(t *testing.T) {
	isolate(t)

	cases := [][]string{
		{"run", "--script", "bogus"},
		{"run", "--attempts", "0"},
		{"run", "--sessions", "0"},
	}
	for _, args := range cases {
		resetFlags(rootCmd)
		if _, err := executeCommand(rootCmd, args...); err == nil {
			t.Fatalf("readloop %s: expected an error", strings.Join(args, " "))
		}
	}
}

func TestRunSeveralSessions(t *testing.T) {
	isolate(t)

	run(t, "run", "--script", "ok", "--sessions", "3", "--latency", "1ms")

	out := run(t, "history")
	if n := strings.Count(out, "completed after 1 attempts"); n != 3 {
		t.Fatalf("history lists %d sessions, want 3:\n%s", n, out)
	}

	out = run(t, "history", "--limit", "2")
	if n := strings.Count(out, "completed after 1 attempts"); n != 2 {
		t.Fatalf("history --limit 2 lists %d sessions:\n%s", n, out)
	}
}

func TestStatusWithoutSessions(t *testing.T) {
	isolate(t)

	if out := run(t, "status"); !strings.Contains(out, "no sessions recorded") {
		t.Fatalf("unexpected status output:\n%s", out)
	}
	if out := run(t, "history"); !strings.Contains(out, "no sessions recorded") {
		t.Fatalf("unexpected history output:\n%s", out)
	}
}

func storedSummary(t *testing.T) session.Summary {
	t.Helper()
	store, err := session.NewStore()
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	start := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	rec := session.NewRecorder()
	reads := []struct {
		at, end time.Duration
		outcome session.Outcome
	}{
		{0, 200 * time.Millisecond, session.RetryableError(32, "tag lost")},
		{time.Second, 1300 * time.Millisecond, session.Success([]byte("not an identity"))},
	}
	for i, r := range reads {
		if err := rec.Begin(i+1, "SIM-1", start.Add(r.at)); err != nil {
			t.Fatalf("Begin: %v", err)
		}
		if _, err := rec.Record(i+1, r.outcome, start.Add(r.end)); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	s := session.Summarize("a1b2c3d4-0000-4000-8000-000000000000", "sim-reader", session.DefaultPolicy(), rec.Attempts())
	if s.SuccessCount != 1 || s.TotalAttempts != 2 {
		t.Fatalf("fixture summary: %d/%d", s.SuccessCount, s.TotalAttempts)
	}
	s.State = session.StateCompleted
	s.Reason = session.ReasonExhausted
	s.StartedAt, s.EndedAt = start, start.Add(1300*time.Millisecond)
	if err := store.Save(s); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return s
}

func TestExportAndViewRoundTrip(t *testing.T) {
	tmp := isolate(t)
	s := storedSummary(t)

	for _, format := range []string{report.FormatJSON, report.FormatMarkdown} {
		path := filepath.Join(tmp, "out", "report"+report.Extension(format))
		out := run(t, "export", s.SessionID, "--format", format, "--output", path)
		if strings.TrimSpace(out) != path {
			t.Fatalf("export printed %q, want %q", out, path)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("reading export: %v", err)
		}
		r, err := report.Detect(data).Parse(data)
		if err != nil {
			t.Fatalf("parsing %s export: %v", format, err)
		}
		if r.Summary.SessionID != s.SessionID || r.Summary.SuccessCount != 1 {
			t.Fatalf("%s export lost data: %+v", format, r.Summary)
		}

		view := run(t, "view", "--plain", path)
		for _, want := range []string{"Session: " + s.SessionID, "## Attempts", "attempt 1: retryable_error", "code=32"} {
			if !strings.Contains(view, want) {
				t.Fatalf("view of %s missing %q:\n%s", format, want, view)
			}
		}
	}
}

func TestViewStoredSession(t *testing.T) {
	isolate(t)
	s := storedSummary(t)

	for _, target := range []string{s.SessionID, "latest"} {
		out := run(t, "view", "--plain", target)
		if !strings.Contains(out, "Session: "+s.SessionID) {
			t.Fatalf("view %s:\n%s", target, out)
		}
		if !strings.Contains(out, "payload could not be decoded") {
			t.Fatalf("view %s did not report the undecodable payload:\n%s", target, out)
		}
	}

	resetFlags(rootCmd)
	if _, err := executeCommand(rootCmd, "view", "--plain", "no-such-session"); err == nil {
		t.Fatal("expected an error for an unknown target")
	}
}

func TestExportDefaultName(t *testing.T) {
	tmp := isolate(t)
	s := storedSummary(t)

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(tmp); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	out := run(t, "export", "--format", "json")
	want := report.FileName(s, report.FormatJSON)
	if filepath.Base(strings.TrimSpace(out)) != want {
		t.Fatalf("export wrote %q, want name %q", out, want)
	}
	if _, err := os.Stat(filepath.Join(tmp, want)); err != nil {
		t.Fatalf("report not in the output directory: %v", err)
	}
}

func TestClassifyCommand(t *testing.T) {
	isolate(t)

	out := run(t, "classify", "41", "32", "7")
	got := classes(out)
	want := map[string]string{"41": "fatal", "32": "retryable", "7": "retryable"}
	if len(got) != len(want) {
		t.Fatalf("expected header and 3 rows:\n%s", out)
	}
	for code, class := range want {
		if got[code] != class {
			t.Fatalf("code %s classified %q, want %q", code, got[code], class)
		}
	}

	all := run(t, "classify")
	if !strings.Contains(all, "other codes: retryable") || !strings.Contains(all, "keep the card on the reader") {
		t.Fatalf("unexpected table:\n%s", all)
	}

	resetFlags(rootCmd)
	if _, err := executeCommand(rootCmd, "classify", "abc"); err == nil {
		t.Fatal("expected an error for a non-numeric code")
	}
}

func TestClassifyCustomTable(t *testing.T) {
	tmp := isolate(t)
	table := filepath.Join(tmp, "codes.toml")
	if err := os.WriteFile(table, []byte("default = \"fatal\"\n[[code]]\ncode = 41\nclass = \"retryable\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfgDir := filepath.Join(tmp, ".config", "readloop")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	conf := fmt.Sprintf(`{"error_table_path": %q}`, table)
	if err := os.WriteFile(filepath.Join(cfgDir, "config.json"), []byte(conf), 0o644); err != nil {
		t.Fatal(err)
	}

	out := run(t, "classify", "41", "7")
	got := classes(out)
	if got["41"] != "retryable" || got["7"] != "fatal" {
		t.Fatalf("custom table not applied: %v\n%s", got, out)
	}
}

// classes maps code to class from classify output.
func classes(out string) map[string]string {
	m := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(out), "\n")[1:] {
		if f := strings.Fields(line); len(f) >= 2 {
			m[f[0]] = f[1]
		}
	}
	return m
}

// Every scripted attempt is recorded and the printed count matches the
// successes in the script.
func TestRunCountsScriptedSuccesses(t *testing.T) {
	isolate(t)

	rapid.Check(t, func(rt *rapid.T) {
		steps := rapid.SliceOfN(rapid.SampledFrom([]string{"ok", "err:31", "err:32", "err:51"}), 1, 5).Draw(rt, "steps")
		ok := 0
		for _, s := range steps {
			if s == "ok" {
				ok++
			}
		}

		resetFlags(rootCmd)
		out, err := executeCommand(rootCmd, "run", "--script", strings.Join(steps, ","),
			"--attempts", fmt.Sprint(len(steps)), "--delay", "0", "--latency", "0", "--no-save")
		if err != nil {
			rt.Fatalf("run: %v\n%s", err, out)
		}
		want := fmt.Sprintf("Successful reads: %d/%d", ok, len(steps))
		if !strings.Contains(out, want) {
			rt.Fatalf("output missing %q:\n%s", want, out)
		}
	})
}

func TestSetupWritesGlobalConfig(t *testing.T) {
	tmp := isolate(t)

	resetFlags(rootCmd)
	rootCmd.SetIn(strings.NewReader("bench-reader\njson\nreports\n\n\n\n"))
	defer rootCmd.SetIn(nil)
	out, err := executeCommand(rootCmd, "setup")
	if err != nil {
		t.Fatalf("setup: %v\n%s", err, out)
	}

	data, err := os.ReadFile(filepath.Join(tmp, ".config", "readloop", "config.json"))
	if err != nil {
		t.Fatalf("config not written: %v", err)
	}
	for _, want := range []string{`"device_id": "bench-reader"`, `"default_format": "json"`, `"output_dir": "reports"`} {
		if !strings.Contains(string(data), want) {
			t.Fatalf("config missing %s:\n%s", want, data)
		}
	}

	// the next command picks the new settings up
	run(t, "status")
	if got := GetConfig(); got.DeviceID != "bench-reader" || got.DefaultFormat != "json" {
		t.Fatalf("config not loaded after setup: %+v", got)
	}
}
