package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/term"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/readloop/internal/device"
	"github.com/fakeyudi/readloop/internal/metrics"
	"github.com/fakeyudi/readloop/internal/orchestrator"
	"github.com/fakeyudi/readloop/internal/prefs"
	"github.com/fakeyudi/readloop/internal/publish"
	"github.com/fakeyudi/readloop/internal/session"
	"github.com/fakeyudi/readloop/internal/tui"
)

type runOptions struct {
	script      string
	latency     time.Duration
	duplicate   bool
	attempts    int
	delay       time.Duration
	timeout     time.Duration
	noStopFatal bool
	sessions    int
	useTUI      bool
	metricsAddr string
	noSave      bool
	prefsPath   string
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run read sessions against the simulated reader",
	Long: `Run one or more read sessions. The repeat policy comes from the preference
file; --attempts, --delay, --timeout and --no-stop-on-fatal override it.

The first interrupt stops after the current read, the second aborts it.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newRunner(cmd, runOpts)
		if err != nil {
			return err
		}
		return r.run(cmd.Context())
	},
}

// runner owns one `readloop run` invocation.
type runner struct {
	cmd   *cobra.Command
	opts  runOptions
	out   io.Writer
	dev   *device.Simulated
	src   *prefs.Source
	store session.Store
	class *orchestrator.Classifier

	current  atomic.Pointer[orchestrator.Handle]
	stopping atomic.Bool
}

func newRunner(cmd *cobra.Command, opts runOptions) (*runner, error) {
	if opts.sessions < 1 {
		return nil, fmt.Errorf("--sessions must be at least 1")
	}
	steps, err := device.ParseScript(opts.script)
	if err != nil {
		return nil, err
	}

	prefsPath := opts.prefsPath
	if prefsPath == "" {
		if prefsPath, err = cfg.PrefsFile(); err != nil {
			return nil, err
		}
	}
	src, err := prefs.NewSource(prefsPath, log.Logger)
	if err != nil {
		return nil, err
	}

	class, err := loadClassifier()
	if err != nil {
		return nil, err
	}

	r := &runner{
		cmd:   cmd,
		opts:  opts,
		out:   cmd.OutOrStdout(),
		src:   src,
		class: class,
		dev: device.NewSimulated(device.SimConfig{
			ID:        cfg.DeviceID,
			Steps:     steps,
			Latency:   opts.latency,
			Duplicate: opts.duplicate,
		}),
	}
	if r.store, err = openStore(); err != nil {
		return nil, err
	}
	return r, nil
}

// policy reads the preferences as they are now and applies flag overrides.
func (r *runner) policy() (session.Policy, error) {
	pol, err := r.src.Policy()
	if err != nil {
		return session.Policy{}, err
	}
	flags := r.cmd.Flags()
	if flags.Changed("attempts") {
		pol.MaxAttempts = r.opts.attempts
	}
	if flags.Changed("delay") {
		pol.InterAttemptDelay = r.opts.delay
	}
	if flags.Changed("timeout") {
		pol.AttemptTimeout = r.opts.timeout
	}
	if flags.Changed("no-stop-on-fatal") {
		pol.StopOnFatalError = !r.opts.noStopFatal
	}
	return pol, pol.Validate()
}

// cancel stops after the current read and starts no further sessions.
func (r *runner) cancel() {
	r.stopping.Store(true)
	if h := r.current.Load(); h != nil {
		h.RequestCancel()
	}
}

func (r *runner) publishers(extra ...orchestrator.Publisher) publish.Multi {
	pubs := publish.Multi{publish.NewLog(log.Logger)}
	if addr := r.metricsAddr(); addr != "" {
		pubs = append(pubs, publish.NewMetrics(metrics.Default(), r.dev.DeviceID()))
	}
	return append(pubs, extra...)
}

func (r *runner) metricsAddr() string {
	if r.opts.metricsAddr != "" {
		return r.opts.metricsAddr
	}
	return cfg.MetricsAddr
}

func (r *runner) run(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, abort := context.WithCancel(parent)
	defer abort()

	go func() {
		if err := r.src.Watch(ctx); err != nil {
			log.Warn().Err(err).Str("path", r.src.Path()).Msg("preference watcher stopped")
		}
	}()

	if addr := r.metricsAddr(); addr != "" {
		router := metrics.NewRouter(prometheus.DefaultGatherer, r.store, log.Logger)
		go func() {
			if err := metrics.Serve(ctx, addr, router); err != nil {
				log.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
			}
		}()
		log.Info().Str("addr", addr).Msg("serving metrics")
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for n := 0; ; n++ {
			select {
			case <-sigCh:
				if n == 0 {
					fmt.Fprintln(r.cmd.ErrOrStderr(), "stopping after the current read, interrupt again to abort")
					r.cancel()
					continue
				}
				abort()
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	if r.opts.useTUI {
		if term.IsTerminal(os.Stdout.Fd()) {
			return r.runTUI(ctx, abort)
		}
		log.Warn().Msg("stdout is not a terminal, falling back to plain output")
	}

	printer := publish.Func{Attempt: func(_ string, a session.Attempt) { printAttempt(r.out, a) }}
	o := r.newOrchestrator(r.publishers(printer))
	summaries, err := r.loop(ctx, o)
	for i, s := range summaries {
		if i > 0 || len(summaries) > 1 {
			fmt.Fprintln(r.out)
		}
		printSummary(r.out, s)
	}
	return err
}

func (r *runner) runTUI(ctx context.Context, abort context.CancelFunc) error {
	p := tea.NewProgram(tui.NewMonitor(r.dev.DeviceID(), r.cancel), tea.WithAltScreen())
	bridge := publish.NewAsync(tui.Bridge(p), 256,
		publish.WithAsyncLogger(log.Logger),
		publish.WithDropHook(metrics.Default().RecordDropped))
	o := r.newOrchestrator(r.publishers(bridge))

	var (
		summaries []session.Summary
		loopErr   error
	)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		summaries, loopErr = r.loop(ctx, o)
		bridge.Close()
		p.Send(tui.DoneMsg{Err: loopErr})
	}()

	_, err := p.Run()
	select {
	case <-finished:
	default:
		// the user quit while a read was outstanding
		abort()
		<-finished
	}
	if err != nil {
		return err
	}
	for _, s := range summaries {
		printSummary(r.out, s)
	}
	return loopErr
}

func (r *runner) newOrchestrator(pubs publish.Multi) *orchestrator.Orchestrator {
	o := orchestrator.New(r.dev,
		orchestrator.WithPublisher(pubs),
		orchestrator.WithClassifier(r.class),
		orchestrator.WithLogger(log.Logger),
	)
	r.dev.Attach(o.Deliver)
	return o
}

// loop runs sessions back to back. Preferences are re-read before each one.
func (r *runner) loop(ctx context.Context, o *orchestrator.Orchestrator) ([]session.Summary, error) {
	var summaries []session.Summary
	for i := 0; i < r.opts.sessions; i++ {
		if r.stopping.Load() || ctx.Err() != nil {
			break
		}
		pol, err := r.policy()
		if err != nil {
			return summaries, err
		}
		h, err := o.StartSession(ctx, pol)
		if err != nil {
			return summaries, err
		}
		r.current.Store(h)
		if r.stopping.Load() {
			h.RequestCancel()
		}

		s, err := h.Wait(context.Background())
		r.current.Store(nil)
		summaries = append(summaries, s)
		if !r.opts.noSave {
			if serr := r.store.Save(s); serr != nil {
				log.Error().Err(serr).Str("session", s.SessionID).Msg("session not saved")
			}
		}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			return summaries, err
		}
	}
	return summaries, nil
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runOpts.script, "script", "ok", `simulated reader results, e.g. "ok,err:31,fatal:41,hang"`)
	f.DurationVar(&runOpts.latency, "latency", 300*time.Millisecond, "simulated read latency")
	f.BoolVar(&runOpts.duplicate, "duplicate", false, "deliver every reader callback twice")
	f.IntVar(&runOpts.attempts, "attempts", 1, "max attempts per session (overrides preferences)")
	f.DurationVar(&runOpts.delay, "delay", 100*time.Millisecond, "delay between attempts (overrides preferences)")
	f.DurationVar(&runOpts.timeout, "timeout", 0, "per-attempt timeout, 0 waits forever (overrides preferences)")
	f.BoolVar(&runOpts.noStopFatal, "no-stop-on-fatal", false, "keep retrying after fatal errors (overrides preferences)")
	f.IntVar(&runOpts.sessions, "sessions", 1, "number of sessions to run back to back")
	f.BoolVar(&runOpts.useTUI, "tui", false, "show the live monitor")
	f.StringVar(&runOpts.metricsAddr, "metrics-addr", "", "serve /metrics on this address (overrides config)")
	f.BoolVar(&runOpts.noSave, "no-save", false, "do not store session summaries")
	f.StringVar(&runOpts.prefsPath, "prefs", "", "preference file (default ~/.config/readloop/prefs.yaml)")
	rootCmd.AddCommand(runCmd)
}
