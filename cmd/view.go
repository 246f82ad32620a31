package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/readloop/internal/report"
	"github.com/fakeyudi/readloop/internal/session"
	"github.com/fakeyudi/readloop/internal/tui"
)

var plainOutput bool

var viewCmd = &cobra.Command{
	Use:   "view [file|session-id|latest]",
	Short: "View an exported report or a stored session",
	Long: `View a report written by "readloop export", or a stored session by id.
Without an argument the latest session is shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target := "latest"
		if len(args) == 1 {
			target = args[0]
		}

		r, name, err := resolveReport(target)
		if err != nil {
			return err
		}

		if plainOutput || !term.IsTerminal(os.Stdout.Fd()) {
			printReport(cmd.OutOrStdout(), r)
			return nil
		}
		return tui.RunViewer(r, name)
	},
}

// resolveReport reads target as a report file if one exists at that path,
// otherwise as a stored session id.
func resolveReport(target string) (*report.Report, string, error) {
	data, err := os.ReadFile(target)
	switch {
	case err == nil:
		r, err := report.Detect(data).Parse(data)
		if err != nil {
			return nil, "", fmt.Errorf("%s: %w", target, err)
		}
		return r, target, nil
	case !errors.Is(err, os.ErrNotExist):
		return nil, "", err
	}

	store, err := openStore()
	if err != nil {
		return nil, "", err
	}
	s, err := loadSummary(store, target)
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			return nil, "", fmt.Errorf("no report file or stored session named %q", target)
		}
		return nil, "", err
	}
	return report.New(s, time.Now()), s.SessionID, nil
}

func init() {
	viewCmd.Flags().BoolVar(&plainOutput, "plain", false, "plain text output instead of TUI")
	rootCmd.AddCommand(viewCmd)
}
