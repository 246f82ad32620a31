package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/readloop/internal/config"
	"github.com/fakeyudi/readloop/internal/logging"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Write ~/.config/readloop/config.json (re-run anytime to edit settings)",
	Args:  cobra.NoArgs,
	// Skip config loading so a broken config file can be rewritten here.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.ConfigureRuntime()
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		existing := config.Defaults()
		global, err := config.LoadGlobal()
		var perr *config.ParseError
		switch {
		case errors.As(err, &perr):
			cmd.PrintErrf("  existing config is unreadable, starting from defaults: %v\n", perr.Err)
		case err != nil:
			return err
		default:
			existing = config.Merge(global, nil)
		}

		c, err := config.RunSetup(cmd.InOrStdin(), cmd.OutOrStdout(), existing)
		if err != nil {
			return fmt.Errorf("setup cancelled: %w", err)
		}
		if err := config.SaveGlobal(c); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}

		path, _ := config.GlobalPath()
		cmd.Printf("  Saved %s\n", path)
		cmd.Println("  Run 'readloop run' to start a read session.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
