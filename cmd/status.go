package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/readloop/internal/session"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the most recent read session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}

		s, err := store.Latest()
		if err != nil {
			if errors.Is(err, session.ErrNoSession) {
				cmd.Println("no sessions recorded")
				return nil
			}
			return err
		}
		printSummary(cmd.OutOrStdout(), s)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
