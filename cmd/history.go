package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/readloop/internal/report"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored read sessions, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		summaries, err := store.List()
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			cmd.Println("no sessions recorded")
			return nil
		}
		if historyLimit > 0 && len(summaries) > historyLimit {
			summaries = summaries[:historyLimit]
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SESSION\tSTARTED\tRESULT\tREADS\tRATIO")
		for _, s := range summaries {
			started := "-"
			if !s.StartedAt.IsZero() {
				started = s.StartedAt.Local().Format(time.DateTime)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%.0f%%\n",
				s.SessionID, started, report.Outcome(s), s.SuccessCount, s.TotalAttempts, s.SuccessRatio*100)
		}
		return tw.Flush()
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "show at most this many sessions (0 for all)")
	rootCmd.AddCommand(historyCmd)
}
