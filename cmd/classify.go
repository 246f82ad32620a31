package cmd

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/readloop/internal/orchestrator"
)

var classifyCmd = &cobra.Command{
	Use:   "classify [code...]",
	Short: "Show how reader error codes are classified",
	Long: `Show whether reader error codes end a session (fatal) or are retried.
Without arguments the whole table is printed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadClassifier()
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "CODE\tCLASS\tLABEL\tHINT")
		if len(args) == 0 {
			for _, r := range c.Rules() {
				writeRule(tw, r.Code, r.Class, r)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			cmd.Printf("other codes: %s\n", c.Default())
			return nil
		}

		for _, arg := range args {
			code, err := strconv.Atoi(arg)
			if err != nil {
				return fmt.Errorf("invalid code %q", arg)
			}
			class, rule, _ := c.Classify(code)
			writeRule(tw, code, class, rule)
		}
		return tw.Flush()
	},
}

func writeRule(tw *tabwriter.Writer, code int, class orchestrator.Class, r orchestrator.Rule) {
	label, hint := r.Label, r.Hint
	if label == "" {
		label = "-"
	}
	if hint == "" {
		hint = "-"
	}
	fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", code, class, label, hint)
}

func init() {
	rootCmd.AddCommand(classifyCmd)
}
