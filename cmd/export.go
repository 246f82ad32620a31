package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/readloop/internal/report"
)

var (
	exportFormat string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export [session-id|latest]",
	Short: "Write a stored session as a Markdown or JSON report",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := "latest"
		if len(args) == 1 {
			id = args[0]
		}

		format := exportFormat
		if format == "" {
			format = cfg.DefaultFormat
		}
		renderer, err := report.NewRenderer(format)
		if err != nil {
			return err
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		s, err := loadSummary(store, id)
		if err != nil {
			return err
		}

		data, err := renderer.Render(report.New(s, time.Now()))
		if err != nil {
			return fmt.Errorf("rendering report: %w", err)
		}

		path := exportOutput
		if path == "" {
			dir := cfg.OutputDir
			if dir == "" {
				dir = "."
			}
			path = filepath.Join(dir, report.FileName(s, format))
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		log.Debug().Str("session", s.SessionID).Str("path", path).Msg("report written")
		cmd.Println(path)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "", `report format, "markdown" or "json" (default from config)`)
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default <output_dir>/<generated name>)")
	rootCmd.AddCommand(exportCmd)
}
