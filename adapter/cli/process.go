package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/multiocr/internal/engine/runtime"
)

var processJSON bool

var processCmd = &cobra.Command{
	Use:   "process <input>",
	Short: "Run every engine over the documents under a file or directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		container, err := OpenContainer(cmd)
		if err != nil {
			return err
		}
		defer container.Close()

		report := container.Manager.ProcessFiles(cmd.Context(), args[0], container.Config.MaxDepth)

		out := cmd.OutOrStdout()
		if processJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
		} else {
			printReport(out, report)
		}
		// The report is printed first so the health line survives a bad input.
		return report.Err()
	},
}

func printReport(out io.Writer, report *runtime.BatchReport) {
	fmt.Fprintf(out, "Processed %d of %d files in %s\n",
		report.Processed(), len(report.Files), report.Duration.Round(time.Millisecond))
	for _, f := range report.Files {
		switch {
		case f.Error != "":
			fmt.Fprintf(out, "  ✗ %s: %s\n", f.Path, f.Error)
		case len(f.Failed) > 0:
			fmt.Fprintf(out, "  ~ %s (failed: %v)\n", f.Path, f.Failed)
		default:
			fmt.Fprintf(out, "  ✓ %s\n", f.Path)
		}
	}
	if report.Error != "" {
		fmt.Fprintf(out, "Stopped early: %s\n", report.Error)
	}
	fmt.Fprintf(out, "Overall health: %s\n", report.Health)
}

func init() {
	processCmd.Flags().BoolVar(&processJSON, "json", false, "print the batch report as JSON")
	rootCmd.AddCommand(processCmd)
}
