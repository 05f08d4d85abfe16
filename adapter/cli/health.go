package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/multiocr/internal/engine/runtime"
	"github.com/felixgeelhaar/multiocr/pkg/observability"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show engine health and check that artifact sinks are reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		container, err := OpenContainer(cmd)
		if err != nil {
			return err
		}
		defer container.Close()

		out := cmd.OutOrStdout()
		printHealth(out, container.Manager.Health())

		results := container.Checks.Run(cmd.Context(), 3*time.Second)
		printChecks(out, results)
		if !observability.AllOK(results) {
			return fmt.Errorf("one or more sinks are unreachable")
		}
		return nil
	},
}

func printHealth(out io.Writer, report runtime.HealthReport) {
	fmt.Fprintf(out, "Overall health: %s\n", report.Status)
	for _, e := range report.Engines {
		fmt.Fprintf(out, "  %-16s %-6s success %3.0f%% over %d runs\n",
			e.Name, e.Status, e.SuccessRate*100, len(e.Window))
	}
}

func printChecks(out io.Writer, results []observability.CheckResult) {
	if len(results) == 0 {
		return
	}
	fmt.Fprintln(out, "Sinks:")
	for _, r := range results {
		if r.OK {
			fmt.Fprintf(out, "  ✓ %s\n", r.Name)
			continue
		}
		fmt.Fprintf(out, "  ✗ %s: %s\n", r.Name, r.Error)
	}
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
