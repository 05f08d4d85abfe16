package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/multiocr/internal/engine/runtime"
)

var enginesCmd = &cobra.Command{
	Use:   "engines",
	Short: "List the configured engines",
	RunE: func(cmd *cobra.Command, args []string) error {
		container, err := OpenContainer(cmd)
		if err != nil {
			return err
		}
		defer container.Close()

		printEngines(cmd.OutOrStdout(), container.Manager.Describe())
		return nil
	},
}

func printEngines(out io.Writer, engines []runtime.EngineInfo) {
	if len(engines) == 0 {
		fmt.Fprintln(out, "No engines configured.")
		return
	}
	for _, e := range engines {
		version := e.Version
		if version == "" {
			version = "-"
		}
		fmt.Fprintf(out, "%s %s [%s] %s\n", e.Name, version, e.Health, strings.Join(e.FileTypes, " "))
		if e.Error != "" {
			fmt.Fprintf(out, "  init error: %s\n", e.Error)
		}
	}
}

func init() {
	rootCmd.AddCommand(enginesCmd)
}
