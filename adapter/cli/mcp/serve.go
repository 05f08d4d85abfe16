package mcp

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/multiocr/adapter/cli"
	mcplocal "github.com/felixgeelhaar/multiocr/adapter/mcp"
	mcpinternal "github.com/felixgeelhaar/multiocr/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		container, err := cli.OpenContainer(cmd)
		if err != nil {
			return err
		}
		defer container.Close()

		deps := mcplocal.ToolDependencies{
			Service:  container.Manager,
			Checks:   container.Checks,
			Version:  cli.Version,
			MaxDepth: container.Config.MaxDepth,
		}
		err = mcpinternal.Serve(cmd.Context(), container.Config, deps, container.Logger)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}
