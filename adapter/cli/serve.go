package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/multiocr/adapter/api"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve health, engines, metrics and processing over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		container, err := OpenContainer(cmd)
		if err != nil {
			return err
		}
		defer container.Close()

		cfg := api.DefaultServerConfig()
		cfg.Addr = container.Config.HTTPAddr
		if cmd.Flags().Changed("addr") {
			cfg.Addr = serveAddr
		}
		cfg.MaxDepth = container.Config.MaxDepth

		srv := api.NewServer(cfg, container.Manager, container.Logger,
			api.WithChecks(container.Checks),
			api.WithCounters(container.Counters),
		)

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start() }()

		select {
		case err := <-errCh:
			return err
		case <-cmd.Context().Done():
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default MULTIOCR_HTTP_ADDR)")
	rootCmd.AddCommand(serveCmd)
}
