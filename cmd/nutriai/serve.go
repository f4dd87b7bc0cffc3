package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vbonduro/nutriai/internal/web"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API and MCP tool endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if addr == "" {
				addr = a.cfg.ListenAddr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			server := web.NewServer(a.gateway, a.logs, a.provider, a.logger)
			if err := server.ListenAndServe(ctx, addr); err != nil {
				a.logger.Error("server error", "error", err)
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides listen_addr)")
	return cmd
}
