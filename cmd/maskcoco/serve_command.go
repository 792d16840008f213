package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/model-collapse/maskcoco/internal/server"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve <root>",
		Short: "Serve decoded instance masks over HTTP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ds, err := openDataset(ctx, args[0])
			if err != nil {
				return err
			}
			addr := cfg.Server.Bind
			if v := strings.TrimSpace(bind); v != "" {
				addr = v
			}
			return server.New(ds.WithLogger(logger), logger).ListenAndServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (default from config)")
	return cmd
}
