package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eccleston-labs/tally-enricher/internal/cache"
	"github.com/eccleston-labs/tally-enricher/internal/dispatch"
	"github.com/eccleston-labs/tally-enricher/internal/server"
	"github.com/eccleston-labs/tally-enricher/pkg/slack"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP qualification server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := newStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		c := cache.New(st)
		orch := buildOrchestrator(cfg, c)

		d := dispatch.New(cfg.Dispatch.QueueSize)
		defer d.Close()

		srv := server.New(cfg, st, c, orch, d, slack.NewClient())
		return srv.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
