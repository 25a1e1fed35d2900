// Package server provides the Cobra command implementation for the printer
// lifecycle. It wires the loaded configuration into the server runtime.
package server

import (
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vprint/vprint/cmd/vprint/internal/bind"
	"github.com/vprint/vprint/cmd/vprint/internal/format"
	"github.com/vprint/vprint/pkg/appctx"
	"github.com/vprint/vprint/pkg/config"
	serversvc "github.com/vprint/vprint/pkg/server"
	"github.com/vprint/vprint/pkg/server/app"
)

// newStartServerCommand creates and returns the 'vprint server start' command.
//
// The runtime hosts:
//   - the IPP listener and dispatcher (printer.addr:printer.port)
//   - the job queue and worker pool
//   - the admin HTTP server with health, REST and websocket endpoints
//   - the hot folder, when enabled
//
// It runs until SIGINT/SIGTERM, then stops accepting connections and drains
// the workers. SIGUSR1 logs queue and worker statistics.
func newStartServerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the virtual printer",
		Long: `Start the virtual printer process.

Settings come from defaults, the config file (--config), VPRINT_*
environment variables and the flags below, later sources winning.`,
		Example: `  vprint server start
  vprint server start --printer.port 8631 --admin.port 8632
  vprint server start --jobs.worker_threads 4 --hotfolder.enabled`,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, ok := appctx.Config(cmd.Context())
			if !ok {
				err := serversvc.ErrConfigUnavailable
				return format.Fail(cmd, "start server", err, serversvc.ErrorCode(err))
			}
			cfg := mgr.Get()

			ctx, stop := signal.NotifyContext(bind.Context(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			serverApp, err := app.New(ctx, cfg, &app.Deps{Config: mgr, Logger: log.Logger})
			if err != nil {
				return format.Fail(cmd, "start server", err, serversvc.ErrorCode(err))
			}

			if err := serverApp.Run(ctx); err != nil {
				return format.Fail(cmd, "start server", err, serversvc.ErrorCode(err))
			}
			return nil
		},
	}

	config.BindServerFlags(cmd.Flags())
	return cmd
}
