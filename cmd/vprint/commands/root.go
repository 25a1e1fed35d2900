package commands

import (
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/vprint/vprint/cmd/vprint/commands/job"
	serverCmd "github.com/vprint/vprint/cmd/vprint/commands/server"
	"github.com/vprint/vprint/cmd/vprint/internal/bind"
	"github.com/vprint/vprint/cmd/vprint/internal/format"
	"github.com/vprint/vprint/pkg/appctx"
	"github.com/vprint/vprint/pkg/config"
	"github.com/vprint/vprint/pkg/ipp"
	"github.com/vprint/vprint/pkg/logging"
	"github.com/vprint/vprint/pkg/server"
)

const cliExecutable = "vprint"

// NewCommand constructs the top-level vprint CLI command. It loads the
// layered configuration, sets up logging and shares the config manager and
// a printer client with every subcommand through the context.
func NewCommand() *cobra.Command {
	var (
		configFile     string
		host           string
		timeout        time.Duration
		verbosityCount int
		logCloser      io.Closer
	)

	cmd := &cobra.Command{
		Use:   cliExecutable,
		Short: "VPrint is a virtual network printer",
		Long: `VPrint accepts print jobs over an IPP-style protocol, queues them and
processes them with a pool of workers. The same binary runs the printer
(vprint server start) and talks to it (vprint print, vprint job ...).`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			mgr := config.NewManager()
			if err := mgr.Load(cmd.Flags(), configFile); err != nil {
				wrapped := bind.ConfigError(err)
				return format.Fail(cmd, "load configuration", wrapped, server.ErrorCode(wrapped))
			}
			cfg := mgr.Get()

			level := cfg.Log.Level
			switch {
			case verbosityCount == 1:
				level = "debug"
			case verbosityCount > 1:
				level = "trace"
			}
			closer, err := logging.Configure(logging.Options{Level: level, Format: cfg.Log.Format, File: cfg.Log.File})
			if err != nil {
				wrapped := server.WrapInvalidConfig(err)
				return format.Fail(cmd, "configure logging", wrapped, server.ErrorCode(wrapped))
			}
			logCloser = closer

			addr := host
			if addr == "" {
				addr = bind.ClientAddr(cfg.Printer)
			}

			ctx := appctx.WithConfig(bind.Context(cmd), mgr)
			ctx = appctx.WithClient(ctx, ipp.NewClient(addr, timeout))
			cmd.SetContext(ctx)
			if root := cmd.Root(); root != nil && root != cmd {
				root.SetContext(ctx)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if logCloser != nil {
				return logCloser.Close()
			}
			return nil
		},
	}

	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	pf := cmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "", "Configuration file path")
	pf.StringVar(&host, "host", "", "Printer address for client commands (default: from printer.addr/printer.port)")
	pf.DurationVar(&timeout, "timeout", 30*time.Second, "Printer request timeout")
	pf.CountVarP(&verbosityCount, "verbosity", "v", "Increase logging verbosity (repeatable)")
	pf.StringP("output", "o", string(format.ModeTable), "Output format: table or json")
	pf.BoolP("quiet", "q", false, "Suppress summaries")
	pf.Bool("no-color", false, "Disable colored output")
	config.BindFlags(pf)

	cmd.AddGroup(&cobra.Group{ID: "print", Title: "Printing Commands"})
	cmd.AddGroup(&cobra.Group{ID: "core", Title: "Core Commands"})

	cmd.AddCommand(newPrintCommand())
	cmd.AddCommand(newPrinterCommand())
	cmd.AddCommand(job.NewCommand())
	cmd.AddCommand(serverCmd.NewCommand())
	cmd.AddCommand(newConfigCommand())
	cmd.AddCommand(newVersionCommand())

	return cmd
}
