package bind

import (
	"context"
	"net"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vprint/vprint/pkg/appctx"
	"github.com/vprint/vprint/pkg/config"
	"github.com/vprint/vprint/pkg/ipp"
	"github.com/vprint/vprint/pkg/server"
)

// Client returns the printer client the root command stored on the context.
func Client(cmd *cobra.Command) (*ipp.Client, error) {
	c, ok := appctx.Client(cmd.Context())
	if !ok {
		return nil, server.ErrConfigUnavailable
	}
	return c, nil
}

// ClientAddr derives the address client commands dial from the printer
// listen address. Wildcard hosts become localhost.
func ClientAddr(p config.PrinterConfig) string {
	host := p.Addr
	switch host {
	case "", "0.0.0.0", "::":
		host = "localhost"
	}
	return net.JoinHostPort(host, strconv.Itoa(p.Port))
}

// Context returns the command context, or Background for commands run
// outside Execute.
func Context(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
