package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/vprint/vprint/cmd/vprint/internal/bind"
	"github.com/vprint/vprint/cmd/vprint/internal/format"
	"github.com/vprint/vprint/pkg/ipp"
)

func newPrinterCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "printer",
		Short:   "Show printer attributes and state",
		GroupID: "print",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := bind.Client(cmd)
			if err != nil {
				return format.Fail(cmd, "query printer", err, bind.ErrorCode(err))
			}

			resp, err := client.Call(bind.Context(cmd), client.NewRequest(ipp.OpGetPrinterAttributes))
			if err != nil {
				return format.Fail(cmd, "query printer", err, bind.ErrorCode(err))
			}
			groups := resp.GroupsOf(ipp.GroupPrinter)
			if len(groups) == 0 {
				return format.Fail(cmd, "query printer", errors.New("printer returned no attributes"), "PRINTER_ERROR")
			}
			return format.FromCommand(cmd).PrintFields(format.PrinterFields(groups[0]))
		},
	}
}
