package server

import (
	"github.com/spf13/cobra"
)

const cliExecutable = "server"

// NewCommand returns the server command group.
func NewCommand() *cobra.Command {
	command := &cobra.Command{
		Use:     cliExecutable,
		Short:   "Run the virtual printer",
		GroupID: "core",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	command.SuggestionsMinimumDistance = 1
	command.AddCommand(newStartServerCommand())

	return command
}
