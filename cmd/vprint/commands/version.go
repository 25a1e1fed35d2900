package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/vprint/vprint/cmd/vprint/internal/format"
	"github.com/vprint/vprint/pkg/version"
)

func newVersionCommand() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:     "version",
		Short:   "Print version information",
		GroupID: "core",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := format.FromCommand(cmd)
			info := version.Get()
			if f.IsJSON() {
				return f.PrintJSON(info)
			}

			out := cmd.OutOrStdout()
			if short {
				_, err := fmt.Fprintln(out, info.Version)
				return err
			}
			return f.PrintFields([][2]string{
				{"Version", info.Version},
				{"Firmware", version.Firmware()},
				{"Commit", info.Commit},
				{"Build Date", info.BuildDate},
				{"Go Version", runtime.Version()},
				{"Platform", runtime.GOOS + "/" + runtime.GOARCH},
			})
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "Print only the version number")
	return cmd
}
