package commands

import (
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vprint/vprint/cmd/vprint/internal/format"
	"github.com/vprint/vprint/pkg/appctx"
	"github.com/vprint/vprint/pkg/server"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "config",
		Short:   "Inspect configuration",
		GroupID: "core",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the configuration after merging defaults, the config file,
VPRINT_* environment variables and flags.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, ok := appctx.Config(cmd.Context())
			if !ok {
				err := server.ErrConfigUnavailable
				return format.Fail(cmd, "show config", err, server.ErrorCode(err))
			}
			cfg := mgr.Get()

			f := format.FromCommand(cmd)
			if f.IsJSON() {
				return f.PrintJSON(cfg)
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return err
			}
			return enc.Close()
		},
	})
	return cmd
}
