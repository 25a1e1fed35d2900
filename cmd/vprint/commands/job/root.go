// Package job holds the vprint job subcommands. Each one sends a single
// request to the printer and prints the job attributes it answers with.
package job

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vprint/vprint/cmd/vprint/internal/bind"
	"github.com/vprint/vprint/cmd/vprint/internal/format"
	"github.com/vprint/vprint/pkg/ipp"
)

// NewCommand returns the job command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "job",
		Short:   "Inspect and control print jobs",
		GroupID: "print",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newStatusCommand())
	cmd.AddCommand(newControlCommand("cancel", "Cancel a job", ipp.OpCancelJob, "Canceled"))
	cmd.AddCommand(newControlCommand("hold", "Hold a pending job", ipp.OpHoldJob, "Held"))
	cmd.AddCommand(newControlCommand("release", "Release a held job", ipp.OpReleaseJob, "Released"))

	return cmd
}

func newListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		Example: `  vprint job list
  vprint job list --which all --limit 20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := bind.BindListOptions(cmd)
			if err != nil {
				return format.Fail(cmd, "list jobs", err, bind.ErrorCode(err))
			}
			client, err := bind.Client(cmd)
			if err != nil {
				return format.Fail(cmd, "list jobs", err, bind.ErrorCode(err))
			}

			req := client.NewRequest(ipp.OpGetJobs)
			req.Attributes.Set(ipp.AttrWhichJobs, opts.Which)
			if opts.Limit > 0 {
				req.Attributes.Set(ipp.AttrLimit, strconv.Itoa(opts.Limit))
			}
			resp, err := client.Call(bind.Context(cmd), req)
			if err != nil {
				return format.Fail(cmd, "list jobs", err, bind.ErrorCode(err))
			}

			groups := resp.GroupsOf(ipp.GroupJob)
			rows := make([][]string, 0, len(groups))
			for _, g := range groups {
				rows = append(rows, []string{
					format.JobID(g.Get(ipp.AttrJobUUID)),
					g.Get(ipp.AttrJobName),
					g.Get(ipp.AttrJobOriginatingUser),
					format.JobState(g.Get(ipp.AttrJobState)),
					g.Get(ipp.AttrJobStateReasons),
				})
			}

			f := format.FromCommand(cmd)
			if err := f.PrintTable([]string{"ID", "Name", "User", "State", "Reason"}, rows); err != nil {
				return err
			}
			return f.PrintSummary(fmt.Sprintf("%d job(s)", len(rows)))
		},
	}

	cmd.Flags().String("which", "not-completed", "Jobs to list: not-completed, completed or all")
	cmd.Flags().Int("limit", 0, "Maximum number of jobs (0 = no limit)")
	return cmd
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the attributes of one job",
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := jobRequest(cmd, args, ipp.OpGetJobAttributes)
			if err != nil {
				return format.Fail(cmd, "get job status", err, bind.ErrorCode(err))
			}
			groups := resp.GroupsOf(ipp.GroupJob)
			if len(groups) == 0 {
				return nil
			}
			return format.FromCommand(cmd).PrintFields(format.JobFields(groups[0]))
		},
	}
}

func newControlCommand(use, short string, op ipp.Operation, done string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <job-id>",
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := jobRequest(cmd, args, op)
			if err != nil {
				return format.Fail(cmd, use+" job", err, bind.ErrorCode(err))
			}

			f := format.FromCommand(cmd)
			if groups := resp.GroupsOf(ipp.GroupJob); f.IsJSON() && len(groups) > 0 {
				return f.PrintFields(format.JobFields(groups[0]))
			}
			return f.PrintSummary(fmt.Sprintf("✓ %s job %s", done, args[0]))
		},
	}
}

// jobRequest sends op for the job named by args.
func jobRequest(cmd *cobra.Command, args []string, op ipp.Operation) (*ipp.Response, error) {
	id, err := bind.JobID(args)
	if err != nil {
		return nil, err
	}
	client, err := bind.Client(cmd)
	if err != nil {
		return nil, err
	}

	req := client.NewRequest(op)
	req.Attributes.Set(ipp.AttrJobUUID, id.URN())
	return client.Call(bind.Context(cmd), req)
}
