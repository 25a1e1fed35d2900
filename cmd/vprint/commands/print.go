package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vprint/vprint/cmd/vprint/internal/bind"
	"github.com/vprint/vprint/cmd/vprint/internal/format"
	"github.com/vprint/vprint/pkg/ipp"
)

func newPrintCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "print <file>",
		Short:   "Submit a document to the printer",
		GroupID: "print",
		Long: `Submit a PDF or PostScript document as a print job.

By default the whole document travels in one Print-Job request. With
--stream the job is created first and the document follows in
Send-Document chunks, the last one marked last-document.`,
		Example: `  vprint print report.pdf
  vprint print --copies 2 --sides two-sided-long-edge --pages 1-4 report.pdf
  vprint print --validate-only flyer.ps
  vprint --host printer.lan:631 print --stream big.pdf`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := bind.BindPrintOptions(cmd, args)
			if err != nil {
				return format.Fail(cmd, "print", err, bind.ErrorCode(err))
			}
			client, err := bind.Client(cmd)
			if err != nil {
				return format.Fail(cmd, "print", err, bind.ErrorCode(err))
			}

			ctx := bind.Context(cmd)
			f := format.FromCommand(cmd)

			if opts.ValidateOnly {
				req := client.NewRequest(ipp.OpValidateJob)
				opts.Apply(req.Attributes)
				if _, err := client.Call(ctx, req); err != nil {
					return format.Fail(cmd, "validate job", err, bind.ErrorCode(err))
				}
				return f.PrintSummary(fmt.Sprintf("✓ %s would be accepted", opts.Name))
			}

			var resp *ipp.Response
			if opts.Stream {
				resp, err = streamDocument(ctx, client, opts)
			} else {
				resp, err = printDocument(ctx, client, opts)
			}
			if err != nil {
				return format.Fail(cmd, "print", err, bind.ErrorCode(err))
			}

			groups := resp.GroupsOf(ipp.GroupJob)
			if len(groups) == 0 {
				return format.Fail(cmd, "print", errors.New("printer returned no job"), "PRINTER_ERROR")
			}
			if err := f.PrintFields(format.JobFields(groups[0])); err != nil {
				return err
			}
			return f.PrintSummary(fmt.Sprintf("✓ Submitted %s", opts.Name))
		},
	}

	bind.BindPrintFlags(cmd)
	return cmd
}

func printDocument(ctx context.Context, client *ipp.Client, opts bind.PrintOptions) (*ipp.Response, error) {
	data, err := os.ReadFile(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", bind.ErrInvalidInput, err)
	}
	req := client.NewRequest(ipp.OpPrintJob)
	opts.Apply(req.Attributes)
	req.Payload = data
	return client.Call(ctx, req)
}

// streamDocument creates the job and uploads the file in chunks. A failed
// upload cancels the job so it does not wait out the queue timeout.
func streamDocument(ctx context.Context, client *ipp.Client, opts bind.PrintOptions) (*ipp.Response, error) {
	f, err := os.Open(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", bind.ErrInvalidInput, err)
	}
	defer f.Close()

	create := client.NewRequest(ipp.OpCreateJob)
	opts.Apply(create.Attributes)
	resp, err := client.Call(ctx, create)
	if err != nil {
		return nil, err
	}
	groups := resp.GroupsOf(ipp.GroupJob)
	if len(groups) == 0 {
		return nil, errors.New("printer returned no job")
	}
	jobUUID := groups[0].Get(ipp.AttrJobUUID)

	r := bufio.NewReaderSize(f, opts.ChunkSize)
	for {
		chunk := make([]byte, opts.ChunkSize)
		n, readErr := io.ReadFull(r, chunk)
		if readErr != nil && !errors.Is(readErr, io.ErrUnexpectedEOF) && !errors.Is(readErr, io.EOF) {
			cancelJob(ctx, client, jobUUID)
			return nil, readErr
		}
		_, peekErr := r.Peek(1)
		last := readErr != nil || errors.Is(peekErr, io.EOF)

		send := client.NewRequest(ipp.OpSendDocument)
		send.Attributes.Set(ipp.AttrJobUUID, jobUUID)
		send.Attributes.SetBool(ipp.AttrLastDocument, last)
		send.Payload = chunk[:n]
		resp, err = client.Call(ctx, send)
		if err != nil {
			cancelJob(ctx, client, jobUUID)
			return nil, err
		}
		if last {
			return resp, nil
		}
	}
}

func cancelJob(ctx context.Context, client *ipp.Client, jobUUID string) {
	req := client.NewRequest(ipp.OpCancelJob)
	req.Attributes.Set(ipp.AttrJobUUID, jobUUID)
	_, _ = client.Do(ctx, req)
}
