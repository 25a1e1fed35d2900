package bind

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vprint/vprint/pkg/config"
	"github.com/vprint/vprint/pkg/ipp"
	"github.com/vprint/vprint/pkg/job"
	"github.com/vprint/vprint/pkg/server"
)

func printCommand(t *testing.T, flags ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "print"}
	BindPrintFlags(cmd)
	require.NoError(t, cmd.ParseFlags(flags))
	return cmd
}

func writeDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestBindPrintOptions_Defaults(t *testing.T) {
	doc := writeDoc(t, "report.pdf", "%PDF-1.4 body")

	opts, err := BindPrintOptions(printCommand(t), []string{doc})
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", opts.Name)
	assert.Equal(t, job.FormatPDF, opts.Format)
	assert.Equal(t, 1, opts.Copies)
	assert.Equal(t, 50, opts.Priority)
	assert.NotEmpty(t, opts.User)
	assert.False(t, opts.Stream)
}

func TestBindPrintOptions_AppliesAttributes(t *testing.T) {
	doc := writeDoc(t, "flyer.ps", "%!PS-Adobe-3.0")

	opts, err := BindPrintOptions(printCommand(t,
		"--copies", "3", "--sides", "two-sided-long-edge", "--pages", "2-4",
		"--orientation", "landscape", "--collate", "--name", "flyer", "--user", "sam",
	), []string{doc})
	require.NoError(t, err)

	attrs := ipp.Attributes{}
	opts.Apply(attrs)
	assert.Equal(t, "flyer", attrs.Get(ipp.AttrJobName))
	assert.Equal(t, "sam", attrs.Get(ipp.AttrRequestingUserName))
	assert.Equal(t, string(job.FormatPostScript), attrs.Get(ipp.AttrDocumentFormat))
	assert.Equal(t, "3", attrs.Get(ipp.AttrCopies))
	assert.Equal(t, "two-sided-long-edge", attrs.Get(ipp.AttrSides))
	assert.Equal(t, "2-4", attrs.Get(ipp.AttrPageRanges))
	assert.Equal(t, "4", attrs.Get(ipp.AttrOrientation))
	assert.Equal(t, "separate-documents-collated-copies", attrs.Get(ipp.AttrMultipleDocHandling))
}

func TestBindPrintOptions_Invalid(t *testing.T) {
	pdf := writeDoc(t, "a.pdf", "%PDF-1.4")
	text := writeDoc(t, "a.txt", "plain")

	tests := []struct {
		name  string
		flags []string
		args  []string
		want  error
	}{
		{"no document", nil, nil, ErrInvalidInput},
		{"missing file", nil, []string{filepath.Join(t.TempDir(), "nope.pdf")}, ErrInvalidInput},
		{"zero copies", []string{"--copies", "0"}, []string{pdf}, ErrInvalidInput},
		{"bad sides", []string{"--sides", "three-sided"}, []string{pdf}, ErrInvalidInput},
		{"bad pages", []string{"--pages", "x-2"}, []string{pdf}, ErrInvalidInput},
		{"bad priority", []string{"--priority", "101"}, []string{pdf}, ErrInvalidInput},
		{"bad orientation", []string{"--orientation", "sideways"}, []string{pdf}, ErrInvalidInput},
		{"unknown content", nil, []string{text}, job.ErrUnsupportedFormat},
		{"unknown format flag", []string{"--format", "image/png"}, []string{pdf}, job.ErrUnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BindPrintOptions(printCommand(t, tt.flags...), tt.args)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestJobID(t *testing.T) {
	id := job.NewID()

	got, err := JobID([]string{id.String()})
	require.NoError(t, err)
	assert.Equal(t, id, got)

	got, err = JobID([]string{id.URN()})
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = JobID([]string{"42"})
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = JobID(nil)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestBindListOptions(t *testing.T) {
	cmd := &cobra.Command{Use: "list"}
	cmd.Flags().String("which", "not-completed", "")
	cmd.Flags().Int("limit", 0, "")

	opts, err := BindListOptions(cmd)
	require.NoError(t, err)
	assert.Equal(t, ListOptions{Which: "not-completed"}, opts)

	require.NoError(t, cmd.Flags().Set("which", "everything"))
	_, err = BindListOptions(cmd)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestConfigError(t *testing.T) {
	portErr := ConfigError(&config.FieldError{Key: "printer.port", Rule: "min", Param: "1", Value: 0})
	assert.ErrorIs(t, portErr, server.ErrInvalidPort)
	assert.Equal(t, "SERVER_INVALID_PORT", server.ErrorCode(portErr))

	limitErr := ConfigError(&config.FieldError{Key: "jobs.queue_size", Rule: "min", Param: "1", Value: 0})
	assert.ErrorIs(t, limitErr, server.ErrInvalidLimits)

	other := ConfigError(fmt.Errorf("config source file: %w", errors.New("bad yaml")))
	assert.Equal(t, "SERVER_INVALID_CONFIG", server.ErrorCode(other))

	assert.NoError(t, ConfigError(nil))
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&ipp.StatusError{Status: ipp.StatusNotFound}, "JOB_NOT_FOUND"},
		{&ipp.StatusError{Status: ipp.StatusNotPossible}, "JOB_STATE_CONFLICT"},
		{&ipp.StatusError{Status: ipp.StatusServerBusy}, "PRINTER_BUSY"},
		{&ipp.StatusError{Status: ipp.StatusRequestEntityTooLarge}, "DOCUMENT_TOO_LARGE"},
		{&ipp.StatusError{Status: ipp.StatusDocumentFormatNotSupported}, "UNSUPPORTED_FORMAT"},
		{&ipp.StatusError{Status: ipp.StatusBadRequest}, "INVALID_OPTIONS"},
		{&ipp.StatusError{Status: ipp.StatusInternalError}, "PRINTER_ERROR"},
		{fmt.Errorf("dial: %w", &net.OpError{Op: "dial", Err: errors.New("refused")}), "PRINTER_UNREACHABLE"},
		{fmt.Errorf("%w: nope", ErrInvalidInput), "INVALID_INPUT"},
		{fmt.Errorf("%w: %q", job.ErrUnsupportedFormat, "image/png"), "UNSUPPORTED_FORMAT"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorCode(tt.err), "%v", tt.err)
	}
	assert.Equal(t, "", ErrorCode(nil))
}
