package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vprint/vprint/pkg/job"
)

func TestSpooler_ProcessPDF(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	req := job.NewRequest(writePDF(t, dir, 5), job.FormatPDF)
	req.Options.Copies = 2
	req.Options.PagesPerSheet = 2
	req.Options.Duplex = job.DuplexLongEdge

	sp := NewSpooler(WithOutputDir(out), WithRetryConfig(NoRetry()))
	stats, err := sp.Process(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, req.ID, stats.JobID)
	require.Equal(t, 10, stats.PagesProcessed)
	// 5 pages 2-up is 3 sides, duplex is 2 sheets, times 2 copies.
	require.Equal(t, 4, stats.SheetsPrinted)
	require.Positive(t, stats.BytesProcessed)
	require.InDelta(t, 1.0, stats.SuccessRate, 0.0001)

	ticket, err := ReadTicket(filepath.Join(out, req.ID.String()+".yaml"))
	require.NoError(t, err)
	require.Equal(t, 5, ticket.DocumentPages)
	require.Equal(t, 6, ticket.Impressions)
	require.Equal(t, string(job.FormatPDF), ticket.Format)
}

func TestSpooler_PageRange(t *testing.T) {
	dir := t.TempDir()
	req := job.NewRequest(writePostScript(t, dir, 6), job.FormatAuto)
	req.Options.PageRange = &job.PageRange{Start: 2, End: 4}

	stats, err := NewSpooler().Process(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 3, stats.PagesProcessed)
}

func TestSpooler_PageRangeBeyondDocument(t *testing.T) {
	dir := t.TempDir()
	req := job.NewRequest(writePostScript(t, dir, 2), job.FormatPostScript)
	req.Options.PageRange = &job.PageRange{Start: 1, End: 9}

	_, err := NewSpooler(WithRetryConfig(NoRetry())).Process(context.Background(), req)
	require.ErrorIs(t, err, job.ErrInvalidOptions)
}

func TestSpooler_FormatMismatch(t *testing.T) {
	dir := t.TempDir()
	req := job.NewRequest(writePostScript(t, dir, 1), job.FormatPDF)

	_, err := NewSpooler().Process(context.Background(), req)
	require.ErrorIs(t, err, ErrFormatMismatch)
	require.Contains(t, err.Error(), "parse:")
}

func TestSpooler_MissingDocument(t *testing.T) {
	req := job.NewRequest(filepath.Join(t.TempDir(), "missing.pdf"), job.FormatPDF)

	_, err := NewSpooler().Process(context.Background(), req)
	require.ErrorIs(t, err, ErrUnreadableDocument)
}

func TestSpooler_StopsWhenCancelled(t *testing.T) {
	dir := t.TempDir()
	req := job.NewRequest(writePDF(t, dir, 1), job.FormatPDF)
	cause := errors.New("cancelled by operator")
	ctx, cancel := context.WithCancelCause(context.Background())
	cancel(cause)

	_, err := NewSpooler().Process(ctx, req)
	require.ErrorIs(t, err, cause)
}

func TestFunc(t *testing.T) {
	var p Pipeline = Func(func(_ context.Context, req *job.Request) (*job.Statistics, error) {
		return &job.Statistics{JobID: req.ID}, nil
	})
	req := job.NewRequest("", job.FormatPDF)
	stats, err := p.Process(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, req.ID, stats.JobID)
}
