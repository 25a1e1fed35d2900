package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vprint/vprint/pkg/ipp"
	"github.com/vprint/vprint/pkg/job"
	"github.com/vprint/vprint/pkg/pipeline"
	"github.com/vprint/vprint/pkg/queue"
	"github.com/vprint/vprint/pkg/server/jobs"
	"github.com/vprint/vprint/pkg/spool"
)

const testMaxJobSize = 1024

type fixture struct {
	d     *Dispatcher
	proc  *jobs.Processor
	spool *spool.Store
}

func newFixture(t *testing.T, capacity int, p pipeline.Pipeline) *fixture {
	t.Helper()
	q, err := queue.New(capacity)
	require.NoError(t, err)
	store, err := spool.New(t.TempDir(), testMaxJobSize)
	require.NoError(t, err)

	if p == nil {
		p = pipeline.Func(func(_ context.Context, req *job.Request) (*job.Statistics, error) {
			return &job.Statistics{JobID: req.ID, PagesProcessed: 2}, nil
		})
	}
	proc, err := jobs.NewProcessor(jobs.Config{
		MaxConcurrentJobs: 8,
		WorkerThreads:     1,
		QueueTimeout:      time.Minute,
		JobTimeout:        time.Second,
		HistoryLimit:      10,
		CancelGrace:       time.Second,
	}, q, p, jobs.WithFinishHook(func(rec job.Record) { _ = store.Remove(rec.Request.ID) }))
	require.NoError(t, err)

	d, err := New(Config{
		Printer:           PrinterInfo{Name: "test-printer", URI: "ipp://localhost:631/printers/test-printer", Info: "Test"},
		MaxConcurrentJobs: 8,
	}, proc, store, zerolog.Nop())
	require.NoError(t, err)
	return &fixture{d: d, proc: proc, spool: store}
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	require.NoError(t, f.proc.Start(context.Background()))
	t.Cleanup(func() { _ = f.proc.Stop(context.Background()) })
}

// exchange runs req through the full decode, dispatch, encode path.
func (f *fixture) exchange(t *testing.T, req *ipp.Request) *ipp.Response {
	t.Helper()
	var in, out bytes.Buffer
	require.NoError(t, ipp.EncodeRequest(&in, req))
	require.NoError(t, f.d.Serve(context.Background(), &in, &out))
	resp, err := ipp.Decoder{}.DecodeResponse(&out)
	require.NoError(t, err)
	assert.Equal(t, req.RequestID, resp.RequestID)
	return resp
}

func jobRequest(op ipp.Operation, id job.ID) *ipp.Request {
	req := ipp.NewRequest(op, 1)
	req.Attributes.Set(ipp.AttrJobUUID, id.URN())
	return req
}

func jobIDOf(t *testing.T, resp *ipp.Response) job.ID {
	t.Helper()
	groups := resp.GroupsOf(ipp.GroupJob)
	require.Len(t, groups, 1)
	id, err := job.ParseID(groups[0].Get(ipp.AttrJobUUID))
	require.NoError(t, err)
	return id
}

func TestRoutingTableIsClosed(t *testing.T) {
	f := newFixture(t, 4, nil)
	assert.Len(t, f.d.routes, len(supportedOperations))
	for _, op := range f.d.Operations() {
		assert.Contains(t, f.d.routes, op, op.String())
	}
}

func TestCreateJobWithInvalidCopiesIsBadRequest(t *testing.T) {
	f := newFixture(t, 4, nil)
	before := f.proc.GetAllJobs()

	req := ipp.NewRequest(ipp.OpCreateJob, 7)
	req.Attributes.SetInt(ipp.AttrCopies, 0)
	resp := f.exchange(t, req)

	assert.Equal(t, ipp.StatusBadRequest, resp.Status)
	assert.Contains(t, resp.StatusMessage(), "copies")
	assert.Empty(t, resp.GroupsOf(ipp.GroupJob))
	assert.Equal(t, before, f.proc.GetAllJobs())

	entries, err := os.ReadDir(f.spool.Root())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCancelUnknownJobIsNotFound(t *testing.T) {
	f := newFixture(t, 4, nil)
	resp := f.exchange(t, jobRequest(ipp.OpCancelJob, job.NewID()))
	assert.Equal(t, ipp.StatusNotFound, resp.Status)
	assert.NotEmpty(t, resp.StatusMessage())
}

func TestPrintJobRunsToCompletion(t *testing.T) {
	f := newFixture(t, 4, nil)

	req := ipp.NewRequest(ipp.OpPrintJob, 2)
	req.Attributes.Set(ipp.AttrJobName, "invoice")
	req.Attributes.Set(ipp.AttrDocumentFormat, string(job.FormatPDF))
	req.Payload = []byte("%PDF-1.4 test")
	resp := f.exchange(t, req)
	require.Equal(t, ipp.StatusOK, resp.Status, resp.StatusMessage())
	assert.Equal(t, ipp.OpPrintJob, resp.Operation)

	id := jobIDOf(t, resp)
	assert.Equal(t, "3", resp.GroupsOf(ipp.GroupJob)[0].Get(ipp.AttrJobState))
	status, err := f.proc.GetStatus(id)
	require.NoError(t, err)
	assert.Equal(t, job.StatusQueued, status)

	f.start(t)
	require.Eventually(t, func() bool {
		s, err := f.proc.GetStatus(id)
		return err == nil && s == job.StatusCompleted
	}, 2*time.Second, 5*time.Millisecond)

	resp = f.exchange(t, jobRequest(ipp.OpGetJobAttributes, id))
	require.Equal(t, ipp.StatusOK, resp.Status)
	attrs := resp.GroupsOf(ipp.GroupJob)[0]
	assert.Equal(t, "9", attrs.Get(ipp.AttrJobState))
	assert.Equal(t, "invoice", attrs.Get(ipp.AttrJobName))
	assert.Equal(t, "2", attrs.Get(ipp.AttrPagesProcessed))

	assert.Eventually(t, func() bool {
		_, err := os.Stat(f.spool.Path(id))
		return os.IsNotExist(err)
	}, time.Second, 5*time.Millisecond, "spool file removed after completion")
}

func TestStreamedUpload(t *testing.T) {
	f := newFixture(t, 4, nil)

	resp := f.exchange(t, ipp.NewRequest(ipp.OpCreateJob, 3))
	require.Equal(t, ipp.StatusOK, resp.Status, resp.StatusMessage())
	id := jobIDOf(t, resp)
	attrs := resp.GroupsOf(ipp.GroupJob)[0]
	assert.Equal(t, "4", attrs.Get(ipp.AttrJobState))
	assert.Equal(t, "job-incoming", attrs.Get(ipp.AttrJobStateReasons))

	// Closing with no data is refused and keeps the reservation.
	resp = f.exchange(t, jobRequest(ipp.OpCloseJob, id))
	assert.Equal(t, ipp.StatusBadRequest, resp.Status)

	send := jobRequest(ipp.OpSendDocument, id)
	send.Payload = []byte("%!PS-Adobe-3.0\n")
	resp = f.exchange(t, send)
	require.Equal(t, ipp.StatusOK, resp.Status, resp.StatusMessage())

	send = jobRequest(ipp.OpSendDocument, id)
	send.Payload = []byte("%%Page: 1 1\nshowpage\n")
	send.Attributes.SetBool(ipp.AttrLastDocument, true)
	resp = f.exchange(t, send)
	require.Equal(t, ipp.StatusOK, resp.Status, resp.StatusMessage())
	assert.Equal(t, "3", resp.GroupsOf(ipp.GroupJob)[0].Get(ipp.AttrJobState))

	size, err := f.spool.Size(id)
	require.NoError(t, err)
	assert.Equal(t, int64(len("%!PS-Adobe-3.0\n%%Page: 1 1\nshowpage\n")), size)

	resp = f.exchange(t, jobRequest(ipp.OpCloseJob, id))
	assert.Equal(t, ipp.StatusNotPossible, resp.Status)
}

func TestSendDocumentOverLimitDiscardsJob(t *testing.T) {
	f := newFixture(t, 4, nil)

	resp := f.exchange(t, ipp.NewRequest(ipp.OpCreateJob, 4))
	require.Equal(t, ipp.StatusOK, resp.Status)
	id := jobIDOf(t, resp)

	for _, size := range []int{600, 600} {
		send := jobRequest(ipp.OpSendDocument, id)
		send.Payload = bytes.Repeat([]byte("x"), size)
		resp = f.exchange(t, send)
	}
	assert.Equal(t, ipp.StatusRequestEntityTooLarge, resp.Status)

	rec, err := f.proc.GetJob(id)
	require.NoError(t, err)
	assert.Equal(t, job.StatusAborted, rec.Status)
	assert.Equal(t, 0, f.proc.Stats().Queue.Reserved)
}

func TestPayloadOverLimitIsRejectedAtDecode(t *testing.T) {
	f := newFixture(t, 4, nil)

	req := ipp.NewRequest(ipp.OpPrintJob, 5)
	req.Payload = bytes.Repeat([]byte("x"), testMaxJobSize+1)
	resp := f.exchange(t, req)
	assert.Equal(t, ipp.StatusRequestEntityTooLarge, resp.Status)
	assert.Empty(t, f.proc.GetAllJobs())
}

func TestSendDocumentPayloadOverLimitDiscardsJob(t *testing.T) {
	f := newFixture(t, 4, nil)

	resp := f.exchange(t, ipp.NewRequest(ipp.OpCreateJob, 4))
	require.Equal(t, ipp.StatusOK, resp.Status)
	id := jobIDOf(t, resp)

	send := jobRequest(ipp.OpSendDocument, id)
	send.Payload = bytes.Repeat([]byte("x"), testMaxJobSize+1)
	resp = f.exchange(t, send)
	assert.Equal(t, ipp.StatusRequestEntityTooLarge, resp.Status)

	rec, err := f.proc.GetJob(id)
	require.NoError(t, err)
	assert.Equal(t, job.StatusAborted, rec.Status)
	assert.Equal(t, 0, f.proc.Stats().Queue.Reserved)
	_, err = os.Stat(f.spool.Path(id))
	assert.True(t, os.IsNotExist(err))
}

func TestGetJobAttributesReportsInterveningJobs(t *testing.T) {
	f := newFixture(t, 4, nil)

	var ids []job.ID
	for i := 0; i < 3; i++ {
		req := ipp.NewRequest(ipp.OpPrintJob, uint16(10+i))
		req.Payload = []byte("%PDF-1.4")
		resp := f.exchange(t, req)
		require.Equal(t, ipp.StatusOK, resp.Status)
		ids = append(ids, jobIDOf(t, resp))
	}

	for want, id := range ids {
		resp := f.exchange(t, jobRequest(ipp.OpGetJobAttributes, id))
		require.Equal(t, ipp.StatusOK, resp.Status)
		groups := resp.GroupsOf(ipp.GroupJob)
		require.Len(t, groups, 1)
		assert.Equal(t, fmt.Sprint(want), groups[0].Get(ipp.AttrInterveningJobs))
	}
	assert.Equal(t, 1, f.proc.QueuePosition(ids[1]))

	_, err := f.proc.CancelJob(ids[0])
	require.NoError(t, err)
	assert.Equal(t, 0, f.proc.QueuePosition(ids[1]))
	assert.Equal(t, -1, f.proc.QueuePosition(ids[0]))
}

func TestUnknownOperationIsNotSupported(t *testing.T) {
	f := newFixture(t, 4, nil)
	resp := f.exchange(t, ipp.NewRequest(ipp.Operation(0x0031), 9))
	assert.Equal(t, ipp.StatusOperationNotSupported, resp.Status)
	assert.Empty(t, f.proc.GetAllJobs())
}

func TestDecodeFailures(t *testing.T) {
	f := newFixture(t, 4, nil)

	var out bytes.Buffer
	require.NoError(t, f.d.Serve(context.Background(), bytes.NewReader([]byte{1, 1, 0}), &out))
	resp, err := ipp.Decoder{}.DecodeResponse(&out)
	require.NoError(t, err)
	assert.Equal(t, ipp.StatusBadRequest, resp.Status)

	out.Reset()
	req := ipp.NewRequest(ipp.OpGetJobs, 77)
	req.Version = ipp.Version{Major: 3}
	var in bytes.Buffer
	require.NoError(t, ipp.EncodeRequest(&in, req))
	require.NoError(t, f.d.Serve(context.Background(), &in, &out))
	resp, err = ipp.Decoder{}.DecodeResponse(&out)
	require.NoError(t, err)
	assert.Equal(t, ipp.StatusVersionNotSupported, resp.Status)
	assert.Equal(t, uint16(77), resp.RequestID)
	assert.Equal(t, ipp.DefaultVersion, resp.Version)
}

func TestQueueFullIsServerBusy(t *testing.T) {
	f := newFixture(t, 1, nil)

	req := ipp.NewRequest(ipp.OpPrintJob, 1)
	req.Payload = []byte("%PDF-1.4")
	require.Equal(t, ipp.StatusOK, f.exchange(t, req).Status)

	resp := f.exchange(t, ipp.NewRequest(ipp.OpCreateJob, 2))
	assert.Equal(t, ipp.StatusServerBusy, resp.Status)
	assert.Len(t, f.proc.GetAllJobs(), 1)
}

func TestUnsupportedDocumentFormat(t *testing.T) {
	f := newFixture(t, 4, nil)
	req := ipp.NewRequest(ipp.OpCreateJob, 1)
	req.Attributes.Set(ipp.AttrDocumentFormat, "image/png")
	resp := f.exchange(t, req)
	assert.Equal(t, ipp.StatusDocumentFormatNotSupported, resp.Status)
}

func TestValidateJobNeverMutates(t *testing.T) {
	f := newFixture(t, 4, nil)

	ok := ipp.NewRequest(ipp.OpValidateJob, 1)
	ok.Attributes.SetInt(ipp.AttrCopies, 2)
	ok.Attributes.SetInt(ipp.AttrNumberUp, 4)
	assert.Equal(t, ipp.StatusOK, f.exchange(t, ok).Status)

	bad := ipp.NewRequest(ipp.OpValidateJob, 2)
	bad.Attributes.SetInt(ipp.AttrNumberUp, 3)
	assert.Equal(t, ipp.StatusBadRequest, f.exchange(t, bad).Status)

	assert.Empty(t, f.proc.GetAllJobs())
	assert.Equal(t, 0, f.proc.Stats().Queue.Size)
}

func TestGetJobsFilters(t *testing.T) {
	f := newFixture(t, 8, nil)

	var ids []job.ID
	for range 3 {
		resp := f.exchange(t, ipp.NewRequest(ipp.OpCreateJob, 1))
		require.Equal(t, ipp.StatusOK, resp.Status)
		ids = append(ids, jobIDOf(t, resp))
	}
	require.Equal(t, ipp.StatusOK, f.exchange(t, jobRequest(ipp.OpCancelJob, ids[0])).Status)

	count := func(which string, limit int) int {
		req := ipp.NewRequest(ipp.OpGetJobs, 1)
		if which != "" {
			req.Attributes.Set(ipp.AttrWhichJobs, which)
		}
		if limit > 0 {
			req.Attributes.SetInt(ipp.AttrLimit, limit)
		}
		resp := f.exchange(t, req)
		require.Equal(t, ipp.StatusOK, resp.Status, resp.StatusMessage())
		return len(resp.GroupsOf(ipp.GroupJob))
	}
	assert.Equal(t, 2, count("", 0))
	assert.Equal(t, 1, count("completed", 0))
	assert.Equal(t, 3, count("all", 0))
	assert.Equal(t, 2, count("all", 2))

	bad := ipp.NewRequest(ipp.OpGetJobs, 1)
	bad.Attributes.Set(ipp.AttrWhichJobs, "someday")
	assert.Equal(t, ipp.StatusBadRequest, f.exchange(t, bad).Status)
}

func TestHoldAndReleaseOperations(t *testing.T) {
	f := newFixture(t, 4, nil)

	req := ipp.NewRequest(ipp.OpPrintJob, 1)
	req.Payload = []byte("%PDF-1.4")
	id := jobIDOf(t, f.exchange(t, req))

	resp := f.exchange(t, jobRequest(ipp.OpHoldJob, id))
	require.Equal(t, ipp.StatusOK, resp.Status, resp.StatusMessage())
	assert.Equal(t, "4", resp.GroupsOf(ipp.GroupJob)[0].Get(ipp.AttrJobState))

	assert.Equal(t, ipp.StatusNotPossible, f.exchange(t, jobRequest(ipp.OpHoldJob, id)).Status)

	resp = f.exchange(t, jobRequest(ipp.OpReleaseJob, id))
	require.Equal(t, ipp.StatusOK, resp.Status, resp.StatusMessage())
	assert.Equal(t, "3", resp.GroupsOf(ipp.GroupJob)[0].Get(ipp.AttrJobState))

	assert.Equal(t, ipp.StatusNotFound, f.exchange(t, jobRequest(ipp.OpHoldJob, job.NewID())).Status)
	assert.Equal(t, ipp.StatusBadRequest, f.exchange(t, ipp.NewRequest(ipp.OpReleaseJob, 1)).Status)
}

func TestGetPrinterAttributes(t *testing.T) {
	f := newFixture(t, 4, nil)
	f.start(t)

	resp := f.exchange(t, ipp.NewRequest(ipp.OpGetPrinterAttributes, 11))
	require.Equal(t, ipp.StatusOK, resp.Status)

	printers := resp.GroupsOf(ipp.GroupPrinter)
	require.Len(t, printers, 1)
	p := printers[0]
	assert.Equal(t, "test-printer", p.Get("printer-name"))
	assert.Equal(t, "3", p.Get("printer-state"))
	assert.Equal(t, "true", p.Get("printer-is-accepting-jobs"))
	assert.Equal(t, "0", p.Get("queued-job-count"))
	assert.Equal(t, []string{"1", "2", "4", "6", "8"}, p["number-up-supported"])
	assert.Contains(t, p["operations-supported"], "5")
	assert.Contains(t, p["document-format-supported"], string(job.FormatPDF))
}

func TestJobURIIdentifiesJob(t *testing.T) {
	f := newFixture(t, 4, nil)
	resp := f.exchange(t, ipp.NewRequest(ipp.OpCreateJob, 1))
	require.Equal(t, ipp.StatusOK, resp.Status)
	uri := resp.GroupsOf(ipp.GroupJob)[0].Get(ipp.AttrJobURI)
	assert.Equal(t, "ipp://localhost:631/printers/test-printer/jobs/"+jobIDOf(t, resp).String(), uri)

	req := ipp.NewRequest(ipp.OpGetJobAttributes, 2)
	req.Attributes.Set(ipp.AttrJobURI, uri)
	assert.Equal(t, ipp.StatusOK, f.exchange(t, req).Status)
}
