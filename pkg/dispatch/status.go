package dispatch

import (
	"errors"

	"github.com/vprint/vprint/pkg/ipp"
	"github.com/vprint/vprint/pkg/job"
	"github.com/vprint/vprint/pkg/queue"
	"github.com/vprint/vprint/pkg/server/jobs"
	"github.com/vprint/vprint/pkg/spool"
)

var (
	// ErrOperationNotSupported is returned for operation codes outside the routing table.
	ErrOperationNotSupported = errors.New("operation not supported")
	// ErrBadAttribute indicates an attribute value that cannot be interpreted.
	ErrBadAttribute = errors.New("bad attribute value")
	// ErrMissingJob indicates a job operation without job-uuid or job-uri.
	ErrMissingJob = errors.New("request does not identify a job")
)

// statusTable is checked in order; the first matching sentinel wins.
var statusTable = []struct {
	err    error
	status ipp.Status
}{
	{ipp.ErrVersionNotSupported, ipp.StatusVersionNotSupported},
	{ipp.ErrMalformedRequest, ipp.StatusBadRequest},
	{ipp.ErrPayloadTooLarge, ipp.StatusRequestEntityTooLarge},
	{spool.ErrDocumentTooLarge, ipp.StatusRequestEntityTooLarge},
	{queue.ErrQueueFull, ipp.StatusServerBusy},
	{jobs.ErrTooManyJobs, ipp.StatusServerBusy},
	{queue.ErrQueueClosed, ipp.StatusServiceUnavailable},
	{jobs.ErrNotRunning, ipp.StatusServiceUnavailable},
	{job.ErrInvalidOptions, ipp.StatusBadRequest},
	{ErrBadAttribute, ipp.StatusBadRequest},
	{ErrMissingJob, ipp.StatusBadRequest},
	{spool.ErrNoDocument, ipp.StatusBadRequest},
	{job.ErrUnsupportedFormat, ipp.StatusDocumentFormatNotSupported},
	{job.ErrJobNotFound, ipp.StatusNotFound},
	{jobs.ErrNotAwaitingDocument, ipp.StatusNotPossible},
	{job.ErrInvalidTransition, ipp.StatusNotPossible},
	{ErrOperationNotSupported, ipp.StatusOperationNotSupported},
}

// StatusFor maps an error chain to the response status code. Unknown errors
// are internal errors.
func StatusFor(err error) ipp.Status {
	if err == nil {
		return ipp.StatusOK
	}
	for _, entry := range statusTable {
		if errors.Is(err, entry.err) {
			return entry.status
		}
	}
	return ipp.StatusInternalError
}
