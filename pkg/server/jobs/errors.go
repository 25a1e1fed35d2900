package jobs

import "errors"

var (
	// ErrInvalidConfiguration indicates zero-valued limits. The processor is not built.
	ErrInvalidConfiguration = errors.New("invalid job processor configuration")
	// ErrTooManyJobs indicates the admission bound on unfinished jobs was reached.
	ErrTooManyJobs = errors.New("too many unfinished jobs")
	// ErrJobTimeout is the failure recorded for jobs exceeding the per-job timeout.
	ErrJobTimeout = errors.New("job exceeded processing timeout")
	// ErrCancelled is the cancellation cause delivered to a running pipeline.
	ErrCancelled = errors.New("job cancelled")
	// ErrShutdown is the cancellation cause delivered when the processor stops.
	ErrShutdown = errors.New("job processor shutting down")
	// ErrNotAwaitingDocument indicates a document operation on a job that is not receiving one.
	ErrNotAwaitingDocument = errors.New("job is not awaiting document data")
	// ErrReservationExpired is recorded for reservations that outlived the queue timeout.
	ErrReservationExpired = errors.New("document upload not completed within queue timeout")
	// ErrNotRunning indicates an operation on a processor that is not started or already stopped.
	ErrNotRunning = errors.New("job processor is not running")
	// ErrPipelinePanic wraps a panic recovered from the pipeline.
	ErrPipelinePanic = errors.New("pipeline panicked")
)
