package jobs

import "context"

// Manager is the lifecycle surface the server runtime drives.
type Manager interface {
	// Start launches the worker pool. It returns immediately.
	Start(ctx context.Context) error

	// Stop drains the pool. Waits for in-flight jobs to stop or ctx to expire.
	Stop(ctx context.Context) error
}

var _ Manager = (*Processor)(nil)
