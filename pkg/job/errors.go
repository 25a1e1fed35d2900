package job

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidOptions indicates print options that break an admission invariant.
	ErrInvalidOptions = errors.New("invalid print options")
	// ErrUnsupportedFormat indicates a document format the pipeline cannot handle.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrJobNotFound indicates an unknown job id.
	ErrJobNotFound = errors.New("job not found")
	// ErrInvalidTransition indicates a lifecycle transition the state machine forbids.
	ErrInvalidTransition = errors.New("invalid job state transition")
)

// NotFoundError reports a lookup for an id the processor does not know.
type NotFoundError struct {
	ID ID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("job %s not found", e.ID)
}

// Is allows errors.Is(err, ErrJobNotFound).
func (e *NotFoundError) Is(target error) bool {
	return target == ErrJobNotFound
}

// TransitionError reports a refused lifecycle transition.
type TransitionError struct {
	ID   ID
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("job %s: cannot move from %s to %s", e.ID, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// IsNotFound reports whether err is a job lookup miss.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrJobNotFound)
}
