package job

import (
	"fmt"
	"strings"
)

// Status is a job's lifecycle state. A job has exactly one status at a time.
type Status int

const (
	StatusQueued Status = iota + 1
	StatusProcessing
	StatusCompleted
	StatusCancelled
	StatusFailed
	StatusHeld
	StatusAborted
)

var statusNames = map[Status]string{
	StatusQueued:     "queued",
	StatusProcessing: "processing",
	StatusCompleted:  "completed",
	StatusCancelled:  "cancelled",
	StatusFailed:     "failed",
	StatusHeld:       "held",
	StatusAborted:    "aborted",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// ParseStatus parses the String form of a status.
func ParseStatus(s string) (Status, error) {
	for st, name := range statusNames {
		if strings.EqualFold(name, s) {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown job status %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(b []byte) error {
	st, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusFailed, StatusAborted:
		return true
	default:
		return false
	}
}

// CanTransition reports whether the lifecycle allows moving from s to next.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusQueued:
		return next == StatusProcessing || next == StatusCancelled ||
			next == StatusHeld || next == StatusAborted
	case StatusHeld:
		return next == StatusQueued || next == StatusCancelled || next == StatusAborted
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed ||
			next == StatusCancelled || next == StatusAborted
	default:
		return false
	}
}

// IPP job-state enum values (RFC 8011 section 5.3.7).
const (
	StatePending    = 3
	StateHeld       = 4
	StateProcessing = 5
	StateStopped    = 6
	StateCanceled   = 7
	StateAborted    = 8
	StateCompleted  = 9
)

// IPPState maps s to the job-state enum.
func (s Status) IPPState() int {
	switch s {
	case StatusQueued:
		return StatePending
	case StatusHeld:
		return StateHeld
	case StatusProcessing:
		return StateProcessing
	case StatusCancelled:
		return StateCanceled
	case StatusFailed, StatusAborted:
		return StateAborted
	case StatusCompleted:
		return StateCompleted
	default:
		return StatePending
	}
}

// Priority orders jobs for operators. The queue does not consult it.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityUrgent
)

var priorityNames = map[Priority]string{
	PriorityLow:    "low",
	PriorityNormal: "normal",
	PriorityHigh:   "high",
	PriorityUrgent: "urgent",
}

func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

// ParsePriority parses the String form of a priority.
func ParsePriority(s string) (Priority, error) {
	for p, name := range priorityNames {
		if strings.EqualFold(name, s) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown job priority %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Priority) UnmarshalText(b []byte) error {
	v, err := ParsePriority(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// PriorityFromIPP maps a job-priority value (1..100) to a Priority.
// Out of range values are clamped.
func PriorityFromIPP(v int) Priority {
	switch {
	case v <= 25:
		return PriorityLow
	case v <= 50:
		return PriorityNormal
	case v <= 75:
		return PriorityHigh
	default:
		return PriorityUrgent
	}
}

// IPP returns the job-priority value reported for p.
func (p Priority) IPP() int {
	switch p {
	case PriorityLow:
		return 25
	case PriorityHigh:
		return 75
	case PriorityUrgent:
		return 100
	default:
		return 50
	}
}
