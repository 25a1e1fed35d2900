package api

import (
	"sync/atomic"
	"time"

	"github.com/vprint/vprint/pkg/dispatch"
	"github.com/vprint/vprint/pkg/event"
	"github.com/vprint/vprint/pkg/job"
	"github.com/vprint/vprint/pkg/server/jobs"
)

// Deps holds dependencies for API handlers.
// This pattern enables dependency injection and easier testing.
type Deps struct {
	// Jobs is the job processor
	Jobs JobService

	// Printer reports the printer description and derived state
	Printer PrinterService

	// Events feeds the websocket stream (nil disables it)
	Events EventSource

	Config Config

	// Ready flag for readiness check
	Ready *atomic.Bool
}

// JobService is the subset of the processor the API needs.
type JobService interface {
	Jobs(filter func(job.Record) bool) []job.Record
	GetJob(id job.ID) (job.Record, error)
	CancelJob(id job.ID) (job.Status, error)
	Stats() jobs.Stats
}

// PrinterService reports printer state.
type PrinterService interface {
	PrinterState() dispatch.PrinterState
}

// EventSource delivers bus events to subscribers.
type EventSource interface {
	Subscribe(topic string, h event.Handler) func()
}

var (
	_ JobService     = (*jobs.Processor)(nil)
	_ PrinterService = (*dispatch.Dispatcher)(nil)
	_ EventSource    = (*event.Bus)(nil)
)

// JobView is the JSON shape of a job.
type JobView struct {
	ID          string           `json:"id"`
	Name        string           `json:"name,omitempty"`
	User        string           `json:"user,omitempty"`
	Status      job.Status       `json:"status"`
	Reason      string           `json:"reason,omitempty"`
	Format      string           `json:"format"`
	Priority    job.Priority     `json:"priority"`
	Options     job.PrintOptions `json:"options"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Error       string           `json:"error,omitempty"`
	Statistics  *job.Statistics  `json:"statistics,omitempty"`
}

// NewJobView converts a processor record.
func NewJobView(rec job.Record) JobView {
	v := JobView{
		ID:         rec.Request.ID.String(),
		Name:       rec.Request.Name,
		User:       rec.Request.User,
		Status:     rec.Status,
		Reason:     rec.Reason,
		Format:     string(rec.Request.Format),
		Priority:   rec.Request.Priority,
		Options:    rec.Request.Options,
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
		Error:      rec.LastError,
		Statistics: rec.Statistics,
	}
	if !rec.StartedAt.IsZero() {
		t := rec.StartedAt
		v.StartedAt = &t
	}
	if !rec.CompletedAt.IsZero() {
		t := rec.CompletedAt
		v.CompletedAt = &t
	}
	return v
}
