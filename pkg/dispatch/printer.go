package dispatch

import (
	"fmt"
	"time"

	"github.com/vprint/vprint/pkg/server/jobs"
)

// printer-state enum values.
const (
	printerIdle       = 3
	printerProcessing = 4
	printerStopped    = 5
)

// PrinterState is the printer description plus the state derived from the
// processor, shared by Get-Printer-Attributes and the admin API.
type PrinterState struct {
	Name         string        `json:"name"`
	Info         string        `json:"info,omitempty"`
	Location     string        `json:"location,omitempty"`
	MakeAndModel string        `json:"make_and_model,omitempty"`
	URI          string        `json:"uri"`
	State        int           `json:"state"`
	StateName    string        `json:"state_name"`
	Reason       string        `json:"state_reason"`
	Message      string        `json:"state_message"`
	Accepting    bool          `json:"accepting_jobs"`
	QueuedJobs   int           `json:"queued_job_count"`
	ActiveJobs   int           `json:"active_jobs"`
	Uptime       time.Duration `json:"uptime"`
}

// PrinterState reports the current printer state.
func (d *Dispatcher) PrinterState() PrinterState {
	return d.stateFrom(d.proc.Stats())
}

func (d *Dispatcher) stateFrom(stats jobs.Stats) PrinterState {
	st := PrinterState{
		Name:         d.printer.Name,
		Info:         d.printer.Info,
		Location:     d.printer.Location,
		MakeAndModel: d.printer.MakeAndModel,
		URI:          d.printer.URI,
		State:        printerIdle,
		StateName:    "idle",
		Reason:       "none",
		Message:      "idle",
		Accepting:    stats.Accepting,
		QueuedJobs:   stats.Queue.Size + stats.Queue.Reserved,
		ActiveJobs:   stats.Active,
		Uptime:       time.Since(d.started).Truncate(time.Second),
	}

	switch {
	case !d.proc.Running():
		st.State, st.StateName, st.Reason, st.Message = printerStopped, "stopped", "shutdown", "not running"
	case stats.Active > 0:
		st.State, st.StateName = printerProcessing, "processing"
		st.Message = fmt.Sprintf("processing %d job(s)", stats.Active)
	}
	if st.State != printerStopped && !stats.Accepting {
		st.Reason = "spool-area-full"
	}
	return st
}
