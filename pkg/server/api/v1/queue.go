package v1

import (
	"net/http"

	"github.com/vprint/vprint/pkg/job"
	"github.com/vprint/vprint/pkg/server/api"
)

// QueueResponse is the body of GET /api/v1/queue.
type QueueResponse struct {
	Size        int                `json:"size"`
	Capacity    int                `json:"capacity"`
	Reserved    int                `json:"reserved"`
	Peak        int                `json:"peak"`
	TotalPushed uint64             `json:"total_pushed"`
	TotalPopped uint64             `json:"total_popped"`
	Rejected    uint64             `json:"rejected"`
	Workers     int                `json:"workers"`
	ActiveJobs  int                `json:"active_jobs"`
	Unfinished  int                `json:"unfinished_jobs"`
	Accepting   bool               `json:"accepting"`
	ByStatus    map[job.Status]int `json:"by_status"`
}

// QueueHandler handles GET /api/v1/queue
func QueueHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := deps.Jobs.Stats()
		api.WriteJSON(w, http.StatusOK, QueueResponse{
			Size:        st.Queue.Size,
			Capacity:    st.Queue.Capacity,
			Reserved:    st.Queue.Reserved,
			Peak:        st.Queue.Peak,
			TotalPushed: st.Queue.TotalPushed,
			TotalPopped: st.Queue.TotalPopped,
			Rejected:    st.Queue.Rejected,
			Workers:     st.Workers,
			ActiveJobs:  st.Active,
			Unfinished:  st.Unfinished,
			Accepting:   st.Accepting,
			ByStatus:    st.ByStatus,
		})
	}
}

// PrinterHandler handles GET /api/v1/printer
func PrinterHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		api.WriteJSON(w, http.StatusOK, deps.Printer.PrinterState())
	}
}
