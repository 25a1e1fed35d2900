package httpx

import (
	"net/http"

	"github.com/vprint/vprint/pkg/config"
	"github.com/vprint/vprint/pkg/server/api"
	v1 "github.com/vprint/vprint/pkg/server/api/v1"
)

// NewRouter creates the admin HTTP router.
//
// Health endpoints are always mounted. The REST API and the event stream
// follow cfg.APIEnabled and cfg.EventsEnabled.
func NewRouter(cfg config.AdminConfig, deps *api.Deps) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", HealthzHandler)
	mux.HandleFunc("GET /readyz", v1.ReadyzHandler(deps))

	if cfg.APIEnabled {
		mux.HandleFunc("GET /api/v1/jobs", v1.ListJobsHandler(deps))
		mux.HandleFunc("GET /api/v1/jobs/{id}", v1.GetJobHandler(deps))
		mux.HandleFunc("POST /api/v1/jobs/{id}/cancel", v1.CancelJobHandler(deps))
		mux.HandleFunc("GET /api/v1/queue", v1.QueueHandler(deps))
		mux.HandleFunc("GET /api/v1/printer", v1.PrinterHandler(deps))
	}
	if cfg.EventsEnabled {
		mux.HandleFunc("GET /api/v1/events", v1.EventsHandler(deps))
	}

	return mux
}

// HealthzHandler responds with 200 OK if the server process is alive.
// It does not look at the printer or the workers; use /readyz for that.
func HealthzHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
