package v1

import (
	"net/http"

	"github.com/vprint/vprint/pkg/server/api"
)

// ReadinessResponse is the body of GET /readyz.
type ReadinessResponse struct {
	Ready     bool   `json:"ready"`
	Printer   string `json:"printer_state,omitempty"`
	Accepting bool   `json:"accepting_jobs"`
}

// ReadyzHandler returns 200 once the app has started the printer listener
// and workers, 503 otherwise or while the printer is stopped.
func ReadyzHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := ReadinessResponse{Ready: deps.Ready != nil && deps.Ready.Load()}
		if deps.Printer != nil {
			st := deps.Printer.PrinterState()
			resp.Printer = st.StateName
			resp.Accepting = st.Accepting
			if st.StateName == "stopped" {
				resp.Ready = false
			}
		}

		code := http.StatusOK
		if !resp.Ready {
			code = http.StatusServiceUnavailable
		}
		api.WriteJSON(w, code, resp)
	}
}
