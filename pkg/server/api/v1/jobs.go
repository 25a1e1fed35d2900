package v1

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/vprint/vprint/pkg/job"
	"github.com/vprint/vprint/pkg/server/api"
)

// ListJobsResponse is the body of GET /api/v1/jobs.
type ListJobsResponse struct {
	Jobs  []api.JobView `json:"jobs"`
	Total int           `json:"total"` // matches before limit
}

// CancelJobResponse is the body of POST /api/v1/jobs/{id}/cancel.
type CancelJobResponse struct {
	ID     string     `json:"id"`
	Status job.Status `json:"status"`
}

// ListJobsHandler handles GET /api/v1/jobs
//
// Query parameters:
//   - status: a job state, or "active" for every unfinished job
//   - user: requesting user name
//   - limit: 1-500 (default 50)
//
// Jobs are returned in admission order.
func ListJobsHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := ParseListJobsQuery(r)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}

		recs := deps.Jobs.Jobs(q.Match)
		resp := ListJobsResponse{Jobs: make([]api.JobView, 0, min(len(recs), q.Limit)), Total: len(recs)}
		for i, rec := range recs {
			if i == q.Limit {
				break
			}
			resp.Jobs = append(resp.Jobs, api.NewJobView(rec))
		}
		api.WriteJSON(w, http.StatusOK, resp)
	}
}

// GetJobHandler handles GET /api/v1/jobs/{id}
//
// Returns 404 if the job is unknown or already evicted from history.
func GetJobHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := ParseJobID(r)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}

		rec, err := deps.Jobs.GetJob(id)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, api.NewJobView(rec))
	}
}

// CancelJobHandler handles POST /api/v1/jobs/{id}/cancel
//
// Cancelling a finished job is a no-op that reports its final status.
// A running job gets the processor's grace period to stop; the handler
// timeout applies only when the request carries no deadline.
func CancelJobHandler(deps *api.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := ParseJobID(r)
		if err != nil {
			api.WriteError(w, r, err)
			return
		}

		ctx := r.Context()
		if _, hasDeadline := ctx.Deadline(); !hasDeadline && deps.Config.HandlerTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, deps.Config.HandlerTimeout)
			defer cancel()
		}

		type result struct {
			status job.Status
			err    error
		}
		done := make(chan result, 1)
		go func() {
			st, err := deps.Jobs.CancelJob(id)
			done <- result{st, err}
		}()

		select {
		case res := <-done:
			if res.err != nil {
				api.WriteError(w, r, res.err)
				return
			}
			log.Info().
				Str("component", "api").
				Str("job_id", id.String()).
				Str("status", res.status.String()).
				Msg("Job cancelled via API")
			api.WriteJSON(w, http.StatusOK, CancelJobResponse{ID: id.String(), Status: res.status})
		case <-ctx.Done():
			api.WriteJSONError(w, http.StatusGatewayTimeout, "Gateway Timeout",
				"cancel did not complete within "+deps.Config.HandlerTimeout.String())
		}
	}
}
