package v1

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vprint/vprint/pkg/dispatch"
	"github.com/vprint/vprint/pkg/job"
	"github.com/vprint/vprint/pkg/queue"
	"github.com/vprint/vprint/pkg/server/api"
	"github.com/vprint/vprint/pkg/server/jobs"
)

// Mock job service for testing
type mockJobs struct {
	records   []job.Record
	cancelled []job.ID
	cancelErr error
	block     chan struct{}
}

func (m *mockJobs) Jobs(filter func(job.Record) bool) []job.Record {
	var out []job.Record
	for _, r := range m.records {
		if filter(r) {
			out = append(out, r)
		}
	}
	return out
}

func (m *mockJobs) GetJob(id job.ID) (job.Record, error) {
	for _, r := range m.records {
		if r.Request.ID == id {
			return r, nil
		}
	}
	return job.Record{}, &job.NotFoundError{ID: id}
}

func (m *mockJobs) CancelJob(id job.ID) (job.Status, error) {
	if m.block != nil {
		<-m.block
	}
	if m.cancelErr != nil {
		return 0, m.cancelErr
	}
	if _, err := m.GetJob(id); err != nil {
		return 0, err
	}
	m.cancelled = append(m.cancelled, id)
	return job.StatusCancelled, nil
}

func (m *mockJobs) Stats() jobs.Stats {
	return jobs.Stats{
		Queue:     queue.Stats{Size: 1, Capacity: 10, Peak: 3, TotalPushed: 7},
		Workers:   2,
		Active:    1,
		Accepting: true,
		ByStatus:  map[job.Status]int{job.StatusQueued: 1, job.StatusProcessing: 1},
	}
}

type mockPrinter struct{ state dispatch.PrinterState }

func (m mockPrinter) PrinterState() dispatch.PrinterState { return m.state }

func record(status job.Status, user string) job.Record {
	req := job.NewRequest("", job.FormatPDF)
	req.User = user
	return job.Record{Request: *req, Status: status, CreatedAt: time.Now(), UpdatedAt: time.Now()}
}

func newDeps(m *mockJobs) *api.Deps {
	ready := &atomic.Bool{}
	ready.Store(true)
	return &api.Deps{
		Jobs:    m,
		Printer: mockPrinter{state: dispatch.PrinterState{Name: "vprint", StateName: "idle", Accepting: true}},
		Config:  api.DefaultConfig(),
		Ready:   ready,
	}
}

func serve(h http.HandlerFunc, method, pattern, target string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	mux.HandleFunc(method+" "+pattern, h)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestListJobsHandler_Success(t *testing.T) {
	m := &mockJobs{records: []job.Record{
		record(job.StatusQueued, "alice"),
		record(job.StatusCompleted, "bob"),
		record(job.StatusProcessing, "alice"),
	}}

	w := serve(ListJobsHandler(newDeps(m)), http.MethodGet, "/api/v1/jobs", "/api/v1/jobs")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp ListJobsResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Jobs, 3)
	require.Equal(t, 3, resp.Total)
	require.Equal(t, m.records[0].Request.ID.String(), resp.Jobs[0].ID)
	require.Equal(t, job.StatusQueued, resp.Jobs[0].Status)
}

func TestListJobsHandler_FiltersAndLimit(t *testing.T) {
	m := &mockJobs{records: []job.Record{
		record(job.StatusQueued, "alice"),
		record(job.StatusCompleted, "bob"),
		record(job.StatusProcessing, "alice"),
	}}
	deps := newDeps(m)

	w := serve(ListJobsHandler(deps), http.MethodGet, "/api/v1/jobs", "/api/v1/jobs?status=active&user=alice&limit=1")
	require.Equal(t, http.StatusOK, w.Code)

	var resp ListJobsResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Jobs, 1)
	require.Equal(t, 2, resp.Total)
	require.Equal(t, "alice", resp.Jobs[0].User)
}

func TestListJobsHandler_BadQuery(t *testing.T) {
	w := serve(ListJobsHandler(newDeps(&mockJobs{})), http.MethodGet, "/api/v1/jobs", "/api/v1/jobs?status=bogus")
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp api.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Contains(t, resp.Message, "status")
}

func TestGetJobHandler(t *testing.T) {
	m := &mockJobs{records: []job.Record{record(job.StatusFailed, "")}}
	m.records[0].LastError = "pipeline exploded"
	deps := newDeps(m)
	id := m.records[0].Request.ID

	w := serve(GetJobHandler(deps), http.MethodGet, "/api/v1/jobs/{id}", "/api/v1/jobs/"+id.String())
	require.Equal(t, http.StatusOK, w.Code)
	var view api.JobView
	require.NoError(t, json.NewDecoder(w.Body).Decode(&view))
	require.Equal(t, "pipeline exploded", view.Error)
	require.Nil(t, view.StartedAt)

	w = serve(GetJobHandler(deps), http.MethodGet, "/api/v1/jobs/{id}", "/api/v1/jobs/"+job.NewID().String())
	require.Equal(t, http.StatusNotFound, w.Code)

	w = serve(GetJobHandler(deps), http.MethodGet, "/api/v1/jobs/{id}", "/api/v1/jobs/not-a-uuid")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancelJobHandler(t *testing.T) {
	m := &mockJobs{records: []job.Record{record(job.StatusQueued, "")}}
	id := m.records[0].Request.ID

	w := serve(CancelJobHandler(newDeps(m)), http.MethodPost, "/api/v1/jobs/{id}/cancel", "/api/v1/jobs/"+id.String()+"/cancel")
	require.Equal(t, http.StatusOK, w.Code)

	var resp CancelJobResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Equal(t, job.StatusCancelled, resp.Status)
	require.Equal(t, []job.ID{id}, m.cancelled)

	w = serve(CancelJobHandler(newDeps(m)), http.MethodPost, "/api/v1/jobs/{id}/cancel", "/api/v1/jobs/"+job.NewID().String()+"/cancel")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancelJobHandler_Timeout(t *testing.T) {
	m := &mockJobs{records: []job.Record{record(job.StatusProcessing, "")}, block: make(chan struct{})}
	defer close(m.block)
	deps := newDeps(m)
	deps.Config.HandlerTimeout = 20 * time.Millisecond
	id := m.records[0].Request.ID

	w := serve(CancelJobHandler(deps), http.MethodPost, "/api/v1/jobs/{id}/cancel", "/api/v1/jobs/"+id.String()+"/cancel")
	require.Equal(t, http.StatusGatewayTimeout, w.Code)
}

func TestQueueHandler(t *testing.T) {
	w := serve(QueueHandler(newDeps(&mockJobs{})), http.MethodGet, "/api/v1/queue", "/api/v1/queue")
	require.Equal(t, http.StatusOK, w.Code)

	var resp QueueResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Equal(t, 1, resp.Size)
	require.Equal(t, 10, resp.Capacity)
	require.Equal(t, 3, resp.Peak)
	require.Equal(t, uint64(7), resp.TotalPushed)
	require.Equal(t, 1, resp.ByStatus[job.StatusProcessing])
}

func TestPrinterHandler(t *testing.T) {
	w := serve(PrinterHandler(newDeps(&mockJobs{})), http.MethodGet, "/api/v1/printer", "/api/v1/printer")
	require.Equal(t, http.StatusOK, w.Code)

	var st dispatch.PrinterState
	require.NoError(t, json.NewDecoder(w.Body).Decode(&st))
	require.Equal(t, "vprint", st.Name)
	require.True(t, st.Accepting)
}

func TestReadyzHandler(t *testing.T) {
	deps := newDeps(&mockJobs{})
	w := serve(ReadyzHandler(deps), http.MethodGet, "/readyz", "/readyz")
	require.Equal(t, http.StatusOK, w.Code)

	deps.Ready.Store(false)
	w = serve(ReadyzHandler(deps), http.MethodGet, "/readyz", "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	deps.Ready.Store(true)
	deps.Printer = mockPrinter{state: dispatch.PrinterState{StateName: "stopped"}}
	w = serve(ReadyzHandler(deps), http.MethodGet, "/readyz", "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp ReadinessResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Equal(t, "stopped", resp.Printer)
}
