package v1

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/vprint/vprint/pkg/job"
	"github.com/vprint/vprint/pkg/server/api"
)

var validate = validator.New()

// DefaultListLimit applies when GET /api/v1/jobs omits limit.
const DefaultListLimit = 50

// ListJobsQuery represents supported query params for GET /api/v1/jobs
type ListJobsQuery struct {
	Status job.Status // zero means any
	Active bool       // only non-terminal jobs
	User   string
	Limit  int
}

// Match reports whether rec passes the filter.
func (q *ListJobsQuery) Match(rec job.Record) bool {
	if q.Status != 0 && rec.Status != q.Status {
		return false
	}
	if q.Active && rec.Status.Terminal() {
		return false
	}
	if q.User != "" && rec.Request.User != q.User {
		return false
	}
	return true
}

// ParseListJobsQuery parses and validates query params.
// Returns validated query with Limit=50 when omitted.
func ParseListJobsQuery(r *http.Request) (*ListJobsQuery, error) {
	q := r.URL.Query()
	var res ListJobsQuery

	if v := strings.TrimSpace(q.Get("status")); v != "" {
		if v == "active" {
			res.Active = true
		} else {
			if err := validate.Var(v, "oneof=queued processing held completed cancelled failed aborted"); err != nil {
				return nil, &ValidationError{Field: "status", Reason: "must be one of: active,queued,processing,held,completed,cancelled,failed,aborted"}
			}
			st, err := job.ParseStatus(v)
			if err != nil {
				return nil, &ValidationError{Field: "status", Reason: err.Error()}
			}
			res.Status = st
		}
	}

	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, &ValidationError{Field: "limit", Reason: "must be an integer"}
		}
		if err := validate.Var(n, "min=1,max=500"); err != nil {
			return nil, &ValidationError{Field: "limit", Reason: "must be between 1 and 500"}
		}
		res.Limit = n
	}

	if v := strings.TrimSpace(q.Get("user")); v != "" {
		if err := validate.Var(v, "max=255,printascii"); err != nil {
			return nil, &ValidationError{Field: "user", Reason: "must be printable ASCII up to 255 characters"}
		}
		res.User = v
	}

	if res.Limit == 0 {
		res.Limit = DefaultListLimit
	}
	return &res, nil
}

// ParseJobID validates the {id} path value.
func ParseJobID(r *http.Request) (job.ID, error) {
	raw := strings.TrimSpace(r.PathValue("id"))
	if raw == "" {
		return job.ID{}, &ValidationError{Field: "id", Reason: "required"}
	}
	id, err := job.ParseID(raw)
	if err != nil {
		return job.ID{}, &ValidationError{Field: "id", Reason: "must be a job uuid"}
	}
	return id, nil
}

// ValidationError is a lightweight error used for 400 responses.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field == "" {
		return "validation failed"
	}
	if e.Reason == "" {
		return e.Field + ": invalid"
	}
	return e.Field + ": " + e.Reason
}

// Unwrap lets api.WriteError answer 400.
func (e *ValidationError) Unwrap() error { return api.ErrBadRequest }
