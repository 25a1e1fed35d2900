package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/spf13/cast"

	"github.com/vprint/vprint/pkg/ipp"
	"github.com/vprint/vprint/pkg/job"
	"github.com/vprint/vprint/pkg/server/jobs"
	"github.com/vprint/vprint/pkg/spool"
	"github.com/vprint/vprint/pkg/version"
)

func (d *Dispatcher) buildValidated(attrs ipp.Attributes) (*job.Request, error) {
	jreq, err := BuildRequest(attrs, d.printer.Name)
	if err != nil {
		return nil, err
	}
	if err := job.Validate(jreq.Options); err != nil {
		return nil, err
	}
	return jreq, nil
}

func (d *Dispatcher) validateJob(_ context.Context, req *ipp.Request, _ *ipp.Response) error {
	_, err := d.buildValidated(req.Attributes)
	return err
}

func (d *Dispatcher) createJob(_ context.Context, req *ipp.Request, resp *ipp.Response) error {
	jreq, err := d.buildValidated(req.Attributes)
	if err != nil {
		return err
	}
	if len(req.Payload) > 0 {
		err = d.admitWithDocument(jreq, req.Payload)
	} else {
		err = d.reserve(jreq)
	}
	if err != nil {
		return err
	}
	return d.respondJob(resp, jreq.ID)
}

func (d *Dispatcher) printJob(_ context.Context, req *ipp.Request, resp *ipp.Response) error {
	if len(req.Payload) == 0 {
		return fmt.Errorf("%w: %s requires document data", spool.ErrNoDocument, req.Operation)
	}
	jreq, err := d.buildValidated(req.Attributes)
	if err != nil {
		return err
	}
	if err := d.admitWithDocument(jreq, req.Payload); err != nil {
		return err
	}
	return d.respondJob(resp, jreq.ID)
}

// admitWithDocument spools payload and admits the job as Queued. On failure
// the spool file is removed and no record is left.
func (d *Dispatcher) admitWithDocument(jreq *job.Request, payload []byte) error {
	path, err := d.spool.Create(jreq.ID)
	if err != nil {
		return err
	}
	jreq.DocumentPath = path
	if _, err := d.spool.Append(jreq.ID, bytes.NewReader(payload)); err != nil {
		_ = d.spool.Remove(jreq.ID)
		return err
	}
	if err := d.proc.AddJob(jreq); err != nil {
		_ = d.spool.Remove(jreq.ID)
		return err
	}
	d.logger.Info().
		Str("job_id", jreq.ID.String()).
		Int("bytes", len(payload)).
		Msg("Job accepted")
	return nil
}

// reserve admits a job whose document follows in Send-Document requests.
func (d *Dispatcher) reserve(jreq *job.Request) error {
	path, err := d.spool.Create(jreq.ID)
	if err != nil {
		return err
	}
	jreq.DocumentPath = path
	if err := d.proc.Reserve(jreq); err != nil {
		_ = d.spool.Remove(jreq.ID)
		return err
	}
	d.logger.Info().Str("job_id", jreq.ID.String()).Msg("Job created, awaiting document")
	return nil
}

func (d *Dispatcher) sendDocument(_ context.Context, req *ipp.Request, resp *ipp.Response) error {
	id, err := d.awaitingJob(req.Attributes)
	if err != nil {
		return err
	}

	if len(req.Payload) > 0 {
		if _, err := d.spool.Append(id, bytes.NewReader(req.Payload)); err != nil {
			// An oversized or unwritable document ends the job.
			_ = d.proc.Discard(id, err)
			_ = d.spool.Remove(id)
			return err
		}
	}

	last, _, err := req.Attributes.Bool(ipp.AttrLastDocument)
	if err != nil {
		return badAttribute(ipp.AttrLastDocument, err)
	}
	if last {
		if err := d.finalize(id); err != nil {
			return err
		}
	}
	return d.respondJob(resp, id)
}

func (d *Dispatcher) closeJob(_ context.Context, req *ipp.Request, resp *ipp.Response) error {
	id, err := d.awaitingJob(req.Attributes)
	if err != nil {
		return err
	}
	if err := d.finalize(id); err != nil {
		return err
	}
	return d.respondJob(resp, id)
}

// awaitingJob resolves the target job and checks it is still receiving data.
func (d *Dispatcher) awaitingJob(attrs ipp.Attributes) (job.ID, error) {
	id, err := jobIDFrom(attrs)
	if err != nil {
		return id, err
	}
	awaiting, err := d.proc.AwaitingDocument(id)
	if err != nil {
		return id, err
	}
	if !awaiting {
		return id, fmt.Errorf("%w: %s", jobs.ErrNotAwaitingDocument, id)
	}
	return id, nil
}

func (d *Dispatcher) finalize(id job.ID) error {
	size, err := d.spool.Size(id)
	if err != nil {
		return err
	}
	if size == 0 {
		return fmt.Errorf("%w: document for %s is empty", spool.ErrNoDocument, id)
	}
	return d.proc.MarkReady(id)
}

func (d *Dispatcher) cancelJob(_ context.Context, req *ipp.Request, resp *ipp.Response) error {
	id, err := jobIDFrom(req.Attributes)
	if err != nil {
		return err
	}
	if _, err := d.proc.CancelJob(id); err != nil {
		return err
	}
	return d.respondJob(resp, id)
}

func (d *Dispatcher) holdJob(_ context.Context, req *ipp.Request, resp *ipp.Response) error {
	id, err := jobIDFrom(req.Attributes)
	if err != nil {
		return err
	}
	if err := d.proc.HoldJob(id); err != nil {
		return err
	}
	return d.respondJob(resp, id)
}

func (d *Dispatcher) releaseJob(_ context.Context, req *ipp.Request, resp *ipp.Response) error {
	id, err := jobIDFrom(req.Attributes)
	if err != nil {
		return err
	}
	if err := d.proc.ReleaseJob(id); err != nil {
		return err
	}
	return d.respondJob(resp, id)
}

func (d *Dispatcher) getJobAttributes(_ context.Context, req *ipp.Request, resp *ipp.Response) error {
	id, err := jobIDFrom(req.Attributes)
	if err != nil {
		return err
	}
	return d.respondJob(resp, id)
}

func (d *Dispatcher) getJobs(_ context.Context, req *ipp.Request, resp *ipp.Response) error {
	var filter func(job.Record) bool
	switch which := req.Attributes.Get(ipp.AttrWhichJobs); which {
	case "", "not-completed":
		filter = func(r job.Record) bool { return !r.Status.Terminal() }
	case "completed":
		filter = func(r job.Record) bool { return r.Status.Terminal() }
	case "all":
	default:
		return fmt.Errorf("%w: %s %q", ErrBadAttribute, ipp.AttrWhichJobs, which)
	}

	limit, hasLimit, err := req.Attributes.Int(ipp.AttrLimit)
	if err != nil || (hasLimit && limit < 1) {
		return fmt.Errorf("%w: %s must be a positive integer", ErrBadAttribute, ipp.AttrLimit)
	}
	if user := req.Attributes.Get(ipp.AttrRequestingUserName); user != "" {
		if mine, _, _ := req.Attributes.Bool("my-jobs"); mine {
			base := filter
			filter = func(r job.Record) bool { return r.Request.User == user && (base == nil || base(r)) }
		}
	}

	recs := d.proc.Jobs(filter)
	if hasLimit && len(recs) > limit {
		recs = recs[:limit]
	}
	for _, rec := range recs {
		resp.Groups = append(resp.Groups, ipp.Group{Tag: ipp.GroupJob, Attrs: d.jobAttributes(rec)})
	}
	return nil
}

func (d *Dispatcher) getPrinterAttributes(_ context.Context, _ *ipp.Request, resp *ipp.Response) error {
	stats := d.proc.Stats()
	a := resp.AddGroup(ipp.GroupPrinter)

	a.Set("printer-name", d.printer.Name)
	a.Set("printer-uri-supported", d.printer.URI)
	if d.printer.Info != "" {
		a.Set("printer-info", d.printer.Info)
	}
	if d.printer.Location != "" {
		a.Set("printer-location", d.printer.Location)
	}
	if d.printer.MakeAndModel != "" {
		a.Set("printer-make-and-model", d.printer.MakeAndModel)
	}

	st := d.stateFrom(stats)
	a.SetInt("printer-state", st.State)
	a.Set("printer-state-reasons", st.Reason)
	a.Set("printer-state-message", st.Message)
	a.SetBool("printer-is-accepting-jobs", st.Accepting)
	a.Set("printer-firmware-string-version", version.Firmware())
	a.SetInt("printer-up-time", d.upTime(time.Now()))
	a.SetInt("queued-job-count", st.QueuedJobs)
	a.SetInt("queue-size", stats.Queue.Capacity)
	a.SetInt("max-concurrent-jobs", d.cfg.MaxConcurrentJobs)

	ops := make([]int, 0, len(supportedOperations))
	for _, op := range supportedOperations {
		ops = append(ops, int(op))
	}
	a.SetInt("operations-supported", ops...)

	a.Set("charset-configured", "utf-8")
	a.Set("charset-supported", "utf-8")
	a.Set("natural-language-configured", "en")
	a.Set("generated-natural-language-supported", "en")
	a.Set("document-format-default", string(job.FormatAuto))
	formats := make([]string, 0, len(job.SupportedFormats))
	for _, f := range job.SupportedFormats {
		formats = append(formats, string(f))
	}
	a.Set("document-format-supported", formats...)
	a.Set("copies-supported", "1-999")
	a.SetInt("copies-default", 1)
	a.SetInt("number-up-supported", job.SupportedPagesPerSheet...)
	a.SetInt("number-up-default", 1)
	a.Set("sides-supported", string(job.DuplexNone), string(job.DuplexLongEdge), string(job.DuplexShortEdge))
	a.Set("sides-default", string(job.DuplexNone))
	a.SetInt("orientation-requested-supported", 3, 4, 5, 6)
	a.SetInt("orientation-requested-default", 3)
	a.SetBool("page-ranges-supported", true)
	a.Set("media-margins-supported",
		string(job.MarginsNone), string(job.MarginsMinimum), string(job.MarginsNormal),
		string(job.MarginsWide), string(job.MarginsCustom))
	a.SetBool("color-supported", true)
	a.SetInt("job-priority-supported", 100)
	a.SetInt("job-priority-default", job.PriorityNormal.IPP())
	a.Set("job-k-octets-supported", "0-"+cast.ToString(max(d.cfg.MaxJobSize/1024, 1)))
	return nil
}

// respondJob adds the job group for id to resp.
func (d *Dispatcher) respondJob(resp *ipp.Response, id job.ID) error {
	rec, err := d.proc.GetJob(id)
	if err != nil {
		return err
	}
	resp.Groups = append(resp.Groups, ipp.Group{Tag: ipp.GroupJob, Attrs: d.jobAttributes(rec)})
	return nil
}
