package dispatch

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/vprint/vprint/pkg/ipp"
	"github.com/vprint/vprint/pkg/job"
)

// orientation-requested enum values.
var orientations = map[int]job.Orientation{
	3: job.OrientationPortrait,
	4: job.OrientationLandscape,
	5: job.OrientationReverseLandscape,
	6: job.OrientationReversePortrait,
}

func orientationEnum(o job.Orientation) int {
	for n, v := range orientations {
		if v == o {
			return n
		}
	}
	return 3
}

// BuildRequest turns the job template attributes of a request into a job
// request with a fresh id. It does not validate the resulting options.
func BuildRequest(attrs ipp.Attributes, printerName string) (*job.Request, error) {
	format, err := job.ParseFormat(attrs.Get(ipp.AttrDocumentFormat))
	if err != nil {
		return nil, err
	}

	req := job.NewRequest("", format)
	req.PrinterName = printerName
	req.Name = attrs.Get(ipp.AttrJobName)
	req.User = attrs.Get(ipp.AttrRequestingUserName)

	if v, ok, err := attrs.Int(ipp.AttrJobPriority); err != nil {
		return nil, badAttribute(ipp.AttrJobPriority, err)
	} else if ok {
		if v < 1 || v > 100 {
			return nil, fmt.Errorf("%w: %s must be 1..100, got %d", ErrBadAttribute, ipp.AttrJobPriority, v)
		}
		req.Priority = job.PriorityFromIPP(v)
	}

	opts, err := parseOptions(attrs)
	if err != nil {
		return nil, err
	}
	req.Options = opts
	return req, nil
}

func parseOptions(attrs ipp.Attributes) (job.PrintOptions, error) {
	opts := job.DefaultOptions()

	if v, ok, err := attrs.Int(ipp.AttrCopies); err != nil {
		return opts, badAttribute(ipp.AttrCopies, err)
	} else if ok {
		opts.Copies = v
	}

	switch attrs.Get(ipp.AttrMultipleDocHandling) {
	case "", "separate-documents-uncollated-copies", "single-document":
	case "separate-documents-collated-copies", "single-document-new-sheet":
		opts.Collate = true
	default:
		return opts, fmt.Errorf("%w: %s %q", ErrBadAttribute, ipp.AttrMultipleDocHandling, attrs.Get(ipp.AttrMultipleDocHandling))
	}

	if attrs.Has(ipp.AttrSides) {
		opts.Duplex = job.DuplexMode(attrs.Get(ipp.AttrSides))
	}

	if v, ok, err := attrs.Int(ipp.AttrOrientation); err != nil {
		return opts, badAttribute(ipp.AttrOrientation, err)
	} else if ok {
		o, known := orientations[v]
		if !known {
			return opts, fmt.Errorf("%w: %s %d", ErrBadAttribute, ipp.AttrOrientation, v)
		}
		opts.Orientation = o
	}

	if attrs.Has(ipp.AttrPageRanges) {
		lo, hi, err := ipp.ParseRange(attrs.Get(ipp.AttrPageRanges))
		if err != nil {
			return opts, badAttribute(ipp.AttrPageRanges, err)
		}
		opts.PageRange = &job.PageRange{Start: int(lo), End: int(hi)}
	}

	if v, ok, err := attrs.Int(ipp.AttrNumberUp); err != nil {
		return opts, badAttribute(ipp.AttrNumberUp, err)
	} else if ok {
		opts.PagesPerSheet = v
	}

	if v, ok, err := attrs.Int(ipp.AttrScale); err != nil {
		return opts, badAttribute(ipp.AttrScale, err)
	} else if ok {
		opts.Scale = float64(v) / 100
	}
	if attrs.Get(ipp.AttrPrintScaling) == "none" && !attrs.Has(ipp.AttrScale) {
		opts.Scale = 1
	}

	if attrs.Has(ipp.AttrMargins) {
		opts.Margins.Mode = job.MarginMode(attrs.Get(ipp.AttrMargins))
	}
	for name, dst := range map[string]*float64{
		ipp.AttrMarginTop:    &opts.Margins.Top,
		ipp.AttrMarginBottom: &opts.Margins.Bottom,
		ipp.AttrMarginLeft:   &opts.Margins.Left,
		ipp.AttrMarginRight:  &opts.Margins.Right,
	} {
		if !attrs.Has(name) {
			continue
		}
		v, err := cast.ToFloat64E(attrs.Get(name))
		if err != nil {
			return opts, badAttribute(name, err)
		}
		*dst = v
	}
	return opts, nil
}

func badAttribute(name string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrBadAttribute, name, err)
}

// jobIDFrom reads the target job from job-uuid, falling back to the last
// path segment of job-uri.
func jobIDFrom(attrs ipp.Attributes) (job.ID, error) {
	raw := attrs.Get(ipp.AttrJobUUID)
	if raw == "" {
		if uri := attrs.Get(ipp.AttrJobURI); uri != "" {
			raw = path.Base(strings.TrimRight(uri, "/"))
		}
	}
	if raw == "" {
		return job.ID{}, ErrMissingJob
	}
	id, err := job.ParseID(raw)
	if err != nil {
		return job.ID{}, fmt.Errorf("%w: %v", ErrMissingJob, err)
	}
	return id, nil
}

// jobAttributes describes rec as a job group.
func (d *Dispatcher) jobAttributes(rec job.Record) ipp.Attributes {
	a := ipp.Attributes{
		ipp.AttrJobUUID:        {rec.Request.ID.URN()},
		ipp.AttrJobURI:         {d.jobURI(rec.Request.ID)},
		ipp.AttrJobState:       {cast.ToString(rec.Status.IPPState())},
		ipp.AttrJobPriority:    {cast.ToString(rec.Request.Priority.IPP())},
		ipp.AttrDocumentFormat: {string(rec.Request.Format)},
		ipp.AttrCopies:         {cast.ToString(rec.Request.Options.Copies)},
		ipp.AttrNumberUp:       {cast.ToString(rec.Request.Options.PagesPerSheet)},
		ipp.AttrTimeAtCreation: {cast.ToString(d.upTime(rec.CreatedAt))},
	}
	reason := rec.Reason
	if reason == "" {
		reason = "none"
	}
	a.Set(ipp.AttrJobStateReasons, reason)
	if rec.Request.Name != "" {
		a.Set(ipp.AttrJobName, rec.Request.Name)
	}
	if rec.Request.User != "" {
		a.Set(ipp.AttrJobOriginatingUser, rec.Request.User)
	}
	if rec.LastError != "" {
		a.Set(ipp.AttrJobStateMessage, rec.LastError)
	}
	if rec.Request.Options.Duplex != "" {
		a.Set(ipp.AttrSides, string(rec.Request.Options.Duplex))
	}
	if o := rec.Request.Options.Orientation; o != "" {
		a.SetInt(ipp.AttrOrientation, orientationEnum(o))
	}
	if r := rec.Request.Options.PageRange; r != nil {
		a.Set(ipp.AttrPageRanges, r.String())
	}
	if rec.Status == job.StatusQueued {
		if ahead := d.proc.QueuePosition(rec.Request.ID); ahead >= 0 {
			a.SetInt(ipp.AttrInterveningJobs, ahead)
		}
	}
	if !rec.StartedAt.IsZero() {
		a.SetInt(ipp.AttrTimeAtProcessing, d.upTime(rec.StartedAt))
	}
	if !rec.CompletedAt.IsZero() {
		a.SetInt(ipp.AttrTimeAtCompleted, d.upTime(rec.CompletedAt))
	}
	if s := rec.Statistics; s != nil {
		a.SetInt(ipp.AttrPagesProcessed, s.PagesProcessed)
		a.SetInt(ipp.AttrSheetsCompleted, s.SheetsPrinted)
		a.SetInt(ipp.AttrKOctetsProcessed, int((s.BytesProcessed+1023)/1024))
	}
	return a
}

func (d *Dispatcher) jobURI(id job.ID) string {
	return strings.TrimRight(d.printer.URI, "/") + "/jobs/" + id.String()
}

// upTime is the printer-up-time of t in seconds.
func (d *Dispatcher) upTime(t time.Time) int {
	return max(int(t.Sub(d.started)/time.Second), 1)
}
