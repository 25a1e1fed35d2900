package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/vprint/vprint/pkg/job"
)

// Ticket describes the imposition computed for a job. The spooler writes one
// per completed job when an output directory is configured.
type Ticket struct {
	JobID         string    `yaml:"job_id"`
	Name          string    `yaml:"name,omitempty"`
	User          string    `yaml:"user,omitempty"`
	Format        string    `yaml:"format"`
	DocumentPages int       `yaml:"document_pages"`
	FirstPage     int       `yaml:"first_page"`
	LastPage      int       `yaml:"last_page"`
	Copies        int       `yaml:"copies"`
	Collate       bool      `yaml:"collate"`
	PagesPerSheet int       `yaml:"pages_per_sheet"`
	Duplex        string    `yaml:"duplex"`
	Orientation   string    `yaml:"orientation"`
	Scale         float64   `yaml:"scale"`
	Margins       string    `yaml:"margins"`
	Booklet       bool      `yaml:"booklet"`
	Sheets        int       `yaml:"sheets"`
	Impressions   int       `yaml:"impressions"`
	Rendered      time.Time `yaml:"rendered"`
}

// Spooler is the default pipeline: parse, render, then layout.
type Spooler struct {
	outputDir string
	retry     RetryConfig
	logger    zerolog.Logger
}

// Option configures a Spooler.
type Option func(*Spooler)

// WithOutputDir writes a YAML ticket per job into dir.
func WithOutputDir(dir string) Option {
	return func(s *Spooler) { s.outputDir = dir }
}

// WithRetryConfig overrides the per-step retry policy.
func WithRetryConfig(rc RetryConfig) Option {
	return func(s *Spooler) { s.retry = rc }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Spooler) { s.logger = l }
}

// NewSpooler returns the default pipeline.
func NewSpooler(opts ...Option) *Spooler {
	s := &Spooler{
		retry:  DefaultRetryConfig(),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "pipeline").Logger()
	return s
}

type work struct {
	req      *job.Request
	format   job.DocumentFormat
	bytes    int64
	docPages int
	first    int
	last     int
	ticket   Ticket
}

type step struct {
	name string
	run  func(ctx context.Context, w *work) error
}

// Process implements Pipeline.
func (s *Spooler) Process(ctx context.Context, req *job.Request) (*job.Statistics, error) {
	start := time.Now()
	w := &work{req: req}

	steps := []step{
		{"parse", s.parse},
		{"render", s.render},
		{"layout", s.layout},
	}
	for _, st := range steps {
		if ctx.Err() != nil {
			return nil, context.Cause(ctx)
		}
		if err := WithRetry(ctx, s.retry, func(ctx context.Context) error { return st.run(ctx, w) }); err != nil {
			return nil, fmt.Errorf("%s: %w", st.name, err)
		}
		s.logger.Debug().
			Str("job_id", req.ID.String()).
			Str("step", st.name).
			Msg("Pipeline step finished")
	}

	elapsed := time.Since(start)
	pages := (w.last - w.first + 1) * req.Options.Copies
	stats := &job.Statistics{
		JobID:          req.ID,
		Duration:       elapsed,
		PagesProcessed: pages,
		SheetsPrinted:  w.ticket.Sheets,
		BytesProcessed: w.bytes,
		SuccessRate:    1.0,
	}
	if pages > 0 {
		stats.AveragePerPage = elapsed / time.Duration(pages)
	}
	return stats, nil
}

func (s *Spooler) parse(_ context.Context, w *work) error {
	info, err := os.Stat(w.req.DocumentPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreadableDocument, err)
	}
	w.bytes = info.Size()
	if w.bytes == 0 {
		return ErrEmptyDocument
	}

	sniffed, err := Sniff(w.req.DocumentPath)
	if err != nil {
		return err
	}
	if w.req.Format != job.FormatAuto && w.req.Format != "" && w.req.Format != sniffed {
		return fmt.Errorf("%w: declared %s, found %s", ErrFormatMismatch, w.req.Format, sniffed)
	}
	w.format = sniffed

	pages, err := CountPages(w.req.DocumentPath, sniffed)
	if err != nil {
		return err
	}
	if pages <= 0 {
		return ErrEmptyDocument
	}
	w.docPages = pages
	return job.ValidateAgainstPages(w.req.Options, pages)
}

func (s *Spooler) render(_ context.Context, w *work) error {
	w.first, w.last = 1, w.docPages
	if r := w.req.Options.PageRange; r != nil {
		w.first, w.last = r.Start, r.End
	}
	return nil
}

func (s *Spooler) layout(_ context.Context, w *work) error {
	o := w.req.Options
	pps := o.PagesPerSheet
	if pps <= 0 {
		pps = 1
	}
	selected := w.last - w.first + 1
	sidesPerCopy := ceilDiv(selected, pps)
	sheetsPerCopy := sidesPerCopy
	if o.Duplex == job.DuplexLongEdge || o.Duplex == job.DuplexShortEdge {
		sheetsPerCopy = ceilDiv(sidesPerCopy, 2)
	}

	scale := o.Scale
	if scale == 0 {
		scale = 1.0
	}
	w.ticket = Ticket{
		JobID:         w.req.ID.String(),
		Name:          w.req.Name,
		User:          w.req.User,
		Format:        string(w.format),
		DocumentPages: w.docPages,
		FirstPage:     w.first,
		LastPage:      w.last,
		Copies:        o.Copies,
		Collate:       o.Collate,
		PagesPerSheet: pps,
		Duplex:        string(orDefault(o.Duplex, job.DuplexNone)),
		Orientation:   string(orDefault(o.Orientation, job.OrientationPortrait)),
		Scale:         scale,
		Margins:       string(orDefault(o.Margins.Mode, job.MarginsNormal)),
		Booklet:       o.IsBooklet(),
		Sheets:        sheetsPerCopy * o.Copies,
		Impressions:   sidesPerCopy * o.Copies,
		Rendered:      time.Now().UTC(),
	}

	if s.outputDir == "" {
		return nil
	}
	data, err := yaml.Marshal(w.ticket)
	if err != nil {
		return fmt.Errorf("encode ticket: %w", err)
	}
	if err := os.MkdirAll(s.outputDir, 0o750); err != nil {
		return Transient(fmt.Errorf("create output directory: %w", err))
	}
	path := filepath.Join(s.outputDir, w.ticket.JobID+".yaml")
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return Transient(fmt.Errorf("write ticket: %w", err))
	}
	return nil
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

func orDefault[T ~string](v, def T) T {
	if v == "" {
		return def
	}
	return v
}

// ReadTicket loads a ticket written by the spooler.
func ReadTicket(path string) (*Ticket, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var t Ticket
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode ticket %s: %w", path, err)
	}
	return &t, nil
}
