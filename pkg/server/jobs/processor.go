// Package jobs owns the worker pool that drives print jobs through their
// lifecycle and the authoritative job id to status map.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vprint/vprint/pkg/event"
	"github.com/vprint/vprint/pkg/job"
	"github.com/vprint/vprint/pkg/pipeline"
	"github.com/vprint/vprint/pkg/queue"
)

// job-state-reasons keywords recorded alongside a status.
const (
	ReasonNone            = "none"
	ReasonIncoming        = "job-incoming"
	ReasonHeldByOperator  = "job-hold-until-specified"
	ReasonPrinting        = "job-printing"
	ReasonCompleted       = "job-completed-successfully"
	ReasonCompletedErrors = "job-completed-with-errors"
	ReasonCanceledByUser  = "job-canceled-by-user"
	ReasonAbortedBySystem = "aborted-by-system"
)

// Config holds the processor limits. Zero-valued limits are rejected.
type Config struct {
	MaxConcurrentJobs int
	WorkerThreads     int
	QueueTimeout      time.Duration
	JobTimeout        time.Duration
	HistoryLimit      int
	CancelGrace       time.Duration
	// ReapInterval is how often expired reservations are collected.
	// Zero derives it from QueueTimeout.
	ReapInterval time.Duration
}

// Validate rejects configurations the processor cannot run with.
func (c Config) Validate() error {
	switch {
	case c.MaxConcurrentJobs <= 0:
		return fmt.Errorf("%w: max concurrent jobs must be at least 1, got %d", ErrInvalidConfiguration, c.MaxConcurrentJobs)
	case c.WorkerThreads <= 0:
		return fmt.Errorf("%w: worker threads must be at least 1, got %d", ErrInvalidConfiguration, c.WorkerThreads)
	case c.JobTimeout <= 0:
		return fmt.Errorf("%w: job timeout must be positive, got %s", ErrInvalidConfiguration, c.JobTimeout)
	case c.QueueTimeout <= 0:
		return fmt.Errorf("%w: queue timeout must be positive, got %s", ErrInvalidConfiguration, c.QueueTimeout)
	case c.HistoryLimit < 0:
		return fmt.Errorf("%w: history limit must not be negative, got %d", ErrInvalidConfiguration, c.HistoryLimit)
	}
	return nil
}

func (c Config) reapInterval() time.Duration {
	if c.ReapInterval > 0 {
		return c.ReapInterval
	}
	return min(max(c.QueueTimeout/2, 10*time.Millisecond), time.Second)
}

// Stats is a snapshot of processor state.
type Stats struct {
	Queue      queue.Stats        `json:"queue"`
	Workers    int                `json:"workers"`
	Active     int                `json:"active_jobs"`
	Unfinished int                `json:"unfinished_jobs"`
	ByStatus   map[job.Status]int `json:"by_status"`
	Accepting  bool               `json:"accepting"`
}

type entry struct {
	rec job.Record

	// incoming marks a reservation waiting for its document.
	incoming bool
	// cancel and done are set while a worker runs the job.
	cancel context.CancelCauseFunc
	done   chan struct{}
}

// Processor runs a fixed pool of workers draining the queue.
type Processor struct {
	cfg       Config
	queue     *queue.Queue
	pipeline  pipeline.Pipeline
	publisher event.Publisher
	logger    zerolog.Logger
	onFinish  func(job.Record)

	mu     sync.RWMutex
	jobs   map[job.ID]*entry
	order  []job.ID
	active int

	wg         sync.WaitGroup
	cancelFunc context.CancelCauseFunc
	started    bool
	stopped    bool
}

// Option configures a Processor.
type Option func(*Processor)

// WithPublisher sets where status and queue events go.
func WithPublisher(p event.Publisher) Option {
	return func(pr *Processor) { pr.publisher = p }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(pr *Processor) { pr.logger = l }
}

// WithFinishHook registers fn to run after a job reaches a terminal status.
// It runs outside the processor lock.
func WithFinishHook(fn func(job.Record)) Option {
	return func(pr *Processor) { pr.onFinish = fn }
}

// NewProcessor validates cfg and builds a processor around q and p.
func NewProcessor(cfg Config, q *queue.Queue, p pipeline.Pipeline, opts ...Option) (*Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if q == nil || p == nil {
		return nil, fmt.Errorf("%w: queue and pipeline are required", ErrInvalidConfiguration)
	}

	pr := &Processor{
		cfg:       cfg,
		queue:     q,
		pipeline:  p,
		publisher: event.Nop{},
		logger:    zerolog.Nop(),
		jobs:      make(map[job.ID]*entry),
	}
	for _, opt := range opts {
		opt(pr)
	}
	pr.logger = pr.logger.With().Str("component", "jobs").Logger()
	return pr, nil
}

// Config returns the limits the processor was built with.
func (p *Processor) Config() Config { return p.cfg }

// Start spawns the workers and the reservation reaper. It may be called once.
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started || p.stopped {
		return fmt.Errorf("job processor already started")
	}

	workerCtx, cancel := context.WithCancelCause(ctx)
	p.cancelFunc = cancel

	for i := 0; i < p.cfg.WorkerThreads; i++ {
		p.wg.Add(1)
		go p.worker(workerCtx, i)
	}
	p.wg.Add(1)
	go p.reaper(workerCtx)

	p.started = true
	p.logger.Info().
		Int("workers", p.cfg.WorkerThreads).
		Int("max_concurrent_jobs", p.cfg.MaxConcurrentJobs).
		Int("queue_capacity", p.queue.Capacity()).
		Dur("job_timeout", p.cfg.JobTimeout).
		Msg("Job processor started")

	return nil
}

// Stop closes the queue, cancels running jobs with ErrShutdown, waits for
// the workers and aborts every job that never ran.
func (p *Processor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return nil
	}
	p.started = false
	p.stopped = true
	p.mu.Unlock()

	p.queue.Close()
	if p.cancelFunc != nil {
		p.cancelFunc(ErrShutdown)
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
		p.logger.Info().Msg("Job processor stopped gracefully")
	case <-ctx.Done():
		p.logger.Warn().Msg("Job processor shutdown timed out")
		err = ctx.Err()
	}

	p.queue.Clear()
	var finished []job.Record
	p.mu.Lock()
	for _, e := range p.jobs {
		if !e.rec.Status.Terminal() && e.rec.Status != job.StatusProcessing {
			e.incoming = false
			p.transition(e, job.StatusAborted, ReasonAbortedBySystem, ErrShutdown)
			finished = append(finished, e.rec)
		}
	}
	p.mu.Unlock()
	p.announce(finished...)

	return err
}

// Running reports whether the processor accepts jobs.
func (p *Processor) Running() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.started
}

// AddJob validates req and admits it as Queued. On error nothing is recorded.
func (p *Processor) AddJob(req *job.Request) error {
	if err := job.Validate(req.Options); err != nil {
		return err
	}

	p.mu.Lock()
	if err := p.admitLocked(req); err != nil {
		p.mu.Unlock()
		return err
	}
	if err := p.queue.Push(req); err != nil {
		p.mu.Unlock()
		return err
	}
	e := p.recordLocked(req, job.StatusQueued, ReasonNone, false)
	p.mu.Unlock()

	p.logger.Info().
		Str("job_id", req.ID.String()).
		Str("format", string(req.Format)).
		Int("copies", req.Options.Copies).
		Msg("Job queued")
	p.announce(e.rec)
	return nil
}

// Reserve admits req without a document. The job is Held with reason
// job-incoming and owns a queue slot until MarkReady, Discard, or the
// queue timeout.
func (p *Processor) Reserve(req *job.Request) error {
	if err := job.Validate(req.Options); err != nil {
		return err
	}

	p.mu.Lock()
	if err := p.admitLocked(req); err != nil {
		p.mu.Unlock()
		return err
	}
	if err := p.queue.Reserve(); err != nil {
		p.mu.Unlock()
		return err
	}
	e := p.recordLocked(req, job.StatusHeld, ReasonIncoming, true)
	p.mu.Unlock()

	p.logger.Debug().Str("job_id", req.ID.String()).Msg("Job reserved, awaiting document")
	p.announce(e.rec)
	return nil
}

// MarkReady finishes the document transfer of a reserved job and queues it.
func (p *Processor) MarkReady(id job.ID) error {
	p.mu.Lock()
	e, ok := p.jobs[id]
	if !ok {
		p.mu.Unlock()
		return &job.NotFoundError{ID: id}
	}
	if !e.incoming {
		p.mu.Unlock()
		return fmt.Errorf("%w: job %s is %s", ErrNotAwaitingDocument, id, e.rec.Status)
	}
	req := e.rec.Request
	if err := p.queue.Commit(&req); err != nil {
		p.mu.Unlock()
		return err
	}
	e.incoming = false
	p.transition(e, job.StatusQueued, ReasonNone, nil)
	rec := e.rec
	p.mu.Unlock()

	p.logger.Info().Str("job_id", id.String()).Msg("Job document complete, queued")
	p.announce(rec)
	return nil
}

// AwaitingDocument reports whether id is a reservation waiting for data.
func (p *Processor) AwaitingDocument(id job.ID) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.jobs[id]
	if !ok {
		return false, &job.NotFoundError{ID: id}
	}
	return e.incoming, nil
}

// Discard aborts a reservation, recording cause as the job error.
func (p *Processor) Discard(id job.ID, cause error) error {
	p.mu.Lock()
	e, ok := p.jobs[id]
	if !ok {
		p.mu.Unlock()
		return &job.NotFoundError{ID: id}
	}
	if !e.incoming {
		p.mu.Unlock()
		return fmt.Errorf("%w: job %s is %s", ErrNotAwaitingDocument, id, e.rec.Status)
	}
	_ = p.queue.Release()
	e.incoming = false
	p.transition(e, job.StatusAborted, ReasonAbortedBySystem, cause)
	rec := e.rec
	p.mu.Unlock()

	p.logger.Warn().Str("job_id", id.String()).Err(cause).Msg("Job reservation discarded")
	p.announce(rec)
	return nil
}

// CancelJob cancels a queued, held or processing job. Cancelling a job that
// already finished is a no-op returning its terminal status.
func (p *Processor) CancelJob(id job.ID) (job.Status, error) {
	p.mu.Lock()
	e, ok := p.jobs[id]
	if !ok {
		p.mu.Unlock()
		return 0, &job.NotFoundError{ID: id}
	}

	switch e.rec.Status {
	case job.StatusQueued:
		p.queue.Remove(id)
		p.transition(e, job.StatusCancelled, ReasonCanceledByUser, ErrCancelled)
	case job.StatusHeld:
		// Held jobs own a reservation, whether incoming or operator held.
		_ = p.queue.Release()
		e.incoming = false
		p.transition(e, job.StatusCancelled, ReasonCanceledByUser, ErrCancelled)
	case job.StatusProcessing:
		cancel, done := e.cancel, e.done
		p.mu.Unlock()
		return p.cancelRunning(id, cancel, done)
	default:
		status := e.rec.Status
		p.mu.Unlock()
		return status, nil
	}
	rec := e.rec
	p.mu.Unlock()

	p.logger.Info().Str("job_id", id.String()).Msg("Job cancelled before processing")
	p.announce(rec)
	return job.StatusCancelled, nil
}

func (p *Processor) cancelRunning(id job.ID, cancel context.CancelCauseFunc, done chan struct{}) (job.Status, error) {
	p.logger.Info().Str("job_id", id.String()).Msg("Cancelling running job")
	cancel(ErrCancelled)

	grace := p.cfg.CancelGrace
	if grace <= 0 {
		grace = 5 * time.Second
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		p.logger.Warn().Str("job_id", id.String()).Dur("grace", grace).Msg("Job did not stop within cancel grace period")
	}
	return p.GetStatus(id)
}

// HoldJob moves a queued job to Held. It keeps its queue slot.
func (p *Processor) HoldJob(id job.ID) error {
	p.mu.Lock()
	e, ok := p.jobs[id]
	if !ok {
		p.mu.Unlock()
		return &job.NotFoundError{ID: id}
	}
	if e.rec.Status != job.StatusQueued || !p.queue.Remove(id) {
		from := e.rec.Status
		p.mu.Unlock()
		return &job.TransitionError{ID: id, From: from, To: job.StatusHeld}
	}
	// Admission goes through p.mu, so the freed slot cannot be taken in between.
	if err := p.queue.Reserve(); err != nil {
		req := e.rec.Request
		_ = p.queue.Push(&req)
		p.mu.Unlock()
		return err
	}
	p.transition(e, job.StatusHeld, ReasonHeldByOperator, nil)
	rec := e.rec
	p.mu.Unlock()

	p.announce(rec)
	return nil
}

// ReleaseJob moves an operator-held job back to the tail of the queue.
func (p *Processor) ReleaseJob(id job.ID) error {
	p.mu.Lock()
	e, ok := p.jobs[id]
	if !ok {
		p.mu.Unlock()
		return &job.NotFoundError{ID: id}
	}
	if e.rec.Status != job.StatusHeld || e.incoming {
		from := e.rec.Status
		p.mu.Unlock()
		return &job.TransitionError{ID: id, From: from, To: job.StatusQueued}
	}
	req := e.rec.Request
	if err := p.queue.Commit(&req); err != nil {
		p.mu.Unlock()
		return err
	}
	p.transition(e, job.StatusQueued, ReasonNone, nil)
	rec := e.rec
	p.mu.Unlock()

	p.announce(rec)
	return nil
}

// QueuePosition returns how many queued jobs will run before id, or -1 when
// id is not waiting in the queue.
func (p *Processor) QueuePosition(id job.ID) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.queue.Position(id)
}

// GetStatus returns the current status of id.
func (p *Processor) GetStatus(id job.ID) (job.Status, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.jobs[id]
	if !ok {
		return 0, &job.NotFoundError{ID: id}
	}
	return e.rec.Status, nil
}

// GetJob returns a snapshot of the record for id.
func (p *Processor) GetJob(id job.ID) (job.Record, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.jobs[id]
	if !ok {
		return job.Record{}, &job.NotFoundError{ID: id}
	}
	return e.rec, nil
}

// GetAllJobs returns every known job and its status in admission order.
func (p *Processor) GetAllJobs() []job.Summary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]job.Summary, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, job.Summary{ID: id, Status: p.jobs[id].rec.Status})
	}
	return out
}

// Jobs returns record snapshots in admission order. A nil filter keeps all.
func (p *Processor) Jobs(filter func(job.Record) bool) []job.Record {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]job.Record, 0, len(p.order))
	for _, id := range p.order {
		rec := p.jobs[id].rec
		if filter == nil || filter(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// ActiveJobs returns how many jobs are Processing right now.
func (p *Processor) ActiveJobs() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.active
}

// Stats returns a snapshot of processor and queue counters.
func (p *Processor) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := Stats{
		Queue:     p.queue.Stats(),
		Workers:   p.cfg.WorkerThreads,
		Active:    p.active,
		ByStatus:  make(map[job.Status]int),
		Accepting: p.started,
	}
	for _, e := range p.jobs {
		s.ByStatus[e.rec.Status]++
		if !e.rec.Status.Terminal() {
			s.Unfinished++
		}
	}
	s.Accepting = s.Accepting && s.Unfinished < p.cfg.MaxConcurrentJobs && s.Queue.Size+s.Queue.Reserved < s.Queue.Capacity
	return s
}

func (p *Processor) admitLocked(req *job.Request) error {
	if p.stopped {
		return ErrNotRunning
	}
	if _, exists := p.jobs[req.ID]; exists {
		return fmt.Errorf("job %s already admitted", req.ID)
	}
	unfinished := 0
	for _, e := range p.jobs {
		if !e.rec.Status.Terminal() {
			unfinished++
		}
	}
	if unfinished >= p.cfg.MaxConcurrentJobs {
		return fmt.Errorf("%w: %d of %d", ErrTooManyJobs, unfinished, p.cfg.MaxConcurrentJobs)
	}
	return nil
}

func (p *Processor) recordLocked(req *job.Request, status job.Status, reason string, incoming bool) *entry {
	now := time.Now()
	e := &entry{
		rec: job.Record{
			Request:   *req,
			Status:    status,
			Reason:    reason,
			CreatedAt: now,
			UpdatedAt: now,
		},
		incoming: incoming,
	}
	p.jobs[req.ID] = e
	p.order = append(p.order, req.ID)
	return e
}

// transition applies a lifecycle step allowed by job.Status.CanTransition
// and reports whether it did. Callers hold p.mu.
func (p *Processor) transition(e *entry, to job.Status, reason string, cause error) bool {
	if from := e.rec.Status; !from.CanTransition(to) {
		p.logger.Error().
			Str("job_id", e.rec.Request.ID.String()).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("Refused illegal job transition")
		return false
	}
	now := time.Now()
	e.rec.Status = to
	e.rec.Reason = reason
	e.rec.UpdatedAt = now
	if cause != nil {
		e.rec.LastError = cause.Error()
	}
	switch {
	case to == job.StatusProcessing:
		e.rec.StartedAt = now
	case to.Terminal():
		e.rec.CompletedAt = now
	}
	return true
}

// announce publishes status events for recs followed by one queue update,
// and runs the finish hook for terminal records.
func (p *Processor) announce(recs ...job.Record) {
	if len(recs) == 0 {
		return
	}
	ctx := context.Background()
	for _, rec := range recs {
		p.publisher.Publish(ctx, event.TopicJobStatus, event.JobStatus{
			JobID:   rec.Request.ID.String(),
			Status:  rec.Status.String(),
			Message: rec.LastError,
		})
		if rec.Status.Terminal() && p.onFinish != nil {
			p.onFinish(rec)
		}
	}
	p.publisher.Publish(ctx, event.TopicQueueUpdate, event.QueueUpdate{
		QueueSize:  p.queue.Size(),
		ActiveJobs: p.ActiveJobs(),
	})
	p.evictHistory()
}

// evictHistory drops the oldest finished records beyond the history limit.
func (p *Processor) evictHistory() {
	if p.cfg.HistoryLimit <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	finished := 0
	for _, e := range p.jobs {
		if e.rec.Status.Terminal() {
			finished++
		}
	}
	excess := finished - p.cfg.HistoryLimit
	if excess <= 0 {
		return
	}
	p.order = slices.DeleteFunc(p.order, func(id job.ID) bool {
		if excess > 0 && p.jobs[id].rec.Status.Terminal() {
			delete(p.jobs, id)
			excess--
			return true
		}
		return false
	})
}

type result struct {
	stats *job.Statistics
	err   error
}

// worker processes jobs from the queue until the queue closes or ctx is done.
func (p *Processor) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	p.logger.Debug().Int("worker_id", id).Msg("Worker started")
	for {
		req, err := p.queue.Pop(ctx)
		if err != nil {
			p.logger.Debug().Int("worker_id", id).Err(err).Msg("Worker stopping")
			return
		}
		p.run(ctx, id, req)
	}
}

func (p *Processor) run(ctx context.Context, workerID int, req *job.Request) {
	jobCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	p.mu.Lock()
	e, ok := p.jobs[req.ID]
	if !ok || e.rec.Status != job.StatusQueued {
		// Cancelled between Pop and here.
		p.mu.Unlock()
		return
	}
	e.cancel = cancel
	e.done = make(chan struct{})
	p.active++
	p.transition(e, job.StatusProcessing, ReasonPrinting, nil)
	startRec := e.rec
	p.mu.Unlock()
	p.announce(startRec)

	log := p.logger.With().Int("worker_id", workerID).Str("job_id", req.ID.String()).Logger()
	log.Info().Msg("Processing job")

	timeoutCtx, stop := context.WithTimeoutCause(jobCtx, p.cfg.JobTimeout, ErrJobTimeout)
	defer stop()

	results := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				results <- result{err: fmt.Errorf("%w: %v", ErrPipelinePanic, r)}
			}
		}()
		stats, err := p.pipeline.Process(timeoutCtx, req)
		results <- result{stats: stats, err: err}
	}()

	var res result
	select {
	case res = <-results:
	case <-timeoutCtx.Done():
		// The pipeline may ignore ctx; the worker does not wait for it.
		res = result{err: context.Cause(timeoutCtx)}
	}

	p.mu.Lock()
	status, reason := job.StatusCompleted, ReasonCompleted
	switch {
	case res.err == nil:
		e.rec.Statistics = res.stats
	case errors.Is(res.err, ErrCancelled):
		status, reason = job.StatusCancelled, ReasonCanceledByUser
	case errors.Is(res.err, ErrShutdown):
		status, reason = job.StatusAborted, ReasonAbortedBySystem
	case errors.Is(res.err, ErrJobTimeout):
		status, reason = job.StatusFailed, ReasonCompletedErrors
		res.err = fmt.Errorf("%w after %s", ErrJobTimeout, p.cfg.JobTimeout)
	default:
		status, reason = job.StatusFailed, ReasonCompletedErrors
	}
	p.transition(e, status, reason, res.err)
	p.active--
	e.cancel = nil
	close(e.done)
	endRec := e.rec
	p.mu.Unlock()

	ev := log.Info()
	if res.err != nil {
		ev = log.Warn().Err(res.err)
	}
	ev.Str("status", status.String()).
		Dur("duration", endRec.CompletedAt.Sub(endRec.StartedAt)).
		Msg("Job finished")
	p.announce(endRec)
}

// reaper discards reservations whose documents did not arrive in time.
func (p *Processor) reaper(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.reapInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, id := range p.expiredReservations(now) {
				_ = p.Discard(id, ErrReservationExpired)
			}
		}
	}
}

func (p *Processor) expiredReservations(now time.Time) []job.ID {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var ids []job.ID
	for id, e := range p.jobs {
		if e.incoming && now.Sub(e.rec.CreatedAt) > p.cfg.QueueTimeout {
			ids = append(ids, id)
		}
	}
	return ids
}
