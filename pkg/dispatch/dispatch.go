// Copyright 2025 VPrint Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package dispatch answers decoded IPP-style requests by routing each
// operation through a fixed handler table into the job processor.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/vprint/vprint/pkg/ipp"
	"github.com/vprint/vprint/pkg/job"
	"github.com/vprint/vprint/pkg/server/jobs"
	"github.com/vprint/vprint/pkg/spool"
)

// Processor is the job processor surface the handlers need.
type Processor interface {
	AddJob(req *job.Request) error
	Reserve(req *job.Request) error
	MarkReady(id job.ID) error
	Discard(id job.ID, cause error) error
	AwaitingDocument(id job.ID) (bool, error)
	CancelJob(id job.ID) (job.Status, error)
	HoldJob(id job.ID) error
	ReleaseJob(id job.ID) error
	GetJob(id job.ID) (job.Record, error)
	QueuePosition(id job.ID) int
	Jobs(filter func(job.Record) bool) []job.Record
	Stats() jobs.Stats
	Running() bool
}

var _ Processor = (*jobs.Processor)(nil)

// PrinterInfo holds the static printer description attributes.
type PrinterInfo struct {
	Name         string
	Info         string
	Location     string
	MakeAndModel string
	URI          string
}

// Config configures a Dispatcher.
type Config struct {
	Printer PrinterInfo
	// MaxJobSize bounds one request payload and one spooled document.
	MaxJobSize        int64
	MaxConcurrentJobs int
}

type handler func(ctx context.Context, req *ipp.Request, resp *ipp.Response) error

// Dispatcher decodes one request, runs its handler and encodes one response.
// It holds no job state between requests.
type Dispatcher struct {
	proc    Processor
	spool   *spool.Store
	printer PrinterInfo
	cfg     Config
	logger  zerolog.Logger
	started time.Time

	routes map[ipp.Operation]handler
}

// New builds a dispatcher over proc and store.
func New(cfg Config, proc Processor, store *spool.Store, logger zerolog.Logger) (*Dispatcher, error) {
	if proc == nil || store == nil {
		return nil, errors.New("dispatcher requires a processor and a spool store")
	}
	if cfg.MaxJobSize <= 0 {
		cfg.MaxJobSize = store.MaxSize()
	}
	if cfg.Printer.Name == "" {
		cfg.Printer.Name = "vprint"
	}
	if cfg.Printer.URI == "" {
		cfg.Printer.URI = "ipp://localhost/printers/" + cfg.Printer.Name
	}

	d := &Dispatcher{
		proc:    proc,
		spool:   store,
		printer: cfg.Printer,
		cfg:     cfg,
		logger:  logger.With().Str("component", "dispatch").Logger(),
		started: time.Now(),
	}
	d.routes = map[ipp.Operation]handler{
		ipp.OpPrintJob:             d.printJob,
		ipp.OpValidateJob:          d.validateJob,
		ipp.OpCreateJob:            d.createJob,
		ipp.OpSendDocument:         d.sendDocument,
		ipp.OpCloseJob:             d.closeJob,
		ipp.OpCancelJob:            d.cancelJob,
		ipp.OpGetJobAttributes:     d.getJobAttributes,
		ipp.OpGetJobs:              d.getJobs,
		ipp.OpGetPrinterAttributes: d.getPrinterAttributes,
		ipp.OpHoldJob:              d.holdJob,
		ipp.OpReleaseJob:           d.releaseJob,
	}
	return d, nil
}

// Operations returns the routed operation codes.
func (d *Dispatcher) Operations() []ipp.Operation {
	return supportedOperations
}

// supportedOperations is the routing table's key set in wire order.
var supportedOperations = []ipp.Operation{
	ipp.OpPrintJob,
	ipp.OpValidateJob,
	ipp.OpCreateJob,
	ipp.OpSendDocument,
	ipp.OpCancelJob,
	ipp.OpGetJobAttributes,
	ipp.OpGetJobs,
	ipp.OpGetPrinterAttributes,
	ipp.OpHoldJob,
	ipp.OpReleaseJob,
	ipp.OpCloseJob,
}

// Decoder returns the request decoder bounded by the maximum job size.
func (d *Dispatcher) Decoder() ipp.Decoder {
	return ipp.Decoder{MaxAttributesSize: ipp.DefaultMaxAttributesSize, MaxPayload: d.cfg.MaxJobSize}
}

// Dispatch runs the handler for req. It always returns a response; handler
// errors become error statuses with a status-message.
func (d *Dispatcher) Dispatch(ctx context.Context, req *ipp.Request) *ipp.Response {
	h, ok := d.routes[req.Operation]
	if !ok {
		return d.errorResponse(req, fmt.Errorf("%w: %s", ErrOperationNotSupported, req.Operation))
	}

	resp := ipp.NewResponse(req, ipp.StatusOK)
	if err := h(ctx, req, resp); err != nil {
		return d.errorResponse(req, err)
	}
	return resp
}

// Serve handles one exchange: decode from r, dispatch, write the fully
// buffered response to w. Decode failures are answered without reaching a
// handler. The returned error only reports failures to write.
func (d *Dispatcher) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	start := time.Now()

	req, err := d.Decoder().DecodeRequest(r)
	var resp *ipp.Response
	if err != nil {
		if req == nil {
			req = &ipp.Request{Version: ipp.DefaultVersion}
		}
		if errors.Is(err, ipp.ErrPayloadTooLarge) && req.Operation == ipp.OpSendDocument {
			d.abandonUpload(req.Attributes, err)
		}
		resp = d.errorResponse(req, err)
	} else {
		resp = d.Dispatch(ctx, req)
	}

	if err := ipp.EncodeResponse(w, resp); err != nil {
		return fmt.Errorf("write response: %w", err)
	}

	d.logger.Debug().
		Str("operation", req.Operation.String()).
		Uint16("request_id", req.RequestID).
		Str("status", resp.Status.String()).
		Dur("duration", time.Since(start)).
		Msg("Request handled")
	return nil
}

// abandonUpload discards the reservation a rejected Send-Document was
// addressed to, so it does not wait out the queue timeout.
func (d *Dispatcher) abandonUpload(attrs ipp.Attributes, cause error) {
	id, err := d.awaitingJob(attrs)
	if err != nil {
		return
	}
	_ = d.proc.Discard(id, cause)
	_ = d.spool.Remove(id)
}

func (d *Dispatcher) errorResponse(req *ipp.Request, err error) *ipp.Response {
	status := StatusFor(err)
	resp := ipp.NewResponse(req, status)
	resp.Attributes.Set(ipp.AttrStatusMessage, err.Error())

	ev := d.logger.Info()
	if status.ServerError() && status != ipp.StatusServerBusy {
		ev = d.logger.Warn()
	}
	ev.Err(err).
		Str("operation", req.Operation.String()).
		Uint16("request_id", req.RequestID).
		Str("status", status.String()).
		Msg("Request rejected")
	return resp
}
