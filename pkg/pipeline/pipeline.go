// Copyright 2025 VPrint Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package pipeline turns an admitted document into printed output. The job
// processor treats it as an opaque collaborator: any error fails the job and
// any result completes it.
package pipeline

import (
	"context"
	"errors"

	"github.com/vprint/vprint/pkg/job"
)

var (
	// ErrFormatMismatch indicates a document whose content does not match its declared format.
	ErrFormatMismatch = errors.New("document content does not match declared format")
	// ErrUnreadableDocument indicates a document the parser could not read.
	ErrUnreadableDocument = errors.New("unreadable document")
	// ErrEmptyDocument indicates a document without any printable page.
	ErrEmptyDocument = errors.New("document has no pages")
)

// Pipeline processes one job. Implementations must return promptly once ctx
// is done, checking it at least between steps.
type Pipeline interface {
	Process(ctx context.Context, req *job.Request) (*job.Statistics, error)
}

// Func adapts a function to the Pipeline interface.
type Func func(ctx context.Context, req *job.Request) (*job.Statistics, error)

// Process implements Pipeline.
func (f Func) Process(ctx context.Context, req *job.Request) (*job.Statistics, error) {
	return f(ctx, req)
}
