// Copyright 2025 VPrint Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package job defines the print job model shared by the queue, the processor
// and the protocol layer.
package job

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ID uniquely identifies a job. It is generated once at admission and never changes.
type ID uuid.UUID

// NewID returns a fresh random job identifier.
func NewID() ID {
	return ID(uuid.New())
}

// ParseID parses the canonical text form of an ID.
// A "urn:uuid:" prefix is accepted.
func ParseID(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ID{}, fmt.Errorf("parse job id %q: %w", s, err)
	}
	return ID(u), nil
}

func (id ID) String() string {
	return uuid.UUID(id).String()
}

// URN returns the job-uuid attribute form.
func (id ID) URN() string {
	return uuid.UUID(id).URN()
}

// IsZero reports whether id is the zero value.
func (id ID) IsZero() bool {
	return uuid.UUID(id) == uuid.Nil
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(b []byte) error {
	parsed, err := ParseID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// DocumentFormat is the MIME type of a job's document.
type DocumentFormat string

const (
	FormatPDF        DocumentFormat = "application/pdf"
	FormatPostScript DocumentFormat = "application/postscript"
	// FormatAuto asks the pipeline to sniff the document.
	FormatAuto DocumentFormat = "application/octet-stream"
)

// SupportedFormats lists the document formats accepted at admission.
var SupportedFormats = []DocumentFormat{FormatPDF, FormatPostScript, FormatAuto}

// ParseFormat maps a document-format value to a DocumentFormat.
// An empty value means FormatAuto.
func ParseFormat(s string) (DocumentFormat, error) {
	switch DocumentFormat(s) {
	case "":
		return FormatAuto, nil
	case FormatPDF, FormatPostScript, FormatAuto:
		return DocumentFormat(s), nil
	case "application/x-postscript", "application/ps":
		return FormatPostScript, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// Request is an admitted print job. It is immutable once created; status is
// tracked separately by the processor.
type Request struct {
	ID           ID             `json:"id"`
	DocumentPath string         `json:"document_path,omitempty"`
	Format       DocumentFormat `json:"format"`
	PrinterName  string         `json:"printer_name,omitempty"`
	Name         string         `json:"name,omitempty"`
	User         string         `json:"user,omitempty"`
	Priority     Priority       `json:"priority"`
	Options      PrintOptions   `json:"options"`
	SubmittedAt  time.Time      `json:"submitted_at"`
}

// NewRequest builds a request with a fresh ID and default options.
func NewRequest(documentPath string, format DocumentFormat) *Request {
	return &Request{
		ID:           NewID(),
		DocumentPath: documentPath,
		Format:       format,
		Priority:     PriorityNormal,
		Options:      DefaultOptions(),
		SubmittedAt:  time.Now(),
	}
}

// Statistics summarises a completed job. It is never mutated after completion.
type Statistics struct {
	JobID          ID            `json:"job_id"`
	Duration       time.Duration `json:"duration"`
	PagesProcessed int           `json:"pages_processed"`
	SheetsPrinted  int           `json:"sheets_printed"`
	BytesProcessed int64         `json:"bytes_processed"`
	SuccessRate    float64       `json:"success_rate"`
	AveragePerPage time.Duration `json:"average_per_page"`
}

// Record is a point-in-time view of a job as held by the processor.
type Record struct {
	Request     Request     `json:"request"`
	Status      Status      `json:"status"`
	Reason      string      `json:"reason,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	StartedAt   time.Time   `json:"started_at,omitzero"`
	CompletedAt time.Time   `json:"completed_at,omitzero"`
	LastError   string      `json:"last_error,omitempty"`
	Statistics  *Statistics `json:"statistics,omitempty"`
}

// Summary pairs a job id with its status.
type Summary struct {
	ID     ID     `json:"id"`
	Status Status `json:"status"`
}
