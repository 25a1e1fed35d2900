// Copyright 2025 VPrint Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package ipp implements the IPP-style binary request/response format spoken
// between printing clients and the vprint backend.
//
// A message is a fixed header (version, operation or status code, 16-bit
// request id) followed by attribute groups, an end-of-attributes tag and an
// optional document payload running to the end of the stream.
package ipp

import (
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

var (
	// ErrMalformedRequest covers truncated headers and unparseable attribute groups.
	ErrMalformedRequest = errors.New("malformed request")
	// ErrVersionNotSupported is returned for protocol versions outside SupportedVersions.
	ErrVersionNotSupported = errors.New("protocol version not supported")
	// ErrPayloadTooLarge is returned when the trailing payload exceeds the decoder limit.
	ErrPayloadTooLarge = errors.New("request payload too large")
)

// Operation identifies a request type.
type Operation uint16

const (
	OpPrintJob             Operation = 0x0002
	OpValidateJob          Operation = 0x0004
	OpCreateJob            Operation = 0x0005
	OpSendDocument         Operation = 0x0006
	OpCancelJob            Operation = 0x0008
	OpGetJobAttributes     Operation = 0x0009
	OpGetJobs              Operation = 0x000A
	OpGetPrinterAttributes Operation = 0x000B
	OpHoldJob              Operation = 0x000C
	OpReleaseJob           Operation = 0x000D
	// OpCloseJob is a vendor operation finishing a streamed document upload.
	OpCloseJob Operation = 0x4001
)

var operationNames = map[Operation]string{
	OpPrintJob:             "Print-Job",
	OpValidateJob:          "Validate-Job",
	OpCreateJob:            "Create-Job",
	OpSendDocument:         "Send-Document",
	OpCancelJob:            "Cancel-Job",
	OpGetJobAttributes:     "Get-Job-Attributes",
	OpGetJobs:              "Get-Jobs",
	OpGetPrinterAttributes: "Get-Printer-Attributes",
	OpHoldJob:              "Hold-Job",
	OpReleaseJob:           "Release-Job",
	OpCloseJob:             "Close-Job",
}

func (o Operation) String() string {
	if name, ok := operationNames[o]; ok {
		return name
	}
	return fmt.Sprintf("operation(0x%04x)", uint16(o))
}

// Status is a response status code.
type Status uint16

const (
	StatusOK                         Status = 0x0000
	StatusBadRequest                 Status = 0x0400
	StatusNotAuthorized              Status = 0x0403
	StatusNotPossible                Status = 0x0404
	StatusNotFound                   Status = 0x0406
	StatusRequestEntityTooLarge      Status = 0x0409
	StatusDocumentFormatNotSupported Status = 0x040A
	StatusAttributesNotSupported     Status = 0x040B
	StatusInternalError              Status = 0x0500
	StatusOperationNotSupported      Status = 0x0501
	StatusServiceUnavailable         Status = 0x0502
	StatusVersionNotSupported        Status = 0x0503
	StatusServerBusy                 Status = 0x0507
)

var statusNames = map[Status]string{
	StatusOK:                         "successful-ok",
	StatusBadRequest:                 "client-error-bad-request",
	StatusNotAuthorized:              "client-error-not-authorized",
	StatusNotPossible:                "client-error-not-possible",
	StatusNotFound:                   "client-error-not-found",
	StatusRequestEntityTooLarge:      "client-error-request-entity-too-large",
	StatusDocumentFormatNotSupported: "client-error-document-format-not-supported",
	StatusAttributesNotSupported:     "client-error-attributes-or-values-not-supported",
	StatusInternalError:              "server-error-internal-error",
	StatusOperationNotSupported:      "server-error-operation-not-supported",
	StatusServiceUnavailable:         "server-error-service-unavailable",
	StatusVersionNotSupported:        "server-error-version-not-supported",
	StatusServerBusy:                 "server-error-busy",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(0x%04x)", uint16(s))
}

// Successful reports whether s is in the successful class.
func (s Status) Successful() bool { return s < 0x0100 }

// ClientError reports whether s is in the client-error class.
func (s Status) ClientError() bool { return s >= 0x0400 && s < 0x0500 }

// ServerError reports whether s is in the server-error class.
func (s Status) ServerError() bool { return s >= 0x0500 && s < 0x0600 }

// GroupTag delimits attribute groups.
type GroupTag byte

const (
	GroupOperation   GroupTag = 0x01
	GroupJob         GroupTag = 0x02
	GroupEnd         GroupTag = 0x03
	GroupPrinter     GroupTag = 0x04
	GroupUnsupported GroupTag = 0x05
)

// ValueTag encodes the syntax of one attribute value.
type ValueTag byte

const (
	TagInteger         ValueTag = 0x21
	TagBoolean         ValueTag = 0x22
	TagEnum            ValueTag = 0x23
	TagRange           ValueTag = 0x33
	TagText            ValueTag = 0x41
	TagName            ValueTag = 0x42
	TagKeyword         ValueTag = 0x44
	TagURI             ValueTag = 0x45
	TagCharset         ValueTag = 0x47
	TagNaturalLanguage ValueTag = 0x48
	TagMimeType        ValueTag = 0x49
)

// Version is the protocol version carried in every message header.
type Version struct {
	Major uint8
	Minor uint8
}

// DefaultVersion is used for responses when the request version is unusable.
var DefaultVersion = Version{Major: 1, Minor: 1}

func (v Version) String() string { return fmt.Sprintf("%d.%d", v.Major, v.Minor) }

// SupportedVersions is the range of protocol versions the server accepts.
const SupportedVersions = ">= 1.0, < 3.0"

var versionConstraint = func() *semver.Constraints {
	c, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		panic(err)
	}
	return c
}()

// Supported reports whether v satisfies SupportedVersions.
func (v Version) Supported() bool {
	sv, err := semver.NewVersion(v.String())
	if err != nil {
		return false
	}
	return versionConstraint.Check(sv)
}

// ParseVersion parses "major.minor".
func ParseVersion(s string) (Version, error) {
	sv, err := semver.NewVersion(s)
	if err != nil {
		return Version{}, fmt.Errorf("parse version %q: %w", s, err)
	}
	if sv.Major() > 255 || sv.Minor() > 255 {
		return Version{}, fmt.Errorf("parse version %q: component out of range", s)
	}
	return Version{Major: uint8(sv.Major()), Minor: uint8(sv.Minor())}, nil
}
