// Copyright 2025 VPrint Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package format

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/vprint/vprint/pkg/server"
)

// PrintTotalFailureSummary prints a failed operation and hints for errorCode.
// Example output:
//
//	✗ Failed to cancel job: client-error-not-found: job not found
//
//	💡 Suggestions:
//	  → List jobs:               vprint job list --which all
func (f *formatter) PrintTotalFailureSummary(operation string, err error, errorCode string) error {
	if f.quiet {
		return nil
	}

	if f.mode == ModeJSON {
		return f.PrintJSON(map[string]any{
			"success":    false,
			"operation":  operation,
			"error":      err.Error(),
			"error_code": errorCode,
		})
	}

	var sb strings.Builder
	msg := fmt.Sprintf("✗ Failed to %s: %v", operation, err)
	if f.color {
		sb.WriteString(color.RedString("%s\n", msg))
	} else {
		sb.WriteString(msg + "\n")
	}

	suggestions := GetSuggestions(errorCode, operation)
	if len(suggestions) == 0 {
		suggestions = server.Suggestions(err)
	}
	if len(suggestions) > 0 {
		sb.WriteString("\n💡 Suggestions:\n")
		for _, s := range suggestions {
			sb.WriteString(fmt.Sprintf("  → %s\n", s))
		}
	}

	_, writeErr := f.stdout.Write([]byte(sb.String()))
	return writeErr
}

var suggestionGenerators = map[string]func(string) []string{
	"PRINTER_UNREACHABLE": func(string) []string {
		return []string{
			"Start the printer:         vprint server start",
			"Point at another printer:  vprint --printer host:631 <command>",
		}
	},
	"JOB_NOT_FOUND": func(string) []string {
		return []string{
			"List jobs:                 vprint job list --which all",
			"Finished jobs are dropped once the history limit is reached",
		}
	},
	"JOB_STATE_CONFLICT": func(operation string) []string {
		return []string{
			"Check the job state:       vprint job status <job-id>",
			fmt.Sprintf("Only unfinished jobs can be asked to %s", operation),
		}
	},
	"PRINTER_BUSY": func(string) []string {
		return []string{
			"Retry once running jobs finish",
			"Inspect the queue:         vprint printer",
		}
	},
	"DOCUMENT_TOO_LARGE": func(string) []string {
		return []string{
			"Raise the limit:           vprint server start --jobs.max_job_size <bytes>",
		}
	},
	"UNSUPPORTED_FORMAT": func(string) []string {
		return []string{
			"Supported formats: application/pdf, application/postscript",
			"Force a format:            vprint print --format application/pdf <file>",
		}
	},
	"INVALID_OPTIONS": func(string) []string {
		return []string{
			"Check copies, page ranges and number-up against the document",
			"Dry run:                   vprint print --validate-only <file>",
		}
	},
	"INVALID_INPUT": func(operation string) []string {
		return []string{
			fmt.Sprintf("Run help for options:      vprint %s --help", operation),
		}
	},
	"PRINTER_ERROR": func(string) []string {
		return []string{
			"Check the printer logs: the request failed on the server side",
		}
	},
}

// GetSuggestions returns actionable hints based on error code and operation.
func GetSuggestions(errorCode, operation string) []string {
	if generator, ok := suggestionGenerators[errorCode]; ok {
		return generator(operation)
	}
	return nil
}

type reportedError struct{ error }

func (e reportedError) Unwrap() error { return e.error }

// Reported marks err as already shown to the user.
func Reported(err error) error {
	if err == nil {
		return nil
	}
	return reportedError{err}
}

// IsReported reports whether err was already printed.
func IsReported(err error) bool {
	var r reportedError
	return errors.As(err, &r)
}
