// Copyright 2025 VPrint Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
)

// OutputMode defines the output format for CLI commands
type OutputMode string

const (
	// ModeJSON outputs data as JSON
	ModeJSON OutputMode = "json"
	// ModeTable outputs data as aligned columns
	ModeTable OutputMode = "table"
)

// Formatter writes command results in the selected output mode.
type Formatter interface {
	// PrintJSON outputs data as indented JSON to stdout
	PrintJSON(data any) error

	// PrintTable outputs rows under headers. In JSON mode rows become objects.
	PrintTable(headers []string, rows [][]string) error

	// PrintFields outputs name/value pairs, one per line.
	PrintFields(fields [][2]string) error

	// PrintSummary outputs a one-line message unless quiet
	PrintSummary(message string) error

	// PrintError outputs an error to stderr (or JSON to stdout in JSON mode)
	PrintError(err error) error

	// PrintTotalFailureSummary prints a failed operation with suggestions
	PrintTotalFailureSummary(operation string, err error, errorCode string) error

	// IsJSON reports whether output is machine readable
	IsJSON() bool
}

type formatter struct {
	stdout io.Writer
	stderr io.Writer
	mode   OutputMode
	quiet  bool
	color  bool
}

// New creates a new Formatter
func New(stdout, stderr io.Writer, mode OutputMode, quiet, color bool) Formatter {
	return &formatter{
		stdout: stdout,
		stderr: stderr,
		mode:   mode,
		quiet:  quiet,
		color:  color,
	}
}

func (f *formatter) IsJSON() bool { return f.mode == ModeJSON }

func (f *formatter) PrintJSON(data any) error {
	enc := json.NewEncoder(f.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (f *formatter) PrintTable(headers []string, rows [][]string) error {
	if f.mode == ModeJSON {
		items := make([]map[string]string, 0, len(rows))
		for _, row := range rows {
			item := make(map[string]string, len(headers))
			for i, header := range headers {
				if i < len(row) {
					item[strings.ToLower(header)] = row[i]
				}
			}
			items = append(items, item)
		}
		return f.PrintJSON(items)
	}

	w := tabwriter.NewWriter(f.stdout, 0, 0, 2, ' ', 0)

	header := make([]string, len(headers))
	for i, h := range headers {
		header[i] = strings.ToUpper(h)
		if f.color {
			header[i] = color.New(color.Bold).Sprint(header[i])
		}
	}
	if _, err := fmt.Fprintln(w, strings.Join(header, "\t")); err != nil {
		return err
	}

	for _, row := range rows {
		if _, err := fmt.Fprintln(w, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return w.Flush()
}

func (f *formatter) PrintFields(fields [][2]string) error {
	if f.mode == ModeJSON {
		obj := make(map[string]string, len(fields))
		for _, kv := range fields {
			obj[kv[0]] = kv[1]
		}
		return f.PrintJSON(obj)
	}

	w := tabwriter.NewWriter(f.stdout, 0, 0, 2, ' ', 0)
	for _, kv := range fields {
		name := kv[0] + ":"
		if f.color {
			name = color.CyanString(name)
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\n", name, kv[1]); err != nil {
			return err
		}
	}
	return w.Flush()
}

func (f *formatter) PrintSummary(message string) error {
	if f.quiet {
		return nil
	}

	if f.mode == ModeJSON {
		// Keep stdout machine readable.
		_, err := fmt.Fprintln(f.stderr, message)
		return err
	}

	if f.color {
		_, err := color.New(color.FgGreen).Fprintln(f.stdout, message)
		return err
	}
	_, err := fmt.Fprintln(f.stdout, message)
	return err
}

func (f *formatter) PrintError(err error) error {
	if err == nil {
		return nil
	}

	if f.mode == ModeJSON {
		return f.PrintJSON(map[string]any{
			"success": false,
			"error":   err.Error(),
		})
	}

	var writeErr error
	if f.color {
		_, writeErr = color.New(color.FgRed).Fprintf(f.stderr, "Error: %v\n", err)
	} else {
		_, writeErr = fmt.Fprintf(f.stderr, "Error: %v\n", err)
	}
	return writeErr
}

// ValidateMode checks if the output mode is valid
func ValidateMode(mode string) error {
	switch OutputMode(mode) {
	case ModeJSON, ModeTable:
		return nil
	default:
		return fmt.Errorf("invalid output mode: %s (must be 'json' or 'table')", mode)
	}
}

// ParseMode converts a string to OutputMode. Unknown values fall back to table.
func ParseMode(mode string) OutputMode {
	if strings.EqualFold(mode, string(ModeJSON)) {
		return ModeJSON
	}
	return ModeTable
}
