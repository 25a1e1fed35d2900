package main

import (
	"os"

	"github.com/vprint/vprint/cmd/vprint/commands"
	"github.com/vprint/vprint/cmd/vprint/internal/bind"
	"github.com/vprint/vprint/cmd/vprint/internal/format"
	"github.com/vprint/vprint/pkg/server"
)

// main runs the vprint CLI. Failures already reported by a command are not
// printed again; cobra usage errors are.
//
// Exit codes:
//   - 0: Success
//   - 1: General error (default)
//   - 2: Invalid usage, input or configuration
//   - 4: Job not found
//   - 7: Printer unreachable or server could not start
func main() {
	command := commands.NewCommand()

	if err := command.Execute(); err != nil {
		if !format.IsReported(err) {
			_ = format.New(os.Stdout, os.Stderr, format.ModeTable, false, true).PrintError(err)
		}
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code for an error.
func getExitCode(err error) int {
	switch bind.ErrorCode(err) {
	case "INVALID_INPUT", "INVALID_OPTIONS", "UNSUPPORTED_FORMAT":
		return 2
	case "JOB_NOT_FOUND":
		return 4
	case "PRINTER_UNREACHABLE":
		return 7
	}
	return server.ExitCode(err)
}
