package server

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	errorCodeInvalidPort       = "SERVER_INVALID_PORT"
	errorCodeInvalidLimits     = "SERVER_INVALID_LIMITS"
	errorCodeConfigUnavailable = "SERVER_CONFIG_UNAVAILABLE"
	errorCodeInvalidConfig     = "SERVER_INVALID_CONFIG"
	errorCodeWorkspaceFailed   = "SERVER_WORKSPACE_FAILED"
	errorCodeAppInitFailed     = "SERVER_INIT_FAILED"
	errorCodeRuntimeFailed     = "SERVER_RUNTIME_FAILED"
)

var (
	// ErrInvalidPort indicates an invalid printer or admin port.
	ErrInvalidPort = errors.New("invalid port")
	// ErrInvalidLimits indicates a zero or negative job limit.
	ErrInvalidLimits = errors.New("invalid job limits")
	// ErrConfigUnavailable indicates the CLI context lacked a config manager.
	ErrConfigUnavailable = errors.New("config manager unavailable")
)

type errorCoder interface {
	error
	Code() string
}

type withCodeError struct {
	error
	code string
}

func (e *withCodeError) Code() string {
	return e.code
}

func (e *withCodeError) Unwrap() error {
	return e.error
}

// WithErrorCode annotates err with a server error code.
func WithErrorCode(err error, code string) error {
	if err == nil {
		return nil
	}
	return &withCodeError{error: err, code: code}
}

// NewInvalidPortError formats an invalid port error with context.
func NewInvalidPortError(name string, port int) error {
	return WithErrorCode(fmt.Errorf("%w: %s %d: must be between 1 and 65535", ErrInvalidPort, name, port), errorCodeInvalidPort)
}

// NewInvalidLimitError formats an invalid job limit error.
func NewInvalidLimitError(name string, value any) error {
	return WithErrorCode(fmt.Errorf("%w: %s %v: must be at least 1", ErrInvalidLimits, name, value), errorCodeInvalidLimits)
}

// WrapInvalidConfig annotates config validation errors.
func WrapInvalidConfig(err error) error {
	if err == nil {
		return nil
	}
	return WithErrorCode(fmt.Errorf("invalid server configuration: %w", err), errorCodeInvalidConfig)
}

// WrapWorkspace annotates workspace and spool directory failures.
func WrapWorkspace(err error) error {
	if err == nil {
		return nil
	}
	return WithErrorCode(err, errorCodeWorkspaceFailed)
}

// WrapAppInit annotates server app creation failures.
func WrapAppInit(err error) error {
	if err == nil {
		return nil
	}
	return WithErrorCode(err, errorCodeAppInitFailed)
}

// WrapRuntime annotates server runtime failures.
func WrapRuntime(err error) error {
	if err == nil {
		return nil
	}
	return WithErrorCode(err, errorCodeRuntimeFailed)
}

// ErrorCode resolves a server error to its error code.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var coded errorCoder
	if errors.As(err, &coded) {
		if code := coded.Code(); code != "" {
			return code
		}
	}

	switch {
	case errors.Is(err, ErrInvalidPort):
		return errorCodeInvalidPort
	case errors.Is(err, ErrInvalidLimits):
		return errorCodeInvalidLimits
	case errors.Is(err, ErrConfigUnavailable):
		return errorCodeConfigUnavailable
	default:
		return errorCodeRuntimeFailed
	}
}

// codeInfo is what the CLI and admin API derive from an error code.
type codeInfo struct {
	exit        int
	status      int
	suggestions []string
}

var codes = map[string]codeInfo{
	errorCodeInvalidPort: {
		exit:   2,
		status: http.StatusBadRequest,
		suggestions: []string{
			"Use a port between 1 and 65535",
			"Example:                 vprint server start --printer.port 8631",
		},
	},
	errorCodeInvalidLimits: {
		exit:   2,
		status: http.StatusBadRequest,
		suggestions: []string{
			"Job limits (workers, queue size, concurrency) must be at least 1",
			"Example:                 vprint server start --jobs.worker_threads 2 --jobs.queue_size 100",
		},
	},
	errorCodeConfigUnavailable: {
		exit:   1,
		status: http.StatusInternalServerError,
		suggestions: []string{
			"Run via the vprint CLI so the config manager initializes",
		},
	},
	errorCodeInvalidConfig: {
		exit:   2,
		status: http.StatusInternalServerError,
		suggestions: []string{
			"Check configuration values in the config file",
			"Print the effective configuration: vprint config show",
		},
	},
	errorCodeWorkspaceFailed: {
		exit:   7,
		status: http.StatusInternalServerError,
		suggestions: []string{
			"Verify workspace directory permissions",
			"Override workspace root:   vprint server start --printer.workspace_dir <path>",
			"Make sure no other vprint server uses the same workspace",
		},
	},
	errorCodeAppInitFailed: {
		exit:   7,
		status: http.StatusInternalServerError,
		suggestions: []string{
			"Retry with verbose logging: vprint server start --debug",
			"Review configuration for invalid values",
		},
	},
	errorCodeRuntimeFailed: {
		exit:   1,
		status: http.StatusInternalServerError,
		suggestions: []string{
			"Check server logs for runtime errors",
			"Ensure no other process is using the printer port (631 needs privileges)",
		},
	},
}

// ExitCode maps server errors to CLI exit codes.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return lookup(err).exit
}

// HTTPStatus maps server errors to HTTP status codes.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return lookup(err).status
}

// Suggestions provides CLI hints for server errors.
func Suggestions(err error) []string {
	if err == nil {
		return nil
	}
	return lookup(err).suggestions
}

// lookup treats codes set outside this package as runtime failures.
func lookup(err error) codeInfo {
	if info, ok := codes[ErrorCode(err)]; ok {
		return info
	}
	return codes[errorCodeRuntimeFailed]
}
