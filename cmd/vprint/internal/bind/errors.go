package bind

import (
	"errors"
	"net"

	"github.com/vprint/vprint/pkg/config"
	"github.com/vprint/vprint/pkg/ipp"
	"github.com/vprint/vprint/pkg/job"
	"github.com/vprint/vprint/pkg/server"
)

// ErrInvalidInput reports a bad flag or argument.
var ErrInvalidInput = errors.New("invalid input")

// ConfigError maps a configuration load failure onto the server error codes.
func ConfigError(err error) error {
	if err == nil {
		return nil
	}

	var fe *config.FieldError
	if !errors.As(err, &fe) {
		return server.WrapInvalidConfig(err)
	}
	switch {
	case fe.IsPort():
		port, _ := fe.Value.(int)
		return server.NewInvalidPortError(fe.Key, port)
	case fe.Rule == "min" && fe.Param == "1":
		return server.NewInvalidLimitError(fe.Key, fe.Value)
	default:
		return server.WrapInvalidConfig(err)
	}
}

// ErrorCode resolves the suggestion code for a client command failure.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var se *ipp.StatusError
	if errors.As(err, &se) {
		switch {
		case se.Status == ipp.StatusNotFound:
			return "JOB_NOT_FOUND"
		case se.Status == ipp.StatusNotPossible:
			return "JOB_STATE_CONFLICT"
		case se.Status == ipp.StatusServiceUnavailable, se.Status == ipp.StatusServerBusy:
			return "PRINTER_BUSY"
		case se.Status == ipp.StatusRequestEntityTooLarge:
			return "DOCUMENT_TOO_LARGE"
		case se.Status == ipp.StatusDocumentFormatNotSupported:
			return "UNSUPPORTED_FORMAT"
		case se.Status.ClientError():
			return "INVALID_OPTIONS"
		default:
			return "PRINTER_ERROR"
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return "PRINTER_UNREACHABLE"
	}
	if errors.Is(err, ErrInvalidInput) {
		return "INVALID_INPUT"
	}
	if errors.Is(err, job.ErrUnsupportedFormat) {
		return "UNSUPPORTED_FORMAT"
	}
	return server.ErrorCode(err)
}
