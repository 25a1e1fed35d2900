// pkg/logging/logging.go
package logging

import (
	"fmt"
	"io"
	stdLog "log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options selects where and how the process logs.
type Options struct {
	Level  string // zerolog level name; empty means info
	Format string // "json" or "text"
	File   string // optional log file, appended to in addition to stderr
}

var (
	mu        sync.Mutex
	logWriter io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
)

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// NewLogger returns a component logger writing JSON to stderr.
func NewLogger(component string, level zerolog.Level) zerolog.Logger {
	return NewLoggerWithWriter(component, level, os.Stderr)
}

// NewLoggerWithWriter returns a component logger writing JSON to w.
func NewLoggerWithWriter(component string, level zerolog.Level, w io.Writer) zerolog.Logger {
	return zerolog.New(w).Level(level).With().Timestamp().Str("component", component).Logger()
}

// ConfigureGlobal sets the global level and rebuilds log.Logger on the
// current writer.
func ConfigureGlobal(level zerolog.Level) {
	mu.Lock()
	w := logWriter
	mu.Unlock()

	zerolog.SetGlobalLevel(level)
	ctx := zerolog.New(w).With().Timestamp()
	if level <= zerolog.DebugLevel {
		ctx = ctx.Caller()
	}
	log.Logger = ctx.Logger().Level(level)
	zerolog.DefaultContextLogger = &log.Logger

	// Route stray stdlib log output through zerolog at debug.
	stdLog.SetFlags(0)
	stdLog.SetOutput(&stdLogWriter{logger: log.Logger})
}

// Configure applies opts to the global logger. The returned closer releases
// the log file, if one was opened.
func Configure(opts Options) (io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	var out io.Writer = os.Stderr
	if opts.Format != "json" {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	closer := io.Closer(nopCloser{})
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		// The file always gets JSON so it stays machine readable.
		out = zerolog.MultiLevelWriter(out, f)
		closer = f
	}

	SetLogWriter(out)
	ConfigureGlobal(level)
	return closer, nil
}

// ParseLevel converts a level name to a zerolog.Level. Empty means info.
func ParseLevel(s string) (zerolog.Level, error) {
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// SetLogWriter replaces the writer used by the next ConfigureGlobal.
func SetLogWriter(w io.Writer) {
	mu.Lock()
	logWriter = w
	mu.Unlock()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// stdLogWriter re-emits stdlib log lines as zerolog debug events.
type stdLogWriter struct {
	logger zerolog.Logger
}

func (w *stdLogWriter) Write(p []byte) (int, error) {
	w.logger.Debug().Str("source", "stdlog").Msg(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}

// LazyMessage creates a closure for deferred message evaluation.
func LazyMessage(args ...interface{}) func() string {
	return func() string { return fmt.Sprint(args...) }
}

// ConfigureGlobalLogging applies a level name to the global logger, keeping
// the current writer.
func ConfigureGlobalLogging(levelStr string) error {
	level, err := ParseLevel(levelStr)
	if err != nil {
		return err
	}
	ConfigureGlobal(level)
	return nil
}
