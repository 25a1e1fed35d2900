// pkg/config/types.go
package config

import "time"

// Config is the root configuration structure for vprint.
// It aggregates all other specific configuration structs.
type Config struct {
	Log       LogConfig       `description:"Logging configuration" koanf:"log" yaml:"log"`
	Printer   PrinterConfig   `description:"Printer endpoint configuration" koanf:"printer" yaml:"printer"`
	Jobs      JobsConfig      `description:"Job queue and worker configuration" koanf:"jobs" yaml:"jobs"`
	Admin     AdminConfig     `description:"Admin HTTP configuration" koanf:"admin" yaml:"admin"`
	HotFolder HotFolderConfig `description:"Hot folder intake configuration" koanf:"hotfolder" yaml:"hotfolder"`
}

// LogConfig holds logging related configuration.
type LogConfig struct {
	Level  string `description:"Log level set to vprint logs." koanf:"level" yaml:"level" validate:"omitempty,oneof=trace debug info warn error fatal panic disabled"`
	Format string `description:"vprint log format: json | text" koanf:"format" yaml:"format" validate:"omitempty,oneof=json text"`
	File   string `description:"Log file path" koanf:"file" yaml:"file,omitempty"`
}

// PrinterConfig describes the IPP-style endpoint and the printer it announces.
type PrinterConfig struct {
	// Network settings
	Addr string `description:"Printer listen address" koanf:"addr" yaml:"addr"`
	Port int    `description:"Printer listen port" koanf:"port" yaml:"port" validate:"min=1,max=65535"`

	// Printer description attributes
	Name         string `description:"printer-name attribute" koanf:"name" yaml:"name" validate:"required"`
	Info         string `description:"printer-info attribute" koanf:"info" yaml:"info"`
	Location     string `description:"printer-location attribute" koanf:"location" yaml:"location"`
	MakeAndModel string `description:"printer-make-and-model attribute" koanf:"make_and_model" yaml:"make_and_model"`
	URI          string `description:"printer-uri-supported attribute (derived when empty)" koanf:"uri" yaml:"uri,omitempty"`

	// Per-connection timeouts
	ReadTimeout    time.Duration `description:"Connection read timeout" koanf:"read_timeout" yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout   time.Duration `description:"Connection write timeout" koanf:"write_timeout" yaml:"write_timeout" validate:"gt=0"`
	MaxConnections int           `description:"Concurrent connections limit (0 = unlimited)" koanf:"max_connections" yaml:"max_connections" validate:"min=0"`

	// Paths
	WorkspaceDir string `description:"Workspace root directory" koanf:"workspace_dir" yaml:"workspace_dir,omitempty"`
}

// JobsConfig bounds admission and processing.
type JobsConfig struct {
	MaxConcurrentJobs int           `description:"Unfinished jobs admitted at once" koanf:"max_concurrent_jobs" yaml:"max_concurrent_jobs" validate:"min=1"`
	WorkerThreads     int           `description:"Worker pool size" koanf:"worker_threads" yaml:"worker_threads" validate:"min=1"`
	QueueSize         int           `description:"Job queue capacity" koanf:"queue_size" yaml:"queue_size" validate:"min=1"`
	QueueTimeout      time.Duration `description:"How long a created job may wait for its document" koanf:"queue_timeout" yaml:"queue_timeout" validate:"gt=0"`
	JobTimeout        time.Duration `description:"Per-job processing timeout" koanf:"job_timeout" yaml:"job_timeout" validate:"gt=0"`
	MaxJobSize        int64         `description:"Maximum document size in bytes" koanf:"max_job_size" yaml:"max_job_size" validate:"min=1"`
	HistoryLimit      int           `description:"Finished jobs kept for queries" koanf:"history_limit" yaml:"history_limit" validate:"min=0"`
	CancelGrace       time.Duration `description:"How long cancel waits for a running job to stop" koanf:"cancel_grace" yaml:"cancel_grace" validate:"gte=0"`
	RetryAttempts     int           `description:"Attempts per pipeline step" koanf:"retry_attempts" yaml:"retry_attempts" validate:"min=1,max=10"`
	OutputDir         string        `description:"Where job tickets are written (empty uses the workspace output dir)" koanf:"output_dir" yaml:"output_dir,omitempty"`
}

// AdminConfig holds the admin HTTP surface configuration.
type AdminConfig struct {
	Enabled       bool   `description:"Serve the admin HTTP endpoints" koanf:"enabled" yaml:"enabled"`
	Addr          string `description:"Admin listen address" koanf:"addr" yaml:"addr"`
	Port          int    `description:"Admin listen port" koanf:"port" yaml:"port" validate:"min=1,max=65535"`
	APIEnabled    bool   `description:"Enable REST API endpoints" koanf:"api_enabled" yaml:"api_enabled"`
	EventsEnabled bool   `description:"Enable the websocket event stream" koanf:"events_enabled" yaml:"events_enabled"`
}

// HotFolderConfig configures the inbox directory watcher.
type HotFolderConfig struct {
	Enabled  bool          `description:"Submit documents dropped into the inbox" koanf:"enabled" yaml:"enabled"`
	Dir      string        `description:"Inbox directory (defaults to <workspace>/inbox)" koanf:"dir" yaml:"dir,omitempty"`
	Debounce time.Duration `description:"Quiet period before a dropped file is submitted" koanf:"debounce" yaml:"debounce" validate:"gte=0"`
}
