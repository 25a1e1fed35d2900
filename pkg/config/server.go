package config

import (
	"time"

	"github.com/spf13/pflag"
)

// DefaultPrinterConfig returns the default printer endpoint configuration.
func DefaultPrinterConfig() PrinterConfig {
	return PrinterConfig{
		Addr:           "0.0.0.0",
		Port:           631,
		Name:           "vprint",
		Info:           "Virtual Printer",
		Location:       "",
		MakeAndModel:   "VPrint Virtual IPP Printer",
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxConnections: 0,
	}
}

// DefaultJobsConfig returns the default queue and worker limits.
func DefaultJobsConfig() JobsConfig {
	return JobsConfig{
		MaxConcurrentJobs: 4,
		WorkerThreads:     2,
		QueueSize:         100,
		QueueTimeout:      30 * time.Second,
		JobTimeout:        300 * time.Second,
		MaxJobSize:        100 << 20,
		HistoryLimit:      100,
		CancelGrace:       5 * time.Second,
		RetryAttempts:     3,
	}
}

// DefaultAdminConfig returns the default admin HTTP configuration.
// The admin surface binds loopback only unless overridden.
func DefaultAdminConfig() AdminConfig {
	return AdminConfig{
		Enabled:       true,
		Addr:          "127.0.0.1",
		Port:          8631,
		APIEnabled:    true,
		EventsEnabled: true,
	}
}

// DefaultHotFolderConfig returns the default inbox watcher configuration.
func DefaultHotFolderConfig() HotFolderConfig {
	return HotFolderConfig{
		Enabled:  false,
		Debounce: 500 * time.Millisecond,
	}
}

// BindServerFlags binds the flags used by 'vprint server start'.
//
// Flags are namespaced after their config section so posflag maps them
// straight onto config keys. Example: --printer.port, --jobs.worker_threads
func BindServerFlags(flags *pflag.FlagSet) {
	p := DefaultPrinterConfig()
	j := DefaultJobsConfig()
	a := DefaultAdminConfig()
	h := DefaultHotFolderConfig()

	flags.String("printer.addr", p.Addr, "Printer listen address")
	flags.Int("printer.port", p.Port, "Printer listen port")
	flags.String("printer.name", p.Name, "Printer name announced to clients")
	flags.Duration("printer.read_timeout", p.ReadTimeout, "Connection read timeout")
	flags.Duration("printer.write_timeout", p.WriteTimeout, "Connection write timeout")
	flags.Int("printer.max_connections", p.MaxConnections, "Concurrent connection limit (0 = unlimited)")
	flags.String("printer.workspace_dir", "", "Workspace root (spool, output, inbox, logs)")

	flags.Int("jobs.max_concurrent_jobs", j.MaxConcurrentJobs, "Unfinished jobs admitted at once")
	flags.Int("jobs.worker_threads", j.WorkerThreads, "Number of job workers")
	flags.Int("jobs.queue_size", j.QueueSize, "Job queue capacity")
	flags.Duration("jobs.job_timeout", j.JobTimeout, "Per-job processing timeout")
	flags.Int64("jobs.max_job_size", j.MaxJobSize, "Maximum document size in bytes")

	flags.Bool("admin.enabled", a.Enabled, "Serve the admin HTTP endpoints")
	flags.Int("admin.port", a.Port, "Admin listen port")

	flags.Bool("hotfolder.enabled", h.Enabled, "Watch the inbox directory for documents")
	flags.String("hotfolder.dir", h.Dir, "Inbox directory")
}
