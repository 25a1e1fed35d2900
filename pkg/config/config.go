// pkg/config/config.go
package config

import (
	"fmt"
	"sort"
	"sync"

	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Global Koanf instance, initialized once at startup.
var (
	k    *koanf.Koanf
	once sync.Once
)

// InitGlobalConfig initializes the global Koanf instance.
// This should be called early in the application lifecycle, before Load.
func InitGlobalConfig() {
	once.Do(func() {
		k = koanf.New(".")
	})
}

// Manager handles loading and accessing application configuration.
type Manager struct {
	koanfInstance *koanf.Koanf
	currentConfig Config
	mu            sync.RWMutex
}

// NewManager creates a new Manager backed by the global Koanf instance.
func NewManager() *Manager {
	InitGlobalConfig()
	return &Manager{
		koanfInstance: k,
		currentConfig: DefaultConfig(),
	}
}

// DefaultConfig returns a new Config struct populated with hardcoded default values.
// These serve as the baseline configuration if no other sources override them.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			File:   "",
		},
		Printer:   DefaultPrinterConfig(),
		Jobs:      DefaultJobsConfig(),
		Admin:     DefaultAdminConfig(),
		HotFolder: DefaultHotFolderConfig(),
	}
}

// Load loads configuration from defaults, the optional config file,
// VPRINT_* environment variables and the given flags, in that order.
func (m *Manager) Load(flags *pflag.FlagSet, customConfigFilePath string) error {
	debug := false
	if flags != nil {
		if f := flags.Lookup("debug"); f != nil && f.Value.String() == "true" {
			debug = true
		}
	}
	return m.LoadWithSources(DefaultSources(customConfigFilePath, flags, debug))
}

// LoadWithSources loads every source in ascending priority order and
// unmarshals the merged result. The manager's configuration is replaced only
// when all sources load and the result validates.
func (m *Manager) LoadWithSources(sources []ConfigSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ordered := make([]ConfigSource, len(sources))
	copy(ordered, sources)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority() < ordered[j].Priority()
	})

	for _, src := range ordered {
		if err := src.Load(m.koanfInstance); err != nil {
			return fmt.Errorf("config source %s: %w", src.Name(), err)
		}
	}

	var newCfg Config
	if err := m.koanfInstance.UnmarshalWithConf("", &newCfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("error unmarshaling final config: %w", err)
	}
	m.postProcessConfig(&newCfg)

	if err := Validate(newCfg); err != nil {
		return err
	}
	m.currentConfig = newCfg
	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentConfig
}

// Koanf exposes the merged key space, used by `vprint config show`.
func (m *Manager) Koanf() *koanf.Koanf {
	return m.koanfInstance
}

// postProcessConfig fills values derived from other settings.
func (m *Manager) postProcessConfig(cfg *Config) {
	if cfg.Printer.URI == "" {
		host := cfg.Printer.Addr
		if host == "" || host == "0.0.0.0" || host == "::" {
			host = "localhost"
		}
		cfg.Printer.URI = fmt.Sprintf("ipp://%s:%d/printers/%s", host, cfg.Printer.Port, cfg.Printer.Name)
	}
}

// DefaultConfigAsMap converts the DefaultConfig struct to a map[string]interface{}
// for Koanf's confmap.Provider. Every known key must be listed here; the env
// source relies on it to resolve names containing underscores.
func DefaultConfigAsMap() map[string]interface{} {
	def := DefaultConfig()
	return map[string]interface{}{
		// Log configuration
		"log.level":  def.Log.Level,
		"log.format": def.Log.Format,
		"log.file":   def.Log.File,

		// Printer configuration
		"printer.addr":            def.Printer.Addr,
		"printer.port":            def.Printer.Port,
		"printer.name":            def.Printer.Name,
		"printer.info":            def.Printer.Info,
		"printer.location":        def.Printer.Location,
		"printer.make_and_model":  def.Printer.MakeAndModel,
		"printer.uri":             def.Printer.URI,
		"printer.read_timeout":    def.Printer.ReadTimeout,
		"printer.write_timeout":   def.Printer.WriteTimeout,
		"printer.max_connections": def.Printer.MaxConnections,
		"printer.workspace_dir":   def.Printer.WorkspaceDir,

		// Jobs configuration
		"jobs.max_concurrent_jobs": def.Jobs.MaxConcurrentJobs,
		"jobs.worker_threads":      def.Jobs.WorkerThreads,
		"jobs.queue_size":          def.Jobs.QueueSize,
		"jobs.queue_timeout":       def.Jobs.QueueTimeout,
		"jobs.job_timeout":         def.Jobs.JobTimeout,
		"jobs.max_job_size":        def.Jobs.MaxJobSize,
		"jobs.history_limit":       def.Jobs.HistoryLimit,
		"jobs.cancel_grace":        def.Jobs.CancelGrace,
		"jobs.retry_attempts":      def.Jobs.RetryAttempts,
		"jobs.output_dir":          def.Jobs.OutputDir,

		// Admin configuration
		"admin.enabled":        def.Admin.Enabled,
		"admin.addr":           def.Admin.Addr,
		"admin.port":           def.Admin.Port,
		"admin.api_enabled":    def.Admin.APIEnabled,
		"admin.events_enabled": def.Admin.EventsEnabled,

		// Hot folder configuration
		"hotfolder.enabled":  def.HotFolder.Enabled,
		"hotfolder.dir":      def.HotFolder.Dir,
		"hotfolder.debounce": def.HotFolder.Debounce,
	}
}

// BindFlags defines the global flags shared by every command.
func BindFlags(flags *pflag.FlagSet) {
	var flagvar bool
	flags.BoolVar(&flagvar, "debug", false, "Enable debug logging")
}
