package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_DefaultsPass(t *testing.T) {
	require.NoError(t, Validate(DefaultConfig()))
}

func TestValidate_ReportsKoanfKey(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		key    string
		port   bool
	}{
		{"port zero", func(c *Config) { c.Printer.Port = 0 }, "printer.port", true},
		{"admin port too high", func(c *Config) { c.Admin.Port = 70000 }, "admin.port", true},
		{"no workers", func(c *Config) { c.Jobs.WorkerThreads = 0 }, "jobs.worker_threads", false},
		{"zero timeout", func(c *Config) { c.Jobs.JobTimeout = 0 }, "jobs.job_timeout", false},
		{"negative grace", func(c *Config) { c.Jobs.CancelGrace = -time.Second }, "jobs.cancel_grace", false},
		{"missing name", func(c *Config) { c.Printer.Name = "" }, "printer.name", false},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := Validate(cfg)
			require.Error(t, err)
			require.ErrorIs(t, err, ErrInvalidConfig)

			var fe *FieldError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.key, fe.Key)
			assert.Equal(t, tt.port, fe.IsPort())
			assert.Contains(t, fe.Error(), tt.key)
		})
	}
}
