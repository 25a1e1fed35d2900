package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.Equal(t, 30*time.Second, cfg.HandlerTimeout, "HandlerTimeout should be 30s")
	require.Equal(t, 64, cfg.EventBuffer)
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		errType error
	}{
		{name: "valid default config", mutate: func(*Config) {}},
		{name: "zero handler timeout disables it", mutate: func(c *Config) { c.HandlerTimeout = 0 }},
		{name: "negative handler timeout", mutate: func(c *Config) { c.HandlerTimeout = -time.Second }, errType: ErrInvalidTimeout},
		{name: "negative ping interval", mutate: func(c *Config) { c.PingInterval = -time.Second }, errType: ErrInvalidTimeout},
		{name: "zero event buffer", mutate: func(c *Config) { c.EventBuffer = 0 }, errType: ErrInvalidBuffer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errType == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.errType)
		})
	}
}
