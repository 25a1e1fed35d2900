// Package appctx carries process-wide handles on a context so that cobra
// commands can share them without package globals.
package appctx

import (
	"context"

	"github.com/vprint/vprint/pkg/config"
	"github.com/vprint/vprint/pkg/ipp"
)

type key string

const (
	configKey key = "vprint.config.manager"
	clientKey key = "vprint.ipp.client"
)

// WithConfig stores the shared config manager on context.
func WithConfig(ctx context.Context, manager *config.Manager) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, configKey, manager)
}

// Config retrieves the shared config manager from context.
func Config(ctx context.Context) (*config.Manager, bool) {
	if ctx == nil {
		return nil, false
	}
	mgr, ok := ctx.Value(configKey).(*config.Manager)
	return mgr, ok && mgr != nil
}

// WithClient stores the printer client used by the job commands.
func WithClient(ctx context.Context, c *ipp.Client) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, clientKey, c)
}

// Client retrieves the printer client from context.
func Client(ctx context.Context) (*ipp.Client, bool) {
	if ctx == nil {
		return nil, false
	}
	c, ok := ctx.Value(clientKey).(*ipp.Client)
	return c, ok && c != nil
}
