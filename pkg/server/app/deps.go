package app

import (
	"github.com/rs/zerolog"

	"github.com/vprint/vprint/pkg/config"
	"github.com/vprint/vprint/pkg/pipeline"
)

// Deps holds what the caller injects into the server application.
type Deps struct {
	// Config manager for the loaded configuration. Optional; New takes the
	// config value explicitly.
	Config *config.Manager

	// Pipeline overrides the default spooler pipeline.
	Pipeline pipeline.Pipeline

	// Logger for structured logging (injected by caller)
	Logger zerolog.Logger
}
