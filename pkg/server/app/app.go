package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vprint/vprint/pkg/config"
	"github.com/vprint/vprint/pkg/dispatch"
	"github.com/vprint/vprint/pkg/event"
	"github.com/vprint/vprint/pkg/hotfolder"
	"github.com/vprint/vprint/pkg/job"
	"github.com/vprint/vprint/pkg/pipeline"
	"github.com/vprint/vprint/pkg/queue"
	"github.com/vprint/vprint/pkg/server"
	"github.com/vprint/vprint/pkg/server/api"
	"github.com/vprint/vprint/pkg/server/httpx"
	"github.com/vprint/vprint/pkg/server/jobs"
	"github.com/vprint/vprint/pkg/server/listener"
	"github.com/vprint/vprint/pkg/spool"
	"github.com/vprint/vprint/pkg/workspace"
)

// ShutdownTimeout bounds the graceful shutdown of all components.
const ShutdownTimeout = 30 * time.Second

// App orchestrates the printer runtime:
// - IPP listener and dispatcher
// - Job queue and worker pool
// - Admin HTTP server (health, REST API, event stream)
// - Optional hot folder
type App struct {
	Config     config.Config
	Workspace  string
	Bus        *event.Bus
	Queue      *queue.Queue
	Spool      *spool.Store
	Processor  *jobs.Processor
	Dispatcher *dispatch.Dispatcher
	Printer    *listener.Server
	HTTP       *http.Server
	HotFolder  *hotfolder.Watcher
	Ready      *atomic.Bool
	Deps       *Deps

	unlock func() error

	mu          sync.Mutex
	printerAddr net.Addr
	adminAddr   net.Addr
}

// New prepares the workspace and builds every component. Nothing listens
// until Run.
func New(ctx context.Context, cfg config.Config, deps *Deps) (*App, error) {
	if deps == nil {
		deps = &Deps{}
	}
	logger := deps.Logger
	logger.Info().Str("printer", cfg.Printer.Name).Msg("Initializing print server")

	root, err := workspace.Prepare(cfg.Printer.WorkspaceDir)
	if err != nil {
		return nil, server.WrapWorkspace(err)
	}
	unlock, err := workspace.Lock(root)
	if err != nil {
		return nil, server.WrapWorkspace(err)
	}

	a := &App{
		Config:    cfg,
		Workspace: root,
		Bus:       event.New(),
		Ready:     &atomic.Bool{},
		Deps:      deps,
		unlock:    unlock,
	}
	if err := a.build(ctx); err != nil {
		_ = unlock()
		return nil, server.WrapAppInit(err)
	}
	return a, nil
}

func (a *App) build(_ context.Context) error {
	cfg := a.Config
	logger := a.Deps.Logger

	store, err := spool.New(workspace.Path(a.Workspace, workspace.SpoolDir), cfg.Jobs.MaxJobSize)
	if err != nil {
		return err
	}
	a.Spool = store

	q, err := queue.New(cfg.Jobs.QueueSize)
	if err != nil {
		return err
	}
	a.Queue = q

	pl := a.Deps.Pipeline
	if pl == nil {
		outDir := cfg.Jobs.OutputDir
		if outDir == "" {
			outDir = workspace.Path(a.Workspace, workspace.OutputDir)
		}
		retry := pipeline.DefaultRetryConfig()
		retry.MaxAttempts = cfg.Jobs.RetryAttempts
		pl = pipeline.NewSpooler(
			pipeline.WithOutputDir(outDir),
			pipeline.WithRetryConfig(retry),
			pipeline.WithLogger(logger),
		)
	}

	proc, err := jobs.NewProcessor(jobs.Config{
		MaxConcurrentJobs: cfg.Jobs.MaxConcurrentJobs,
		WorkerThreads:     cfg.Jobs.WorkerThreads,
		QueueTimeout:      cfg.Jobs.QueueTimeout,
		JobTimeout:        cfg.Jobs.JobTimeout,
		HistoryLimit:      cfg.Jobs.HistoryLimit,
		CancelGrace:       cfg.Jobs.CancelGrace,
	}, q, pl,
		jobs.WithPublisher(a.Bus),
		jobs.WithLogger(logger),
		jobs.WithFinishHook(func(rec job.Record) {
			if err := store.Remove(rec.Request.ID); err != nil {
				logger.Warn().Err(err).Str("job_id", rec.Request.ID.String()).Msg("Failed to remove spooled document")
			}
		}),
	)
	if err != nil {
		return err
	}
	a.Processor = proc

	disp, err := dispatch.New(dispatch.Config{
		Printer: dispatch.PrinterInfo{
			Name:         cfg.Printer.Name,
			Info:         cfg.Printer.Info,
			Location:     cfg.Printer.Location,
			MakeAndModel: cfg.Printer.MakeAndModel,
			URI:          cfg.Printer.URI,
		},
		MaxJobSize:        cfg.Jobs.MaxJobSize,
		MaxConcurrentJobs: cfg.Jobs.MaxConcurrentJobs,
	}, proc, store, logger)
	if err != nil {
		return err
	}
	a.Dispatcher = disp

	a.Printer = listener.New(listener.Config{
		Addr:           hostPort(cfg.Printer.Addr, cfg.Printer.Port),
		ReadTimeout:    cfg.Printer.ReadTimeout,
		WriteTimeout:   cfg.Printer.WriteTimeout,
		MaxConnections: cfg.Printer.MaxConnections,
	}, disp, logger)

	if cfg.Admin.Enabled {
		apiDeps := &api.Deps{
			Jobs:    proc,
			Printer: disp,
			Events:  a.Bus,
			Config:  api.DefaultConfig(),
			Ready:   a.Ready,
		}
		a.HTTP = &http.Server{
			Addr:              hostPort(cfg.Admin.Addr, cfg.Admin.Port),
			Handler:           httpx.Chain(httpx.NewRouter(cfg.Admin, apiDeps)),
			ReadHeaderTimeout: cfg.Printer.ReadTimeout,
		}
		if !cfg.Admin.APIEnabled {
			logger.Warn().Msg("Admin API endpoints disabled")
		}
	}

	if cfg.HotFolder.Enabled {
		dir := cfg.HotFolder.Dir
		if dir == "" {
			dir = workspace.Path(a.Workspace, workspace.InboxDir)
		}
		w, err := hotfolder.New(dir, proc, store,
			hotfolder.WithDebounce(cfg.HotFolder.Debounce),
			hotfolder.WithLogger(logger),
		)
		if err != nil {
			return err
		}
		a.HotFolder = w
	}
	return nil
}

func hostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// PrinterAddr returns the bound IPP address once Run has started listening.
func (a *App) PrinterAddr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.printerAddr
}

// AdminAddr returns the bound admin address, or nil when the admin server
// is disabled or not yet listening.
func (a *App) AdminAddr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.adminAddr
}

// Run starts every component and blocks until ctx is done or one of the
// servers fails.
func (a *App) Run(ctx context.Context) error {
	logger := a.Deps.Logger
	defer a.releaseWorkspace()

	var lc net.ListenConfig
	printerLn, err := lc.Listen(ctx, "tcp", a.Printer.Config().Addr)
	if err != nil {
		return server.WrapRuntime(fmt.Errorf("listen on %s: %w", a.Printer.Config().Addr, err))
	}

	var adminLn net.Listener
	if a.HTTP != nil {
		adminLn, err = lc.Listen(ctx, "tcp", a.HTTP.Addr)
		if err != nil {
			_ = printerLn.Close()
			return server.WrapRuntime(fmt.Errorf("listen on %s: %w", a.HTTP.Addr, err))
		}
	}

	a.mu.Lock()
	a.printerAddr = printerLn.Addr()
	if adminLn != nil {
		a.adminAddr = adminLn.Addr()
	}
	a.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.Processor.Start(runCtx); err != nil {
		_ = printerLn.Close()
		if adminLn != nil {
			_ = adminLn.Close()
		}
		return server.WrapRuntime(fmt.Errorf("start jobs: %w", err))
	}

	serverErr := make(chan error, 3)
	go func() {
		if err := a.Printer.Serve(runCtx, printerLn); err != nil && !errors.Is(err, listener.ErrServerClosed) {
			serverErr <- fmt.Errorf("IPP listener failed: %w", err)
		}
	}()
	if adminLn != nil {
		go func() {
			if err := a.HTTP.Serve(adminLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- fmt.Errorf("admin server failed: %w", err)
			}
		}()
	}

	var hotDone chan struct{}
	if a.HotFolder != nil {
		hotDone = make(chan struct{})
		go func() {
			defer close(hotDone)
			if err := a.HotFolder.Run(runCtx); err != nil {
				serverErr <- fmt.Errorf("hot folder failed: %w", err)
			}
		}()
	}

	stopSignals := a.watchSignals(runCtx)
	defer stopSignals()

	a.Ready.Store(true)
	ev := logger.Info().
		Str("printer_addr", a.printerAddr.String()).
		Str("printer_uri", a.Config.Printer.URI).
		Bool("hotfolder", a.HotFolder != nil)
	if a.adminAddr != nil {
		ev = ev.Str("admin_addr", a.adminAddr.String())
	}
	ev.Msg("Print server is ready")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("Shutdown signal received")
	case runErr = <-serverErr:
		logger.Error().Err(runErr).Msg("Server error")
		runErr = server.WrapRuntime(runErr)
	}

	cancel()
	if hotDone != nil {
		<-hotDone
	}
	if err := a.shutdown(); err != nil && runErr == nil {
		runErr = server.WrapRuntime(err)
	}
	return runErr
}

// shutdown stops accepting work first, then drains the worker pool.
func (a *App) shutdown() error {
	logger := a.Deps.Logger
	logger.Info().Msg("Initiating graceful shutdown")
	a.Ready.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.Printer.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("IPP listener shutdown failed")
		errs = append(errs, err)
	}

	if a.HTTP != nil {
		if err := a.HTTP.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("Admin server shutdown failed")
			errs = append(errs, err)
		}
	}

	if err := a.Processor.Stop(ctx); err != nil {
		logger.Error().Err(err).Msg("Job processor shutdown failed")
		errs = append(errs, err)
	}

	logger.Info().Msg("Server shutdown complete")
	return errors.Join(errs...)
}

// Close releases the workspace lock of an App that never ran.
func (a *App) Close() error {
	return a.releaseWorkspace()
}

func (a *App) releaseWorkspace() error {
	a.mu.Lock()
	unlock := a.unlock
	a.unlock = nil
	a.mu.Unlock()
	if unlock == nil {
		return nil
	}
	return unlock()
}

func (a *App) dumpStats() {
	st := a.Processor.Stats()
	a.Deps.Logger.Info().
		Int("queued", st.Queue.Size).
		Int("queue_capacity", st.Queue.Capacity).
		Int("active_jobs", st.Active).
		Int("workers", st.Workers).
		Int("unfinished_jobs", st.Unfinished).
		Int("open_connections", a.Printer.ActiveConnections()).
		Msg("Print server statistics")
}
