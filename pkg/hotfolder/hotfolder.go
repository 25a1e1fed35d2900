// Copyright 2025 VPrint Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package hotfolder submits documents dropped into an inbox directory as
// print jobs.
package hotfolder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/vprint/vprint/pkg/job"
	"github.com/vprint/vprint/pkg/pipeline"
	"github.com/vprint/vprint/pkg/spool"
)

// RejectedDir collects inbox files that could not be submitted.
const RejectedDir = "rejected"

// User is the requesting-user-name recorded on hot folder jobs.
const User = "hotfolder"

// Submitter admits a spooled job.
type Submitter interface {
	AddJob(req *job.Request) error
}

// Watcher moves files that appear in dir into the spool and submits them.
// Each file is picked up once it has been quiet for the debounce delay.
type Watcher struct {
	dir      string
	submit   Submitter
	store    *spool.Store
	debounce time.Duration
	logger   zerolog.Logger

	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
	closed  bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a file is submitted.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// New creates a watcher over dir, creating dir and its rejected
// subdirectory when missing.
func New(dir string, submit Submitter, store *spool.Store, opts ...Option) (*Watcher, error) {
	if submit == nil || store == nil {
		return nil, errors.New("hotfolder requires a submitter and a spool store")
	}
	if err := os.MkdirAll(filepath.Join(dir, RejectedDir), 0o750); err != nil {
		return nil, fmt.Errorf("create hot folder: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		dir:      dir,
		submit:   submit,
		store:    store,
		debounce: 500 * time.Millisecond,
		logger:   zerolog.Nop(),
		watcher:  fw,
		pending:  make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With().Str("component", "hotfolder").Logger()
	return w, nil
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string { return w.dir }

// Run watches until ctx is cancelled. Files already present when Run starts
// are submitted too.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.watcher.Add(w.dir); err != nil {
		w.logger.Error().Err(err).Str("dir", w.dir).Msg("Failed to watch hot folder")
		_ = w.watcher.Close()
		return err
	}
	w.logger.Info().Str("dir", w.dir).Dur("debounce", w.debounce).Msg("Watching hot folder")

	defer w.shutdown()

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("scan hot folder: %w", err)
	}
	for _, e := range entries {
		if e.Type().IsRegular() {
			w.schedule(filepath.Join(w.dir, e.Name()))
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			w.schedule(ev.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("File watcher error")
		}
	}
}

func (w *Watcher) shutdown() {
	w.mu.Lock()
	w.closed = true
	for path, t := range w.pending {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
	w.mu.Unlock()

	w.wg.Wait()
	if err := w.watcher.Close(); err != nil {
		w.logger.Warn().Err(err).Msg("Error closing watcher")
	}
	w.logger.Info().Msg("Stopped watching hot folder")
}

// ignored reports names that are never submitted: hidden files, partial
// uploads and anything outside the top level of the inbox.
func (w *Watcher) ignored(path string) bool {
	if filepath.Dir(path) != filepath.Clean(w.dir) {
		return true
	}
	name := filepath.Base(path)
	return strings.HasPrefix(name, ".") ||
		strings.HasSuffix(name, ".part") ||
		strings.HasSuffix(name, ".tmp")
}

func (w *Watcher) schedule(path string) {
	if w.ignored(path) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if t, ok := w.pending[path]; ok {
		if t.Stop() {
			t.Reset(w.debounce)
			return
		}
		// Already firing; nothing to reset.
		return
	}

	w.wg.Add(1)
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		defer w.wg.Done()
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.ingest(path)
	})
}

// ingest copies path into the spool, submits it and removes the original.
// Files that fail are moved to the rejected directory.
func (w *Watcher) ingest(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		// Removed or renamed before the debounce fired.
		return
	}

	logger := w.logger.With().Str("file", filepath.Base(path)).Logger()
	req, err := w.spoolFile(path)
	if err != nil {
		logger.Warn().Err(err).Msg("Rejected hot folder document")
		w.reject(path)
		return
	}

	if err := w.submit.AddJob(req); err != nil {
		logger.Warn().Err(err).Str("job_id", req.ID.String()).Msg("Hot folder job not admitted")
		_ = w.store.Remove(req.ID)
		w.reject(path)
		return
	}

	if err := os.Remove(path); err != nil {
		logger.Warn().Err(err).Msg("Failed to remove submitted document")
	}
	logger.Info().Str("job_id", req.ID.String()).Msg("Submitted hot folder document")
}

func (w *Watcher) spoolFile(path string) (*job.Request, error) {
	format, err := pipeline.Sniff(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	req := job.NewRequest("", format)
	spoolPath, err := w.store.Create(req.ID)
	if err != nil {
		return nil, err
	}
	if _, err := w.store.Append(req.ID, f); err != nil {
		_ = w.store.Remove(req.ID)
		return nil, err
	}

	req.DocumentPath = spoolPath
	req.Name = filepath.Base(path)
	req.User = User
	return req, nil
}

func (w *Watcher) reject(path string) {
	dst := filepath.Join(w.dir, RejectedDir, filepath.Base(path))
	if err := os.Rename(path, dst); err != nil {
		w.logger.Error().Err(err).Str("file", path).Msg("Failed to move rejected document")
	}
}
