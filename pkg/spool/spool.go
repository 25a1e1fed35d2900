// Copyright 2025 VPrint Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package spool stores pending job documents on disk while clients upload them.
package spool

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/vprint/vprint/pkg/job"
)

var (
	// ErrDocumentTooLarge indicates an upload that would exceed the maximum job size.
	ErrDocumentTooLarge = errors.New("document exceeds maximum job size")
	// ErrNoDocument indicates a job without a spool file.
	ErrNoDocument = errors.New("no spooled document for job")
)

const fileExt = ".spool"

// Store keeps one file per job under its root directory.
type Store struct {
	root    string
	maxSize int64

	mu    sync.Mutex
	locks map[job.ID]*sync.Mutex
}

// New creates the root directory if needed. maxSize bounds each document in bytes.
func New(root string, maxSize int64) (*Store, error) {
	if root == "" {
		return nil, errors.New("spool root is required")
	}
	if maxSize <= 0 {
		return nil, fmt.Errorf("max job size must be positive, got %d", maxSize)
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create spool directory: %w", err)
	}
	return &Store{root: root, maxSize: maxSize, locks: make(map[job.ID]*sync.Mutex)}, nil
}

// Root returns the spool directory.
func (s *Store) Root() string { return s.root }

// MaxSize returns the per-document size limit.
func (s *Store) MaxSize() int64 { return s.maxSize }

// Path returns where the document for id is stored.
func (s *Store) Path(id job.ID) string {
	return filepath.Join(s.root, id.String()+fileExt)
}

func (s *Store) lockFor(id job.ID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// Create makes an empty document file for id, truncating any previous one.
func (s *Store) Create(id job.ID) (string, error) {
	l := s.lockFor(id)
	l.Lock()
	defer l.Unlock()

	path := s.Path(id)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o640)
	if err != nil {
		return "", fmt.Errorf("create spool file: %w", err)
	}
	return path, f.Close()
}

// Append copies r to the end of the document for id and returns the new size.
// When the limit would be exceeded the document is removed and
// ErrDocumentTooLarge is returned.
func (s *Store) Append(id job.ID, r io.Reader) (int64, error) {
	l := s.lockFor(id)
	l.Lock()
	defer l.Unlock()

	path := s.Path(id)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: %s", ErrNoDocument, id)
		}
		return 0, fmt.Errorf("stat spool file: %w", err)
	}
	remaining := s.maxSize - info.Size()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return 0, fmt.Errorf("open spool file: %w", err)
	}

	// One extra byte tells an exact fit apart from an overflow.
	n, copyErr := io.Copy(f, io.LimitReader(r, remaining+1))
	closeErr := f.Close()

	if n > remaining {
		_ = os.Remove(path)
		return 0, fmt.Errorf("%w: limit %d bytes", ErrDocumentTooLarge, s.maxSize)
	}
	if copyErr != nil {
		return 0, fmt.Errorf("write spool file: %w", copyErr)
	}
	if closeErr != nil {
		return 0, fmt.Errorf("close spool file: %w", closeErr)
	}
	return info.Size() + n, nil
}

// Size returns the current document size for id.
func (s *Store) Size(id job.ID) (int64, error) {
	info, err := os.Stat(s.Path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: %s", ErrNoDocument, id)
		}
		return 0, err
	}
	return info.Size(), nil
}

// Remove deletes the document for id. Missing files are not an error.
func (s *Store) Remove(id job.ID) error {
	l := s.lockFor(id)
	l.Lock()
	err := os.Remove(s.Path(id))
	l.Unlock()

	s.mu.Lock()
	delete(s.locks, id)
	s.mu.Unlock()

	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove spool file: %w", err)
	}
	return nil
}
