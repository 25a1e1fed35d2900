// Copyright 2025 VPrint Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package listener accepts printer client connections and runs exactly one
// request/response exchange per connection.
package listener

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrServerClosed is returned by Serve after Shutdown.
var ErrServerClosed = errors.New("listener closed")

// Handler runs one exchange. r yields the request until the client closes its
// write side; w receives the response.
type Handler interface {
	Serve(ctx context.Context, r io.Reader, w io.Writer) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, r io.Reader, w io.Writer) error

// Serve calls f.
func (f HandlerFunc) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	return f(ctx, r, w)
}

// Config bounds each connection.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// MaxConnections caps concurrent exchanges. Zero means unlimited.
	MaxConnections int
}

// Server is a TCP accept loop with one goroutine per connection.
type Server struct {
	cfg     Config
	handler Handler
	logger  zerolog.Logger

	mu     sync.Mutex
	ln     net.Listener
	conns  map[net.Conn]struct{}
	closed bool
	wg     sync.WaitGroup
	slots  chan struct{}
}

// New returns a server for cfg. It does not listen yet.
func New(cfg Config, h Handler, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		handler: h,
		logger:  logger.With().Str("component", "listener").Logger(),
		conns:   make(map[net.Conn]struct{}),
	}
	if cfg.MaxConnections > 0 {
		s.slots = make(chan struct{}, cfg.MaxConnections)
	}
	return s
}

// Config returns the connection limits the server was built with.
func (s *Server) Config() Config { return s.cfg }

// ListenAndServe listens on cfg.Addr and serves until ctx is done or
// Shutdown is called.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Addr returns the bound address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve accepts connections on ln. It returns ErrServerClosed once ln is
// closed by Shutdown or by ctx.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = ln.Close()
		return ErrServerClosed
	}
	s.ln = ln
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { _ = s.closeListener() })
	defer stop()

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Printer listener started")

	var backoff time.Duration
	for {
		if s.slots != nil {
			select {
			case s.slots <- struct{}{}:
			case <-ctx.Done():
				return ErrServerClosed
			}
		}

		conn, err := ln.Accept()
		if err != nil {
			s.release()
			if s.isClosed() || ctx.Err() != nil {
				return ErrServerClosed
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				backoff = min(max(2*backoff, 5*time.Millisecond), time.Second)
				s.logger.Warn().Err(err).Dur("retry_in", backoff).Msg("Accept failed")
				time.Sleep(backoff)
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		backoff = 0

		s.track(conn, true)
		s.wg.Add(1)
		go s.handle(ctx, conn)
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Str("remote", conn.RemoteAddr().String()).Msg("Connection handler panicked")
		}
		_ = conn.Close()
		s.track(conn, false)
		s.release()
		s.wg.Done()
	}()

	now := time.Now()
	if s.cfg.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(now.Add(s.cfg.ReadTimeout))
	}
	if s.cfg.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(now.Add(s.cfg.ReadTimeout + s.cfg.WriteTimeout))
	}

	if err := s.handler.Serve(ctx, conn, conn); err != nil {
		s.logger.Debug().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("Exchange failed")
	}
}

func (s *Server) track(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

func (s *Server) release() {
	if s.slots != nil {
		<-s.slots
	}
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) closeListener() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.ln == nil {
		return nil
	}
	return s.ln.Close()
}

// ActiveConnections returns the number of connections being served.
func (s *Server) ActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Shutdown stops accepting and waits for in-flight exchanges. When ctx ends
// first the remaining connections are closed.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.closeListener()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("Printer listener stopped")
		return err
	case <-ctx.Done():
		s.mu.Lock()
		for conn := range s.conns {
			_ = conn.Close()
		}
		s.mu.Unlock()
		<-done
		s.logger.Warn().Msg("Printer listener forced connections closed")
		return ctx.Err()
	}
}
