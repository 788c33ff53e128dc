// Copyright (C) 2025 Mono Technologies Inc.
//
// This program is free software; you can redistribute it and/or
// modify it under the terms of the GNU General Public License
// as published by the Free Software Foundation; version 2.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.

package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/we-are-mono/netopt/daemon/logger"
	"github.com/we-are-mono/netopt/plan"
	"github.com/we-are-mono/netopt/session"
	"github.com/we-are-mono/netopt/system"
	"github.com/we-are-mono/netopt/types"
)

// GetSocketPath returns the daemon socket path from NETOPT_SOCKET_PATH,
// falling back to the user runtime directory and then /tmp.
func GetSocketPath() string {
	if path := os.Getenv("NETOPT_SOCKET_PATH"); path != "" {
		return path
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "netopt.sock")
	}
	return "/tmp/netopt.sock"
}

// InterfaceLister lists the interfaces that can be tuned.
type InterfaceLister interface {
	Describe() ([]system.InterfaceInfo, error)
}

// AuditLog reads back persisted log entries.
type AuditLog interface {
	Query(filter logger.QueryFilter) ([]logger.Entry, error)
}

// Config wires the server to the system layer.
type Config struct {
	SocketPath    string
	Version       string
	RestoreOnExit bool
	HistorySize   int

	Capturer session.Capturer
	Mutator  session.Mutator
	Links    InterfaceLister
	FS       system.FilesystemClient
	Audit    AuditLog // nil when the sqlite output is disabled
}

// handlerFunc is a function that handles a daemon command
type handlerFunc func(Request) Response

type Server struct {
	cfg      Config
	state    *State
	listener net.Listener
	done     chan struct{}
	handlers map[string]handlerFunc
	started  time.Time

	// ctx is cancelled by Stop so an apply in flight stops between steps.
	ctx    context.Context
	cancel context.CancelFunc

	// mu serializes every request that touches the system.
	mu       sync.Mutex
	stopOnce sync.Once
}

// NewServer creates the server and binds its socket.
func NewServer(cfg Config) (*Server, error) {
	if cfg.SocketPath == "" {
		cfg.SocketPath = GetSocketPath()
	}
	os.Remove(cfg.SocketPath)

	listener, err := net.Listen("unix", cfg.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create socket: %w", err)
	}

	if err := os.Chmod(cfg.SocketPath, 0600); err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s := newServer(cfg)
	s.listener = listener
	return s, nil
}

// newServer builds a server without a listener.
func newServer(cfg Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:     cfg,
		done:    make(chan struct{}),
		started: time.Now(),
		ctx:     ctx,
		cancel:  cancel,
	}
	s.state = NewState(func() *session.Session {
		return session.New(cfg.Capturer, cfg.Mutator)
	}, cfg.HistorySize)

	// Initialize command handlers
	s.handlers = map[string]handlerFunc{
		CommandStatus:     func(req Request) Response { return s.handleStatus() },
		CommandInterfaces: func(req Request) Response { return s.handleInterfaces() },
		CommandShow:       func(req Request) Response { return s.handleShow(req.Interface) },
		CommandSnapshot:   func(req Request) Response { return s.handleSnapshot(req.Interface) },
		CommandApply:      func(req Request) Response { return s.handleApply(req.Options) },
		CommandRollback:   func(req Request) Response { return s.handleRollback() },
		CommandEnd:        func(req Request) Response { return s.handleEnd() },
		CommandAudit:      func(req Request) Response { return s.handleAudit(req.LogFilter) },
	}
	return s
}

// Start accepts connections until Stop is called.
func (s *Server) Start() error {
	logger.Info("netopt daemon starting",
		logger.Field{Key: "version", Value: s.cfg.Version},
		logger.Field{Key: "restore_on_exit", Value: s.cfg.RestoreOnExit})

	logger.Info("Daemon listening", logger.Field{Key: "socket", Value: s.cfg.SocketPath})

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// Check if we're shutting down
			select {
			case <-s.done:
				return nil
			default:
				logger.Error("Failed to accept connection",
					logger.Field{Key: "error", Value: err.Error()})
				continue
			}
		}

		go s.handleConnection(conn)
	}
}

// Stop closes the socket and, with RestoreOnExit, rolls back a session
// that has changed the interface.
func (s *Server) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.done)
		s.cancel()
		if s.listener != nil {
			s.listener.Close()
			os.Remove(s.cfg.SocketPath)
		}
		if s.cfg.RestoreOnExit {
			err = s.restoreOnExit()
		}
	})
	return err
}

func (s *Server) restoreOnExit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.state.Current()
	if sess == nil {
		return nil
	}
	switch sess.State() {
	case session.StateApplied, session.StatePartiallyApplied:
	default:
		return nil
	}

	logger.Info("Restoring snapshot before exit",
		logger.Field{Key: "interface", Value: string(sess.Interface())})

	// The server context is already cancelled here.
	result, err := sess.Rollback(context.Background())
	if err != nil {
		return fmt.Errorf("failed to restore %s: %w", sess.Interface(), err)
	}
	return result.Err()
}

func (s *Server) handleConnection(conn net.Conn) {
	reader := bufio.NewReader(conn)
	data, err := reader.ReadBytes('\n')
	if err != nil {
		conn.Close()
		return
	}

	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendResponse(conn, Response{
			Success: false,
			Error:   fmt.Sprintf("invalid request: %v", err),
		})
		conn.Close()
		return
	}

	// Handle streaming log subscription specially (keeps connection open)
	if req.Command == CommandLogsSubscribe {
		defer conn.Close()

		filter := req.LogFilter
		if filter == nil {
			filter = &LogFilter{}
		}

		s.handleLogsSubscribe(conn, filter)
		return
	}

	defer conn.Close()
	resp := s.handleRequest(req)
	s.sendResponse(conn, resp)
}

func (s *Server) handleRequest(req Request) Response {
	handler, exists := s.handlers[req.Command]
	if !exists {
		return Response{
			Success: false,
			Error:   fmt.Sprintf("unknown command: %s", req.Command),
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	logger.Debug("Handling request", logger.Field{Key: "command", Value: req.Command})
	return handler(req)
}

func (s *Server) handleStatus() Response {
	data := StatusData{
		Version:       s.cfg.Version,
		PID:           os.Getpid(),
		Uptime:        system.FormatDuration(time.Since(s.started)),
		RestoreOnExit: s.cfg.RestoreOnExit,
		History:       s.state.History(),
	}
	if s.cfg.FS != nil {
		data.Host = system.ReadHostInfo(s.cfg.FS)
	}

	message := "No active session"
	if sess := s.state.Current(); sess != nil {
		info := sess.Info()
		data.Session = &info
		message = fmt.Sprintf("Session for %s is %s", info.Interface, info.State)
	}

	return Response{Success: true, Message: message, Data: data}
}

func (s *Server) handleInterfaces() Response {
	infos, err := s.cfg.Links.Describe()
	if err != nil {
		return errorResponse(fmt.Errorf("failed to list interfaces: %w", err))
	}
	return Response{Success: true, Data: infos}
}

// handleShow reads the live state of iface without opening a session.
// With no interface it shows the session interface.
func (s *Server) handleShow(iface types.InterfaceID) Response {
	sess := s.state.Current()
	if iface == "" {
		if sess == nil {
			return Response{Success: false, Error: "no interface given and no active session"}
		}
		iface = sess.Interface()
	}

	current, err := s.cfg.Capturer.Capture(iface)
	if err != nil {
		return errorResponse(err)
	}

	data := ShowData{Current: current}
	if sess != nil && sess.Interface() == iface {
		if snap, err := sess.Snapshot(); err == nil {
			data.Snapshot = &snap
			data.Differs = !snap.SameSettings(&current)
		}
	}
	return Response{Success: true, Data: data}
}

func (s *Server) handleSnapshot(iface types.InterfaceID) Response {
	if iface == "" {
		return Response{Success: false, Error: "interface is required"}
	}

	sess, err := s.state.Open(iface)
	if err != nil {
		return errorResponse(err)
	}

	snap, err := sess.Snapshot()
	if err != nil {
		return errorResponse(err)
	}

	message := fmt.Sprintf("Snapshot captured for %s", iface)
	if missing := snap.UnavailableFields(); len(missing) > 0 {
		message = fmt.Sprintf("%s (%d field(s) unavailable)", message, len(missing))
	}
	return Response{Success: true, Message: message, Data: sess.Info()}
}

// handleApply builds a plan from opts and applies it. Without an open
// session, one is opened for the plan's interface first.
func (s *Server) handleApply(opts *plan.Options) Response {
	if opts == nil {
		return Response{Success: false, Error: "apply requires options"}
	}

	p, err := plan.Build(*opts)
	if err != nil {
		return errorResponse(err)
	}

	sess := s.state.Current()
	if sess == nil {
		if sess, err = s.state.Open(p.Interface()); err != nil {
			return errorResponse(err)
		}
	}

	result, err := sess.Apply(s.ctx, p)
	if err != nil {
		return errorResponse(err)
	}

	return resultResponse(result, sess.State())
}

func (s *Server) handleRollback() Response {
	sess := s.state.Current()
	if sess == nil {
		return errorResponse(session.ErrNoSnapshot)
	}

	// Rollback always runs to completion, even while stopping.
	result, err := sess.Rollback(context.Background())
	if err != nil {
		return errorResponse(err)
	}

	return resultResponse(result, sess.State())
}

func (s *Server) handleEnd() Response {
	info, ok := s.state.Close()
	if !ok {
		return Response{Success: true, Message: "No active session"}
	}
	return Response{
		Success: true,
		Message: fmt.Sprintf("Session for %s ended, snapshot discarded", info.Interface),
		Data:    info,
	}
}

func (s *Server) handleAudit(filter *LogFilter) Response {
	if s.cfg.Audit == nil {
		return Response{Success: false, Error: "audit log is not enabled (add \"sqlite\" to logging.outputs)"}
	}
	if filter == nil {
		filter = &LogFilter{}
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	entries, err := s.cfg.Audit.Query(logger.QueryFilter{
		Level:     filter.Level,
		Component: filter.Component,
		Limit:     limit,
	})
	if err != nil {
		return errorResponse(fmt.Errorf("failed to query audit log: %w", err))
	}
	return Response{Success: true, Data: entries}
}

// resultResponse reports partial success as a successful request: the
// result itself carries the failed steps.
func resultResponse(result *system.Result, state session.State) Response {
	failed := result.Count(system.OutcomeFailed)
	message := fmt.Sprintf("%s on %s finished: %d changed, %d skipped, %d failed (session %s)",
		result.Operation, result.Interface,
		result.Count(system.OutcomeSuccess), result.Count(system.OutcomeSkipped), failed, state)
	if result.Cancelled() {
		message += ", cancelled"
	}
	return Response{Success: true, Message: message, Data: result}
}

func errorResponse(err error) Response {
	logger.Warn("Request failed", logger.Field{Key: "error", Value: err.Error()})

	msg := err.Error()
	switch {
	case errors.Is(err, session.ErrNoSnapshot):
		msg += " (run 'netopt snapshot <interface>' first)"
	case errors.Is(err, ErrSessionOpen), errors.Is(err, session.ErrAlreadyCaptured):
		msg += " (run 'netopt end' to discard it)"
	}
	return Response{Success: false, Error: msg}
}

func (s *Server) sendResponse(conn net.Conn, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		logger.Error("Failed to marshal response",
			logger.Field{Key: "error", Value: err.Error()})
		return
	}

	data = append(data, '\n')
	if _, err := conn.Write(data); err != nil {
		logger.Error("Failed to write response",
			logger.Field{Key: "error", Value: err.Error()})
	}
}

// handleLogsSubscribe streams log entries to conn until the client hangs
// up, a write fails or the daemon stops.
func (s *Server) handleLogsSubscribe(conn net.Conn, filter *LogFilter) {
	emitter := logger.GetEmitter()
	if emitter == nil {
		s.sendResponse(conn, Response{Success: false, Error: "log streaming is not available"})
		return
	}

	subscriber := NewSocketLogSubscriber(conn, filter)
	emitter.Subscribe(subscriber)
	defer func() {
		emitter.Unsubscribe(subscriber)
		subscriber.Close()
	}()

	logger.Info("Client subscribed to log stream",
		logger.Field{Key: "level", Value: filter.Level},
		logger.Field{Key: "component", Value: filter.Component})

	// The client never sends after subscribing; a read returns when it
	// disconnects.
	hangup := make(chan struct{})
	go func() {
		defer close(hangup)
		buf := make([]byte, 1)
		for {
			if _, err := conn.Read(buf); err != nil {
				return
			}
		}
	}()

	select {
	case <-hangup:
		logger.Info("Client unsubscribed from log stream")
	case <-subscriber.Done():
		logger.Info("Log stream client stopped reading")
	case <-s.done:
	}
}
