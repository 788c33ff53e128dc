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
	"errors"
	"fmt"
	"sync"

	"github.com/we-are-mono/netopt/session"
	"github.com/we-are-mono/netopt/types"
)

// DefaultHistorySize is how many ended sessions are kept for status output.
const DefaultHistorySize = 10

// ErrSessionOpen is returned when a snapshot is requested while another
// session still holds one.
var ErrSessionOpen = errors.New("a session is already open")

// State holds the daemon's in-memory session state. Nothing is persisted:
// a restarted daemon starts without a session.
type State struct {
	mu sync.RWMutex

	current     *session.Session
	history     []session.Info // oldest first
	historySize int
	newSession  func() *session.Session
}

// NewState creates a state manager that opens sessions with newSession.
func NewState(newSession func() *session.Session, historySize int) *State {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	return &State{
		newSession:  newSession,
		historySize: historySize,
	}
}

// Current returns the open session, or nil.
func (s *State) Current() *session.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Open starts a session for iface and captures its snapshot. It fails if a
// session with a snapshot is already open, whatever interface it is for.
func (s *State) Open(iface types.InterfaceID) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		return nil, fmt.Errorf("%w for %s (end it first)", ErrSessionOpen, s.current.Interface())
	}

	sess := s.newSession()
	if _, err := sess.Capture(iface); err != nil {
		return nil, err
	}
	s.current = sess
	return sess, nil
}

// Close ends the open session and moves it to the history. It returns the
// final view of the session, or false when none was open.
func (s *State) Close() (session.Info, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return session.Info{}, false
	}

	// Keep the interface in the history entry, End drops the snapshot.
	iface := s.current.Interface()
	s.current.End()
	info := s.current.Info()
	info.Interface = iface

	s.history = append(s.history, info)
	s.pruneHistory()
	s.current = nil
	return info, true
}

// History returns the ended sessions, newest first.
func (s *State) History() []session.Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]session.Info, 0, len(s.history))
	for i := len(s.history) - 1; i >= 0; i-- {
		out = append(out, s.history[i])
	}
	return out
}

// pruneHistory drops the oldest entries beyond historySize.
func (s *State) pruneHistory() {
	if len(s.history) <= s.historySize {
		return
	}
	s.history = s.history[len(s.history)-s.historySize:]
}
