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

// Package session ties a snapshot, the plans applied against it and their
// results to one interface, and enforces that nothing is changed before a
// snapshot exists.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/we-are-mono/netopt/daemon/logger"
	"github.com/we-are-mono/netopt/plan"
	"github.com/we-are-mono/netopt/system"
	"github.com/we-are-mono/netopt/types"
)

// State is the lifecycle position of a session.
type State string

const (
	StateUninitialized    State = "uninitialized"
	StateSnapshotted      State = "snapshotted"
	StateApplied          State = "applied"
	StatePartiallyApplied State = "partially_applied"
	StateRolledBack       State = "rolled_back"
	StateEnded            State = "ended"
)

var (
	// ErrNoSnapshot is returned by Apply and Rollback before Capture.
	ErrNoSnapshot = system.ErrNoSnapshot

	// ErrAlreadyCaptured is returned by a second Capture.
	ErrAlreadyCaptured = errors.New("snapshot already captured")

	// ErrEnded is returned by every operation after End.
	ErrEnded = errors.New("session has ended")
)

// Capturer reads the current state of an interface.
type Capturer interface {
	Capture(iface types.InterfaceID) (system.InterfaceSnapshot, error)
}

// Mutator applies plans and restores snapshots.
type Mutator interface {
	Apply(ctx context.Context, snap *system.InterfaceSnapshot, p plan.Plan) (*system.ApplyResult, error)
	Rollback(ctx context.Context, snap *system.InterfaceSnapshot) (*system.RollbackResult, error)
}

// Session is one optimization session for a single interface. It is safe
// for concurrent use; operations are serialized.
type Session struct {
	mu sync.Mutex

	id        string
	capturer  Capturer
	mutator   Mutator
	state     State
	createdAt time.Time

	snapshot *system.InterfaceSnapshot
	plan     *plan.Plan
	last     *system.Result
}

// Info is a point-in-time view of a session for status output.
type Info struct {
	ID         string                    `json:"id"`
	State      State                     `json:"state"`
	Interface  types.InterfaceID         `json:"interface,omitempty"`
	CreatedAt  time.Time                 `json:"created_at"`
	Snapshot   *system.InterfaceSnapshot `json:"snapshot,omitempty"`
	Plan       *plan.Plan                `json:"plan,omitempty"`
	LastResult *system.Result            `json:"last_result,omitempty"`
}

// New creates an uninitialized session.
func New(c Capturer, m Mutator) *Session {
	return &Session{
		id:        uuid.NewString(),
		capturer:  c,
		mutator:   m,
		state:     StateUninitialized,
		createdAt: time.Now(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Interface returns the interface the snapshot was captured for, or "".
func (s *Session) Interface() types.InterfaceID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		return ""
	}
	return s.snapshot.Interface
}

// Snapshot returns a copy of the captured snapshot.
func (s *Session) Snapshot() (system.InterfaceSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		return system.InterfaceSnapshot{}, ErrNoSnapshot
	}
	return *s.snapshot, nil
}

// LastResult returns the result of the most recent apply or rollback.
func (s *Session) LastResult() *system.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Info returns a view of the session.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := Info{
		ID:         s.id,
		State:      s.state,
		CreatedAt:  s.createdAt,
		Plan:       s.plan,
		LastResult: s.last,
	}
	if s.snapshot != nil {
		snap := *s.snapshot
		info.Interface = snap.Interface
		info.Snapshot = &snap
	}
	return info
}

// Capture records the rollback target for iface. It is allowed once.
func (s *Session) Capture(iface types.InterfaceID) (system.InterfaceSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateEnded:
		return system.InterfaceSnapshot{}, ErrEnded
	case StateUninitialized:
	default:
		return system.InterfaceSnapshot{}, fmt.Errorf("%w for %s", ErrAlreadyCaptured, s.snapshot.Interface)
	}

	snap, err := s.capturer.Capture(iface)
	if err != nil {
		return system.InterfaceSnapshot{}, err
	}

	s.snapshot = &snap
	s.state = StateSnapshotted
	logger.Info("Session snapshot captured",
		logger.Field{Key: "session", Value: s.id},
		logger.Field{Key: "interface", Value: string(iface)})
	return snap, nil
}

// Apply applies p to the session interface. p must target the snapshot's
// interface. Only a freshly snapshotted interface is known to match the
// snapshot; in any other state p is compared against a new capture, and the
// snapshot stays the rollback target.
func (s *Session) Apply(ctx context.Context, p plan.Plan) (*system.ApplyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireSnapshot(); err != nil {
		return nil, err
	}
	if p.Interface() != s.snapshot.Interface {
		return nil, &types.ValidationError{Err: fmt.Errorf(
			"session is bound to %s, plan targets %s", s.snapshot.Interface, p.Interface())}
	}

	current, err := s.currentState()
	if err != nil {
		return nil, err
	}

	result, err := s.mutator.Apply(ctx, current, p)
	if err != nil {
		return nil, err
	}

	s.plan = &p
	s.last = result
	from := s.state
	s.state = StateApplied
	if result.Failed() || result.Cancelled() {
		s.state = StatePartiallyApplied
	}
	s.logTransition(from)
	return result, nil
}

// Rollback restores the snapshot. The snapshot is kept, so the session can
// be applied again afterwards.
func (s *Session) Rollback(ctx context.Context) (*system.RollbackResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireSnapshot(); err != nil {
		return nil, err
	}

	result, err := s.mutator.Rollback(ctx, s.snapshot)
	if err != nil {
		return nil, err
	}

	s.plan = nil
	s.last = result
	from := s.state
	s.state = StateRolledBack
	s.logTransition(from)
	return result, nil
}

// End discards the snapshot. The interface is left as it is.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateEnded {
		return
	}
	from := s.state
	s.snapshot = nil
	s.plan = nil
	s.state = StateEnded
	s.logTransition(from)
}

// currentState returns the settings the interface has now.
func (s *Session) currentState() (*system.InterfaceSnapshot, error) {
	if s.state == StateSnapshotted {
		return s.snapshot, nil
	}
	live, err := s.capturer.Capture(s.snapshot.Interface)
	if err != nil {
		return nil, fmt.Errorf("failed to read current settings of %s: %w", s.snapshot.Interface, err)
	}
	return &live, nil
}

func (s *Session) requireSnapshot() error {
	if s.state == StateEnded {
		return ErrEnded
	}
	if s.snapshot == nil {
		return ErrNoSnapshot
	}
	return nil
}

func (s *Session) logTransition(from State) {
	logger.Info("Session state changed",
		logger.Field{Key: "session", Value: s.id},
		logger.Field{Key: "from", Value: string(from)},
		logger.Field{Key: "to", Value: string(s.state)})
}
