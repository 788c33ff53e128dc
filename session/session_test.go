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

package session

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/we-are-mono/netopt/plan"
	"github.com/we-are-mono/netopt/system"
	"github.com/we-are-mono/netopt/types"
)

func newTestSession(t *testing.T) (*Session, *system.SimulatedHost) {
	t.Helper()
	host := system.NewSimulatedHost("wlan0")
	host.Interfaces["eth0"] = &system.SimulatedInterface{Offload: types.AllOffload(true)}

	nl := system.NewMockNetlinkClient()
	nl.AddDevice("wlan0", 2)
	nl.AddDevice("eth0", 3)

	sm := system.NewSnapshotManager(host, nl, system.NewMockFeatureReader(), system.NewMockSysctlClient(), system.DefaultTools())
	engine := system.NewEngine(host, system.DefaultTools(), true)
	return New(sm, engine), host
}

func latencyPlan(t *testing.T, iface types.InterfaceID) plan.Plan {
	t.Helper()
	p, err := plan.Build(plan.LatencyProfile(iface))
	require.NoError(t, err)
	return p
}

func TestNewSession(t *testing.T) {
	s, _ := newTestSession(t)

	_, err := uuid.Parse(s.ID())
	assert.NoError(t, err)
	assert.Equal(t, StateUninitialized, s.State())
	assert.Empty(t, s.Interface())
	assert.Nil(t, s.LastResult())

	_, err = s.Snapshot()
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

// TestMutationRequiresSnapshot tests that nothing runs before Capture
func TestMutationRequiresSnapshot(t *testing.T) {
	s, host := newTestSession(t)

	_, err := s.Apply(context.Background(), latencyPlan(t, "wlan0"))
	assert.ErrorIs(t, err, ErrNoSnapshot)

	_, err = s.Rollback(context.Background())
	assert.ErrorIs(t, err, ErrNoSnapshot)

	assert.Empty(t, host.Commands)
	assert.Equal(t, StateUninitialized, s.State())
}

func TestSessionLifecycle(t *testing.T) {
	s, host := newTestSession(t)
	ctx := context.Background()

	snap, err := s.Capture("wlan0")
	require.NoError(t, err)
	assert.Equal(t, StateSnapshotted, s.State())
	assert.Equal(t, types.InterfaceID("wlan0"), s.Interface())

	applied, err := s.Apply(ctx, latencyPlan(t, "wlan0"))
	require.NoError(t, err)
	assert.False(t, applied.Failed())
	assert.Equal(t, StateApplied, s.State())
	assert.Same(t, applied, s.LastResult())

	rolled, err := s.Rollback(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateRolledBack, s.State())
	assert.Equal(t, system.OperationRollback, s.LastResult().Operation)
	assert.False(t, rolled.Failed())
	assert.Equal(t, types.PowerSaveOn, host.Iface("wlan0").PowerSave)

	// re-apply after rollback uses the original snapshot
	_, err = s.Apply(ctx, latencyPlan(t, "wlan0"))
	require.NoError(t, err)
	assert.Equal(t, StateApplied, s.State())

	current, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, snap.Timestamp, current.Timestamp)

	s.End()
	assert.Equal(t, StateEnded, s.State())
	_, err = s.Snapshot()
	assert.ErrorIs(t, err, ErrNoSnapshot)
	_, err = s.Rollback(ctx)
	assert.ErrorIs(t, err, ErrEnded)
	_, err = s.Capture("wlan0")
	assert.ErrorIs(t, err, ErrEnded)
}

// TestReapplyComparesAgainstCurrentSettings tests that a second apply in
// the same session changes what the first one changed
func TestReapplyComparesAgainstCurrentSettings(t *testing.T) {
	s, host := newTestSession(t)
	ctx := context.Background()

	snap, err := s.Capture("wlan0")
	require.NoError(t, err)
	require.Equal(t, types.AllOffload(true), snap.Offload.Value.Flags)

	_, err = s.Apply(ctx, latencyPlan(t, "wlan0"))
	require.NoError(t, err)
	require.Equal(t, types.AllOffload(false), host.Iface("wlan0").Offload)

	opts := plan.LatencyProfile("wlan0")
	opts.Offload = types.AllOffload(true)
	p, err := plan.Build(opts)
	require.NoError(t, err)

	result, err := s.Apply(ctx, p)
	require.NoError(t, err)
	assert.False(t, result.Failed())
	assert.Equal(t, StateApplied, s.State())

	offload := result.Group(system.GroupOffload)
	require.NotNil(t, offload)
	require.Len(t, offload.Steps, len(types.OffloadFeatures))
	for _, step := range offload.Steps {
		assert.Equal(t, system.OutcomeSuccess, step.Outcome, "step %s", step.Parameter)
	}
	assert.Equal(t, types.AllOffload(true), host.Iface("wlan0").Offload)

	// the rollback target is still the first capture
	current, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, snap.Timestamp, current.Timestamp)
}

func TestReapplySamePlanSkipsOffload(t *testing.T) {
	s, host := newTestSession(t)
	ctx := context.Background()

	_, err := s.Capture("wlan0")
	require.NoError(t, err)
	_, err = s.Apply(ctx, latencyPlan(t, "wlan0"))
	require.NoError(t, err)

	before := len(host.PrivilegedCommandLines())
	result, err := s.Apply(ctx, latencyPlan(t, "wlan0"))
	require.NoError(t, err)

	offload := result.Group(system.GroupOffload)
	require.NotNil(t, offload)
	for _, step := range offload.Steps {
		assert.Equal(t, system.OutcomeSkipped, step.Outcome, "step %s", step.Parameter)
		assert.Equal(t, "already off", step.Reason)
	}
	for _, line := range host.PrivilegedCommandLines()[before:] {
		assert.NotContains(t, line, "ethtool -K", line)
	}
}

func TestPartiallyApplied(t *testing.T) {
	s, host := newTestSession(t)
	host.DenyAuth["sysctl"] = true

	_, err := s.Capture("wlan0")
	require.NoError(t, err)

	result, err := s.Apply(context.Background(), latencyPlan(t, "wlan0"))
	require.NoError(t, err)

	assert.True(t, result.Failed())
	assert.Equal(t, StatePartiallyApplied, s.State())
	assert.True(t, errors.Is(result.Err(), types.ErrAuthDenied))
}

func TestCaptureOnlyOnce(t *testing.T) {
	s, _ := newTestSession(t)

	_, err := s.Capture("wlan0")
	require.NoError(t, err)

	_, err = s.Capture("eth0")
	assert.ErrorIs(t, err, ErrAlreadyCaptured)
	assert.Equal(t, types.InterfaceID("wlan0"), s.Interface())
}

func TestCaptureFailureKeepsSessionUninitialized(t *testing.T) {
	s, _ := newTestSession(t)

	_, err := s.Capture("lo")
	assert.ErrorIs(t, err, types.ErrValidation)
	assert.Equal(t, StateUninitialized, s.State())

	_, err = s.Capture("wlan0")
	assert.NoError(t, err)
}

func TestApplyRejectsOtherInterface(t *testing.T) {
	s, host := newTestSession(t)

	_, err := s.Capture("wlan0")
	require.NoError(t, err)
	before := len(host.Commands)

	_, err = s.Apply(context.Background(), latencyPlan(t, "eth0"))
	assert.ErrorIs(t, err, types.ErrValidation)
	assert.Equal(t, StateSnapshotted, s.State())
	assert.Len(t, host.Commands, before)
}

func TestSessionInfo(t *testing.T) {
	s, _ := newTestSession(t)

	info := s.Info()
	assert.Equal(t, s.ID(), info.ID)
	assert.Nil(t, info.Snapshot)

	_, err := s.Capture("wlan0")
	require.NoError(t, err)
	_, err = s.Apply(context.Background(), latencyPlan(t, "wlan0"))
	require.NoError(t, err)

	info = s.Info()
	assert.Equal(t, StateApplied, info.State)
	assert.Equal(t, types.InterfaceID("wlan0"), info.Interface)
	require.NotNil(t, info.Plan)
	assert.Equal(t, types.CongestionBBR, info.Plan.Congestion())
	require.NotNil(t, info.LastResult)
	assert.Equal(t, system.OperationApply, info.LastResult.Operation)
}
