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

package system

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/we-are-mono/netopt/plan"
	"github.com/we-are-mono/netopt/types"
)

func mustPlan(t *testing.T, opts plan.Options) plan.Plan {
	t.Helper()
	p, err := plan.Build(opts)
	require.NoError(t, err)
	return p
}

func mustCapture(t *testing.T, host *SimulatedHost, iface types.InterfaceID) *InterfaceSnapshot {
	t.Helper()
	sm, _, _, _ := newTestSnapshotManager(host)
	snap, err := sm.Capture(iface)
	require.NoError(t, err)
	return &snap
}

// stockSnapshot is the snapshot of a stock interface, for tests that do
// not go through the simulated host.
func stockSnapshot(iface types.InterfaceID) *InterfaceSnapshot {
	return &InterfaceSnapshot{
		Interface:           iface,
		Offload:             Known(OffloadState{Flags: types.AllOffload(true)}),
		PowerSave:           Known(types.PowerSaveOn),
		ReadBufferMax:       Known(int64(1048576)),
		WriteBufferMax:      Known(int64(1048576)),
		Congestion:          Known(types.CongestionCubic),
		AvailableCongestion: Known([]types.CongestionControl{"reno", "cubic", "bbr"}),
		Timestamp:           time.Now(),
	}
}

func stepsOf(g *GroupResult) map[string]StepResult {
	out := make(map[string]StepResult, len(g.Steps))
	for _, s := range g.Steps {
		out[s.Parameter] = s
	}
	return out
}

// TestApplyLatencyProfile tests the full profile on a stock interface
func TestApplyLatencyProfile(t *testing.T) {
	host := NewSimulatedHost("wlan0")
	snap := mustCapture(t, host, "wlan0")
	engine := NewEngine(host, DefaultTools(), true)

	p := mustPlan(t, plan.Options{
		Interface:  "wlan0",
		Offload:    types.AllOffload(false),
		PowerSave:  "off",
		BufferMB:   2.5,
		Congestion: "bbr",
	})

	r, err := engine.Apply(context.Background(), snap, p)
	require.NoError(t, err)

	require.Len(t, r.Groups, len(Groups))
	for i, g := range r.Groups {
		assert.Equal(t, Groups[i], g.Group)
		assert.Equal(t, OutcomeSuccess, g.Outcome(), "group %s", g.Group)
	}
	assert.False(t, r.Failed())
	assert.NoError(t, r.Err())
	assert.Equal(t, 7, r.Count(OutcomeSuccess))

	assert.Equal(t, []string{
		"ethtool -K wlan0 tso off",
		"ethtool -K wlan0 gso off",
		"ethtool -K wlan0 gro off",
		"iw dev wlan0 set power_save off",
		"sysctl -w net.core.rmem_max=2621440",
		"sysctl -w net.core.wmem_max=2621440",
		"sysctl -w net.ipv4.tcp_congestion_control=bbr",
	}, host.PrivilegedCommandLines())

	iface := host.Iface("wlan0")
	assert.Equal(t, types.AllOffload(false), iface.Offload)
	assert.Equal(t, types.PowerSaveOff, iface.PowerSave)
	assert.Equal(t, "2621440", host.Sysctl[SysctlReadBufferMax])
	assert.Equal(t, "2621440", host.Sysctl[SysctlWriteBufferMax])
	assert.Equal(t, "bbr", host.Sysctl[SysctlCongestion])

	ps := r.Group(GroupPowerSave)
	require.Len(t, ps.Steps, 1)
	assert.Equal(t, PathPrimary, ps.Steps[0].Path)

	cc := r.Group(GroupCongestion)
	require.Len(t, cc.Warnings, 1)
	assert.Contains(t, cc.Warnings[0], "system-wide")
}

func TestApplyIsIdempotent(t *testing.T) {
	host := NewSimulatedHost("wlan0")
	engine := NewEngine(host, DefaultTools(), true)
	p := mustPlan(t, plan.LatencyProfile("wlan0"))

	_, err := engine.Apply(context.Background(), mustCapture(t, host, "wlan0"), p)
	require.NoError(t, err)
	after := mustCapture(t, host, "wlan0")

	second, err := engine.Apply(context.Background(), after, p)
	require.NoError(t, err)
	assert.False(t, second.Failed())

	offload := groupOf(t, second, GroupOffload)
	assert.Equal(t, OutcomeSkipped, offload.Outcome())
	for _, s := range offload.Steps {
		assert.Equal(t, "already off", s.Reason)
	}

	final := mustCapture(t, host, "wlan0")
	assert.True(t, after.SameSettings(final))
}

func groupOf(t *testing.T, r *Result, g Group) *GroupResult {
	t.Helper()
	gr := r.Group(g)
	require.NotNil(t, gr, "missing group %s", g)
	return gr
}

// TestApplyAuthDeniedDoesNotStopLaterGroups tests that a refused
// escalation fails only the steps it affects
func TestApplyAuthDeniedDoesNotStopLaterGroups(t *testing.T) {
	host := NewSimulatedHost("wlan0")
	host.DenyAuth["ethtool"] = true
	snap := mustCapture(t, host, "wlan0")
	engine := NewEngine(host, DefaultTools(), true)

	r, err := engine.Apply(context.Background(), snap, mustPlan(t, plan.LatencyProfile("wlan0")))
	require.NoError(t, err)

	offload := groupOf(t, r, GroupOffload)
	assert.Equal(t, OutcomeFailed, offload.Outcome())
	for _, s := range offload.Steps {
		assert.Equal(t, types.KindAuthDenied, s.Kind)
	}
	assert.Equal(t, OutcomeSuccess, groupOf(t, r, GroupPowerSave).Outcome())
	assert.Equal(t, OutcomeSuccess, groupOf(t, r, GroupBuffers).Outcome())
	assert.Equal(t, OutcomeSuccess, groupOf(t, r, GroupCongestion).Outcome())

	require.Error(t, r.Err())
	assert.True(t, errors.Is(r.Err(), types.ErrAuthDenied))
	assert.Equal(t, types.AllOffload(true), host.Iface("wlan0").Offload)
}

func TestApplyPowerSaveFallback(t *testing.T) {
	host := NewSimulatedHost("wlan0")
	host.FailIwSet = true
	snap := mustCapture(t, host, "wlan0")
	engine := NewEngine(host, DefaultTools(), true)

	r, err := engine.Apply(context.Background(), snap, mustPlan(t, plan.LatencyProfile("wlan0")))
	require.NoError(t, err)

	ps := groupOf(t, r, GroupPowerSave)
	require.Len(t, ps.Steps, 1)
	assert.Equal(t, OutcomeSuccess, ps.Steps[0].Outcome)
	assert.Equal(t, PathFallback, ps.Steps[0].Path)
	require.Len(t, ps.Warnings, 1)
	assert.Contains(t, ps.Warnings[0], `"Home WiFi"`)
	assert.Contains(t, ps.Warnings[0], "next activation")

	assert.Equal(t, nmPowerSaveDisable, host.NMPowerSave["Home WiFi"])
	assert.Contains(t, host.PrivilegedCommandLines(),
		"nmcli connection modify Home WiFi 802-11-wireless.powersave 2")
	// the profile is not reactivated
	assert.Equal(t, types.PowerSaveOn, host.Iface("wlan0").PowerSave)
}

func TestApplyPowerSaveFallbackEnable(t *testing.T) {
	host := NewSimulatedHost("wlan0")
	host.Interfaces["wlan0"].PowerSave = types.PowerSaveOff
	host.FailIwSet = true
	snap := mustCapture(t, host, "wlan0")
	engine := NewEngine(host, DefaultTools(), true)

	opts := plan.LatencyProfile("wlan0")
	opts.PowerSave = "on"
	r, err := engine.Apply(context.Background(), snap, mustPlan(t, opts))
	require.NoError(t, err)

	assert.Equal(t, PathFallback, groupOf(t, r, GroupPowerSave).Steps[0].Path)
	assert.Equal(t, nmPowerSaveEnable, host.NMPowerSave["Home WiFi"])
}

func TestApplyPowerSaveFallbackDisabled(t *testing.T) {
	host := NewSimulatedHost("wlan0")
	host.FailIwSet = true
	snap := mustCapture(t, host, "wlan0")
	captured := len(host.Commands)
	engine := NewEngine(host, DefaultTools(), false)

	r, err := engine.Apply(context.Background(), snap, mustPlan(t, plan.LatencyProfile("wlan0")))
	require.NoError(t, err)

	step := groupOf(t, r, GroupPowerSave).Steps[0]
	assert.Equal(t, OutcomeFailed, step.Outcome)
	assert.Equal(t, PathPrimary, step.Path)
	assert.Equal(t, types.KindToolError, step.Kind)
	for _, line := range host.CommandLines()[captured:] {
		assert.False(t, strings.HasPrefix(line, "nmcli"), line)
	}
}

func TestApplyPowerSaveFallbackFails(t *testing.T) {
	host := NewSimulatedHost("wlan0")
	host.FailIwSet = true
	host.Interfaces["wlan0"].Profile = "--"
	snap := mustCapture(t, host, "wlan0")
	engine := NewEngine(host, DefaultTools(), true)

	r, err := engine.Apply(context.Background(), snap, mustPlan(t, plan.LatencyProfile("wlan0")))
	require.NoError(t, err)

	step := groupOf(t, r, GroupPowerSave).Steps[0]
	assert.Equal(t, OutcomeFailed, step.Outcome)
	assert.Equal(t, PathFallback, step.Path)
	assert.Contains(t, step.Reason, "iw: ")
	assert.Contains(t, step.Reason, "nmcli: ")
	assert.Contains(t, step.Reason, "no active connection profile")
	assert.Equal(t, OutcomeSuccess, groupOf(t, r, GroupBuffers).Outcome())
}

func TestApplyPowerSaveAuthDeniedIsFinal(t *testing.T) {
	host := NewSimulatedHost("wlan0")
	host.DenyAuth["iw"] = true
	snap := mustCapture(t, host, "wlan0")
	captured := len(host.Commands)
	engine := NewEngine(host, DefaultTools(), true)

	r, err := engine.Apply(context.Background(), snap, mustPlan(t, plan.LatencyProfile("wlan0")))
	require.NoError(t, err)

	step := groupOf(t, r, GroupPowerSave).Steps[0]
	assert.Equal(t, OutcomeFailed, step.Outcome)
	assert.Equal(t, types.KindAuthDenied, step.Kind)
	assert.Equal(t, PathPrimary, step.Path)
	for _, line := range host.CommandLines()[captured:] {
		assert.False(t, strings.HasPrefix(line, "nmcli"), line)
	}
}

func TestApplyPowerSaveUnavailable(t *testing.T) {
	host := NewSimulatedHost("eth0")
	host.Interfaces["eth0"].HasPowerSave = false
	snap := mustCapture(t, host, "eth0")
	engine := NewEngine(host, DefaultTools(), true)

	r, err := engine.Apply(context.Background(), snap, mustPlan(t, plan.LatencyProfile("eth0")))
	require.NoError(t, err)

	step := groupOf(t, r, GroupPowerSave).Steps[0]
	assert.Equal(t, OutcomeSkipped, step.Outcome)
	assert.Equal(t, types.KindUnavailable, step.Kind)
	assert.Contains(t, step.Reason, "no power-save control")
	assert.False(t, r.Failed())
	for _, line := range host.PrivilegedCommandLines() {
		assert.False(t, strings.HasPrefix(line, "iw"), line)
	}
}

func TestApplyFixedFeature(t *testing.T) {
	host := NewSimulatedHost("wlan0")
	host.Interfaces["wlan0"].Fixed = []types.OffloadFeature{types.FeatureGRO}
	snap := mustCapture(t, host, "wlan0")
	engine := NewEngine(host, DefaultTools(), true)

	r, err := engine.Apply(context.Background(), snap, mustPlan(t, plan.LatencyProfile("wlan0")))
	require.NoError(t, err)

	steps := stepsOf(groupOf(t, r, GroupOffload))
	assert.Equal(t, OutcomeSuccess, steps["tso"].Outcome)
	assert.Equal(t, OutcomeSuccess, steps["gso"].Outcome)
	assert.Equal(t, OutcomeFailed, steps["gro"].Outcome)
	assert.Equal(t, types.KindHardwareLimit, steps["gro"].Kind)
	assert.NotContains(t, host.PrivilegedCommandLines(), "ethtool -K wlan0 gro off")
	assert.True(t, host.Iface("wlan0").Offload.GRO)
}

func TestApplyBufferRejectedByKernel(t *testing.T) {
	host := NewSimulatedHost("wlan0")
	host.MaxBufferBytes = 2 * 1024 * 1024
	snap := mustCapture(t, host, "wlan0")
	engine := NewEngine(host, DefaultTools(), true)

	opts := plan.LatencyProfile("wlan0")
	opts.BufferPreset = string(types.PresetHeavy)
	r, err := engine.Apply(context.Background(), snap, mustPlan(t, opts))
	require.NoError(t, err)

	buffers := groupOf(t, r, GroupBuffers)
	require.Len(t, buffers.Steps, 2)
	for _, s := range buffers.Steps {
		assert.Equal(t, OutcomeFailed, s.Outcome)
		assert.Equal(t, types.KindHardwareLimit, s.Kind)
		assert.Equal(t, "4194304", s.Value)
	}
	// never clamped
	assert.Equal(t, "1048576", host.Sysctl[SysctlReadBufferMax])
	assert.Equal(t, OutcomeSuccess, groupOf(t, r, GroupCongestion).Outcome())
	assert.True(t, errors.Is(r.Err(), types.ErrHardwareLimit))
}

func TestApplyCongestionNotAvailable(t *testing.T) {
	host := NewSimulatedHost("wlan0")
	host.AvailableCongestion = []string{"reno", "cubic"}
	snap := mustCapture(t, host, "wlan0")
	engine := NewEngine(host, DefaultTools(), true)

	r, err := engine.Apply(context.Background(), snap, mustPlan(t, plan.LatencyProfile("wlan0")))
	require.NoError(t, err)

	cc := groupOf(t, r, GroupCongestion)
	require.Len(t, cc.Warnings, 2)
	assert.Contains(t, cc.Warnings[1], "reno cubic")
	require.Len(t, cc.Steps, 1)
	assert.Equal(t, OutcomeFailed, cc.Steps[0].Outcome)
	assert.Equal(t, "cubic", host.Sysctl[SysctlCongestion])
}

func TestApplyCancellation(t *testing.T) {
	exec := NewMockExecutor()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	exec.OnRun = func(Command) { cancel() }
	engine := NewEngine(exec, DefaultTools(), true)

	r, err := engine.Apply(ctx, stockSnapshot("wlan0"), mustPlan(t, plan.LatencyProfile("wlan0")))
	require.NoError(t, err)

	// the step in flight completes, nothing after it starts
	assert.Equal(t, []string{"ethtool -K wlan0 tso off"}, exec.CommandLines())
	assert.True(t, r.Cancelled())
	require.Len(t, r.Groups, len(Groups))

	steps := r.Steps()
	assert.Equal(t, OutcomeSuccess, steps[0].Outcome)
	for _, s := range steps[1:] {
		assert.Equal(t, OutcomeSkipped, s.Outcome)
		assert.Equal(t, types.KindCancelled, s.Kind)
	}
}

func TestApplyCancelledBeforeStart(t *testing.T) {
	exec := NewMockExecutor()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	engine := NewEngine(exec, DefaultTools(), true)

	r, err := engine.Apply(ctx, stockSnapshot("wlan0"), mustPlan(t, plan.LatencyProfile("wlan0")))
	require.NoError(t, err)

	assert.Empty(t, exec.Commands)
	assert.Equal(t, 0, r.Count(OutcomeSuccess))
	assert.True(t, r.Cancelled())
}

func TestApplyScriptedToolMissing(t *testing.T) {
	exec := NewMockExecutor()
	exec.SetResponse("sysctl -w net.ipv4.tcp_congestion_control=bbr", ExecResult{
		ExitCode: -1,
		Kind:     types.KindToolMissing,
		Err:      types.NewStepError(types.KindToolMissing, "sysctl", "not found in PATH"),
	})
	engine := NewEngine(exec, DefaultTools(), true)

	r, err := engine.Apply(context.Background(), stockSnapshot("wlan0"), mustPlan(t, plan.LatencyProfile("wlan0")))
	require.NoError(t, err)

	step := groupOf(t, r, GroupCongestion).Steps[0]
	assert.Equal(t, types.KindToolMissing, step.Kind)
	assert.Contains(t, step.Reason, "sysctl")
}

func TestApplyCustomToolPaths(t *testing.T) {
	exec := NewMockExecutor()
	engine := NewEngine(exec, Tools{Ethtool: "/opt/ethtool/bin/ethtool"}, true)

	_, err := engine.Apply(context.Background(), stockSnapshot("wlan0"), mustPlan(t, plan.LatencyProfile("wlan0")))
	require.NoError(t, err)

	lines := exec.CommandLines()
	assert.Equal(t, "/opt/ethtool/bin/ethtool -K wlan0 tso off", lines[0])
	assert.Equal(t, "iw dev wlan0 set power_save off", lines[3])
}

func TestApplyErrors(t *testing.T) {
	engine := NewEngine(NewMockExecutor(), DefaultTools(), true)
	p := mustPlan(t, plan.LatencyProfile("wlan0"))

	_, err := engine.Apply(context.Background(), nil, p)
	assert.ErrorIs(t, err, ErrNoSnapshot)

	_, err = engine.Apply(context.Background(), stockSnapshot("eth0"), p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "eth0")

	_, err = engine.Apply(context.Background(), stockSnapshot("wlan0"), plan.Plan{})
	assert.ErrorIs(t, err, types.ErrValidation)
}
