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
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/we-are-mono/netopt/daemon/logger"
	"github.com/we-are-mono/netopt/plan"
	"github.com/we-are-mono/netopt/types"
	"github.com/we-are-mono/netopt/validation"
)

// NetworkManager powersave values (802-11-wireless.powersave)
const (
	nmPowerSaveDisable = "2"
	nmPowerSaveEnable  = "3"
)

// Apply applies p to the interface captured in snap. Groups are applied in
// the order offload, power-save, buffers, congestion control; every group is
// attempted and recorded regardless of earlier failures. Step failures are
// reported in the result. An error is returned only when snap is missing or
// does not match the plan. snap must describe the interface as it is now:
// an offload feature already at its target in snap is not touched.
func (e *Engine) Apply(ctx context.Context, snap *InterfaceSnapshot, p plan.Plan) (*ApplyResult, error) {
	if snap == nil {
		return nil, ErrNoSnapshot
	}
	if p.IsZero() {
		return nil, &types.ValidationError{Err: fmt.Errorf("empty plan")}
	}
	if p.Interface() != snap.Interface {
		return nil, fmt.Errorf("plan targets %s but the snapshot was captured for %s", p.Interface(), snap.Interface)
	}

	logger.Info("Applying settings",
		logger.Field{Key: "interface", Value: string(snap.Interface)},
		logger.Field{Key: "buffer", Value: p.Buffer().String()},
		logger.Field{Key: "congestion", Value: string(p.Congestion())})

	result := &ApplyResult{
		Operation: OperationApply,
		Interface: snap.Interface,
		StartedAt: time.Now(),
	}
	st := &stepper{ctx: ctx}

	size := Known(p.Buffer().Bytes())
	result.Groups = append(result.Groups, e.setOffload(st, snap, Known(p.Offload()), true))
	result.Groups = append(result.Groups, e.setPowerSave(st, snap, p.PowerSave(), Observed[ProfilePowerSave]{}))
	result.Groups = append(result.Groups, e.setBuffers(st, size, size))
	result.Groups = append(result.Groups, e.setCongestion(st, snap, Known(p.Congestion())))

	result.FinishedAt = time.Now()
	logResult(result)
	return result, nil
}

// stepper gates each step on the context. Once the context is done every
// remaining step is recorded as cancelled. A step that already started is
// never interrupted.
type stepper struct {
	ctx       context.Context
	cancelled bool
}

func (st *stepper) proceed(g *GroupResult, param, value string) bool {
	if !st.cancelled && st.ctx.Err() == nil {
		return true
	}
	st.cancelled = true
	g.add(StepResult{
		Parameter: param,
		Value:     value,
		Outcome:   OutcomeSkipped,
		Kind:      types.KindCancelled,
		Reason:    "operation cancelled before this step",
	})
	return false
}

// setOffload drives TSO, GSO and GRO towards target. With skipEqual, a
// feature already at its target according to snap is not touched.
func (e *Engine) setOffload(st *stepper, snap *InterfaceSnapshot, target Observed[types.OffloadFlags], skipEqual bool) GroupResult {
	g := GroupResult{Group: GroupOffload}
	captured := snap.Offload

	for _, feature := range types.OffloadFeatures {
		param := string(feature)
		value := "unknown"
		if target.Available {
			value = types.OnOff(target.Value.Get(feature))
		}
		if !st.proceed(&g, param, value) {
			continue
		}

		switch {
		case !target.Available:
			g.add(skippedUnavailable(param, value, target.Reason))
		case skipEqual && captured.Available && captured.Value.Flags.Get(feature) == target.Value.Get(feature):
			g.add(StepResult{Parameter: param, Value: value, Outcome: OutcomeSkipped, Reason: "already " + value})
		case captured.Available && captured.Value.IsFixed(feature):
			if captured.Value.Flags.Get(feature) == target.Value.Get(feature) {
				g.add(StepResult{Parameter: param, Value: value, Outcome: OutcomeSkipped, Reason: "fixed by the driver"})
				continue
			}
			g.add(StepResult{
				Parameter: param,
				Value:     value,
				Outcome:   OutcomeFailed,
				Kind:      types.KindHardwareLimit,
				Reason:    fmt.Sprintf("%s is fixed by the driver and cannot be changed", feature),
			})
		default:
			res := e.exec.Run(Command{
				Name:       e.tools.Ethtool,
				Args:       []string{"-K", string(snap.Interface), param, value},
				Privileged: true,
			})
			g.add(stepFromExec(param, value, res, ""))
		}
	}
	return g
}

// setPowerSave sets the power-save state with iw, falling back to the
// NetworkManager connection profile when iw fails and the fallback is
// enabled. An authorization denial is final.
func (e *Engine) setPowerSave(st *stepper, snap *InterfaceSnapshot, target types.PowerSaveState, recorded Observed[ProfilePowerSave]) GroupResult {
	g := GroupResult{Group: GroupPowerSave}
	param, value := "power_save", string(target)
	if !st.proceed(&g, param, value) {
		return g
	}

	if !snap.PowerSave.Available || !target.Known() {
		reason := "interface reports no power-save control"
		if snap.PowerSave.Reason != "" {
			reason += ": " + snap.PowerSave.Reason
		}
		g.add(skippedUnavailable(param, value, reason))
		return g
	}

	iface := string(snap.Interface)
	primary := e.exec.Run(Command{
		Name:       e.tools.Iw,
		Args:       []string{"dev", iface, "set", "power_save", value},
		Privileged: true,
	})
	if primary.OK() || primary.Kind == types.KindAuthDenied || !e.fallback {
		g.add(stepFromExec(param, value, primary, PathPrimary))
		return g
	}

	logger.Warn("iw could not change power save, trying NetworkManager profile",
		logger.Field{Key: "interface", Value: iface},
		logger.Field{Key: "error", Value: primary.Reason()})

	profile, fallback := e.powerSaveFallback(iface, target, recorded)
	if fallback.OK() {
		g.add(StepResult{Parameter: param, Value: value, Outcome: OutcomeSuccess, Path: PathFallback})
		g.warn("power save for %s was written to NetworkManager profile %q and takes effect on the next activation of that profile (iw failed: %s)",
			iface, profile, primary.Reason())
		return g
	}

	g.add(StepResult{
		Parameter: param,
		Value:     value,
		Outcome:   OutcomeFailed,
		Path:      PathFallback,
		Kind:      fallback.Kind,
		Reason:    fmt.Sprintf("iw: %s; nmcli: %s", primary.Reason(), fallback.Reason()),
	})
	return g
}

// powerSaveFallback rewrites 802-11-wireless.powersave on the connection
// profile active on iface and returns the profile name. When recorded
// holds the value of that same profile it is written verbatim.
func (e *Engine) powerSaveFallback(iface string, target types.PowerSaveState, recorded Observed[ProfilePowerSave]) (string, ExecResult) {
	profile, lookup := activeProfile(e.exec, e.tools.Nmcli, iface)
	if !lookup.OK() {
		return "", lookup
	}

	nmValue := nmPowerSaveDisable
	if target == types.PowerSaveOn {
		nmValue = nmPowerSaveEnable
	}
	if recorded.Available && recorded.Value.Profile == profile {
		nmValue = recorded.Value.Value
	}
	return profile, e.writeProfilePowerSave(profile, nmValue)
}

func (e *Engine) writeProfilePowerSave(profile, value string) ExecResult {
	return e.exec.Run(Command{
		Name:       e.tools.Nmcli,
		Args:       []string{"connection", "modify", profile, "802-11-wireless.powersave", value},
		Privileged: true,
	})
}

// restoreProfilePowerSave puts the recorded profile value back when an
// earlier fallback left the profile changed. Nothing runs when the
// profile already holds the recorded value.
func (e *Engine) restoreProfilePowerSave(st *stepper, g *GroupResult, snap *InterfaceSnapshot) {
	if !snap.ProfilePowerSave.Available {
		return
	}
	recorded := snap.ProfilePowerSave.Value
	current, reason := readProfilePowerSave(e.exec, e.tools.Nmcli, string(snap.Interface))
	if reason != "" {
		g.warn("could not check NetworkManager profile %q: %s", recorded.Profile, reason)
		return
	}
	if current.Profile != recorded.Profile || current.Value == recorded.Value {
		return
	}

	const param = "profile_power_save"
	if !st.proceed(g, param, recorded.Value) {
		return
	}
	res := e.writeProfilePowerSave(recorded.Profile, recorded.Value)
	g.add(stepFromExec(param, recorded.Value, res, PathFallback))
}

// setBuffers writes the socket buffer ceilings in bytes. Values rejected by
// the kernel are reported, never clamped.
func (e *Engine) setBuffers(st *stepper, read, write Observed[int64]) GroupResult {
	g := GroupResult{Group: GroupBuffers}
	for _, w := range []struct {
		key   string
		value Observed[int64]
	}{
		{SysctlReadBufferMax, read},
		{SysctlWriteBufferMax, write},
	} {
		value := "unknown"
		if w.value.Available {
			value = strconv.FormatInt(w.value.Value, 10)
		}
		if !st.proceed(&g, w.key, value) {
			continue
		}
		if !w.value.Available {
			g.add(skippedUnavailable(w.key, value, w.value.Reason))
			continue
		}
		g.add(e.writeSysctl(w.key, value))
	}
	return g
}

// setCongestion selects the TCP congestion-control algorithm. The setting
// is global, which the group always reports as a warning.
func (e *Engine) setCongestion(st *stepper, snap *InterfaceSnapshot, target Observed[types.CongestionControl]) GroupResult {
	g := GroupResult{Group: GroupCongestion}
	value := string(target.Value)
	if !target.Available {
		value = "unknown"
	}
	if !st.proceed(&g, SysctlCongestion, value) {
		return g
	}
	if !target.Available {
		g.add(skippedUnavailable(SysctlCongestion, value, target.Reason))
		return g
	}

	g.warn("congestion control is system-wide: %s applies to every interface, not only %s", value, snap.Interface)
	if !snap.CongestionAvailable(target.Value) {
		available := make([]string, 0, len(snap.AvailableCongestion.Value))
		for _, cc := range snap.AvailableCongestion.Value {
			available = append(available, string(cc))
		}
		g.warn("%s is not in the kernel's available list (%s); the kernel must load its module", value, strings.Join(available, " "))
	}

	g.add(e.writeSysctl(SysctlCongestion, value))
	return g
}

func (e *Engine) writeSysctl(key, value string) StepResult {
	if err := validation.ValidateSysctlKey(key); err != nil {
		return StepResult{Parameter: key, Value: value, Outcome: OutcomeFailed, Kind: types.KindValidation, Reason: err.Error()}
	}
	res := e.exec.Run(Command{
		Name:       e.tools.Sysctl,
		Args:       []string{"-w", key + "=" + value},
		Privileged: true,
	})
	return stepFromExec(key, value, res, "")
}

func stepFromExec(param, value string, res ExecResult, path Path) StepResult {
	step := StepResult{Parameter: param, Value: value, Path: path}
	if res.OK() {
		step.Outcome = OutcomeSuccess
		return step
	}
	step.Outcome = OutcomeFailed
	step.Kind = res.Kind
	step.Reason = res.Reason()
	return step
}

func skippedUnavailable(param, value, reason string) StepResult {
	if reason == "" {
		reason = "value unavailable in snapshot"
	}
	return StepResult{
		Parameter: param,
		Value:     value,
		Outcome:   OutcomeSkipped,
		Kind:      types.KindUnavailable,
		Reason:    reason,
	}
}

func logResult(r *Result) {
	for _, s := range r.Steps() {
		fields := []logger.Field{
			{Key: "operation", Value: string(r.Operation)},
			{Key: "interface", Value: string(r.Interface)},
			{Key: "group", Value: string(s.Group)},
			{Key: "parameter", Value: s.Parameter},
			{Key: "value", Value: s.Value},
			{Key: "outcome", Value: string(s.Outcome)},
		}
		if s.Path != "" {
			fields = append(fields, logger.Field{Key: "path", Value: string(s.Path)})
		}
		if s.Outcome == OutcomeFailed {
			fields = append(fields,
				logger.Field{Key: "kind", Value: string(s.Kind)},
				logger.Field{Key: "error", Value: s.Reason})
			logger.Warn("Step failed", fields...)
			continue
		}
		logger.Debug("Step finished", fields...)
	}

	logger.Info("Operation finished",
		logger.Field{Key: "operation", Value: string(r.Operation)},
		logger.Field{Key: "interface", Value: string(r.Interface)},
		logger.Field{Key: "succeeded", Value: r.Count(OutcomeSuccess)},
		logger.Field{Key: "failed", Value: r.Count(OutcomeFailed)},
		logger.Field{Key: "skipped", Value: r.Count(OutcomeSkipped)})
}
