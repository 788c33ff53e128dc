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
	"fmt"
	"strings"
	"time"

	"github.com/we-are-mono/netopt/daemon/logger"
	"github.com/we-are-mono/netopt/types"
	"github.com/we-are-mono/netopt/validation"
)

// sysctl keys read and written by netopt
const (
	SysctlReadBufferMax       = "net.core.rmem_max"
	SysctlWriteBufferMax      = "net.core.wmem_max"
	SysctlCongestion          = "net.ipv4.tcp_congestion_control"
	SysctlAvailableCongestion = "net.ipv4.tcp_available_congestion_control"
)

// Capture reads the current tunable state of iface. Each field group is
// queried independently; a group that cannot be read is recorded as
// unavailable. Only unprivileged commands are run. An error is returned
// only when iface is not a usable interface.
func (sm *SnapshotManager) Capture(iface types.InterfaceID) (InterfaceSnapshot, error) {
	if err := sm.links.checkTunable(iface); err != nil {
		return InterfaceSnapshot{}, err
	}

	snap := InterfaceSnapshot{
		Interface: iface,
		Timestamp: time.Now(),
	}

	snap.Offload = sm.captureOffload(iface)
	snap.PowerSave = sm.capturePowerSave(iface)
	snap.ProfilePowerSave = Unavailable[ProfilePowerSave]("interface reports no power-save control")
	if snap.PowerSave.Available {
		snap.ProfilePowerSave = sm.captureProfilePowerSave(iface)
	}
	snap.ReadBufferMax = sm.captureSysctlInt(SysctlReadBufferMax)
	snap.WriteBufferMax = sm.captureSysctlInt(SysctlWriteBufferMax)

	if value, reason := sm.readSysctl(SysctlCongestion); reason == "" {
		snap.Congestion = Known(types.CongestionControl(value))
	} else {
		snap.Congestion = Unavailable[types.CongestionControl](reason)
	}
	if value, reason := sm.readSysctl(SysctlAvailableCongestion); reason == "" {
		snap.AvailableCongestion = Known(parseCongestionList(value))
	} else {
		snap.AvailableCongestion = Unavailable[[]types.CongestionControl](reason)
	}

	fields := []logger.Field{{Key: "interface", Value: string(iface)}}
	if missing := snap.UnavailableFields(); len(missing) > 0 {
		fields = append(fields, logger.Field{Key: "unavailable", Value: strings.Join(missing, ",")})
	}
	logger.Info("Captured interface snapshot", fields...)

	return snap, nil
}

func (sm *SnapshotManager) captureOffload(iface types.InterfaceID) Observed[OffloadState] {
	res := sm.exec.Run(Command{Name: sm.tools.Ethtool, Args: []string{"-k", string(iface)}})

	switch {
	case res.Kind == types.KindToolMissing && sm.features != nil:
		return sm.captureOffloadIoctl(iface, res.Reason())
	case !res.OK():
		return Unavailable[OffloadState](res.Reason())
	}

	state, err := parseEthtoolFeatures(res.Stdout)
	if err != nil {
		return Unavailable[OffloadState](err.Error())
	}
	return Known(state)
}

// captureOffloadIoctl reads offload flags in-process when the ethtool
// binary is missing. The ioctl does not report fixed features.
func (sm *SnapshotManager) captureOffloadIoctl(iface types.InterfaceID, missing string) Observed[OffloadState] {
	features, err := sm.features.Features(string(iface))
	if err != nil {
		return Unavailable[OffloadState](fmt.Sprintf("%s; ioctl: %v", missing, err))
	}
	state, err := offloadFromKernelFeatures(features)
	if err != nil {
		return Unavailable[OffloadState](err.Error())
	}
	logger.Debug("Read offload features through ioctl",
		logger.Field{Key: "interface", Value: string(iface)})
	return Known(state)
}

func (sm *SnapshotManager) capturePowerSave(iface types.InterfaceID) Observed[types.PowerSaveState] {
	unknown := func(reason string) Observed[types.PowerSaveState] {
		return Observed[types.PowerSaveState]{Value: types.PowerSaveUnknown, Reason: reason}
	}

	res := sm.exec.Run(Command{Name: sm.tools.Iw, Args: []string{"dev", string(iface), "get", "power_save"}})
	if !res.OK() {
		return unknown(res.Reason())
	}
	state, err := parsePowerSave(res.Stdout)
	if err != nil {
		return unknown(err.Error())
	}
	return Known(state)
}

// captureProfilePowerSave records the power-save value of the connection
// profile, which the NetworkManager fallback may rewrite. It is not part
// of the interface state, so a failed read is only logged.
func (sm *SnapshotManager) captureProfilePowerSave(iface types.InterfaceID) Observed[ProfilePowerSave] {
	setting, reason := readProfilePowerSave(sm.exec, sm.tools.Nmcli, string(iface))
	if reason != "" {
		logger.Debug("No NetworkManager power-save setting recorded",
			logger.Field{Key: "interface", Value: string(iface)},
			logger.Field{Key: "reason", Value: reason})
		return Unavailable[ProfilePowerSave](reason)
	}
	return Known(setting)
}

// readProfilePowerSave finds the connection profile active on iface and
// reads its 802-11-wireless.powersave value. Only unprivileged commands
// are run. A non-empty reason means the read failed.
func readProfilePowerSave(exec Executor, nmcli, iface string) (ProfilePowerSave, string) {
	profile, res := activeProfile(exec, nmcli, iface)
	if !res.OK() {
		return ProfilePowerSave{}, res.Reason()
	}

	res = exec.Run(Command{
		Name: nmcli,
		Args: []string{"-g", "802-11-wireless.powersave", "connection", "show", profile},
	})
	if !res.OK() {
		return ProfilePowerSave{}, res.Reason()
	}
	value, err := parseNMPowerSave(res.Stdout)
	if err != nil {
		return ProfilePowerSave{}, err.Error()
	}
	return ProfilePowerSave{Profile: profile, Value: value}, ""
}

// activeProfile returns the NetworkManager connection profile active on
// iface.
func activeProfile(exec Executor, nmcli, iface string) (string, ExecResult) {
	res := exec.Run(Command{
		Name: nmcli,
		Args: []string{"-g", "GENERAL.CONNECTION", "device", "show", iface},
	})
	if !res.OK() {
		return "", res
	}

	profile := parseNmcliTerse(res.Stdout)
	if profile == "" || profile == "--" {
		return "", ExecResult{
			Kind: types.KindToolError,
			Err:  types.NewStepError(types.KindToolError, nmcli, fmt.Sprintf("no active connection profile on %s", iface)),
		}
	}
	return profile, res
}

func (sm *SnapshotManager) captureSysctlInt(key string) Observed[int64] {
	value, reason := sm.readSysctl(key)
	if reason != "" {
		return Unavailable[int64](reason)
	}
	n, err := parseSysctlInt(value)
	if err != nil {
		return Unavailable[int64](fmt.Sprintf("%s: %v", key, err))
	}
	return Known(n)
}

// readSysctl reads key with `sysctl -n`, falling back to /proc/sys when
// the sysctl binary is missing. A non-empty reason means the read failed.
func (sm *SnapshotManager) readSysctl(key string) (string, string) {
	res := sm.exec.Run(Command{Name: sm.tools.Sysctl, Args: []string{"-n", key}})
	if res.OK() {
		return strings.TrimSpace(res.Stdout), ""
	}
	if res.Kind == types.KindToolMissing && sm.sysctl != nil {
		value, err := sm.sysctl.Get(key)
		if err != nil {
			return "", fmt.Sprintf("%s; %s: %v", res.Reason(), sysctlPath(key), err)
		}
		return strings.TrimSpace(value), ""
	}
	return "", res.Reason()
}

// checkTunable rejects names that are not valid interfaces, and loopback.
func (lm *LinkManager) checkTunable(iface types.InterfaceID) error {
	if err := validation.ValidateInterfaceName(string(iface)); err != nil {
		return &types.ValidationError{Err: err}
	}
	if iface.IsLoopback() {
		return &types.ValidationError{Err: fmt.Errorf("interface %s is the loopback device", iface)}
	}

	link, err := lm.netlink.LinkByName(string(iface))
	if err != nil {
		return &types.ValidationError{Err: fmt.Errorf("interface %s not found: %w", iface, err)}
	}
	if isLoopback(link) {
		return &types.ValidationError{Err: fmt.Errorf("interface %s is a loopback device", iface)}
	}
	return nil
}
