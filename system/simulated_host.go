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
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/we-are-mono/netopt/types"
)

// SimulatedInterface is the tunable state of one simulated interface.
type SimulatedInterface struct {
	Offload      types.OffloadFlags
	Fixed        []types.OffloadFeature
	PowerSave    types.PowerSaveState
	HasPowerSave bool   // false: iw reports "Operation not supported"
	Profile      string // NetworkManager connection profile, "" if none
}

// SimulatedHost is a stateful Executor for testing. It interprets the
// ethtool, iw, nmcli and sysctl invocations netopt issues against
// in-memory interface and sysctl state.
type SimulatedHost struct {
	mu sync.Mutex

	// State
	Interfaces          map[string]*SimulatedInterface
	Sysctl              map[string]string
	AvailableCongestion []string
	NMPowerSave         map[string]string // profile -> 802-11-wireless.powersave

	// Behaviour
	MaxBufferBytes int64           // writes above this fail with EINVAL; 0 means unlimited
	Missing        map[string]bool // tools reported as not installed
	DenyAuth       map[string]bool // tools whose privileged runs are refused
	FailIwSet      bool            // iw set power_save exits non-zero

	// Call tracking
	Commands []Command
}

// NewSimulatedHost creates a host with one wireless interface in the
// typical stock state: all offloads on, power save on, 1 MB buffers, cubic.
func NewSimulatedHost(iface string) *SimulatedHost {
	return &SimulatedHost{
		Interfaces: map[string]*SimulatedInterface{
			iface: {
				Offload:      types.AllOffload(true),
				PowerSave:    types.PowerSaveOn,
				HasPowerSave: true,
				Profile:      "Home WiFi",
			},
		},
		Sysctl: map[string]string{
			SysctlReadBufferMax:  "1048576",
			SysctlWriteBufferMax: "1048576",
			SysctlCongestion:     "cubic",
		},
		AvailableCongestion: []string{"reno", "cubic", "bbr"},
		NMPowerSave:         map[string]string{"Home WiFi": "0"},
		Missing:             make(map[string]bool),
		DenyAuth:            make(map[string]bool),
	}
}

// Iface returns the state of a simulated interface.
func (h *SimulatedHost) Iface(name string) *SimulatedInterface {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Interfaces[name]
}

// CommandLines returns the executed command lines in order.
func (h *SimulatedHost) CommandLines() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.Commands))
	for _, c := range h.Commands {
		out = append(out, c.String())
	}
	return out
}

// PrivilegedCommandLines returns only the mutating command lines.
func (h *SimulatedHost) PrivilegedCommandLines() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, c := range h.Commands {
		if c.Privileged {
			out = append(out, c.String())
		}
	}
	return out
}

// Run interprets cmd against the simulated state.
func (h *SimulatedHost) Run(cmd Command) ExecResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Commands = append(h.Commands, cmd)

	if h.Missing[cmd.Name] {
		return ExecResult{
			ExitCode: -1,
			Kind:     types.KindToolMissing,
			Err:      types.NewStepError(types.KindToolMissing, cmd.Name, "not found in PATH"),
		}
	}
	if cmd.Privileged && h.DenyAuth[cmd.Name] {
		return simulatedExit(cmd, escalatorDismissed, "", "Error executing command as another user: Request dismissed", true)
	}

	switch cmd.Name {
	case "ethtool":
		return h.runEthtool(cmd)
	case "iw":
		return h.runIw(cmd)
	case "nmcli":
		return h.runNmcli(cmd)
	case "sysctl":
		return h.runSysctl(cmd)
	}
	return simulatedExit(cmd, 127, "", "unknown command", false)
}

func (h *SimulatedHost) runEthtool(cmd Command) ExecResult {
	args := cmd.Args
	if len(args) < 2 {
		return simulatedExit(cmd, 1, "", "bad command line argument(s)", false)
	}
	iface, ok := h.Interfaces[args[1]]
	if !ok {
		return simulatedExit(cmd, 1, "", "Cannot get device feature names: No such device", false)
	}

	switch args[0] {
	case "-k":
		var b strings.Builder
		fmt.Fprintf(&b, "Features for %s:\n", args[1])
		fmt.Fprintf(&b, "rx-checksumming: on\n")
		for label, feature := range map[string]types.OffloadFeature{
			"tcp-segmentation-offload":     types.FeatureTSO,
			"generic-segmentation-offload": types.FeatureGSO,
			"generic-receive-offload":      types.FeatureGRO,
		} {
			fixed := ""
			if slices.Contains(iface.Fixed, feature) {
				fixed = " [fixed]"
			}
			fmt.Fprintf(&b, "%s: %s%s\n", label, types.OnOff(iface.Offload.Get(feature)), fixed)
		}
		fmt.Fprintf(&b, "large-receive-offload: off [fixed]\n")
		return simulatedExit(cmd, 0, b.String(), "", false)
	case "-K":
		if len(args) != 4 {
			return simulatedExit(cmd, 1, "", "bad command line argument(s)", false)
		}
		feature := types.OffloadFeature(args[2])
		enabled := args[3] == "on"
		if slices.Contains(iface.Fixed, feature) && iface.Offload.Get(feature) != enabled {
			return simulatedExit(cmd, 1, "", "Could not change any device features", false)
		}
		iface.Offload = iface.Offload.With(feature, enabled)
		return simulatedExit(cmd, 0, "", "", false)
	}
	return simulatedExit(cmd, 1, "", "bad command line argument(s)", false)
}

func (h *SimulatedHost) runIw(cmd Command) ExecResult {
	args := cmd.Args
	if len(args) < 4 || args[0] != "dev" || args[3] != "power_save" {
		return simulatedExit(cmd, 1, "", "Usage: iw [options] command", false)
	}
	iface, ok := h.Interfaces[args[1]]
	if !ok {
		return simulatedExit(cmd, 237, "", "command failed: No such device (-19)", false)
	}
	if !iface.HasPowerSave {
		return simulatedExit(cmd, 161, "", "command failed: Operation not supported (-95)", false)
	}

	switch args[2] {
	case "get":
		return simulatedExit(cmd, 0, fmt.Sprintf("Power save: %s\n", iface.PowerSave), "", false)
	case "set":
		if h.FailIwSet || len(args) != 5 {
			return simulatedExit(cmd, 161, "", "command failed: Operation not supported (-95)", false)
		}
		state, err := types.ParsePowerSave(args[4])
		if err != nil {
			return simulatedExit(cmd, 1, "", "Invalid parameter", false)
		}
		iface.PowerSave = state
		return simulatedExit(cmd, 0, "", "", false)
	}
	return simulatedExit(cmd, 1, "", "Usage: iw [options] command", false)
}

func (h *SimulatedHost) runNmcli(cmd Command) ExecResult {
	args := cmd.Args
	switch {
	case len(args) == 5 && args[0] == "-g" && args[2] == "device" && args[3] == "show":
		iface, ok := h.Interfaces[args[4]]
		if !ok {
			return simulatedExit(cmd, 10, "", fmt.Sprintf("Error: Device '%s' not found.", args[4]), false)
		}
		return simulatedExit(cmd, 0, strings.ReplaceAll(iface.Profile, ":", `\:`)+"\n", "", false)
	case len(args) == 5 && args[0] == "-g" && args[2] == "connection" && args[3] == "show":
		value, ok := h.NMPowerSave[args[4]]
		if !ok {
			return simulatedExit(cmd, 10, "", fmt.Sprintf("Error: %s - no such connection profile.", args[4]), false)
		}
		return simulatedExit(cmd, 0, simulatedNMPowerSave(value)+"\n", "", false)
	case len(args) == 5 && args[0] == "connection" && args[1] == "modify":
		profile := args[2]
		if _, ok := h.NMPowerSave[profile]; !ok {
			return simulatedExit(cmd, 10, "", fmt.Sprintf("Error: unknown connection '%s'.", profile), false)
		}
		h.NMPowerSave[profile] = args[4]
		// The profile is not reactivated, so the live state is unchanged.
		return simulatedExit(cmd, 0, "", "", false)
	}
	return simulatedExit(cmd, 2, "", "Error: argument not understood", false)
}

// simulatedNMPowerSave formats a stored value the way nmcli prints it.
func simulatedNMPowerSave(value string) string {
	for name, v := range nmPowerSaveValues {
		if v == value {
			return fmt.Sprintf("%s (%s)", value, name)
		}
	}
	return value
}

func (h *SimulatedHost) runSysctl(cmd Command) ExecResult {
	args := cmd.Args
	if len(args) != 2 {
		return simulatedExit(cmd, 255, "", "sysctl: bad usage", false)
	}

	switch args[0] {
	case "-n":
		if args[1] == SysctlAvailableCongestion {
			return simulatedExit(cmd, 0, strings.Join(h.AvailableCongestion, " ")+"\n", "", false)
		}
		value, ok := h.Sysctl[args[1]]
		if !ok {
			return simulatedExit(cmd, 255, "", fmt.Sprintf("sysctl: cannot stat %s: No such file or directory", sysctlPath(args[1])), false)
		}
		return simulatedExit(cmd, 0, value+"\n", "", false)
	case "-w":
		key, value, ok := strings.Cut(args[1], "=")
		if !ok {
			return simulatedExit(cmd, 255, "", "sysctl: bad usage", false)
		}
		if _, known := h.Sysctl[key]; !known {
			return simulatedExit(cmd, 255, "", fmt.Sprintf("sysctl: cannot stat %s: No such file or directory", sysctlPath(key)), false)
		}
		invalid := fmt.Sprintf("sysctl: setting key \"%s\": Invalid argument", key)
		switch key {
		case SysctlReadBufferMax, SysctlWriteBufferMax:
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil || n <= 0 || (h.MaxBufferBytes > 0 && n > h.MaxBufferBytes) {
				return simulatedExit(cmd, 255, "", invalid, false)
			}
		case SysctlCongestion:
			if !slices.Contains(h.AvailableCongestion, value) {
				return simulatedExit(cmd, 255, "", fmt.Sprintf("sysctl: setting key \"%s\": No such file or directory", key), false)
			}
		}
		h.Sysctl[key] = value
		return simulatedExit(cmd, 0, args[1]+"\n", "", false)
	}
	return simulatedExit(cmd, 255, "", "sysctl: bad usage", false)
}

func simulatedExit(cmd Command, code int, stdout, stderr string, escalated bool) ExecResult {
	res := ExecResult{ExitCode: code, Stdout: stdout, Stderr: stderr}
	if code == 0 {
		return res
	}
	res.Kind = classifyFailure(res, escalated)
	tool := cmd.Name
	if res.Kind == types.KindAuthDenied {
		tool = DefaultEscalator
	}
	res.Err = types.NewStepError(res.Kind, tool, failureDetail(res))
	return res
}
