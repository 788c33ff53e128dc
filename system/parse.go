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
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/we-are-mono/netopt/types"
)

// ethtool -k labels for the managed features
var ethtoolFeatureLabels = map[string]types.OffloadFeature{
	"tcp-segmentation-offload":     types.FeatureTSO,
	"generic-segmentation-offload": types.FeatureGSO,
	"generic-receive-offload":      types.FeatureGRO,
}

// kernel feature names returned by the ETHTOOL_GFEATURES ioctl
var kernelFeatureNames = map[types.OffloadFeature]string{
	types.FeatureTSO: "tx-tcp-segmentation",
	types.FeatureGSO: "tx-generic-segmentation",
	types.FeatureGRO: "rx-gro",
}

// parseEthtoolFeatures parses `ethtool -k` output. All three managed
// features must be present.
//
//	Features for eth0:
//	tcp-segmentation-offload: on
//	generic-receive-offload: off [fixed]
func parseEthtoolFeatures(output string) (OffloadState, error) {
	var state OffloadState
	seen := make(map[types.OffloadFeature]bool)

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		key, rest, ok := strings.Cut(strings.TrimSpace(scanner.Text()), ":")
		if !ok {
			continue
		}
		feature, managed := ethtoolFeatureLabels[key]
		if !managed {
			continue
		}

		fields := strings.Fields(rest)
		if len(fields) == 0 {
			return OffloadState{}, fmt.Errorf("no value for %s", key)
		}
		var enabled bool
		switch fields[0] {
		case "on":
			enabled = true
		case "off":
			enabled = false
		default:
			return OffloadState{}, fmt.Errorf("unexpected value %q for %s", fields[0], key)
		}

		state.Flags = state.Flags.With(feature, enabled)
		seen[feature] = true
		if strings.Contains(rest, "[fixed]") {
			state.Fixed = append(state.Fixed, feature)
		}
	}

	for _, feature := range types.OffloadFeatures {
		if !seen[feature] {
			return OffloadState{}, fmt.Errorf("ethtool did not report %s", feature)
		}
	}
	return state, nil
}

// offloadFromKernelFeatures builds an OffloadState from an ioctl feature map.
func offloadFromKernelFeatures(features map[string]bool) (OffloadState, error) {
	var state OffloadState
	for _, feature := range types.OffloadFeatures {
		enabled, ok := features[kernelFeatureNames[feature]]
		if !ok {
			return OffloadState{}, fmt.Errorf("kernel did not report %s", kernelFeatureNames[feature])
		}
		state.Flags = state.Flags.With(feature, enabled)
	}
	return state, nil
}

// parsePowerSave parses `iw dev <if> get power_save` output ("Power save: on").
func parsePowerSave(output string) (types.PowerSaveState, error) {
	for _, line := range strings.Split(output, "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(key), "power save") {
			continue
		}
		return types.ParsePowerSave(value)
	}
	return types.PowerSaveUnknown, fmt.Errorf("no power save state in output %q", strings.TrimSpace(output))
}

// parseSysctlInt parses a numeric sysctl value.
func parseSysctlInt(value string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric value %q", strings.TrimSpace(value))
	}
	return n, nil
}

// parseCongestionList parses net.ipv4.tcp_available_congestion_control.
func parseCongestionList(value string) []types.CongestionControl {
	var out []types.CongestionControl
	for _, name := range strings.Fields(value) {
		out = append(out, types.CongestionControl(name))
	}
	return out
}

// parseNmcliTerse unescapes a single value printed by `nmcli -g`.
func parseNmcliTerse(output string) string {
	value := strings.TrimSpace(output)
	if i := strings.IndexByte(value, '\n'); i >= 0 {
		value = strings.TrimSpace(value[:i])
	}
	value = strings.ReplaceAll(value, `\:`, ":")
	return strings.ReplaceAll(value, `\\`, `\`)
}

// nmPowerSaveValues maps the names nmcli prints for 802-11-wireless.powersave
// to the numeric values `connection modify` accepts.
var nmPowerSaveValues = map[string]string{
	"default": "0",
	"ignore":  "1",
	"disable": "2",
	"enable":  "3",
}

// parseNMPowerSave parses `nmcli -g 802-11-wireless.powersave connection
// show` output such as "0 (default)" or "enable" into the numeric value.
func parseNMPowerSave(output string) (string, error) {
	fields := strings.Fields(parseNmcliTerse(output))
	if len(fields) == 0 {
		return "", fmt.Errorf("empty 802-11-wireless.powersave value")
	}
	token := strings.ToLower(fields[0])
	if value, ok := nmPowerSaveValues[token]; ok {
		return value, nil
	}
	for _, value := range nmPowerSaveValues {
		if token == value {
			return value, nil
		}
	}
	return "", fmt.Errorf("unexpected 802-11-wireless.powersave value %q", fields[0])
}
