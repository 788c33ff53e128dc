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

// Package types defines the core data structures for netopt.
// It includes the interface identifier, offload flags, power-save state,
// buffer sizes and congestion-control algorithms shared by the snapshot,
// plan and engine packages.
package types

import (
	"fmt"
	"math"
	"strings"
)

// InterfaceID identifies a network interface by its kernel name.
type InterfaceID string

// LoopbackInterface is the loopback device, which is never optimized.
const LoopbackInterface InterfaceID = "lo"

// IsLoopback reports whether the id names the loopback device.
func (id InterfaceID) IsLoopback() bool {
	return id == LoopbackInterface
}

func (id InterfaceID) String() string {
	return string(id)
}

// OffloadFeature names one of the NIC offload features netopt manages.
type OffloadFeature string

const (
	FeatureTSO OffloadFeature = "tso"
	FeatureGSO OffloadFeature = "gso"
	FeatureGRO OffloadFeature = "gro"
)

// OffloadFeatures lists the managed features in the order they are applied.
var OffloadFeatures = []OffloadFeature{FeatureTSO, FeatureGSO, FeatureGRO}

// OffloadFlags holds the enabled state of TSO, GSO and GRO.
// All three flags are always present.
type OffloadFlags struct {
	TSO bool `json:"tso"`
	GSO bool `json:"gso"`
	GRO bool `json:"gro"`
}

// AllOffload returns flags with every feature set to enabled.
func AllOffload(enabled bool) OffloadFlags {
	return OffloadFlags{TSO: enabled, GSO: enabled, GRO: enabled}
}

// Get returns the state of a single feature.
func (f OffloadFlags) Get(feature OffloadFeature) bool {
	switch feature {
	case FeatureTSO:
		return f.TSO
	case FeatureGSO:
		return f.GSO
	case FeatureGRO:
		return f.GRO
	default:
		return false
	}
}

// With returns a copy of the flags with one feature changed.
func (f OffloadFlags) With(feature OffloadFeature, enabled bool) OffloadFlags {
	switch feature {
	case FeatureTSO:
		f.TSO = enabled
	case FeatureGSO:
		f.GSO = enabled
	case FeatureGRO:
		f.GRO = enabled
	}
	return f
}

// OnOff renders a boolean the way ethtool and iw expect it.
func OnOff(enabled bool) string {
	if enabled {
		return "on"
	}
	return "off"
}

// PowerSaveState is the power management mode of an interface.
type PowerSaveState string

const (
	PowerSaveOn      PowerSaveState = "on"
	PowerSaveOff     PowerSaveState = "off"
	PowerSaveUnknown PowerSaveState = "unknown" // only valid in snapshots
)

// ParsePowerSave converts "on"/"off" (case-insensitive) to a PowerSaveState.
func ParsePowerSave(s string) (PowerSaveState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on":
		return PowerSaveOn, nil
	case "off":
		return PowerSaveOff, nil
	default:
		return PowerSaveUnknown, fmt.Errorf("invalid power-save state %q (must be on or off)", s)
	}
}

// Known reports whether the state is on or off.
func (p PowerSaveState) Known() bool {
	return p == PowerSaveOn || p == PowerSaveOff
}

// BufferSize is a socket buffer ceiling in half-megabyte units.
// Working in whole units keeps 0.5 MB steps exact.
type BufferSize int

const (
	MinBufferSize BufferSize = 1 // 0.5 MB
	MaxBufferSize BufferSize = 8 // 4.0 MB

	// BytesPerBufferUnit is the size of one half-megabyte unit.
	BytesPerBufferUnit int64 = 512 * 1024
)

// BufferSizeFromMegabytes converts a megabyte value to units.
// The value must be a multiple of 0.5 within [0.5, 4.0].
func BufferSizeFromMegabytes(mb float64) (BufferSize, error) {
	if math.IsNaN(mb) || math.IsInf(mb, 0) {
		return 0, fmt.Errorf("buffer size must be a finite number")
	}
	units := mb * 2
	if units != math.Trunc(units) {
		return 0, fmt.Errorf("buffer size %.2f MB is not a multiple of 0.5 MB", mb)
	}
	size := BufferSize(units)
	if !size.Valid() {
		return 0, fmt.Errorf("buffer size %.1f MB out of valid range [0.5, 4.0]", mb)
	}
	return size, nil
}

// BufferSizeFromBytes rounds a byte count to the nearest unit and clamps
// it to the valid range. Used for display of captured values only.
func BufferSizeFromBytes(n int64) BufferSize {
	units := BufferSize(math.Round(float64(n) / float64(BytesPerBufferUnit)))
	if units < MinBufferSize {
		return MinBufferSize
	}
	if units > MaxBufferSize {
		return MaxBufferSize
	}
	return units
}

// Valid reports whether the size is within [MinBufferSize, MaxBufferSize].
func (b BufferSize) Valid() bool {
	return b >= MinBufferSize && b <= MaxBufferSize
}

// Megabytes returns the size in megabytes.
func (b BufferSize) Megabytes() float64 {
	return float64(b) / 2
}

// Bytes returns the size in bytes as written to net.core.[rw]mem_max.
func (b BufferSize) Bytes() int64 {
	return int64(b) * BytesPerBufferUnit
}

// Preset returns the preset band the size falls into.
func (b BufferSize) Preset() BufferPreset {
	switch {
	case b <= 2:
		return PresetLight
	case b <= 5:
		return PresetBalanced
	default:
		return PresetHeavy
	}
}

func (b BufferSize) String() string {
	return fmt.Sprintf("%.1f MB", b.Megabytes())
}

// BufferPreset is a named buffer size.
type BufferPreset string

const (
	PresetLight    BufferPreset = "light"
	PresetBalanced BufferPreset = "balanced"
	PresetHeavy    BufferPreset = "heavy"
)

var presetSizes = map[BufferPreset]BufferSize{
	PresetLight:    2, // 1.0 MB
	PresetBalanced: 5, // 2.5 MB
	PresetHeavy:    8, // 4.0 MB
}

// ParseBufferPreset converts a preset name (case-insensitive).
func ParseBufferPreset(s string) (BufferPreset, error) {
	p := BufferPreset(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := presetSizes[p]; !ok {
		return "", fmt.Errorf("unknown buffer preset %q (must be light, balanced, or heavy)", s)
	}
	return p, nil
}

// Size returns the fixed size of the preset.
func (p BufferPreset) Size() BufferSize {
	return presetSizes[p]
}

// CongestionControl names a TCP congestion-control algorithm.
type CongestionControl string

const (
	CongestionCubic CongestionControl = "cubic"
	CongestionBBR   CongestionControl = "bbr"
)

// SelectableCongestion is the set users may choose in a plan.
var SelectableCongestion = []CongestionControl{CongestionCubic, CongestionBBR}

// ParseCongestionControl normalizes and validates a user-selected algorithm.
func ParseCongestionControl(s string) (CongestionControl, error) {
	cc := CongestionControl(strings.ToLower(strings.TrimSpace(s)))
	for _, allowed := range SelectableCongestion {
		if cc == allowed {
			return cc, nil
		}
	}
	return "", fmt.Errorf("unsupported congestion control %q (must be cubic or bbr)", s)
}
