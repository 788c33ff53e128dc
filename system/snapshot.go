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
	"errors"
	"reflect"
	"slices"
	"time"

	"github.com/we-are-mono/netopt/types"
)

// ErrNoSnapshot is returned when a mutation is attempted without a snapshot.
var ErrNoSnapshot = errors.New("no snapshot captured")

// Observed is a captured value that may be unavailable.
// An unavailable value carries the reason it could not be read.
type Observed[T any] struct {
	Value     T      `json:"value"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// Known returns an available observation.
func Known[T any](v T) Observed[T] {
	return Observed[T]{Value: v, Available: true}
}

// Unavailable returns an observation that could not be made.
func Unavailable[T any](reason string) Observed[T] {
	return Observed[T]{Reason: reason}
}

// OffloadState is the captured offload configuration.
// Fixed lists features the driver does not allow to change.
type OffloadState struct {
	Flags types.OffloadFlags     `json:"flags"`
	Fixed []types.OffloadFeature `json:"fixed,omitempty"`
}

// IsFixed reports whether the driver pins feature to its current value.
func (o OffloadState) IsFixed(feature types.OffloadFeature) bool {
	return slices.Contains(o.Fixed, feature)
}

// ProfilePowerSave is the 802-11-wireless.powersave value stored in the
// NetworkManager connection profile active on an interface. Value is the
// numeric setting, "0" (use the global default) to "3" (enable).
type ProfilePowerSave struct {
	Profile string `json:"profile"`
	Value   string `json:"value"`
}

// InterfaceSnapshot captures the tunable state of one interface before any
// change is made. It is the rollback target and is never modified.
type InterfaceSnapshot struct {
	Interface           types.InterfaceID                   `json:"interface"`
	Offload             Observed[OffloadState]              `json:"offload"`
	PowerSave           Observed[types.PowerSaveState]      `json:"power_save"`
	ReadBufferMax       Observed[int64]                     `json:"rmem_max"`
	WriteBufferMax      Observed[int64]                     `json:"wmem_max"`
	Congestion          Observed[types.CongestionControl]   `json:"congestion"`
	AvailableCongestion Observed[[]types.CongestionControl] `json:"available_congestion"`
	ProfilePowerSave    Observed[ProfilePowerSave]          `json:"profile_power_save"`
	Timestamp           time.Time                           `json:"timestamp"`
}

// BufferSize returns the read buffer ceiling rounded to the half-megabyte
// grid, for display.
func (s *InterfaceSnapshot) BufferSize() (types.BufferSize, bool) {
	if !s.ReadBufferMax.Available {
		return 0, false
	}
	return types.BufferSizeFromBytes(s.ReadBufferMax.Value), true
}

// CongestionAvailable reports whether the kernel listed cc as available.
// It returns true when the list itself could not be read.
func (s *InterfaceSnapshot) CongestionAvailable(cc types.CongestionControl) bool {
	if !s.AvailableCongestion.Available {
		return true
	}
	return slices.Contains(s.AvailableCongestion.Value, cc)
}

// UnavailableFields lists the field groups that could not be captured.
func (s *InterfaceSnapshot) UnavailableFields() []string {
	var out []string
	if !s.Offload.Available {
		out = append(out, "offload")
	}
	if !s.PowerSave.Available {
		out = append(out, "power_save")
	}
	if !s.ReadBufferMax.Available {
		out = append(out, "rmem_max")
	}
	if !s.WriteBufferMax.Available {
		out = append(out, "wmem_max")
	}
	if !s.Congestion.Available {
		out = append(out, "congestion")
	}
	return out
}

// SameSettings reports whether other holds the same values as s on every
// field group that is available in s. Timestamps, unavailable groups and
// the informational congestion list are ignored.
func (s *InterfaceSnapshot) SameSettings(other *InterfaceSnapshot) bool {
	if other == nil || s.Interface != other.Interface {
		return false
	}
	if s.Offload.Available &&
		(!other.Offload.Available || s.Offload.Value.Flags != other.Offload.Value.Flags) {
		return false
	}
	if s.PowerSave.Available && !sameObserved(s.PowerSave, other.PowerSave) {
		return false
	}
	if s.ReadBufferMax.Available && !sameObserved(s.ReadBufferMax, other.ReadBufferMax) {
		return false
	}
	if s.WriteBufferMax.Available && !sameObserved(s.WriteBufferMax, other.WriteBufferMax) {
		return false
	}
	if s.Congestion.Available && !sameObserved(s.Congestion, other.Congestion) {
		return false
	}
	return true
}

func sameObserved[T any](a, b Observed[T]) bool {
	return b.Available && reflect.DeepEqual(a.Value, b.Value)
}
