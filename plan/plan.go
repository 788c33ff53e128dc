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

// Package plan builds validated, immutable settings plans.
//
// A Plan can only be obtained from Build, which checks every option and
// reports all problems at once. Building a plan never touches the system.
package plan

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/we-are-mono/netopt/types"
	"github.com/we-are-mono/netopt/validation"
)

// Options are the user-chosen settings a Plan is built from.
// Exactly one of BufferMB and BufferPreset is required; both may be given
// when they describe the same size.
type Options struct {
	Interface    string             `json:"interface" validate:"required,ifname"`
	Offload      types.OffloadFlags `json:"offload"`
	PowerSave    string             `json:"power_save" validate:"required,oneof=on off"`
	BufferMB     float64            `json:"buffer_mb,omitempty"`
	BufferPreset string             `json:"buffer_preset,omitempty" validate:"omitempty,oneof=light balanced heavy"`
	Congestion   string             `json:"congestion" validate:"required,oneof=cubic bbr"`
}

// Plan is a validated target configuration for one interface.
type Plan struct {
	iface      types.InterfaceID
	offload    types.OffloadFlags
	powerSave  types.PowerSaveState
	buffer     types.BufferSize
	congestion types.CongestionControl
}

// Interface returns the interface the plan targets.
func (p Plan) Interface() types.InterfaceID { return p.iface }

// Offload returns the target offload flags.
func (p Plan) Offload() types.OffloadFlags { return p.offload }

// PowerSave returns the target power-save state (never unknown).
func (p Plan) PowerSave() types.PowerSaveState { return p.powerSave }

// Buffer returns the target socket buffer ceiling.
func (p Plan) Buffer() types.BufferSize { return p.buffer }

// Congestion returns the target congestion-control algorithm.
func (p Plan) Congestion() types.CongestionControl { return p.congestion }

// IsZero reports whether p was not produced by Build.
func (p Plan) IsZero() bool { return p.iface == "" }

// LatencyProfile returns the default low-latency options for iface:
// every offload disabled, power saving off, balanced buffers and BBR.
func LatencyProfile(iface types.InterfaceID) Options {
	return Options{
		Interface:    string(iface),
		Offload:      types.AllOffload(false),
		PowerSave:    string(types.PowerSaveOff),
		BufferPreset: string(types.PresetBalanced),
		Congestion:   string(types.CongestionBBR),
	}
}

// Build validates opts and returns the resulting Plan.
// All validation failures are returned together, wrapped so that
// errors.Is(err, types.ErrValidation) holds.
func Build(opts Options) (Plan, error) {
	opts = normalize(opts)

	v := validation.NewCollector()
	v.CheckStruct(validation.Validator(), opts)

	if types.InterfaceID(opts.Interface).IsLoopback() {
		v.Check(fmt.Errorf("interface %s is the loopback device", opts.Interface))
	}

	buffer, err := resolveBuffer(opts)
	v.Check(err)

	if err := v.Error(); err != nil {
		return Plan{}, &types.ValidationError{Err: err}
	}

	// Both parses are guaranteed to succeed after struct validation.
	powerSave, _ := types.ParsePowerSave(opts.PowerSave)
	congestion, _ := types.ParseCongestionControl(opts.Congestion)

	return Plan{
		iface:      types.InterfaceID(opts.Interface),
		offload:    opts.Offload,
		powerSave:  powerSave,
		buffer:     buffer,
		congestion: congestion,
	}, nil
}

func normalize(opts Options) Options {
	opts.Interface = strings.TrimSpace(opts.Interface)
	opts.PowerSave = strings.ToLower(strings.TrimSpace(opts.PowerSave))
	opts.BufferPreset = strings.ToLower(strings.TrimSpace(opts.BufferPreset))
	opts.Congestion = strings.ToLower(strings.TrimSpace(opts.Congestion))
	return opts
}

// resolveBuffer picks the buffer size from the megabyte value, the preset
// or both.
func resolveBuffer(opts Options) (types.BufferSize, error) {
	hasMB := opts.BufferMB != 0
	hasPreset := opts.BufferPreset != ""

	switch {
	case !hasMB && !hasPreset:
		return 0, fmt.Errorf("buffer size is required (give a size in MB or a preset)")
	case !hasMB:
		preset, err := types.ParseBufferPreset(opts.BufferPreset)
		if err != nil {
			return 0, err
		}
		return preset.Size(), nil
	}

	if err := validation.ValidateBufferMB(opts.BufferMB); err != nil {
		return 0, err
	}
	size, err := types.BufferSizeFromMegabytes(opts.BufferMB)
	if err != nil {
		return 0, err
	}

	if hasPreset {
		preset, err := types.ParseBufferPreset(opts.BufferPreset)
		if err != nil {
			return 0, err
		}
		if preset.Size() != size {
			return 0, fmt.Errorf("buffer size %s conflicts with preset %s (%s)", size, preset, preset.Size())
		}
	}
	return size, nil
}

type planJSON struct {
	Interface  types.InterfaceID       `json:"interface"`
	Offload    types.OffloadFlags      `json:"offload"`
	PowerSave  types.PowerSaveState    `json:"power_save"`
	BufferMB   float64                 `json:"buffer_mb"`
	Preset     types.BufferPreset      `json:"buffer_preset"`
	Congestion types.CongestionControl `json:"congestion"`
}

// MarshalJSON renders the plan for status output.
func (p Plan) MarshalJSON() ([]byte, error) {
	return json.Marshal(planJSON{
		Interface:  p.iface,
		Offload:    p.offload,
		PowerSave:  p.powerSave,
		BufferMB:   p.buffer.Megabytes(),
		Preset:     p.buffer.Preset(),
		Congestion: p.congestion,
	})
}

// Options returns options that rebuild an identical plan.
func (p Plan) Options() Options {
	return Options{
		Interface:  string(p.iface),
		Offload:    p.offload,
		PowerSave:  string(p.powerSave),
		BufferMB:   p.buffer.Megabytes(),
		Congestion: string(p.congestion),
	}
}

// UnmarshalJSON rebuilds a plan from its JSON form through Build, so a
// decoded plan is validated like any other.
func (p *Plan) UnmarshalJSON(data []byte) error {
	var raw planJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	built, err := Build(Options{
		Interface:  string(raw.Interface),
		Offload:    raw.Offload,
		PowerSave:  string(raw.PowerSave),
		BufferMB:   raw.BufferMB,
		Congestion: string(raw.Congestion),
	})
	if err != nil {
		return err
	}
	*p = built
	return nil
}
