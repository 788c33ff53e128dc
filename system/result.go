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
	"time"

	"github.com/we-are-mono/netopt/types"
	"go.uber.org/multierr"
)

// Group is a parameter group, applied in the order of Groups.
type Group string

const (
	GroupOffload    Group = "offload"
	GroupPowerSave  Group = "power_save"
	GroupBuffers    Group = "buffers"
	GroupCongestion Group = "congestion"
)

// Groups is the fixed order in which parameter groups are applied.
var Groups = []Group{GroupOffload, GroupPowerSave, GroupBuffers, GroupCongestion}

// Outcome is the result of a single step.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// Path records which mechanism changed the power-save state.
type Path string

const (
	PathPrimary  Path = "primary"
	PathFallback Path = "fallback"
)

// Operation names what produced a Result.
type Operation string

const (
	OperationApply    Operation = "apply"
	OperationRollback Operation = "rollback"
)

// StepResult records one attempted parameter change.
type StepResult struct {
	Group     Group           `json:"group"`
	Parameter string          `json:"parameter"`
	Value     string          `json:"value"`
	Outcome   Outcome         `json:"outcome"`
	Path      Path            `json:"path,omitempty"`
	Kind      types.ErrorKind `json:"kind,omitempty"`
	Reason    string          `json:"reason,omitempty"`
}

// Err returns the step failure as an error, or nil unless the step failed.
func (s StepResult) Err() error {
	if s.Outcome != OutcomeFailed {
		return nil
	}
	return &stepFailure{step: s}
}

// stepFailure matches the sentinel of the step's error kind.
type stepFailure struct {
	step StepResult
}

func (e *stepFailure) Error() string {
	return fmt.Sprintf("%s %s=%s: %s", e.step.Group, e.step.Parameter, e.step.Value, e.step.Reason)
}

func (e *stepFailure) Unwrap() error {
	return e.step.Kind.Sentinel()
}

// GroupResult holds the ordered steps of one parameter group.
type GroupResult struct {
	Group    Group        `json:"group"`
	Steps    []StepResult `json:"steps"`
	Warnings []string     `json:"warnings,omitempty"`
}

// Outcome summarizes the group: failed if any step failed, success if any
// step succeeded, skipped otherwise.
func (g *GroupResult) Outcome() Outcome {
	outcome := OutcomeSkipped
	for _, s := range g.Steps {
		switch s.Outcome {
		case OutcomeFailed:
			return OutcomeFailed
		case OutcomeSuccess:
			outcome = OutcomeSuccess
		}
	}
	return outcome
}

func (g *GroupResult) add(step StepResult) {
	step.Group = g.Group
	g.Steps = append(g.Steps, step)
}

func (g *GroupResult) warn(format string, args ...any) {
	g.Warnings = append(g.Warnings, fmt.Sprintf(format, args...))
}

// Result is the complete record of an apply or rollback. Every group is
// present, in order, whatever happened to earlier groups.
type Result struct {
	Operation  Operation         `json:"operation"`
	Interface  types.InterfaceID `json:"interface"`
	Groups     []GroupResult     `json:"groups"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
}

// ApplyResult is the Result of Engine.Apply.
type ApplyResult = Result

// RollbackResult is the Result of Engine.Rollback.
type RollbackResult = Result

// Group returns the result for g, or nil if it is absent.
func (r *Result) Group(g Group) *GroupResult {
	for i := range r.Groups {
		if r.Groups[i].Group == g {
			return &r.Groups[i]
		}
	}
	return nil
}

// Steps returns every step in order.
func (r *Result) Steps() []StepResult {
	var out []StepResult
	for _, g := range r.Groups {
		out = append(out, g.Steps...)
	}
	return out
}

// Warnings returns every scope warning in group order.
func (r *Result) Warnings() []string {
	var out []string
	for _, g := range r.Groups {
		out = append(out, g.Warnings...)
	}
	return out
}

// Count returns how many steps ended with outcome.
func (r *Result) Count(outcome Outcome) int {
	n := 0
	for _, s := range r.Steps() {
		if s.Outcome == outcome {
			n++
		}
	}
	return n
}

// Failed reports whether any step failed.
func (r *Result) Failed() bool {
	return r.Count(OutcomeFailed) > 0
}

// Cancelled reports whether steps were skipped because of cancellation.
func (r *Result) Cancelled() bool {
	for _, s := range r.Steps() {
		if s.Kind == types.KindCancelled {
			return true
		}
	}
	return false
}

// Err aggregates all failed steps into one error, or nil when none failed.
func (r *Result) Err() error {
	var err error
	for _, s := range r.Steps() {
		err = multierr.Append(err, s.Err())
	}
	return err
}
