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

package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a command or step did not succeed.
type ErrorKind string

const (
	KindToolMissing   ErrorKind = "tool_missing"
	KindToolError     ErrorKind = "tool_error"
	KindAuthDenied    ErrorKind = "auth_denied"
	KindValidation    ErrorKind = "validation"
	KindHardwareLimit ErrorKind = "hardware_limit"
	KindUnavailable   ErrorKind = "unavailable"
	KindCancelled     ErrorKind = "cancelled"
)

// Sentinel errors, one per kind. StepError values match them with errors.Is.
var (
	ErrToolMissing   = errors.New("required tool not found")
	ErrToolError     = errors.New("tool failed")
	ErrAuthDenied    = errors.New("authorization denied")
	ErrValidation    = errors.New("validation failed")
	ErrHardwareLimit = errors.New("value rejected by device")
	ErrUnavailable   = errors.New("value unavailable")
	ErrCancelled     = errors.New("cancelled")
)

var kindSentinels = map[ErrorKind]error{
	KindToolMissing:   ErrToolMissing,
	KindToolError:     ErrToolError,
	KindAuthDenied:    ErrAuthDenied,
	KindValidation:    ErrValidation,
	KindHardwareLimit: ErrHardwareLimit,
	KindUnavailable:   ErrUnavailable,
	KindCancelled:     ErrCancelled,
}

// Sentinel returns the sentinel error for a kind, or nil for an unknown kind.
func (k ErrorKind) Sentinel() error {
	return kindSentinels[k]
}

// StepError describes a failed command or step.
type StepError struct {
	Kind   ErrorKind
	Tool   string // tool that failed, empty when not tool related
	Detail string
}

func (e *StepError) Error() string {
	prefix := string(e.Kind)
	if s := e.Kind.Sentinel(); s != nil {
		prefix = s.Error()
	}
	if e.Tool != "" {
		prefix = fmt.Sprintf("%s: %s", e.Tool, prefix)
	}
	if e.Detail == "" {
		return prefix
	}
	return fmt.Sprintf("%s: %s", prefix, e.Detail)
}

// Is matches the sentinel error of the same kind.
func (e *StepError) Is(target error) bool {
	s := e.Kind.Sentinel()
	return s != nil && s == target
}

// NewStepError builds a StepError.
func NewStepError(kind ErrorKind, tool, detail string) *StepError {
	return &StepError{Kind: kind, Tool: tool, Detail: detail}
}

// KindOf extracts the kind of err, or "" when err carries none.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var se *StepError
	if errors.As(err, &se) {
		return se.Kind
	}
	for kind, sentinel := range kindSentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return ""
}

// ValidationError wraps plan validation failures so they match ErrValidation.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", ErrValidation, e.Err)
}

func (e *ValidationError) Unwrap() []error {
	return []error{ErrValidation, e.Err}
}
